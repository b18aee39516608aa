package cmd

import (
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/spf13/cobra"

	"github.com/vsariola/stepseq/project"
)

const defaultInfoTemplate = `{{ .Name | default "untitled" }}: {{ len .Tracks }} tracks, {{ .BeatsNum }} beats, {{ .BPM | default 120 }} bpm
{{- range $i, $t := .Tracks }}
{{ printf "%2d" $i }} {{ $t.Name | trunc 12 | printf "%-12s" }} {{ $t.Pattern }}
{{- if $t.Sample }} {{ base $t.Sample }}{{ end }}
{{- if $t.Mute }} muted{{ end }}
{{- if $t.Solo }} solo{{ end }}
{{- end }}
`

func newInfoCommand(root *RootOptions) *cobra.Command {
	var templateFile string
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "Print a summary of a project",
		Long:  "Prints a summary of a project. The output can be customized with a Go text/template; the sprig functions are available.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(args[0])
			if err != nil {
				return err
			}
			text := defaultInfoTemplate
			if templateFile != "" {
				b, err := os.ReadFile(templateFile)
				if err != nil {
					return fmt.Errorf("cannot read template: %w", err)
				}
				text = string(b)
			}
			tmpl, err := template.New("info").Funcs(sprig.TxtFuncMap()).Parse(text)
			if err != nil {
				return fmt.Errorf("cannot parse template: %w", err)
			}
			root.Logger.Debug("printing project info", "path", args[0], "template", templateFile)
			return tmpl.Execute(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&templateFile, "template", "", "template file to format the summary with")
	return cmd
}
