package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/offline"
	"github.com/vsariola/stepseq/wavfile"
)

type renderOptions struct {
	output    string
	format    string
	seconds   float64
	framerate int
	blockSize int
}

func newRenderCommand(root *RootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render a project to a WAV file",
		Long:  "Renders a project faster than real time. Without --seconds, one pass through all the beats is rendered.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: FILE with the extension of the format)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "wav", "output format: wav (16-bit), wav32 (float), raw16 or raw32")
	cmd.Flags().Float64Var(&opts.seconds, "seconds", 0, "length of the rendering in seconds")
	cmd.Flags().IntVar(&opts.framerate, "framerate", 44100, "output framerate")
	cmd.Flags().IntVar(&opts.blockSize, "block", offline.DefaultBlockSize, "frames rendered at a time")
	return cmd
}

func runRender(cmd *cobra.Command, root *RootOptions, opts *renderOptions, path string) error {
	if opts.framerate <= 0 || opts.seconds < 0 {
		return fmt.Errorf("invalid framerate %d or length %v", opts.framerate, opts.seconds)
	}
	ext, ok := formatExtensions[opts.format]
	if !ok {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	backend := offline.New(opts.framerate, opts.blockSize)
	defer backend.Close()
	_, s, bus, err := openProject(path, backend, root.Logger)
	if err != nil {
		return err
	}
	defer s.Close()
	beats := 0
	if _, err := bus.Subscribe(s.Subject("beat-on"), event.NewID(), func(e event.Event) {
		beats++
		root.Logger.Debug("beat", "track", e.Track, "beat", e.Beat)
	}); err != nil {
		return err
	}
	frames := int(opts.seconds * float64(opts.framerate))
	if opts.seconds == 0 {
		frames = s.BeatsNum() * s.BeatFrames()
	}
	if err := s.Enable(); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	out := make([]float32, 2*frames)
	for done := 0; done < frames; {
		n := min(frames-done, 4*opts.blockSize)
		backend.RenderInto(out[2*done : 2*(done+n)])
		s.DispatchNotifications()
		done += n
	}
	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ext
	}
	if err := save(output, opts.format, opts.framerate, out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d frames (%d beats triggered) to %s\n", frames, beats, output)
	return nil
}

var formatExtensions = map[string]string{"wav": ".wav", "wav32": ".wav", "raw16": ".raw", "raw32": ".raw"}

func save(path, format string, framerate int, data []float32) error {
	var contents []byte
	var err error
	switch format {
	case "wav":
		return wavfile.Save(path, framerate, 2, data)
	case "wav32":
		contents, err = stepseq.FloatWav(data, framerate, 2)
	default:
		contents, err = stepseq.Raw(data, format == "raw16")
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	return nil
}
