// Package cmd implements the stepseq command line: playing a project on an
// audio device, rendering it to a WAV file and printing a summary.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/project"
	"github.com/vsariola/stepseq/sequencer"
	"github.com/vsariola/stepseq/version"
)

// RootOptions holds the global flags.
type RootOptions struct {
	Verbose bool
	Logger  *slog.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:          "stepseq",
		Short:        "Step sequencer playback",
		Long:         "Plays and renders step sequencer projects: tracks of samples triggered on a grid of beats.",
		Version:      version.Long(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug messages")
	cmd.AddCommand(newPlayCommand(opts))
	cmd.AddCommand(newRenderCommand(opts))
	cmd.AddCommand(newInfoCommand(opts))
	return cmd
}

// openProject loads the project at path into a new sequence on backend. The
// caller closes the sequence.
func openProject(path string, backend stepseq.AudioBackend, logger *slog.Logger) (*project.Project, *sequencer.Sequence, *event.Bus, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := p.Engine
	cfg.Logger = logger
	bus := event.NewBus(logger)
	s, err := sequencer.New(backend, bus, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := p.Apply(s, nil); err != nil {
		s.Close()
		return nil, nil, nil, fmt.Errorf("cannot apply project %s: %w", path, err)
	}
	logger.Debug("project loaded", "path", path, "tracks", s.TracksNum(), "beats", s.BeatsNum(), "bpm", s.Bpm())
	return p, s, bus, nil
}
