package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/midiout"
	"github.com/vsariola/stepseq/pool"
)

type playOptions struct {
	backend   string
	seconds   float64
	midiOut   string
	framerate int
	blockSize int
}

const pumpInterval = 5 * time.Millisecond

func newPlayCommand(root *RootOptions) *cobra.Command {
	opts := &playOptions{}
	cmd := &cobra.Command{
		Use:   "play FILE",
		Short: "Play a project on an audio device",
		Long:  "Plays a project until interrupted, until --seconds have passed or, for a project that does not loop, until its end.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.backend, "backend", DefaultBackend, fmt.Sprintf("audio backend, one of %v", BackendNames()))
	cmd.Flags().Float64Var(&opts.seconds, "seconds", 0, "stop after this many seconds (0: play until interrupted)")
	cmd.Flags().StringVar(&opts.midiOut, "midi-out", "", "also send the beats to the MIDI output whose name contains this")
	cmd.Flags().IntVar(&opts.framerate, "framerate", 44100, "device framerate")
	cmd.Flags().IntVar(&opts.blockSize, "block", 512, "device buffer size in frames")
	return cmd
}

func runPlay(cmd *cobra.Command, root *RootOptions, opts *playOptions, path string) error {
	logger := root.Logger
	backend, err := NewBackend(opts.backend, opts.framerate, opts.blockSize)
	if err != nil {
		return err
	}
	defer backend.Close()
	p, s, bus, err := openProject(path, backend, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if opts.seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.seconds*float64(time.Second)))
		defer cancel()
	}
	id := event.NewID()
	if _, err := bus.Subscribe(s.Subject("ended"), id, func(event.Event) { stop() }); err != nil {
		return err
	}
	if _, err := bus.Subscribe(s.Subject("track-failed"), id, func(e event.Event) {
		fmt.Fprintf(cmd.ErrOrStderr(), "track %d stopped playing: resampler failed\n", e.Track)
	}); err != nil {
		return err
	}

	workers := pool.New(1, logger)
	defer workers.Close()
	cancelPump, err := s.AttachPump(workers, pumpInterval)
	if err != nil {
		return err
	}
	defer cancelPump()

	if opts.midiOut != "" {
		send, closeMIDI, err := OpenMIDIOut(opts.midiOut)
		if err != nil {
			return err
		}
		defer closeMIDI()
		mopts := midiout.DefaultOptions()
		if p.MIDI != nil {
			mopts = *p.MIDI
		}
		bridge := midiout.New(bus, send, mopts, logger)
		p.ConfigureBridge(bridge)
		if err := bridge.Attach(s.Source()); err != nil {
			return err
		}
		defer bridge.Detach()
	}

	if err := s.Enable(); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "playing %s: %d tracks, %d beats at %v bpm\n", path, s.TracksNum(), s.BeatsNum(), s.Bpm())
	<-ctx.Done()
	return s.Stop()
}
