//go:build cgo

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// OpenMIDIOut opens the first MIDI output whose name contains name. Call
// close when done sending.
func OpenMIDIOut(name string) (send func(midi.Message) error, close func() error, err error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open MIDI driver: %w", err)
	}
	outs, err := driver.Outs()
	if err != nil {
		driver.Close()
		return nil, nil, fmt.Errorf("cannot list MIDI outputs: %w", err)
	}
	for _, out := range outs {
		if !strings.Contains(out.String(), name) {
			continue
		}
		if err := out.Open(); err != nil {
			driver.Close()
			return nil, nil, fmt.Errorf("opening MIDI output failed: %w", err)
		}
		send, err := midi.SendTo(out)
		if err != nil {
			out.Close()
			driver.Close()
			return nil, nil, fmt.Errorf("opening MIDI output failed: %w", err)
		}
		return send, func() error {
			return errors.Join(out.Close(), driver.Close())
		}, nil
	}
	driver.Close()
	return nil, nil, fmt.Errorf("no MIDI output matching %q", name)
}
