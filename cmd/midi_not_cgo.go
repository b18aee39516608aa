//go:build !cgo

package cmd

import (
	"errors"

	"gitlab.com/gomidi/midi/v2"
)

// OpenMIDIOut always fails: the rtmidi driver needs cgo.
func OpenMIDIOut(name string) (send func(midi.Message) error, close func() error, err error) {
	return nil, nil, errors.New("MIDI output is not available in builds without cgo")
}
