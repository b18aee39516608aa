// Package midiout turns the beat events of a sequence into MIDI notes, so the
// sequencer can drive external instruments in step with its own samples.
package midiout

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vsariola/stepseq/event"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Bridge subscribes to the beat-on and beat-off events of a sequence and
	// sends a note for every beat. Each track has its own key; by default
	// track i plays BaseKey+i.
	Bridge struct {
		mutex  sync.Mutex
		bus    *event.Bus
		id     event.ID
		send   func(midi.Message) error
		opts   Options
		keys   map[int]uint8
		held   map[int]uint8 // track -> sounding key
		logger *slog.Logger
	}

	Options struct {
		Channel  uint8 `yaml:"channel"`
		BaseKey  uint8 `yaml:"baseKey"`
		Velocity uint8 `yaml:"velocity"`
	}
)

// DefaultOptions plays General MIDI drums: channel 10, starting from the bass
// drum.
func DefaultOptions() Options {
	return Options{Channel: 9, BaseKey: 36, Velocity: 100}
}

// New creates a bridge that sends through send, for example the function
// returned by midi.SendTo.
func New(bus *event.Bus, send func(midi.Message) error, opts Options, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Velocity == 0 {
		opts.Velocity = DefaultOptions().Velocity
	}
	return &Bridge{
		bus:    bus,
		id:     event.NewID(),
		send:   send,
		opts:   opts,
		keys:   map[int]uint8{},
		held:   map[int]uint8{},
		logger: logger,
	}
}

// Attach starts following the beats of source.
func (b *Bridge) Attach(source event.ID) error {
	on := event.Subject{Source: source, Name: "beat-on"}
	off := event.Subject{Source: source, Name: "beat-off"}
	if _, err := b.bus.Subscribe(on, b.id, b.beatOn); err != nil {
		return fmt.Errorf("cannot attach MIDI bridge: %w", err)
	}
	if _, err := b.bus.Subscribe(off, b.id, b.beatOff); err != nil {
		b.bus.UnsubscribeAll(b.id)
		return fmt.Errorf("cannot attach MIDI bridge: %w", err)
	}
	return nil
}

// Detach stops following every source and silences the held notes.
func (b *Bridge) Detach() error {
	b.bus.UnsubscribeAll(b.id)
	return b.AllOff()
}

// SetKey sets the key played by track.
func (b *Bridge) SetKey(track int, key uint8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.keys[track] = key & 0x7f
}

func (b *Bridge) Key(track int) uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.key(track)
}

func (b *Bridge) key(track int) uint8 {
	if k, ok := b.keys[track]; ok {
		return k
	}
	return uint8(int(b.opts.BaseKey)+track) & 0x7f
}

// AllOff sends a note off for every sounding note.
func (b *Bridge) AllOff() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var firstErr error
	for track, key := range b.held {
		if err := b.send(midi.NoteOff(b.opts.Channel, key)); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.held, track)
	}
	return firstErr
}

func (b *Bridge) beatOn(e event.Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if key, ok := b.held[e.Track]; ok {
		b.sendLogged(midi.NoteOff(b.opts.Channel, key))
	}
	key := b.key(e.Track)
	b.held[e.Track] = key
	b.sendLogged(midi.NoteOn(b.opts.Channel, key, b.opts.Velocity))
}

func (b *Bridge) beatOff(e event.Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	key, ok := b.held[e.Track]
	if !ok {
		return
	}
	delete(b.held, e.Track)
	b.sendLogged(midi.NoteOff(b.opts.Channel, key))
}

func (b *Bridge) sendLogged(msg midi.Message) {
	if err := b.send(msg); err != nil {
		b.logger.Warn("midiout: cannot send message", "msg", msg.String(), "err", err)
	}
}
