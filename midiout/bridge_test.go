package midiout_test

import (
	"testing"

	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/midiout"
	"gitlab.com/gomidi/midi/v2"
)

type note struct {
	on       bool
	key, vel uint8
}

func setup(t *testing.T, opts midiout.Options) (*midiout.Bridge, *event.Bus, event.ID, *[]note) {
	t.Helper()
	bus := event.NewBus(nil)
	source := event.NewID()
	for _, name := range []string{"beat-on", "beat-off"} {
		if err := bus.Register(event.Subject{Source: source, Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	var notes []note
	send := func(msg midi.Message) error {
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			notes = append(notes, note{true, key, vel})
		case msg.GetNoteEnd(&ch, &key):
			notes = append(notes, note{false, key, 0})
		default:
			t.Errorf("unexpected message %v", msg)
		}
		if ch != opts.Channel {
			t.Errorf("expected channel %d, got %d", opts.Channel, ch)
		}
		return nil
	}
	b := midiout.New(bus, send, opts, nil)
	if err := b.Attach(source); err != nil {
		t.Fatal(err)
	}
	return b, bus, source, &notes
}

func fire(t *testing.T, bus *event.Bus, source event.ID, name string, track int) {
	t.Helper()
	if err := bus.Fire(event.Event{Subject: event.Subject{Source: source, Name: name}, Track: track}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestBeatsBecomeNotes(t *testing.T) {
	_, bus, source, notes := setup(t, midiout.DefaultOptions())
	fire(t, bus, source, "beat-on", 0)
	fire(t, bus, source, "beat-on", 2)
	fire(t, bus, source, "beat-off", 0)
	fire(t, bus, source, "beat-off", 1) // never started
	want := []note{{true, 36, 100}, {true, 38, 100}, {false, 36, 0}}
	if len(*notes) != len(want) {
		t.Fatalf("expected %v, got %v", want, *notes)
	}
	for i := range want {
		if (*notes)[i] != want[i] {
			t.Errorf("message %d: expected %v, got %v", i, want[i], (*notes)[i])
		}
	}
}

func TestRetriggerEndsPreviousNote(t *testing.T) {
	b, bus, source, notes := setup(t, midiout.Options{Channel: 3, BaseKey: 60, Velocity: 90})
	b.SetKey(0, 72)
	fire(t, bus, source, "beat-on", 0)
	b.SetKey(0, 74)
	fire(t, bus, source, "beat-on", 0)
	want := []note{{true, 72, 90}, {false, 72, 0}, {true, 74, 90}}
	if len(*notes) != len(want) {
		t.Fatalf("expected %v, got %v", want, *notes)
	}
	for i := range want {
		if (*notes)[i] != want[i] {
			t.Errorf("message %d: expected %v, got %v", i, want[i], (*notes)[i])
		}
	}
}

func TestDetachSilences(t *testing.T) {
	b, bus, source, notes := setup(t, midiout.DefaultOptions())
	fire(t, bus, source, "beat-on", 4)
	if err := b.Detach(); err != nil {
		t.Fatal(err)
	}
	fire(t, bus, source, "beat-on", 5)
	if len(*notes) != 2 || (*notes)[1] != (note{false, 40, 0}) {
		t.Errorf("expected the held note to be released and nothing more, got %v", *notes)
	}
}
