// Package sequencer is the playback core of a step sequencer. A Sequence is
// the control side: it keeps a mirror of the tracks and turns every mutation
// into Commands. A Player is the audio side: the backend calls it once per
// block, it applies the Commands it finds, triggers beats and streams the
// samples of the tracks into their output ports.
//
// The two sides share no locks. Structural changes are copy-and-swap: the
// control goroutine builds the new state, hands it over in a single
// acknowledged command and frees what was replaced only after the
// acknowledgment.
package sequencer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/resample"
	"github.com/vsariola/stepseq/ringbuf"
)

type (
	// Sequence is the control side of the sequencer. All methods are safe for
	// concurrent use; they are serialized by a mutex and return only after
	// the audio goroutine has applied the change.
	Sequence struct {
		mu      sync.Mutex
		cfg     Config
		logger  *slog.Logger
		backend stepseq.AudioBackend
		broker  *Broker
		player  *Player

		bus     *event.Bus
		source  event.ID
		drainMu sync.Mutex

		tracks         []*trackModel
		beatsNum       int
		measureLen     int
		bpm            float64
		looping        bool
		enabled        bool
		transportAware bool
		transportQuery bool
		resampler      resample.Type

		framerate    int
		blockSize    int
		attackFrames int

		pending []pendingFree
		err     error
		closed  bool
	}

	// trackModel is the control goroutine's copy of a track. The audio side
	// lives in audio; the two are never shared.
	trackModel struct {
		name      string
		pattern   []bool
		mask      []bool
		sample    *stepseq.Sample
		resampler resample.Resampler
		gain      float64
		pitch     float64
		muted     bool
		solo      bool
		smoothing bool
		ports     [2]stepseq.Port
		audio     *Track
	}
)

// New creates an empty, disabled sequence playing through backend and
// installs its Player as the backend's processor. If bus is not nil, every
// notification is fired on it as an event from Source().
func New(backend stepseq.AudioBackend, bus *event.Bus, cfg Config) (*Sequence, error) {
	cfg = cfg.withDefaults()
	if backend.Framerate() <= 0 {
		return nil, fmt.Errorf("cannot create sequence: invalid framerate %d", backend.Framerate())
	}
	s := &Sequence{
		cfg:          cfg,
		logger:       cfg.Logger,
		backend:      backend,
		broker:       NewBroker(cfg.CommandCapacity, cfg.NotificationCapacity),
		bus:          bus,
		source:       event.NewID(),
		bpm:          120,
		measureLen:   4,
		looping:      true,
		resampler:    cfg.Resampler,
		framerate:    backend.Framerate(),
		blockSize:    max(backend.BlockSize(), 1),
		attackFrames: max(int(cfg.MaskAttackDelay.Seconds()*float64(backend.Framerate())), 1),
	}
	s.player = newPlayer(s.broker, backend, s.attackFrames)
	if bus != nil {
		for _, name := range EventNames() {
			if err := bus.Register(event.Subject{Source: s.source, Name: name}); err != nil {
				bus.RemoveSource(s.source)
				return nil, fmt.Errorf("cannot create sequence: %w", err)
			}
		}
	}
	backend.SetProcessor(s.player)
	return s, nil
}

// Source is the event source of the sequence's notifications.
func (s *Sequence) Source() event.ID {
	return s.source
}

// Subject returns the subject the sequence fires the named event on.
func (s *Sequence) Subject(name string) event.Subject {
	return event.Subject{Source: s.source, Name: name}
}

// Err returns the last structural error.
func (s *Sequence) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// send queues c, waits for the audio goroutine to apply it and releases
// whatever earlier commands left pending. The caller holds s.mu.
func (s *Sequence) send(c Command) (ringbuf.Ticket, error) {
	if s.closed {
		return 0, ErrClosed
	}
	ch := s.broker.ToPlayer
	t, ok := retrySend(ch, c, true, s.cfg.SendTimeout, s.cfg.RetryInterval, s.cfg.MaxRetryInterval, s.pause)
	if !ok {
		return 0, fmt.Errorf("cannot send %v: %w", c.Kind, ErrChannelFull)
	}
	err := s.waitAck(t)
	s.collect(false)
	if err != nil {
		return t, fmt.Errorf("%v: %w", c.Kind, err)
	}
	return t, nil
}

func (s *Sequence) detached() bool {
	return s.player.idleSince(time.Now()) > s.cfg.DetachedAfter
}

// pause waits about d for the channel to drain, draining it here if no audio
// callback is running.
func (s *Sequence) pause(d time.Duration) {
	if s.detached() && s.player.service() {
		return
	}
	time.Sleep(d)
}

func (s *Sequence) waitAck(t ringbuf.Ticket) error {
	ch := s.broker.ToPlayer
	deadline := time.Now().Add(s.cfg.AckTimeout)
	for !ch.Acked(t) {
		if s.detached() && s.player.service() {
			continue
		}
		if time.Now().After(deadline) {
			return ErrAckTimeout
		}
		select {
		case <-ch.Signal():
		case <-time.After(s.cfg.RetryInterval):
		}
	}
	return nil
}

// model returns the mirror of track i. The caller holds s.mu.
func (s *Sequence) model(i int) (*trackModel, error) {
	if i < 0 || i >= len(s.tracks) {
		return nil, rejected("track", i)
	}
	return s.tracks[i], nil
}

// Enable lets the player render.
func (s *Sequence) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.send(Command{Kind: CmdAckEnable})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		s.enabled = true
	}
	return err
}

// Disable stops rendering; the backend keeps running and outputs silence.
func (s *Sequence) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disable()
}

func (s *Sequence) disable() error {
	_, err := s.send(Command{Kind: CmdAckDisable})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		s.enabled = false
	}
	return err
}

func (s *Sequence) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Sequence) SetBpm(bpm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !(bpm > 0 && bpm <= maxBpm) {
		return rejected("bpm", bpm)
	}
	_, err := s.send(Command{Kind: CmdSetBpm, Value: bpm})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		s.bpm = bpm
	}
	return err
}

func (s *Sequence) Bpm() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// BeatFrames returns the length of a beat in frames at the current tempo.
func (s *Sequence) BeatFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(int(60*float64(s.framerate)/s.bpm/float64(s.measureLen)), 1)
}

// SetTransport selects who owns the transport. With aware, Start, Stop and
// Rewind are forwarded to the backend. With query, the player follows the
// backend's position and started state instead of its own.
func (s *Sequence) SetTransport(aware, query bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.send(Command{Kind: CmdSetTransport, On: aware, On2: query})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		s.transportAware, s.transportQuery = aware, query
	}
	return err
}

func (s *Sequence) Transport() (aware, query bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transportAware, s.transportQuery
}

func (s *Sequence) SetLooping(looping bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.send(Command{Kind: CmdSetLooping, On: looping})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		s.looping = looping
	}
	return err
}

func (s *Sequence) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looping
}

func (s *Sequence) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transportAware {
		if err := s.backend.Start(); err != nil {
			return fmt.Errorf("cannot start backend: %w", err)
		}
	}
	_, err := s.send(Command{Kind: CmdStart})
	return err
}

func (s *Sequence) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.send(Command{Kind: CmdStop}); err != nil {
		return err
	}
	if s.transportAware {
		if err := s.backend.Stop(); err != nil {
			return fmt.Errorf("cannot stop backend: %w", err)
		}
	}
	return nil
}

func (s *Sequence) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.send(Command{Kind: CmdRewind}); err != nil {
		return err
	}
	if s.transportAware {
		if err := s.backend.Seek(0); err != nil {
			return fmt.Errorf("cannot rewind backend: %w", err)
		}
	}
	return nil
}

// CurrentBeat returns the beat the player last triggered, or -1.
func (s *Sequence) CurrentBeat() int {
	return int(s.player.beat.Load())
}

func (s *Sequence) TracksNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

func (s *Sequence) BeatsNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beatsNum
}

func (s *Sequence) MeasureLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measureLen
}

func (s *Sequence) Framerate() int {
	return s.framerate
}

// Close disables the sequence, removes its tracks one at a time and detaches
// the player from the backend. The backend itself is not closed.
func (s *Sequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var errs []error
	if err := s.disable(); err != nil {
		errs = append(errs, err)
	}
	for len(s.tracks) > 0 {
		origins := make([]int, len(s.tracks)-1)
		for i := range origins {
			origins[i] = i
		}
		if err := s.reshape("close", origins, s.beatsNum, s.measureLen, false); err != nil {
			errs = append(errs, err)
			break
		}
	}
	s.backend.SetProcessor(nil)
	for !s.player.owner.CompareAndSwap(0, 1) {
		time.Sleep(s.cfg.RetryInterval) // a callback may still be running
	}
	for _, m := range s.tracks {
		s.deferFree(0, m.sample, m.resampler, m.ports[0], m.ports[1])
	}
	s.tracks = nil
	s.collect(true)
	s.closed = true
	if s.bus != nil {
		s.bus.RemoveSource(s.source)
	}
	s.logger.Debug("sequencer: closed", "source", s.source)
	return errors.Join(errs...)
}
