// Package project reads the YAML files that describe a sequence: its tempo
// and length, the engine configuration and every track with its pattern,
// mask, sample and mixer settings.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/midiout"
	"github.com/vsariola/stepseq/resample"
	"github.com/vsariola/stepseq/sequencer"
	"github.com/vsariola/stepseq/wavfile"
)

type (
	// Project is the contents of a project file. Zero values mean the
	// defaults of a new sequence.
	Project struct {
		Name      string
		BPM       float64   `yaml:"bpm,omitempty"`
		Beats     int       `yaml:",omitempty"` // 0: the length of the longest pattern
		Measure   int       `yaml:",omitempty"`
		Looping   *bool     `yaml:",omitempty"`
		Transport Transport `yaml:",omitempty"`

		// Resampler overrides Engine.Resampler.
		Resampler *resample.Type   `yaml:",omitempty"`
		Engine    sequencer.Config `yaml:",omitempty"`
		MIDI      *midiout.Options `yaml:"midi,omitempty"`
		Tracks    []Track

		// Dir is where sample paths are relative to. Load sets it to the
		// directory of the file.
		Dir string `yaml:"-"`
	}

	Transport struct {
		Aware bool `yaml:",omitempty"`
		Query bool `yaml:",omitempty"`
	}

	Track struct {
		Name      string
		Sample    string   `yaml:",omitempty"`
		Pattern   Pattern
		Mask      *Pattern `yaml:",omitempty"`
		Volume    float64  `yaml:",omitempty"` // dB
		Pitch     float64  `yaml:",omitempty"` // semitones
		Mute      bool     `yaml:",omitempty"`
		Solo      bool     `yaml:",omitempty"`
		Smoothing bool     `yaml:",omitempty"`
		Key       *uint8   `yaml:",omitempty"` // MIDI key for midiout
	}

	// Loader reads the sample at path. The returned sample carries one
	// reference, which Apply releases once the sequence holds its own.
	Loader func(path string) (*stepseq.Sample, error)
)

var ErrInvalidProject = errors.New("invalid project")

// Load reads and parses a project file.
func Load(path string) (*Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load project: %w", err)
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("cannot load project %s: %w", path, err)
	}
	p.Dir = filepath.Dir(path)
	return p, nil
}

// Parse parses and validates a project.
func Parse(b []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Project) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate checks what the sequence would otherwise reject halfway through
// Apply.
func (p *Project) Validate() error {
	if p.BPM < 0 || p.BPM > 1000 {
		return fmt.Errorf("%w: bpm %v", ErrInvalidProject, p.BPM)
	}
	if p.Beats < 0 || p.Measure < 0 {
		return fmt.Errorf("%w: beats %d, measure %d", ErrInvalidProject, p.Beats, p.Measure)
	}
	for i, t := range p.Tracks {
		if p.Beats > 0 && len(t.Pattern) > p.Beats {
			return fmt.Errorf("%w: track %d has %d beats, the song only %d", ErrInvalidProject, i, len(t.Pattern), p.Beats)
		}
		if t.Mask != nil && len(*t.Mask) > p.BeatsNum() {
			return fmt.Errorf("%w: the mask of track %d is longer than the song", ErrInvalidProject, i)
		}
	}
	return nil
}

// BeatsNum is the number of beats the sequence will have.
func (p *Project) BeatsNum() int {
	if p.Beats > 0 {
		return p.Beats
	}
	n := 1
	for _, t := range p.Tracks {
		n = max(n, len(t.Pattern))
	}
	return n
}

// Apply configures s to match the project. s is expected to be new or
// cleared; its tracks are replaced. A nil loader loads WAV files.
func (p *Project) Apply(s *sequencer.Sequence, load Loader) error {
	if load == nil {
		load = wavfile.Load
	}
	measure := p.Measure
	if measure == 0 {
		measure = 4
	}
	if err := s.Resize(len(p.Tracks), p.BeatsNum(), measure, false); err != nil {
		return err
	}
	if p.BPM > 0 {
		if err := s.SetBpm(p.BPM); err != nil {
			return err
		}
	}
	if p.Looping != nil {
		if err := s.SetLooping(*p.Looping); err != nil {
			return err
		}
	}
	if err := s.SetTransport(p.Transport.Aware, p.Transport.Query); err != nil {
		return err
	}
	if p.Resampler != nil {
		if err := s.SetResamplerType(*p.Resampler); err != nil {
			return err
		}
	}
	for i := range p.Tracks {
		if err := p.applyTrack(s, i, load); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
	}
	return nil
}

func (p *Project) applyTrack(s *sequencer.Sequence, i int, load Loader) error {
	t := &p.Tracks[i]
	if t.Name != "" {
		if err := s.SetTrackName(i, t.Name); err != nil {
			return err
		}
	}
	for b, on := range t.Pattern {
		if on {
			if err := s.SetBeat(i, b, true); err != nil {
				return err
			}
		}
	}
	if t.Mask != nil {
		if err := s.EnableMask(i); err != nil {
			return err
		}
		for b, on := range *t.Mask {
			if !on {
				if err := s.SetMaskBeat(i, b, false); err != nil {
					return err
				}
			}
		}
	}
	if t.Pitch != 0 {
		if err := s.SetPitch(i, t.Pitch); err != nil {
			return err
		}
	}
	if t.Sample != "" {
		path := t.Sample
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Dir, path)
		}
		smp, err := load(path)
		if err != nil {
			return err
		}
		err = s.SetSample(i, smp)
		smp.Release()
		if err != nil {
			return err
		}
	}
	if t.Volume != 0 {
		if err := s.SetVolumeDB(i, t.Volume); err != nil {
			return err
		}
	}
	for _, set := range []struct {
		on bool
		f  func(int, bool) error
	}{{t.Mute, s.Mute}, {t.Solo, s.Solo}, {t.Smoothing, s.SetSmoothing}} {
		if set.on {
			if err := set.f(i, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConfigureBridge sets the keys of the tracks that name one.
func (p *Project) ConfigureBridge(b *midiout.Bridge) {
	for i, t := range p.Tracks {
		if t.Key != nil {
			b.SetKey(i, *t.Key)
		}
	}
}
