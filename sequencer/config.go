package sequencer

import (
	"log/slog"
	"time"

	"github.com/vsariola/stepseq/resample"
)

// Config holds the tunables of a Sequence. The zero value of a field means
// the default.
type Config struct {
	// CommandCapacity and NotificationCapacity size the two rings between the
	// control and the audio goroutine.
	CommandCapacity      int `yaml:"commandCapacity,omitempty"`
	NotificationCapacity int `yaml:"notificationCapacity,omitempty"`

	// SendTimeout bounds how long a mutation retries a full command channel.
	SendTimeout time.Duration `yaml:"sendTimeout,omitempty"`
	// RetryInterval is the first sleep between retries; it doubles up to
	// MaxRetryInterval.
	RetryInterval    time.Duration `yaml:"retryInterval,omitempty"`
	MaxRetryInterval time.Duration `yaml:"maxRetryInterval,omitempty"`
	// AckTimeout bounds how long a mutation waits for the audio goroutine.
	AckTimeout time.Duration `yaml:"ackTimeout,omitempty"`
	// DetachedAfter is how long the audio callback may stay silent before the
	// control goroutine starts applying commands itself.
	DetachedAfter time.Duration `yaml:"detachedAfter,omitempty"`

	// MaskAttackDelay is the length of the declick ramp.
	MaskAttackDelay time.Duration `yaml:"maskAttackDelay,omitempty"`
	// Resampler is the type used for new samples.
	Resampler resample.Type `yaml:"resampler,omitempty"`

	Logger *slog.Logger `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		CommandCapacity:      256,
		NotificationCapacity: 1024,
		SendTimeout:          2 * time.Second,
		RetryInterval:        time.Millisecond,
		MaxRetryInterval:     20 * time.Millisecond,
		AckTimeout:           2 * time.Second,
		DetachedAfter:        100 * time.Millisecond,
		MaskAttackDelay:      20 * time.Millisecond,
		Resampler:            resample.LinearType,
	}
}

// withDefaults fills in the zero fields of c.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CommandCapacity <= 0 {
		c.CommandCapacity = d.CommandCapacity
	}
	if c.NotificationCapacity <= 0 {
		c.NotificationCapacity = d.NotificationCapacity
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.MaxRetryInterval < c.RetryInterval {
		c.MaxRetryInterval = max(d.MaxRetryInterval, c.RetryInterval)
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.DetachedAfter <= 0 {
		c.DetachedAfter = d.DetachedAfter
	}
	if c.MaskAttackDelay <= 0 {
		c.MaskAttackDelay = d.MaskAttackDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
