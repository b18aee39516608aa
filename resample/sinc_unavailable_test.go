//go:build !samplerate

package resample_test

import (
	"errors"
	"testing"

	"github.com/vsariola/stepseq/resample"
)

func TestSincUnavailable(t *testing.T) {
	if _, err := resample.New(resample.SincType, 2); !errors.Is(err, resample.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable without libsamplerate, got %v", err)
	}
}
