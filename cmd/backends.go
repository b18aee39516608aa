package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/oto"
)

// BackendFunc opens an audio device.
type BackendFunc func(framerate, blockSize int) (stepseq.AudioBackend, error)

const DefaultBackend = "oto"

// Backends lists the audio devices available in this build. Backends that
// need cgo add themselves in init.
var Backends = map[string]BackendFunc{
	"oto": func(framerate, blockSize int) (stepseq.AudioBackend, error) {
		b, err := oto.New(framerate, blockSize)
		if err != nil {
			return nil, err
		}
		return b, nil
	},
}

func BackendNames() []string {
	names := make([]string, 0, len(Backends))
	for name := range Backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func NewBackend(name string, framerate, blockSize int) (stepseq.AudioBackend, error) {
	f, ok := Backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q, expected one of %s", name, strings.Join(BackendNames(), ", "))
	}
	return f(framerate, blockSize)
}
