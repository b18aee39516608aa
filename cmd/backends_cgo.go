//go:build cgo

package cmd

import (
	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/malgo"
)

func init() {
	Backends["malgo"] = func(framerate, blockSize int) (stepseq.AudioBackend, error) {
		b, err := malgo.New(framerate, blockSize)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}
