package sequencer

import (
	"errors"
	"fmt"
)

type (
	// StructuralError reports a failed structural mutation, such as a resize
	// whose output ports could not be registered. The mutation has been rolled
	// back completely when it is returned.
	StructuralError struct {
		Op  string
		Err error
	}

	// ParameterError reports an argument the sequence refused. Nothing was
	// changed.
	ParameterError struct {
		Param string
		Value any
	}
)

var (
	ErrParameterRejected = errors.New("parameter rejected")
	// ErrChannelFull means the command channel stayed full for longer than
	// Config.SendTimeout. The command was not sent.
	ErrChannelFull = errors.New("command channel full")
	// ErrAckTimeout means the command was sent but the audio goroutine did not
	// acknowledge it within Config.AckTimeout. It will still be applied.
	ErrAckTimeout = errors.New("command not acknowledged in time")
	ErrClosed     = errors.New("sequence closed")
)

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%v: invalid %s %v", ErrParameterRejected, e.Param, e.Value)
}

func (e *ParameterError) Unwrap() error { return ErrParameterRejected }

func rejected(param string, value any) error {
	return &ParameterError{Param: param, Value: value}
}
