// Package stepseq holds what the sequencer shares with its audio devices: the
// AudioBackend contract, the PortMixer that most backends build on and the
// reference-counted Sample.
package stepseq

type (
	// Port is a handle to a mono output channel registered on an
	// AudioBackend. Ports are created and destroyed by the control goroutine;
	// the audio goroutine only asks for their buffers.
	Port int

	// Processor is called by the backend on the audio goroutine, once per
	// block. It must fill the output buffers of its ports for nframes frames
	// and return the number of frames produced.
	Processor interface {
		Process(nframes int) int
	}

	// ProcessorFunc adapts an ordinary function to a Processor.
	ProcessorFunc func(nframes int) int

	// AudioBackend is the contract the sequencer expects from an audio
	// device. The backend repeatedly invokes the processor with a frame count
	// and hands the port buffers to the device. It also owns the transport:
	// a frame position that advances while the transport is started.
	AudioBackend interface {
		Framerate() int
		BlockSize() int

		// RegisterPort creates a new output port. channel tells which side of
		// the stereo mixdown the port belongs to: 0 = left, 1 = right.
		RegisterPort(name string, channel int) (Port, error)
		UnregisterPort(p Port) error
		// OutputBuffer returns the buffer of the port for the current cycle.
		// Called only from within Process.
		OutputBuffer(p Port, nframes int) []float32

		Position() uint64
		IsStarted() bool
		Start() error
		Stop() error
		Seek(pos uint64) error

		SetProcessor(p Processor)
		Close() error
	}
)

// NoPort is returned when a port could not be registered.
const NoPort Port = -1

func (f ProcessorFunc) Process(nframes int) int { return f(nframes) }
