package stepseq

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
)

type (
	// PortMixer implements the port and transport half of an AudioBackend. A
	// device driver embeds it and calls Render from its audio callback; Render
	// runs the processor block by block and mixes every port down to
	// interleaved stereo.
	//
	// The port table is copy-on-write: the control goroutine builds a new
	// table under a mutex and publishes it with an atomic pointer, so the
	// audio goroutine never takes a lock.
	PortMixer struct {
		framerate int
		blockSize int
		maxPorts  int

		mutex     sync.Mutex // guards writers of table; readers use the atomic
		table     atomic.Pointer[portTable]
		processor atomic.Pointer[processorBox]

		position atomic.Uint64
		started  atomic.Bool

		left, right []float32 // planar mix scratch, audio goroutine only
	}

	portTable struct {
		ports []*mixPort // indexed by Port, nil for unregistered slots
		count int
	}

	mixPort struct {
		name    string
		channel int
		buffer  []float32
	}

	processorBox struct {
		Processor
	}
)

var (
	ErrTooManyPorts = errors.New("too many ports")
	ErrUnknownPort  = errors.New("unknown port")
)

// NewPortMixer creates a mixer for the given framerate. blockSize is the
// largest number of frames handed to the processor at a time. maxPorts <= 0
// means no limit.
func NewPortMixer(framerate, blockSize, maxPorts int) *PortMixer {
	if blockSize <= 0 {
		blockSize = 512
	}
	m := &PortMixer{
		framerate: framerate,
		blockSize: blockSize,
		maxPorts:  maxPorts,
		left:      make([]float32, blockSize),
		right:     make([]float32, blockSize),
	}
	m.table.Store(&portTable{})
	return m
}

func (m *PortMixer) Framerate() int { return m.framerate }
func (m *PortMixer) BlockSize() int { return m.blockSize }

func (m *PortMixer) RegisterPort(name string, channel int) (Port, error) {
	if channel < 0 || channel > 1 {
		return NoPort, fmt.Errorf("cannot register port %q: invalid channel %d", name, channel)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	old := m.table.Load()
	if m.maxPorts > 0 && old.count >= m.maxPorts {
		return NoPort, fmt.Errorf("cannot register port %q: %w (limit %d)", name, ErrTooManyPorts, m.maxPorts)
	}
	p := &mixPort{name: name, channel: channel, buffer: make([]float32, m.blockSize)}
	ports := make([]*mixPort, len(old.ports), len(old.ports)+1)
	copy(ports, old.ports)
	id := -1
	for i, q := range ports {
		if q == nil {
			id = i
			break
		}
	}
	if id < 0 {
		id = len(ports)
		ports = append(ports, nil)
	}
	ports[id] = p
	m.table.Store(&portTable{ports: ports, count: old.count + 1})
	return Port(id), nil
}

func (m *PortMixer) UnregisterPort(port Port) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	old := m.table.Load()
	if int(port) < 0 || int(port) >= len(old.ports) || old.ports[port] == nil {
		return fmt.Errorf("cannot unregister port %d: %w", port, ErrUnknownPort)
	}
	ports := make([]*mixPort, len(old.ports))
	copy(ports, old.ports)
	ports[port] = nil
	m.table.Store(&portTable{ports: ports, count: old.count - 1})
	return nil
}

// NumPorts returns the number of registered ports.
func (m *PortMixer) NumPorts() int {
	return m.table.Load().count
}

// OutputBuffer returns the buffer of the port for the current block, or nil if
// the port is not registered.
func (m *PortMixer) OutputBuffer(port Port, nframes int) []float32 {
	t := m.table.Load()
	if int(port) < 0 || int(port) >= len(t.ports) || t.ports[port] == nil {
		return nil
	}
	buf := t.ports[port].buffer
	if nframes > len(buf) {
		nframes = len(buf)
	}
	return buf[:nframes]
}

func (m *PortMixer) Position() uint64 { return m.position.Load() }
func (m *PortMixer) IsStarted() bool  { return m.started.Load() }

func (m *PortMixer) Start() error {
	m.started.Store(true)
	return nil
}

func (m *PortMixer) Stop() error {
	m.started.Store(false)
	return nil
}

func (m *PortMixer) Seek(pos uint64) error {
	m.position.Store(pos)
	return nil
}

func (m *PortMixer) SetProcessor(p Processor) {
	if p == nil {
		m.processor.Store(nil)
		return
	}
	m.processor.Store(&processorBox{p})
}

// Render fills out with interleaved stereo frames. It must be called from a
// single goroutine, the audio goroutine of the device.
func (m *PortMixer) Render(out []float32) {
	for len(out) >= 2 {
		n := min(len(out)/2, m.blockSize)
		m.renderBlock(out[:2*n], n)
		out = out[2*n:]
	}
	for i := range out {
		out[i] = 0
	}
}

func (m *PortMixer) renderBlock(out []float32, nframes int) {
	t := m.table.Load()
	for _, p := range t.ports {
		if p != nil {
			vek32.Zeros_Into(p.buffer[:nframes], nframes)
		}
	}
	if box := m.processor.Load(); box != nil {
		box.Process(nframes)
	}
	left, right := m.left[:nframes], m.right[:nframes]
	vek32.Zeros_Into(left, nframes)
	vek32.Zeros_Into(right, nframes)
	for _, p := range t.ports {
		if p == nil {
			continue
		}
		if p.channel == 0 {
			vek32.Add_Inplace(left, p.buffer[:nframes])
		} else {
			vek32.Add_Inplace(right, p.buffer[:nframes])
		}
	}
	for i := 0; i < nframes; i++ {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	if m.started.Load() {
		m.position.Add(uint64(nframes))
	}
}
