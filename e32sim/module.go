// Package e32sim simulates an E32 module, so the driver and the link can be
// used without hardware.
//
// A Module provides the pins of one module, and its Port the serial stream.
// It answers commands while its lines select sleep mode, and forwards written
// data to a connected module in normal and wake-up mode.
package e32sim

import (
	"errors"
	"io"
	"sync"

	"github.com/acomagu/bufpipe"
	"github.com/basilfx/go-e32"
	log "github.com/sirupsen/logrus"
)

// DefaultVersion is the version reported by a simulated module.
var DefaultVersion = e32.Version{
	Head:     e32.HeadVersionRead,
	Model:    0x32,
	Version:  0x44,
	Features: 0x14,
}

// Module is a simulated module. It implements e32.Pins and e32.AuxReader, and
// is safe for concurrent use.
type Module struct {
	m0  int
	m1  int
	aux int

	lock sync.Mutex
	cond *sync.Cond

	levels  map[int]bool
	outputs map[int]bool

	config  [e32.ConfigSize]byte
	version e32.Version

	pending []byte
	rx      []byte
	written [][]byte

	lineWrites int
	flushes    int
	resets     int

	truncate    int
	corruptAt   int
	busyPolls   int
	busyLeft    int
	configSaved bool

	air    io.WriteCloser
	closed bool
}

// Option is a functional option for configuring a Module.
type Option func(*Module)

// WithConfig sets the configuration stored in the module.
func WithConfig(config e32.Config) Option {
	return func(m *Module) {
		m.config = config.Bytes()
	}
}

// WithVersion sets the version reported by the module.
func WithVersion(version e32.Version) Option {
	return func(m *Module) {
		m.version = version
	}
}

// WithTruncatedResponses makes the module answer with at most n bytes.
func WithTruncatedResponses(n int) Option {
	return func(m *Module) {
		m.truncate = n
	}
}

// WithReadBackCorruption makes the module flip all bits of the byte at offset
// in configuration responses that follow a configuration write.
func WithReadBackCorruption(offset int) Option {
	return func(m *Module) {
		m.corruptAt = offset
	}
}

// WithBusyPolls makes AUX read low n times after every command and mode
// change before it reads high.
func WithBusyPolls(n int) Option {
	return func(m *Module) {
		m.busyPolls = n
	}
}

// New returns a simulated module with M0, M1 and AUX on the given pins. The
// lines start low, so the module starts in normal mode.
func New(m0, m1, aux int, opts ...Option) *Module {
	m := &Module{
		m0:        m0,
		m1:        m1,
		aux:       aux,
		levels:    map[int]bool{},
		outputs:   map[int]bool{},
		config:    e32.DefaultConfig().Bytes(),
		version:   DefaultVersion,
		truncate:  -1,
		corruptAt: -1,
	}

	m.cond = sync.NewCond(&m.lock)

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Connect joins two modules over the air. What one transmits, the other
// receives.
func Connect(a, b *Module) {
	ar, aw := bufpipe.New(nil)
	br, bw := bufpipe.New(nil)

	a.lock.Lock()
	a.air = aw
	a.lock.Unlock()

	b.lock.Lock()
	b.air = bw
	b.lock.Unlock()

	go b.receive(ar)
	go a.receive(br)
}

func (m *Module) receive(r io.Reader) {
	buf := make([]byte, 64)

	for {
		n, err := r.Read(buf)

		if n > 0 {
			m.lock.Lock()

			// The radio is off in sleep mode.
			if m.mode() != e32.ModeSleep {
				m.rx = append(m.rx, buf[:n]...)
				m.cond.Broadcast()
			} else {
				log.Debugf("Simulated module asleep, dropped %d bytes.", n)
			}

			m.lock.Unlock()
		}

		if err != nil {
			return
		}
	}
}

// mode returns the mode selected by the lines. The lock must be held.
func (m *Module) mode() e32.Mode {
	switch h0, h1 := m.levels[m.m0], m.levels[m.m1]; {
	case !h0 && !h1:
		return e32.ModeNormal
	case h0 && !h1:
		return e32.ModeWakeUp
	case !h0 && h1:
		return e32.ModePowerSaving
	default:
		return e32.ModeSleep
	}
}

// Output implements e32.Pins.
func (m *Module) Output(pin int) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.outputs[pin] = true

	return nil
}

// Write implements e32.Pins.
func (m *Module) Write(pin int, high bool) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.outputs[pin] {
		return errors.New("pin is not configured as output")
	}

	m.levels[pin] = high
	m.lineWrites++
	m.pending = nil
	m.busyLeft = m.busyPolls

	return nil
}

// Read implements e32.AuxReader. AUX is high when the module is ready.
func (m *Module) Read(pin int) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if pin != m.aux {
		return m.levels[pin], nil
	}

	if m.busyLeft > 0 {
		m.busyLeft--
		return false, nil
	}

	return true, nil
}

// writeBytes handles data written to the serial side of the module.
func (m *Module) writeBytes(p []byte) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}

	data := make([]byte, len(p))
	copy(data, p)
	m.written = append(m.written, data)

	switch m.mode() {
	case e32.ModeSleep:
		m.pending = append(m.pending, data...)
		m.handleCommand()
	case e32.ModeNormal, e32.ModeWakeUp:
		m.transmit(data)
	default:
		log.Debugf("Simulated module in power-saving mode, dropped %d bytes.", len(data))
	}

	return len(p), nil
}

func (m *Module) transmit(data []byte) {
	if m.air == nil {
		return
	}

	option := e32.ParseOption(m.config[5])

	if option.FixedMode {
		if len(data) < 3 {
			return
		}

		data = data[3:]
	}

	if _, err := m.air.Write(data); err != nil {
		log.Errorf("Simulated air write failed: %v", err)
	}
}

// handleCommand interprets the pending bytes. The lock must be held.
func (m *Module) handleCommand() {
	for len(m.pending) > 0 {
		head := e32.Head(m.pending[0])

		switch head {
		case e32.HeadConfigSaveHard, e32.HeadConfigSaveSoft:
			if len(m.pending) < e32.ConfigSize {
				return
			}

			copy(m.config[:], m.pending[:e32.ConfigSize])
			m.pending = m.pending[e32.ConfigSize:]
			m.configSaved = true
			m.busyLeft = m.busyPolls
		case e32.HeadConfigRead, e32.HeadVersionRead, e32.HeadModuleReset:
			if len(m.pending) < 3 {
				return
			}

			if m.pending[1] != byte(head) || m.pending[2] != byte(head) {
				// Not a command, resynchronize on the next byte.
				m.pending = m.pending[1:]
				continue
			}

			m.pending = m.pending[3:]
			m.busyLeft = m.busyPolls
			m.respond(head)
		default:
			m.pending = m.pending[1:]
		}
	}
}

func (m *Module) respond(head e32.Head) {
	var response []byte

	switch head {
	case e32.HeadConfigRead:
		response = append(response, m.config[:]...)

		// Reads are answered with the save head, whichever head was written.
		response[0] = byte(e32.HeadConfigSaveHard)

		if m.configSaved && m.corruptAt >= 0 && m.corruptAt < len(response) {
			response[m.corruptAt] ^= 0xFF
		}
	case e32.HeadVersionRead:
		response, _ = m.version.MarshalBinary()
	case e32.HeadModuleReset:
		m.resets++
		return
	}

	if m.truncate >= 0 && m.truncate < len(response) {
		response = response[:m.truncate]
	}

	m.rx = append(m.rx, response...)
	m.cond.Broadcast()
}

// Inject makes data available for reading, as if it was received.
func (m *Module) Inject(data []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.rx = append(m.rx, data...)
	m.cond.Broadcast()
}

// Close stops the module. Blocked reads return io.EOF.
func (m *Module) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.closed = true
	m.cond.Broadcast()

	if m.air != nil {
		return m.air.Close()
	}

	return nil
}

// Mode returns the mode selected by the lines.
func (m *Module) Mode() e32.Mode {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.mode()
}

// Config returns the stored configuration.
func (m *Module) Config() e32.Config {
	m.lock.Lock()
	defer m.lock.Unlock()

	var config e32.Config
	_ = config.UnmarshalBinary(m.config[:])

	return config
}

// Written returns every write received on the stream, in order.
func (m *Module) Written() [][]byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := make([][]byte, len(m.written))
	copy(out, m.written)

	return out
}

// LineWrites returns the number of times a control line was driven.
func (m *Module) LineWrites() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.lineWrites
}

// Flushes returns the number of times the stream was flushed.
func (m *Module) Flushes() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.flushes
}

// Resets returns the number of reset commands received.
func (m *Module) Resets() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.resets
}
