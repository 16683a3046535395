// Package uart connects to a module through a serial port.
package uart

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/basilfx/go-e32"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// PollTimeout is the time a read waits for data before it gives up. Available
// waits at most this long.
const PollTimeout = 10 * time.Millisecond

// ErrClosed is returned when using a port that has been closed.
var ErrClosed = errors.New("port is closed")

// Port is a serial port connected to a module. It implements e32.Stream and
// io.ReadWriteCloser.
//
// Read may be called from one goroutine while another writes, which is what
// e32.Link does. All other methods must not be called concurrently.
type Port struct {
	port   serial.Port
	buf    []byte
	closed int32
}

// Open opens the serial port with the given name, for example "/dev/ttyS0".
// Modules with a factory configuration use 9600 baud and e32.Parity8N1.
func Open(name string, baud int, parity e32.Parity) (*Port, error) {
	mode, err := serialMode(baud, parity)

	if err != nil {
		return nil, err
	}

	port, err := serial.Open(name, mode)

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	p, err := newPort(port)

	if err != nil {
		port.Close()
		return nil, err
	}

	log.Debugf("Opened serial port %s at %d baud (%s).", name, baud, parity)

	return p, nil
}

func newPort(port serial.Port) (*Port, error) {
	if err := port.SetReadTimeout(PollTimeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return &Port{
		port: port,
	}, nil
}

func serialMode(baud int, parity e32.Parity) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	switch parity {
	case e32.Parity8N1:
		mode.Parity = serial.NoParity
	case e32.Parity8O1:
		mode.Parity = serial.OddParity
	case e32.Parity8E1:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %s", parity)
	}

	return mode, nil
}

// Write sends bytes to the module.
func (p *Port) Write(b []byte) (int, error) {
	if p.isClosed() {
		return 0, ErrClosed
	}

	return p.port.Write(b)
}

// Available returns the number of buffered bytes. When nothing is buffered,
// it waits up to PollTimeout for data to arrive.
func (p *Port) Available() int {
	if len(p.buf) > 0 || p.isClosed() {
		return len(p.buf)
	}

	tmp := make([]byte, 64)
	n, err := p.port.Read(tmp)

	if err != nil {
		log.Debugf("Error while polling serial port: %v", err)
	}

	p.buf = append(p.buf, tmp[:n]...)

	return len(p.buf)
}

// ReadByte returns the next buffered byte, or waits up to PollTimeout for
// one. It returns io.EOF if no byte arrived.
func (p *Port) ReadByte() (byte, error) {
	if p.Available() == 0 {
		if p.isClosed() {
			return 0, ErrClosed
		}

		return 0, io.EOF
	}

	b := p.buf[0]
	p.buf = p.buf[1:]

	return b, nil
}

// Read blocks until at least one byte is received.
func (p *Port) Read(b []byte) (int, error) {
	if len(p.buf) > 0 {
		n := copy(b, p.buf)
		p.buf = p.buf[n:]

		return n, nil
	}

	for {
		if p.isClosed() {
			return 0, io.EOF
		}

		n, err := p.port.Read(b)

		if err != nil && p.isClosed() {
			return n, io.EOF
		}

		if n > 0 || err != nil {
			return n, err
		}
	}
}

// Flush waits until all written bytes have been transmitted.
func (p *Port) Flush() error {
	if p.isClosed() {
		return ErrClosed
	}

	return p.port.Drain()
}

// Close closes the serial port. A blocked Read returns io.EOF.
func (p *Port) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}

	return p.port.Close()
}

func (p *Port) isClosed() bool {
	return atomic.LoadInt32(&p.closed) == 1
}
