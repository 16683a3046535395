package e32sim

import "io"

// Port is the serial side of a simulated module. It implements e32.Stream and
// io.ReadWriteCloser.
type Port struct {
	m *Module
}

// Port returns the serial side of the module.
func (m *Module) Port() *Port {
	return &Port{m: m}
}

// Write sends bytes to the module.
func (p *Port) Write(b []byte) (int, error) {
	return p.m.writeBytes(b)
}

// ReadByte returns the next received byte, or io.EOF if there is none.
func (p *Port) ReadByte() (byte, error) {
	p.m.lock.Lock()
	defer p.m.lock.Unlock()

	if len(p.m.rx) == 0 {
		return 0, io.EOF
	}

	b := p.m.rx[0]
	p.m.rx = p.m.rx[1:]

	return b, nil
}

// Available returns the number of bytes waiting to be read.
func (p *Port) Available() int {
	p.m.lock.Lock()
	defer p.m.lock.Unlock()

	return len(p.m.rx)
}

// Flush returns immediately, writes are never buffered.
func (p *Port) Flush() error {
	p.m.lock.Lock()
	defer p.m.lock.Unlock()

	p.m.flushes++

	return nil
}

// Read blocks until received bytes are available or the module is closed.
func (p *Port) Read(b []byte) (int, error) {
	p.m.lock.Lock()
	defer p.m.lock.Unlock()

	for len(p.m.rx) == 0 && !p.m.closed {
		p.m.cond.Wait()
	}

	if len(p.m.rx) == 0 {
		return 0, io.EOF
	}

	n := copy(b, p.m.rx)
	p.m.rx = p.m.rx[n:]

	return n, nil
}

// Close closes the module.
func (p *Port) Close() error {
	return p.m.Close()
}
