// Package pins drives the control lines of a module through the GPIO pins of
// the host.
package pins

import (
	"fmt"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Host maps pin numbers to the GPIO pins of the host, by name. Pin 17 is the
// pin registered as "17", which is GPIO17 on a Raspberry Pi. It implements
// e32.Pins and e32.AuxReader.
type Host struct {
	lookup func(name string) gpio.PinIO

	pins   map[int]gpio.PinIO
	inputs map[int]bool
	lock   sync.Mutex
}

// New initializes the host drivers and returns a new Host.
func New() (*Host, error) {
	state, err := host.Init()

	if err != nil {
		return nil, fmt.Errorf("initialize host: %w", err)
	}

	for _, failure := range state.Failed {
		log.Debugf("Host driver failed to load: %v", failure)
	}

	return newHost(gpioreg.ByName), nil
}

func newHost(lookup func(name string) gpio.PinIO) *Host {
	return &Host{
		lookup: lookup,
		pins:   map[int]gpio.PinIO{},
		inputs: map[int]bool{},
	}
}

// pin returns the pin with the given number. The lock must be held.
func (h *Host) pin(number int) (gpio.PinIO, error) {
	if p, ok := h.pins[number]; ok {
		return p, nil
	}

	p := h.lookup(strconv.Itoa(number))

	if p == nil {
		return nil, fmt.Errorf("pin %d not found", number)
	}

	h.pins[number] = p

	return p, nil
}

// Output configures a pin as output. The current level of the pin is kept.
func (h *Host) Output(number int) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	p, err := h.pin(number)

	if err != nil {
		return err
	}

	if err := p.Out(p.Read()); err != nil {
		return fmt.Errorf("configure %s as output: %w", p, err)
	}

	delete(h.inputs, number)

	log.Debugf("Pin %s configured as output.", p)

	return nil
}

// Write sets the level of an output pin.
func (h *Host) Write(number int, high bool) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	p, err := h.pin(number)

	if err != nil {
		return err
	}

	return p.Out(gpio.Level(high))
}

// Read returns the level of a pin. The pin is configured as input on first
// use.
func (h *Host) Read(number int) (bool, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	p, err := h.pin(number)

	if err != nil {
		return false, err
	}

	if !h.inputs[number] {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return false, fmt.Errorf("configure %s as input: %w", p, err)
		}

		h.inputs[number] = true
	}

	return p.Read() == gpio.High, nil
}
