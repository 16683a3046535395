// Package e32 drives Ebyte E32 UART radio modules.
//
// The Driver reads and writes the module configuration, reads its version and
// resets it. Each of these operations switches the module to sleep mode for
// the exchange and returns it to the mode it was in before. Transparent radio
// traffic in normal mode is handled by Link.
package e32

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// AuxPollInterval is the interval at which the AUX line is sampled when
// waiting for the module to become ready.
const AuxPollInterval = 2 * time.Millisecond

// Stream is the serial connection to the module.
type Stream interface {
	// Write sends bytes to the module.
	Write(p []byte) (int, error)

	// ReadByte returns the next received byte.
	ReadByte() (byte, error)

	// Available returns the number of received bytes that can be read
	// without blocking.
	Available() int

	// Flush blocks until pending output has been transmitted.
	Flush() error
}

// Pins drives the digital lines connected to the module. Pin numbers are
// opaque to the driver.
type Pins interface {
	// Output configures a pin as output.
	Output(pin int) error

	// Write sets the level of an output pin.
	Write(pin int, high bool) error
}

// AuxReader reads the AUX line. It is only used with WithAuxWait.
type AuxReader interface {
	Read(pin int) (bool, error)
}

// Driver controls a single module through its serial connection and its M0
// and M1 lines.
//
// The driver assumes exclusive use of the stream and the lines, and does not
// synchronize access. Callers must not use a Driver from multiple goroutines
// at the same time, nor while a Link is serving the same stream. The stream
// and pins are borrowed and never closed by the driver.
type Driver struct {
	stream Stream
	pins   Pins

	m0  int
	m1  int
	aux int

	mode Mode

	logger      logrus.FieldLogger
	settleDelay time.Duration
	sleep       func(time.Duration)
	auxWait     time.Duration
}

// New returns a new driver for a module connected to stream, with M0, M1 and
// AUX connected to the given pins. M0 and M1 are configured as outputs; their
// level is left untouched unless WithInitialMode is given, so the mode is
// ModeUnknown until the first SetMode.
//
// Operations before the first SetMode have no mode to return to, and leave
// the module in sleep mode. Use WithInitialMode(ModeNormal) to start in normal
// mode.
func New(stream Stream, pins Pins, m0, m1, aux int, opts ...DriverOption) (*Driver, error) {
	if stream == nil {
		panic("stream cannot be nil")
	}
	if pins == nil {
		panic("pins cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Driver{
		stream:      stream,
		pins:        pins,
		m0:          m0,
		m1:          m1,
		aux:         aux,
		mode:        ModeUnknown,
		logger:      cfg.logger,
		settleDelay: cfg.settleDelay,
		sleep:       cfg.sleep,
		auxWait:     cfg.auxWait,
	}

	if d.auxWait > 0 {
		if _, ok := pins.(AuxReader); !ok {
			return nil, errors.New("waiting for AUX requires pins that can be read")
		}
	}

	for _, pin := range []int{m0, m1} {
		if err := pins.Output(pin); err != nil {
			return nil, fmt.Errorf("configure pin %d as output: %w", pin, err)
		}
	}

	if cfg.initialMode != ModeUnknown {
		if err := d.SetMode(cfg.initialMode); err != nil {
			return nil, fmt.Errorf("set initial mode: %w", err)
		}
	}

	return d, nil
}

// ReadConfig reads the configuration of the module.
func (d *Driver) ReadConfig() (Config, error) {
	var config Config

	data, err := d.readInfo(HeadConfigRead, ConfigSize)

	if err != nil {
		return config, err
	}

	if err := config.UnmarshalBinary(data); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ReadVersion reads the model, version and features of the module.
func (d *Driver) ReadVersion() (Version, error) {
	var version Version

	data, err := d.readInfo(HeadVersionRead, VersionSize)

	if err != nil {
		return version, err
	}

	if err := version.UnmarshalBinary(data); err != nil {
		return Version{}, err
	}

	return version, nil
}

// WriteConfig writes a configuration to the module and reads it back. The
// write succeeded only if the read-back is equal to config, byte for byte;
// the protocol has no other acknowledgement.
//
// The head must be HeadConfigSaveHard to persist the configuration, or
// HeadConfigSaveSoft to apply it until power-down. Modules answer a read with
// HeadConfigSaveHard, so a soft save always returns a VerificationMismatchError;
// when its HeadOnly method reports true, the configuration was applied.
func (d *Driver) WriteConfig(config Config) error {
	if !isSaveHead(config.Head) {
		return fmt.Errorf("%w: %s is not a save command", ErrInvalidHead, config.Head)
	}

	written := config.Bytes()

	return d.exchange(func() error {
		if _, err := d.stream.Write(written[:]); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		d.settle()

		current, err := d.ReadConfig()

		if err != nil {
			return fmt.Errorf("read back config: %w", err)
		}

		read := current.Bytes()

		if !bytes.Equal(written[:], read[:]) {
			d.logger.WithFields(logrus.Fields{
				"written": fmt.Sprintf("% X", written),
				"read":    fmt.Sprintf("% X", read),
			}).Warn("Config read back differs from config written.")

			return &VerificationMismatchError{Written: config, Read: current}
		}

		d.logger.WithField("config", config).Debug("Config written.")

		return nil
	})
}

// Reset restarts the module. The module does not respond to this command.
func (d *Driver) Reset() error {
	return d.exchange(func() error {
		if err := d.writeCommand(HeadModuleReset); err != nil {
			return err
		}

		d.settle()

		return nil
	})
}

// exchange runs fn with the module in sleep mode, and returns the module to
// the previous mode afterwards, whether fn failed or not.
func (d *Driver) exchange(fn func() error) (err error) {
	previous := d.mode

	if err := d.SetMode(ModeSleep); err != nil {
		return err
	}

	defer func() {
		if restoreErr := d.restore(previous); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	return fn()
}

func (d *Driver) restore(mode Mode) error {
	if mode == ModeUnknown {
		d.logger.Debug("No previous mode to restore, module stays in sleep mode.")
		return nil
	}

	if err := d.SetMode(mode); err != nil {
		return fmt.Errorf("restore %s mode: %w", mode, err)
	}

	return nil
}

// readInfo sends a command and reads a response of the given size.
func (d *Driver) readInfo(head Head, size int) ([]byte, error) {
	var response []byte

	err := d.exchange(func() error {
		d.discardInput()

		if err := d.writeCommand(head); err != nil {
			return err
		}

		d.settle()

		buf := make([]byte, 0, size)

		for len(buf) < size && d.stream.Available() > 0 {
			b, err := d.stream.ReadByte()

			if err != nil {
				d.logger.WithError(err).Debug("Read failed, treating response as complete.")
				break
			}

			buf = append(buf, b)
		}

		if len(buf) != size {
			d.logger.WithFields(logrus.Fields{
				"head":     head,
				"expected": size,
				"received": len(buf),
			}).Warn("Incomplete response.")

			return &IncompleteResponseError{
				Head:     head,
				Expected: size,
				Received: len(buf),
			}
		}

		response = buf

		return nil
	})

	return response, err
}

// writeCommand writes the head three times, which is what the module expects
// as a command.
func (d *Driver) writeCommand(head Head) error {
	cmd := []byte{byte(head), byte(head), byte(head)}

	if _, err := d.stream.Write(cmd); err != nil {
		return fmt.Errorf("write %s command: %w", head, err)
	}

	d.logger.WithField("head", head).Debug("Command sent.")

	return nil
}

// discardInput drops stale bytes, so they are not taken for the response.
func (d *Driver) discardInput() {
	discarded := 0

	for d.stream.Available() > 0 {
		if _, err := d.stream.ReadByte(); err != nil {
			break
		}

		discarded++
	}

	if discarded > 0 {
		d.logger.WithField("bytes", discarded).Debug("Discarded stale input.")
	}
}

// settle waits for the module to act on a mode change or command.
func (d *Driver) settle() {
	d.sleep(d.settleDelay)

	if d.auxWait > 0 {
		d.waitAux()
	}
}

// waitAux polls AUX until the module reports ready (high) or the timeout
// passes.
func (d *Driver) waitAux() {
	reader := d.pins.(AuxReader)

	for waited := time.Duration(0); waited < d.auxWait; waited += AuxPollInterval {
		ready, err := reader.Read(d.aux)

		if err != nil {
			d.logger.WithError(err).Warn("Unable to read AUX.")
			return
		}

		if ready {
			return
		}

		d.sleep(AuxPollInterval)
	}

	d.logger.WithField("timeout", d.auxWait).Warn("Module still busy after waiting for AUX.")
}
