package e32

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Mode is the operating mode of the module, selected by the M0 and M1 lines.
type Mode byte

// The different operating modes.
const (
	ModeNormal Mode = iota
	ModeWakeUp
	ModePowerSaving
	ModeSleep

	// ModeUnknown is the mode of a driver that has not driven the lines yet.
	ModeUnknown Mode = 0xFF
)

var modeNames = map[Mode]string{
	ModeNormal:      "normal",
	ModeWakeUp:      "wake-up",
	ModePowerSaving: "power-saving",
	ModeSleep:       "sleep",
	ModeUnknown:     "unknown",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("mode(%d)", byte(m))
}

// ParseMode returns the mode for a name such as "sleep".
func ParseMode(s string) (Mode, error) {
	for mode, name := range modeNames {
		if name == s && mode != ModeUnknown {
			return mode, nil
		}
	}

	return ModeUnknown, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// levels returns the M0 and M1 levels that select the mode.
func (m Mode) levels() (m0 bool, m1 bool, ok bool) {
	switch m {
	case ModeNormal:
		return false, false, true
	case ModeWakeUp:
		return true, false, true
	case ModePowerSaving:
		return false, true, true
	case ModeSleep:
		return true, true, true
	}

	return false, false, false
}

// Mode returns the last mode set on the module.
func (d *Driver) Mode() Mode {
	return d.mode
}

// SetMode drives the control lines to select the given mode. Nothing happens
// when the module is already in that mode. Otherwise pending output is flushed
// first, and the settle delay is applied after the lines changed.
//
// When a line cannot be driven the mode becomes ModeUnknown, so the next call
// drives both lines again.
func (d *Driver) SetMode(mode Mode) error {
	if d.mode == mode {
		return nil
	}

	m0, m1, ok := mode.levels()

	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	if err := d.stream.Flush(); err != nil {
		return fmt.Errorf("flush before mode change: %w", err)
	}

	if err := d.pins.Write(d.m0, m0); err != nil {
		d.mode = ModeUnknown
		return fmt.Errorf("drive M0 (pin %d): %w", d.m0, err)
	}

	if err := d.pins.Write(d.m1, m1); err != nil {
		d.mode = ModeUnknown
		return fmt.Errorf("drive M1 (pin %d): %w", d.m1, err)
	}

	d.settle()

	d.logger.WithFields(logrus.Fields{
		"from": d.mode,
		"to":   mode,
	}).Debug("Mode changed.")

	d.mode = mode

	return nil
}
