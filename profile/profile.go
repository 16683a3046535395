// Package profile reads module configurations from JSON5 files.
//
// A profile names every setting in the unit a person would use, for example:
//
//	{
//	    // Gateway on channel 23.
//	    address: 1,
//	    channel: 23,
//	    air_rate: "2.4k",
//	    uart_baud: 9600,
//	    parity: "8N1",
//	    power_dbm: 30,
//	    fec: true,
//	    wor_timing_ms: 250,
//	    io_mode: "push-pull",
//	    fixed: false,
//	    save: "hard",
//	}
//
// Settings that are left out keep their factory value.
package profile

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/basilfx/go-e32"
	"github.com/flynn/json5"
)

// Save values of a profile.
const (
	SaveHard = "hard"
	SaveSoft = "soft"
)

// Profile is a module configuration as written in a profile file.
type Profile struct {
	Address     uint16 `json:"address"`
	Channel     uint8  `json:"channel"`
	AirRate     string `json:"air_rate"`
	UARTBaud    int    `json:"uart_baud"`
	Parity      string `json:"parity"`
	PowerDBm    int    `json:"power_dbm"`
	FEC         bool   `json:"fec"`
	WORTimingMS int    `json:"wor_timing_ms"`
	IOMode      string `json:"io_mode"`
	Fixed       bool   `json:"fixed"`
	Save        string `json:"save"`
}

// Load reads a profile from a file.
func Load(path string) (Profile, error) {
	data, err := ioutil.ReadFile(path)

	if err != nil {
		return Profile{}, err
	}

	p, err := Parse(data)

	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}

	return p, nil
}

// Parse reads a profile from JSON5 data. Settings that are not present keep
// the value of e32.DefaultConfig.
func Parse(data []byte) (Profile, error) {
	p := FromConfig(e32.DefaultConfig())

	if err := json5.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	// Reject values that cannot be represented.
	if _, err := p.Config(); err != nil {
		return Profile{}, err
	}

	return p, nil
}

// FromConfig returns the profile of a configuration. Raw values the module
// treats as aliases are written as the setting they select: air rates above
// 19.2k as "19.2k" and parity 0b11 as "8N1".
func FromConfig(config e32.Config) Profile {
	save := SaveHard

	if config.Head == e32.HeadConfigSaveSoft {
		save = SaveSoft
	}

	airRate := config.Speed.AirRate

	if airRate > e32.AirRate19200 {
		airRate = e32.AirRate19200
	}

	parity := config.Speed.Parity

	if parity > e32.Parity8E1 {
		parity = e32.Parity8N1
	}

	return Profile{
		Address:     config.Address(),
		Channel:     config.Channel,
		AirRate:     airRate.String(),
		UARTBaud:    config.Speed.UARTRate.Baud(),
		Parity:      parity.String(),
		PowerDBm:    config.Option.Power.DBm(),
		FEC:         config.Option.FEC,
		WORTimingMS: int(config.Option.WORTiming.Duration() / time.Millisecond),
		IOMode:      config.Option.IOMode.String(),
		Fixed:       config.Option.FixedMode,
		Save:        save,
	}
}

// Config returns the configuration to write to a module.
func (p Profile) Config() (e32.Config, error) {
	var config e32.Config
	var err error

	switch p.Save {
	case SaveHard:
		config.Head = e32.HeadConfigSaveHard
	case SaveSoft:
		config.Head = e32.HeadConfigSaveSoft
	default:
		return e32.Config{}, fmt.Errorf("save must be %q or %q, got %q", SaveHard, SaveSoft, p.Save)
	}

	config.SetAddress(p.Address)
	config.Channel = p.Channel

	if config.Speed.AirRate, err = e32.ParseAirRate(p.AirRate); err != nil {
		return e32.Config{}, err
	}
	if config.Speed.UARTRate, err = e32.UARTRateFromBaud(p.UARTBaud); err != nil {
		return e32.Config{}, err
	}
	if config.Speed.Parity, err = e32.ParseParity(p.Parity); err != nil {
		return e32.Config{}, err
	}
	if config.Option.Power, err = e32.PowerFromDBm(p.PowerDBm); err != nil {
		return e32.Config{}, err
	}
	if config.Option.WORTiming, err = e32.WORTimingFromDuration(time.Duration(p.WORTimingMS) * time.Millisecond); err != nil {
		return e32.Config{}, err
	}

	switch p.IOMode {
	case e32.IOModePushPull.String():
		config.Option.IOMode = e32.IOModePushPull
	case e32.IOModeOpenDrain.String():
		config.Option.IOMode = e32.IOModeOpenDrain
	default:
		return e32.Config{}, fmt.Errorf("unknown I/O mode %q", p.IOMode)
	}

	config.Option.FEC = p.FEC
	config.Option.FixedMode = p.Fixed

	return config, nil
}
