package profile

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/basilfx/go-e32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`{
		// Node in fixed transmission mode.
		address: 4660,
		channel: 6,
		air_rate: "9.6k",
		uart_baud: 115200,
		parity: "8E1",
		power_dbm: 21,
		fec: false,
		wor_timing_ms: 1000,
		io_mode: "open-drain",
		fixed: true,
		save: "soft",
	}`)

	p, err := Parse(data)
	require.NoError(t, err)

	config, err := p.Config()
	require.NoError(t, err)

	assert.Equal(t, e32.Config{
		Head:    e32.HeadConfigSaveSoft,
		AddrH:   0x12,
		AddrL:   0x34,
		Speed:   e32.Speed{AirRate: e32.AirRate9600, UARTRate: e32.UARTRate115200, Parity: e32.Parity8E1},
		Channel: 6,
		Option: e32.Option{
			Power:     e32.Power21dBm,
			FEC:       false,
			WORTiming: 3,
			IOMode:    e32.IOModeOpenDrain,
			FixedMode: true,
		},
	}, config)
}

func TestParseKeepsDefaults(t *testing.T) {
	p, err := Parse([]byte(`{channel: 1}`))
	require.NoError(t, err)

	config, err := p.Config()
	require.NoError(t, err)

	expected := e32.DefaultConfig()
	expected.Channel = 1

	assert.Equal(t, expected, config)
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		`{air_rate: "1k"}`,
		`{uart_baud: 14400}`,
		`{parity: "7N1"}`,
		`{power_dbm: 20}`,
		`{wor_timing_ms: 300}`,
		`{io_mode: "tri-state"}`,
		`{save: "never"}`,
		`{channel: 256}`,
		`{`,
	}

	for _, data := range tests {
		_, err := Parse([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(e32.DefaultConfig())

	assert.Equal(t, Profile{
		Address:     0,
		Channel:     0x17,
		AirRate:     "2.4k",
		UARTBaud:    9600,
		Parity:      "8N1",
		PowerDBm:    30,
		FEC:         true,
		WORTimingMS: 250,
		IOMode:      "push-pull",
		Fixed:       false,
		Save:        SaveHard,
	}, p)

	config, err := p.Config()

	require.NoError(t, err)
	assert.Equal(t, e32.DefaultConfig(), config)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json5")
	require.NoError(t, ioutil.WriteFile(path, []byte(`{address: 7}`), 0644))

	p, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, uint16(7), p.Address)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json5"))
	assert.Error(t, err)
}

func TestFromConfigAliases(t *testing.T) {
	tests := []struct {
		speed   byte
		airRate e32.AirRate
		parity  e32.Parity
	}{
		{0x1E, e32.AirRate19200, e32.Parity8N1},
		{0x1F, e32.AirRate19200, e32.Parity8N1},
		{0xDA, e32.AirRate2400, e32.Parity8N1},
	}

	for _, tt := range tests {
		raw := e32.DefaultConfig()
		raw.Speed = e32.ParseSpeed(tt.speed)

		config, err := FromConfig(raw).Config()

		require.NoError(t, err, "0x%02X", tt.speed)
		assert.Equal(t, tt.airRate, config.Speed.AirRate)
		assert.Equal(t, tt.parity, config.Speed.Parity)
		assert.Equal(t, e32.UARTRate9600, config.Speed.UARTRate)
	}
}
