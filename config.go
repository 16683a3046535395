package e32

import (
	"fmt"
	"time"
)

// ConfigSize is the size of a configuration record on the wire.
const ConfigSize = 6

// Head is the first byte of every command and response.
type Head byte

// The different command heads.
const (
	HeadConfigSaveHard Head = 0xC0
	HeadConfigRead     Head = 0xC1
	HeadConfigSaveSoft Head = 0xC2 // Read back as HeadConfigSaveHard.
	HeadVersionRead    Head = 0xC3
	HeadModuleReset    Head = 0xC4
)

func (h Head) String() string {
	switch h {
	case HeadConfigSaveHard:
		return "config-save-hard"
	case HeadConfigRead:
		return "config-read"
	case HeadConfigSaveSoft:
		return "config-save-soft"
	case HeadVersionRead:
		return "version-read"
	case HeadModuleReset:
		return "module-reset"
	}

	return fmt.Sprintf("head(0x%02X)", byte(h))
}

// AirRate is the over-the-air data rate.
type AirRate byte

// The different air data rates.
const (
	AirRate300 AirRate = iota
	AirRate1200
	AirRate2400
	AirRate4800
	AirRate9600
	AirRate19200
)

var airRateNames = []string{"0.3k", "1.2k", "2.4k", "4.8k", "9.6k", "19.2k"}

func (r AirRate) String() string {
	if int(r) < len(airRateNames) {
		return airRateNames[r]
	}

	return fmt.Sprintf("air-rate(%d)", byte(r))
}

// ParseAirRate returns the air rate for a name such as "2.4k".
func ParseAirRate(s string) (AirRate, error) {
	for i, name := range airRateNames {
		if name == s {
			return AirRate(i), nil
		}
	}

	return 0, fmt.Errorf("unknown air rate %q", s)
}

// UARTRate is the baud rate of the module's serial interface.
type UARTRate byte

// The different UART baud rates.
const (
	UARTRate1200 UARTRate = iota
	UARTRate2400
	UARTRate4800
	UARTRate9600
	UARTRate19200
	UARTRate38400
	UARTRate57600
	UARTRate115200
)

var uartBauds = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// Baud returns the baud rate in bits per second.
func (r UARTRate) Baud() int {
	return uartBauds[r&0x07]
}

func (r UARTRate) String() string {
	return fmt.Sprintf("%d", r.Baud())
}

// UARTRateFromBaud returns the UART rate for a baud rate.
func UARTRateFromBaud(baud int) (UARTRate, error) {
	for i, b := range uartBauds {
		if b == baud {
			return UARTRate(i), nil
		}
	}

	return 0, fmt.Errorf("unsupported baud rate %d", baud)
}

// Parity is the serial framing of the module's serial interface.
type Parity byte

// The different parity settings.
const (
	Parity8N1 Parity = iota
	Parity8O1
	Parity8E1
)

var parityNames = []string{"8N1", "8O1", "8E1"}

func (p Parity) String() string {
	if int(p) < len(parityNames) {
		return parityNames[p]
	}

	// 0b11 is documented as equivalent to 8N1.
	return fmt.Sprintf("parity(%d)", byte(p))
}

// ParseParity returns the parity for a name such as "8N1".
func ParseParity(s string) (Parity, error) {
	for i, name := range parityNames {
		if name == s {
			return Parity(i), nil
		}
	}

	return 0, fmt.Errorf("unknown parity %q", s)
}

// Power is the transmit power.
type Power byte

// The different transmit power levels of the 1W modules.
const (
	Power30dBm Power = iota
	Power27dBm
	Power24dBm
	Power21dBm
)

var powerDBm = []int{30, 27, 24, 21}

// DBm returns the transmit power in dBm.
func (p Power) DBm() int {
	return powerDBm[p&0x03]
}

func (p Power) String() string {
	return fmt.Sprintf("%ddBm", p.DBm())
}

// PowerFromDBm returns the power level for a value in dBm.
func PowerFromDBm(dbm int) (Power, error) {
	for i, v := range powerDBm {
		if v == dbm {
			return Power(i), nil
		}
	}

	return 0, fmt.Errorf("unsupported transmit power %d dBm", dbm)
}

// WORTiming is the wake-on-radio cycle.
type WORTiming byte

// Duration returns the wake-up interval.
func (w WORTiming) Duration() time.Duration {
	return time.Duration(int(w&0x07)+1) * 250 * time.Millisecond
}

func (w WORTiming) String() string {
	return w.Duration().String()
}

// WORTimingFromDuration returns the timing for a multiple of 250ms between
// 250ms and 2s.
func WORTimingFromDuration(d time.Duration) (WORTiming, error) {
	steps := d / (250 * time.Millisecond)

	if d%(250*time.Millisecond) != 0 || steps < 1 || steps > 8 {
		return 0, fmt.Errorf("unsupported wake-on-radio timing %s", d)
	}

	return WORTiming(steps - 1), nil
}

// IOMode is the drive mode of the TXD and AUX pins.
type IOMode byte

// The different I/O drive modes.
const (
	IOModeOpenDrain IOMode = iota
	IOModePushPull
)

func (m IOMode) String() string {
	if m == IOModePushPull {
		return "push-pull"
	}

	return "open-drain"
}

// Speed is the packed SPED byte.
type Speed struct {
	AirRate  AirRate
	UARTRate UARTRate
	Parity   Parity
}

// Byte packs the speed. Bits 0-2 hold the air rate, bits 3-5 the UART rate
// and bits 6-7 the parity.
func (s Speed) Byte() byte {
	return byte(s.AirRate)&0x07 | (byte(s.UARTRate)&0x07)<<3 | (byte(s.Parity)&0x03)<<6
}

// ParseSpeed unpacks a SPED byte.
func ParseSpeed(b byte) Speed {
	return Speed{
		AirRate:  AirRate(b & 0x07),
		UARTRate: UARTRate((b >> 3) & 0x07),
		Parity:   Parity((b >> 6) & 0x03),
	}
}

// Option is the packed OPTION byte.
type Option struct {
	Power     Power
	FEC       bool
	WORTiming WORTiming
	IOMode    IOMode
	FixedMode bool
}

// Byte packs the option. Bits 0-1 hold the power, bit 2 FEC, bits 3-5 the
// wake-on-radio timing, bit 6 the I/O mode and bit 7 fixed transmission.
func (o Option) Byte() byte {
	b := byte(o.Power)&0x03 | (byte(o.WORTiming)&0x07)<<3 | (byte(o.IOMode)&0x01)<<6

	if o.FEC {
		b |= 1 << 2
	}
	if o.FixedMode {
		b |= 1 << 7
	}

	return b
}

// ParseOption unpacks an OPTION byte.
func ParseOption(b byte) Option {
	return Option{
		Power:     Power(b & 0x03),
		FEC:       b&(1<<2) != 0,
		WORTiming: WORTiming((b >> 3) & 0x07),
		IOMode:    IOMode((b >> 6) & 0x01),
		FixedMode: b&(1<<7) != 0,
	}
}

// Config is the module's configuration record.
type Config struct {
	Head    Head
	AddrH   byte
	AddrL   byte
	Speed   Speed
	Channel byte
	Option  Option
}

// DefaultConfig returns the factory configuration of the module.
func DefaultConfig() Config {
	return Config{
		Head:    HeadConfigSaveHard,
		Speed:   Speed{AirRate: AirRate2400, UARTRate: UARTRate9600, Parity: Parity8N1},
		Channel: 0x17,
		Option: Option{
			Power:     Power30dBm,
			FEC:       true,
			WORTiming: 0,
			IOMode:    IOModePushPull,
		},
	}
}

// Address returns the module address.
func (c Config) Address() uint16 {
	return uint16(c.AddrH)<<8 | uint16(c.AddrL)
}

// SetAddress sets the module address.
func (c *Config) SetAddress(address uint16) {
	c.AddrH = byte(address >> 8)
	c.AddrL = byte(address)
}

// Bytes returns the wire representation of the record.
func (c Config) Bytes() [ConfigSize]byte {
	return [ConfigSize]byte{
		byte(c.Head),
		c.AddrH,
		c.AddrL,
		c.Speed.Byte(),
		c.Channel,
		c.Option.Byte(),
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c Config) MarshalBinary() ([]byte, error) {
	b := c.Bytes()

	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The record is only
// modified when data has the exact record size.
func (c *Config) UnmarshalBinary(data []byte) error {
	if len(data) != ConfigSize {
		return fmt.Errorf("config record must be %d bytes, got %d", ConfigSize, len(data))
	}

	*c = Config{
		Head:    Head(data[0]),
		AddrH:   data[1],
		AddrL:   data[2],
		Speed:   ParseSpeed(data[3]),
		Channel: data[4],
		Option:  ParseOption(data[5]),
	}

	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("head=%s address=0x%04X channel=%d uart=%s/%s air=%s power=%s fec=%t wor=%s io=%s fixed=%t",
		c.Head, c.Address(), c.Channel, c.Speed.UARTRate, c.Speed.Parity, c.Speed.AirRate,
		c.Option.Power, c.Option.FEC, c.Option.WORTiming, c.Option.IOMode, c.Option.FixedMode)
}

func isSaveHead(h Head) bool {
	return h == HeadConfigSaveHard || h == HeadConfigSaveSoft
}
