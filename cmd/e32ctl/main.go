// Command e32ctl configures and uses an E32 module connected to a serial port
// and GPIO pins.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/basilfx/go-e32"
	"github.com/basilfx/go-e32/e32sim"
	"github.com/basilfx/go-e32/mirror"
	"github.com/basilfx/go-e32/pins"
	"github.com/basilfx/go-e32/profile"
	"github.com/basilfx/go-e32/uart"
	log "github.com/sirupsen/logrus"
)

const usage = `Usage: e32ctl [flags] <command> [arguments]

Commands:
  version                  print the model, version and features
  config                   print the configuration as a profile
  apply <profile.json5>    write a profile to the module
  mode <name>              switch to normal, wake-up, power-saving or sleep
  reset                    restart the module
  listen [-redis addr]     print or mirror received messages
  send [-reply] <text>     transmit a message

Flags:
`

type options struct {
	port     string
	baud     int
	parity   string
	m0       int
	m1       int
	aux      int
	auxWait  time.Duration
	fixed    bool
	simulate bool
	verbose  bool
}

// device is an opened module.
type device struct {
	stream interface {
		e32.Stream
		io.ReadWriteCloser
	}
	driver *e32.Driver
	fixed  bool
	close  func()
}

func main() {
	var o options

	flag.StringVar(&o.port, "port", "/dev/serial0", "serial port of the module")
	flag.IntVar(&o.baud, "baud", 9600, "baud rate of the serial port")
	flag.StringVar(&o.parity, "parity", "8N1", "parity of the serial port")
	flag.IntVar(&o.m0, "m0", 23, "GPIO connected to M0")
	flag.IntVar(&o.m1, "m1", 24, "GPIO connected to M1")
	flag.IntVar(&o.aux, "aux", 18, "GPIO connected to AUX")
	flag.DurationVar(&o.auxWait, "aux-wait", 0, "wait up to this long for AUX after commands (0 disables)")
	flag.BoolVar(&o.fixed, "fixed", false, "prefix sent messages with -to and -channel")
	flag.BoolVar(&o.simulate, "simulate", false, "use a simulated module instead of hardware")
	flag.BoolVar(&o.verbose, "v", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	if o.verbose {
		log.SetLevel(log.DebugLevel)
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	d, err := open(o)

	if err != nil {
		log.Fatalf("Unable to open module: %v", err)
	}

	err = run(d, flag.Arg(0), flag.Args()[1:])

	d.close()

	if err != nil {
		log.Fatalf("Command %s failed: %v", flag.Arg(0), err)
	}
}

func open(o options) (*device, error) {
	opts := []e32.DriverOption{
		e32.WithLogger(log.StandardLogger()),
		e32.WithInitialMode(e32.ModeNormal),
	}

	if o.auxWait > 0 {
		opts = append(opts, e32.WithAuxWait(o.auxWait))
	}

	if o.simulate {
		return openSimulated(o, opts)
	}

	parity, err := e32.ParseParity(o.parity)

	if err != nil {
		return nil, err
	}

	port, err := uart.Open(o.port, o.baud, parity)

	if err != nil {
		return nil, err
	}

	host, err := pins.New()

	if err != nil {
		port.Close()
		return nil, err
	}

	driver, err := e32.New(port, host, o.m0, o.m1, o.aux, opts...)

	if err != nil {
		port.Close()
		return nil, err
	}

	return &device{
		stream: port,
		driver: driver,
		fixed:  o.fixed,
		close:  func() { port.Close() },
	}, nil
}

// openSimulated returns a simulated module, connected to a second module that
// echoes every message it receives.
func openSimulated(o options, opts []e32.DriverOption) (*device, error) {
	local := e32sim.New(o.m0, o.m1, o.aux)
	remote := e32sim.New(o.m0, o.m1, o.aux)
	e32sim.Connect(local, remote)

	echo := e32.NewLink()
	id, c := echo.Register()

	go echo.Serve(remote.Port())
	go func() {
		for m := range c {
			echo.Send(m)
		}
	}()

	driver, err := e32.New(local.Port(), local, o.m0, o.m1, o.aux, opts...)

	if err != nil {
		return nil, err
	}

	return &device{
		stream: local.Port(),
		driver: driver,
		fixed:  o.fixed,
		close: func() {
			echo.Unregister(id)
			echo.Shutdown()
			local.Close()
			remote.Close()
		},
	}, nil
}

func run(d *device, command string, args []string) error {
	switch command {
	case "version":
		version, err := d.driver.ReadVersion()

		if err != nil {
			return err
		}

		fmt.Println(version)
	case "config":
		config, err := d.driver.ReadConfig()

		if err != nil {
			return err
		}

		return printProfile(profile.FromConfig(config))
	case "apply":
		if len(args) != 1 {
			return fmt.Errorf("expected a profile file")
		}

		p, err := profile.Load(args[0])

		if err != nil {
			return err
		}

		config, err := p.Config()

		if err != nil {
			return err
		}

		if err := d.driver.WriteConfig(config); err != nil {
			var mismatch *e32.VerificationMismatchError

			if !errors.As(err, &mismatch) || !mismatch.HeadOnly() {
				return err
			}

			log.Debugf("Configuration read back with head %s.", mismatch.Read.Head)
		}

		log.Infof("Configuration written: %s", config)
	case "mode":
		if len(args) != 1 {
			return fmt.Errorf("expected a mode")
		}

		mode, err := e32.ParseMode(args[0])

		if err != nil {
			return err
		}

		return d.driver.SetMode(mode)
	case "reset":
		return d.driver.Reset()
	case "listen":
		return listen(d, args)
	case "send":
		return send(d, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

func printProfile(p profile.Profile) error {
	fmt.Printf("{\n")
	fmt.Printf("    address: %d,\n", p.Address)
	fmt.Printf("    channel: %d,\n", p.Channel)
	fmt.Printf("    air_rate: %q,\n", p.AirRate)
	fmt.Printf("    uart_baud: %d,\n", p.UARTBaud)
	fmt.Printf("    parity: %q,\n", p.Parity)
	fmt.Printf("    power_dbm: %d,\n", p.PowerDBm)
	fmt.Printf("    fec: %t,\n", p.FEC)
	fmt.Printf("    wor_timing_ms: %d,\n", p.WORTimingMS)
	fmt.Printf("    io_mode: %q,\n", p.IOMode)
	fmt.Printf("    fixed: %t,\n", p.Fixed)
	fmt.Printf("    save: %q,\n", p.Save)
	fmt.Printf("}\n")

	return nil
}

func newLink(d *device) *e32.Link {
	if d.fixed {
		return e32.NewLink(e32.WithFixedTransmission())
	}

	return e32.NewLink()
}

func listen(d *device, args []string) error {
	flags := flag.NewFlagSet("listen", flag.ContinueOnError)
	addr := flags.String("redis", "", "mirror messages to this Redis server")
	key := flags.String("key", "messages", "Redis key of the last message")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := d.driver.SetMode(e32.ModeNormal); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	l := newLink(d)
	go l.Serve(d.stream)
	defer l.Shutdown()

	if *addr != "" {
		r := mirror.New(*addr)
		defer r.Close()

		log.Infof("Mirroring messages to %s.", *addr)

		r.Forward(ctx, l, *key)

		return nil
	}

	id, c := l.Register()
	defer l.Unregister(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-c:
			fmt.Printf("%s\n", m.Payload)
		}
	}
}

func send(d *device, args []string) error {
	flags := flag.NewFlagSet("send", flag.ContinueOnError)
	to := flags.Uint("to", e32.BroadcastAddress, "address of the receiver (with -fixed)")
	channel := flags.Uint("channel", 0x17, "channel of the receiver (with -fixed)")
	reply := flags.Bool("reply", false, "wait for a reply and print it")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() == 0 {
		return fmt.Errorf("expected a message")
	}

	message := e32.Message{
		Target: e32.Target{
			Address: uint16(*to),
			Channel: byte(*channel),
		},
		Payload: []byte(strings.Join(flags.Args(), " ")),
	}

	if err := d.driver.SetMode(e32.ModeNormal); err != nil {
		return err
	}

	if *reply {
		l := newLink(d)
		go l.Serve(d.stream)
		defer l.Shutdown()

		r, err := l.Request(message)

		if err != nil {
			return err
		}

		fmt.Printf("%s\n", r.Payload)

		return nil
	}

	frame, err := e32.EncodeFrame(message, d.fixed)

	if err != nil {
		return err
	}

	if _, err := d.stream.Write(frame); err != nil {
		return err
	}

	return d.stream.Flush()
}
