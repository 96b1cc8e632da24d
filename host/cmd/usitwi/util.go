package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"usitwi/app/regbank"
	"usitwi/client"
	"usitwi/core"
	"usitwi/sim"
)

const simDeviceID = 0xA5

func newDevice(ctx context.Context, c *rootConfig) (*client.Device, io.Closer, error) {
	addr, err := parseAddr(c.addr)
	if err != nil {
		return nil, nil, err
	}

	var (
		bus    i2c.BusCloser
		closer io.Closer
	)
	if c.sim {
		bus, closer, err = newSimBus(ctx, addr, c.verbose)
	} else {
		bus, err = openBus(c.bus)
		closer = bus
	}
	if err != nil {
		return nil, nil, err
	}

	if c.speed > 0 {
		if err := bus.SetSpeed(physic.Frequency(c.speed) * physic.Hertz); err != nil {
			closer.Close()
			return nil, nil, fmt.Errorf("usitwi: failed to set speed: %w", err)
		}
	}

	logf(c.verbose, "using %s, address 0x%02x", bus, addr)

	d := client.New(bus)
	settle := c.settle
	if settle == 0 {
		settle = -1
	}
	if err := d.Configure(client.Config{Address: addr, Settle: settle}); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return d, closer, nil
}

func openBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("usitwi: failed to initialize host drivers: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("usitwi: failed to connect to bus: %w", err)
	}
	return bus, nil
}

// simSlave runs a register-bank slave on a simulated bus in the background.
type simSlave struct {
	usi    *sim.USI
	cancel context.CancelFunc
	done   chan error
}

func newSimBus(ctx context.Context, addr uint8, verbose bool) (i2c.BusCloser, io.Closer, error) {
	bank := regbank.New()
	bank.Set(0, simDeviceID)
	bank.Protect(0)

	if verbose {
		logger := log.New(os.Stderr, "sim: ", 0)
		core.SetDebugWriter(func(s string) { logger.Println(s) })
		core.SetDebugEnabled(true)
	}

	usi := sim.NewUSI()
	s, err := core.New(usi, core.Config{
		Address:     addr,
		SleepOnIdle: true,
		Data:        bank,
	})
	if err != nil {
		return nil, nil, err
	}
	usi.Attach(s)

	ctx, cancel := context.WithCancel(ctx)
	ss := &simSlave{usi: usi, cancel: cancel, done: make(chan error, 1)}
	go func() { ss.done <- s.Run(ctx) }()

	for usi.Control()&core.USISIE == 0 {
		time.Sleep(time.Millisecond)
	}

	bus := sim.NewMaster(usi)
	bus.StopTimeout = time.Second
	return bus, ss, nil
}

func (s *simSlave) Close() error {
	s.cancel()
	s.usi.Close()
	if err := <-s.done; !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseAddr(s string) (uint8, error) {
	if s == "" {
		return client.DefaultAddress, nil
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("usitwi: invalid address %q: %w", s, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("usitwi: address 0x%x does not fit in 7 bits", addr)
	}
	return uint8(addr), nil
}

// parseBytes reads hex bytes given as separate arguments ("de ad") or run
// together ("dead").
func parseBytes(args []string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.ToLower(arg), "0x")
		if len(arg)%2 == 1 {
			arg = "0" + arg
		}
		for i := 0; i < len(arg); i += 2 {
			v, err := strconv.ParseUint(arg[i:i+2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("usitwi: invalid byte %q", arg[i:i+2])
			}
			out = append(out, byte(v))
		}
	}
	return out, nil
}

func prettyHex(data []byte) string {
	return prettyHexIndent(data, "    ", "")
}

func prettyHexIndent(data []byte, prefix string, space string) string {
	var buf strings.Builder

	cols := 16
	size := (len(data)/cols+1)*(len(prefix)+len(space)+1) + len(data)*3
	buf.Grow(size)

	for i := range data {
		if i > 0 {
			switch i % cols {
			case 0:
				buf.WriteByte('\n')
			case cols / 2:
				buf.WriteByte(' ')
				buf.WriteString(space)
			default:
				buf.WriteByte(' ')
			}
		}
		if i%cols == 0 {
			buf.WriteString(prefix)
		}

		fmt.Fprintf(&buf, "%02X", data[i])
	}

	return buf.String()
}

func addLongHelp(cmd *ffcli.Command) *ffcli.Command {
	if cmd.LongHelp == "" {
		cmd.LongHelp = cmd.ShortHelp
	}

	cmd.LongHelp += usitwiLongHelp

	return cmd
}

func logf(verbose bool, format string, args ...interface{}) {
	if verbose {
		log.New(os.Stderr, "", 0).Printf(format, args...)
	}
}
