package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"

	"usitwi/host/monitor"
	"usitwi/host/serial"
	"usitwi/protocol"
)

type traceConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	device     string
	baud       int
	count      int
	timeout    time.Duration
}

func (c *traceConfig) Exec(ctx context.Context, _ []string) error {
	cfg := serial.DefaultConfig(c.device)
	cfg.Baud = c.baud

	m := monitor.NewMonitor()
	if err := m.ConnectWithConfig(cfg); err != nil {
		return err
	}
	defer m.Close()

	if c.rootConfig.verbose {
		fmt.Fprintf(c.err, "tracing %s at %d baud\n", c.device, c.baud)
	}
	return c.follow(ctx, m.Records(), m.Stats)
}

// follow prints records until count is reached, the stream ends, ctx is done
// or nothing arrives within the timeout.
func (c *traceConfig) follow(ctx context.Context, records <-chan *protocol.TraceRecord, stats func() string) error {
	var idle <-chan time.Time
	seen := 0
	for c.count <= 0 || seen < c.count {
		if c.timeout > 0 {
			idle = time.After(c.timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			return fmt.Errorf("usitwi: no trace record within %v", c.timeout)
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			fmt.Fprintln(c.out, monitor.Format(rec))
			seen++
		}
	}
	if c.rootConfig.verbose {
		fmt.Fprintln(c.err, stats())
	}
	return nil
}

func newTraceCmd(rootConfig *rootConfig, out io.Writer, err io.Writer) *ffcli.Command {
	cfg := traceConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("usitwi trace", flag.ExitOnError)
	fs.StringVar(&cfg.device, "device", "/dev/ttyUSB0", "serial device of the trace output")
	fs.IntVar(&cfg.baud, "baud", serial.TraceBaud, "trace baud rate")
	fs.IntVar(&cfg.count, "count", 0, "stop after this many records, 0 runs until interrupted")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "give up when no record arrives for this long")
	rootConfig.registerFlags(fs)

	return &ffcli.Command{
		Name:       "trace",
		ShortUsage: "trace [-device path] [-count n]",
		ShortHelp:  "Prints the transaction records the firmware sends on its trace output.",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}
}
