package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3/ffcli"
)

type probeConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
}

func (c *probeConfig) Exec(ctx context.Context, _ []string) error {
	d, bus, err := newDevice(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := d.Probe(); err != nil {
		return fmt.Errorf("usitwi: no answer at 0x%02x: %w", d.Address(), err)
	}
	fmt.Fprintf(c.out, "0x%02x: present\n", d.Address())
	return nil
}

func newProbeCmd(rootConfig *rootConfig, out io.Writer, err io.Writer) *ffcli.Command {
	cfg := probeConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("usitwi probe", flag.ExitOnError)
	rootConfig.registerFlags(fs)

	return &ffcli.Command{
		Name:       "probe",
		ShortUsage: "probe",
		ShortHelp:  "Addresses the slave and reports whether it acknowledges.",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}
}
