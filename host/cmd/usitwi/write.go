package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3/ffcli"
)

type writeConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
}

func (c *writeConfig) Exec(ctx context.Context, args []string) error {
	data, err := parseBytes(args)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("usitwi: nothing to write")
	}

	d, bus, err := newDevice(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := d.Write(data); err != nil {
		return err
	}
	if c.rootConfig.verbose {
		fmt.Fprintln(c.err, "wrote", len(data))
	}
	return nil
}

func newWriteCmd(rootConfig *rootConfig, out io.Writer, err io.Writer) *ffcli.Command {
	cfg := writeConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("usitwi write", flag.ExitOnError)
	rootConfig.registerFlags(fs)

	return &ffcli.Command{
		Name:       "write",
		ShortUsage: "write <hex bytes>",
		ShortHelp:  "Sends one request to the slave.",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}
}
