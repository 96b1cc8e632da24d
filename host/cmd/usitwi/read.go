package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3/ffcli"
)

type readConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	count      int
}

func (c *readConfig) Exec(ctx context.Context, _ []string) error {
	d, bus, err := newDevice(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	buf := make([]byte, c.count)
	if err := d.Read(buf); err != nil {
		return err
	}
	fmt.Fprintln(c.out, prettyHex(buf))
	return nil
}

func newReadCmd(rootConfig *rootConfig, out io.Writer, err io.Writer) *ffcli.Command {
	cfg := readConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("usitwi read", flag.ExitOnError)
	fs.IntVar(&cfg.count, "n", 1, "bytes to read, at most 16")
	rootConfig.registerFlags(fs)

	return &ffcli.Command{
		Name:       "read",
		ShortUsage: "read [-n count]",
		ShortHelp:  "Reads the response the slave prepared after the last transaction.",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}
}
