package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3/ffcli"
)

type xferConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	count      int
}

func (c *xferConfig) Exec(ctx context.Context, args []string) error {
	req, err := parseBytes(args)
	if err != nil {
		return err
	}

	d, bus, err := newDevice(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	resp := make([]byte, c.count)
	if err := d.Exchange(req, resp); err != nil {
		return err
	}
	if c.rootConfig.verbose {
		fmt.Fprintf(c.err, "request:\n%s\n", prettyHex(req))
	}
	fmt.Fprintln(c.out, prettyHex(resp))
	return nil
}

func newXferCmd(rootConfig *rootConfig, out io.Writer, err io.Writer) *ffcli.Command {
	cfg := xferConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("usitwi xfer", flag.ExitOnError)
	fs.IntVar(&cfg.count, "n", 1, "response bytes to read, at most 16")
	rootConfig.registerFlags(fs)

	return &ffcli.Command{
		Name:       "xfer",
		ShortUsage: "xfer [-n count] <hex bytes>",
		ShortHelp:  "Writes a request, waits for the slave to handle it and reads the response.",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}
}
