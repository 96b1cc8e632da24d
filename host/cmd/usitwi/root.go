package main

import (
	"context"
	"flag"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"

	"usitwi/client"
)

type rootConfig struct {
	verbose bool
	bus     string
	addr    string
	sim     bool
	speed   int64
	settle  time.Duration
}

func (c *rootConfig) registerFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "increase log verbosity")
	fs.StringVar(&c.bus, "bus", "", "i2c bus name or number, empty for the first one")
	fs.StringVar(&c.addr, "addr", "", "slave address in hex, default 0x28")
	fs.BoolVar(&c.sim, "sim", false, "talk to an in-process simulated slave instead of a real bus")
	fs.Int64Var(&c.speed, "speed", 0, "bus speed in Hz, 0 keeps the bus default")
	fs.DurationVar(&c.settle, "settle", client.DefaultSettle, "pause between a request and reading its response")
}

func (c *rootConfig) Exec(context.Context, []string) error {
	return flag.ErrHelp
}

func newRootCmd() (*ffcli.Command, *rootConfig) {
	var cfg rootConfig

	fs := flag.NewFlagSet("usitwi", flag.ExitOnError)
	cfg.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "usitwi",
		ShortUsage: "usitwi [flags] <subcommand>",
		ShortHelp:  "Talk to a USI TWI slave from the master side of the bus.",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}), &cfg
}

var usitwiLongHelp = `

GENERAL
The slave prepares its answer when a transaction ends, so every request is a
write followed by a separate read. Writes longer than 15 bytes are truncated
by the slave; reads past the prepared answer return 0xFE.

With -sim the commands run against a register-bank slave simulated in this
process, which is handy to try the protocol without hardware:

  usitwi -sim xfer -n 4 02 de ad be ef`
