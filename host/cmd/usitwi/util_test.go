package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"

	"usitwi/protocol"
)

func TestPrettyHexIndent(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		prefix string
		space  string
		want   string
	}{
		{"empty", []byte{}, "  ", "", ""},
		{"one", []byte{0x00}, "  ", "", "  00"},
		{"two", []byte{0xDE, 0xAD}, "  ", "", "  DE AD"},
		{
			"big", bytes.Repeat([]byte{0x00}, 32), "    ", "",
			"    00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n" +
				"    00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00",
		},
		{
			"space", bytes.Repeat([]byte{0x00}, 16), "", " ",
			"00 00 00 00 00 00 00 00  00 00 00 00 00 00 00 00",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := prettyHexIndent(tc.in, tc.prefix, tc.space)
			if got != tc.want {
				t.Errorf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestParseAddr(t *testing.T) {
	testCases := []struct {
		in      string
		want    uint8
		wantErr bool
	}{
		{"", 0x28, false},
		{"30", 0x30, false},
		{"0x7f", 0x7F, false},
		{"80", 0, true},
		{"zz", 0, true},
	}

	for _, tc := range testCases {
		got, err := parseAddr(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: want 0x%02x, got 0x%02x", tc.in, tc.want, got)
		}
	}
}

func TestParseBytes(t *testing.T) {
	got, err := parseBytes([]string{"02", "0xDE", "adbe", "f"})
	if err != nil {
		t.Fatalf("parseBytes failed: %v", err)
	}
	want := []byte{0x02, 0xDE, 0xAD, 0xBE, 0x0F}
	if !bytes.Equal(got, want) {
		t.Errorf("want %X, got %X", want, got)
	}

	if _, err := parseBytes([]string{"xy"}); err == nil {
		t.Error("want error for non-hex input")
	}
}

func newTestCmd(out, errOut *bytes.Buffer) *ffcli.Command {
	rootCmd, cfg := newRootCmd()
	rootCmd.Subcommands = []*ffcli.Command{
		newProbeCmd(cfg, out, errOut),
		newWriteCmd(cfg, out, errOut),
		newReadCmd(cfg, out, errOut),
		newXferCmd(cfg, out, errOut),
		newTraceCmd(cfg, out, errOut),
	}
	return rootCmd
}

func TestSimCommands(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"probe", []string{"-sim", "probe"}, "0x28: present\n"},
		{"probe other address", []string{"-sim", "-addr", "30", "probe"}, "0x30: present\n"},
		{"xfer", []string{"-sim", "xfer", "-n", "4", "02", "de", "ad", "be", "ef"}, "    DE AD BE EF\n"},
		{"device id", []string{"xfer", "-sim", "-n", "2", "00"}, "    A5 00\n"},
		{"read before any request", []string{"-sim", "read", "-n", "2"}, "    FE FE\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			cmd := newTestCmd(&out, &errOut)
			if err := cmd.ParseAndRun(context.Background(), tc.args); err != nil {
				t.Fatalf("run failed: %v (%s)", err, errOut.String())
			}
			if out.String() != tc.want {
				t.Errorf("want %q, got %q", tc.want, out.String())
			}
		})
	}
}

func TestSimWriteNothing(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newTestCmd(&out, &errOut)
	err := cmd.ParseAndRun(context.Background(), []string{"-sim", "write"})
	if err == nil || !strings.Contains(err.Error(), "nothing to write") {
		t.Errorf("want nothing to write error, got %v", err)
	}
}

func TestTraceFollow(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &traceConfig{
		rootConfig: &rootConfig{},
		out:        &out,
		err:        &errOut,
		count:      2,
	}

	records := make(chan *protocol.TraceRecord, 3)
	records <- &protocol.TraceRecord{Seq: 1, Kind: 1, Phase: 4, In: []byte{0x01}}
	records <- &protocol.TraceRecord{Seq: 2, Kind: 3, Phase: 3}
	records <- &protocol.TraceRecord{Seq: 3, Kind: 1, Phase: 4}

	if err := c.follow(context.Background(), records, func() string { return "" }); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	want := "#1 transaction phase=data_processed in=[01] out=[]\n" +
		"#2 ignored phase=address_not_selected in=[] out=[]\n"
	if out.String() != want {
		t.Errorf("want %q, got %q", want, out.String())
	}

	c.count = 0
	c.timeout = 10 * time.Millisecond
	if err := c.follow(context.Background(), make(chan *protocol.TraceRecord), nil); err == nil {
		t.Error("want timeout error")
	}
}
