package run

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dynconf/dynconf/pkg/cli"
	"github.com/dynconf/dynconf/pkg/device"
)

// ProgressReporter receives lifecycle callbacks during a run.
type ProgressReporter interface {
	RunStart(devices []*device.Device, mode Mode)
	DeviceEnd(res *Result, done, total int)
	RunEnd(summary *Summary)
}

// NopProgress discards all callbacks.
type NopProgress struct{}

func (NopProgress) RunStart([]*device.Device, Mode) {}
func (NopProgress) DeviceEnd(*Result, int, int)     {}
func (NopProgress) RunEnd(*Summary)                 {}

// consoleProgress is an append-only terminal reporter. It never rewrites
// the cursor, so output is safe for pipes, CI, and scrollback buffers.
type consoleProgress struct {
	W        io.Writer
	Verbose  bool
	dotWidth int
}

// NewConsoleProgress creates a console reporter writing to stdout.
func NewConsoleProgress(verbose bool) ProgressReporter {
	return &consoleProgress{W: os.Stdout, Verbose: verbose}
}

func (p *consoleProgress) RunStart(devices []*device.Device, mode Mode) {
	maxName := 0
	for _, d := range devices {
		if len(d.ID) > maxName {
			maxName = len(d.ID)
		}
	}
	p.dotWidth = maxName + 6

	fmt.Fprintf(p.W, "\ndynconf: %d devices, mode: %s\n\n", len(devices), mode)
}

func (p *consoleProgress) DeviceEnd(res *Result, done, total int) {
	tag := fmt.Sprintf("[%d/%d]", done, total)
	padded := cli.DotPad(res.Device.ID, p.dotWidth)

	if res.Status == StatusCompleted {
		fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, cli.Green("PASS"), formatDuration(res.Duration))
	} else {
		fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, cli.Red(string(res.Status)), formatDuration(res.Duration))
		if res.Err != nil {
			fmt.Fprintf(p.W, "          %s\n", cli.Dim(res.Err.Error()))
		}
	}

	if p.Verbose {
		for _, out := range res.Outputs {
			fmt.Fprintf(p.W, "          > %s\n", out.Command)
		}
	}
}

func (p *consoleProgress) RunEnd(s *Summary) {
	fmt.Fprintf(p.W, "\n---\n")
	fmt.Fprintf(p.W, "dynconf: %d devices", len(s.Results))

	parts := []string{}
	if s.Succeeded > 0 {
		parts = append(parts, cli.Green(fmt.Sprintf("%d succeeded", s.Succeeded)))
	}
	if s.Failed > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d failed", s.Failed)))
	}
	if len(s.Skipped) > 0 {
		parts = append(parts, cli.Yellow(fmt.Sprintf("%d skipped", len(s.Skipped))))
	}
	for i, part := range parts {
		if i == 0 {
			fmt.Fprintf(p.W, ": %s", part)
		} else {
			fmt.Fprintf(p.W, ", %s", part)
		}
	}
	fmt.Fprintf(p.W, "  (%s)\n", formatDuration(s.Duration))

	if s.Failed > 0 {
		fmt.Fprintf(p.W, "\n  FAILED:\n")
		for _, res := range s.Results {
			if !res.Status.Failed() {
				continue
			}
			fmt.Fprintf(p.W, "    %s (%s): %s: %v\n", res.Device.ID, res.Device.Host, res.Status, res.Err)
		}
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(p.W, "\n  SKIPPED:\n")
		for _, sk := range s.Skipped {
			fmt.Fprintf(p.W, "    %v\n", sk.Err)
		}
	}
	fmt.Fprintln(p.W)
}

// formatDuration formats a duration in a compact human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	if sec == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%02ds", m, sec)
}
