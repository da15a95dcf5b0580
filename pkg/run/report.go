package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dynconf/dynconf/pkg/session"
)

// Reporter writes run artifacts to an output directory:
//
//	<id>.conf           rendered config per device (render mode)
//	<id>.log            per-device transcript (configure/show modes)
//	session.json        machine-readable outcome for every device
//	session.summary.log fixed-width one-line-per-device summary
type Reporter struct {
	Dir string
}

// deviceOutcome is the session.json entry for one device.
type deviceOutcome struct {
	ID     string                  `json:"id"`
	Host   string                  `json:"host"`
	Port   int                     `json:"port"`
	Status Status                  `json:"status"`
	Error  string                  `json:"error,omitempty"`
	Output []session.CommandResult `json:"output,omitempty"`
}

// Write persists all artifacts for the summary. The directory is created
// if needed.
func (w *Reporter) Write(summary *Summary, mode Mode) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, res := range summary.Results {
		if err := w.writeDevice(res, mode); err != nil {
			return err
		}
	}
	if err := w.writeJSON(summary); err != nil {
		return err
	}
	return w.writeSummary(summary)
}

func (w *Reporter) writeDevice(res *Result, mode Mode) error {
	if mode == ModeRender {
		if res.Status != StatusCompleted {
			return nil
		}
		path := filepath.Join(w.Dir, res.Device.ID+".conf")
		content := strings.Join(res.Commands, "\n") + "\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	}

	path := filepath.Join(w.Dir, res.Device.ID+".log")
	if err := os.WriteFile(path, []byte(transcript(res)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// transcript formats a per-device log: a banner, the outcome, and each
// command with its captured output.
func transcript(res *Result) string {
	var b strings.Builder
	b.WriteString(banner('#', res.Device.ID))
	if res.Err != nil {
		b.WriteString(banner('@', fmt.Sprintf("%s: %v", res.Status, res.Err)))
	} else {
		b.WriteString(banner('@', string(res.Status)))
	}
	for _, out := range res.Outputs {
		b.WriteString(banner('=', out.Command))
		b.WriteString(out.Output)
		b.WriteString("\n")
	}
	return b.String()
}

// banner centers info between repeated rule characters, 86 columns wide.
func banner(rule byte, info string) string {
	pad := 86 - len(info)
	if pad < 2 {
		pad = 2
	}
	side := strings.Repeat(string(rule), pad/2)
	return fmt.Sprintf("%s %s %s\n", side, strings.ToUpper(info), side)
}

func (w *Reporter) writeJSON(summary *Summary) error {
	outcomes := make([]deviceOutcome, 0, len(summary.Results))
	for _, res := range summary.Results {
		o := deviceOutcome{
			ID:     res.Device.ID,
			Host:   res.Device.Host,
			Port:   res.Device.Port,
			Status: res.Status,
			Output: res.Outputs,
		}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		outcomes = append(outcomes, o)
	}

	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(w.Dir, "session.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (w *Reporter) writeSummary(summary *Summary) error {
	var b strings.Builder
	b.WriteString("Devices Listed:\n")
	fmt.Fprintf(&b, "%-20s%-20s%-16s%s\n", "HOST_ID", "HOST", "STATUS", "DETAIL")
	for _, res := range summary.Results {
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		fmt.Fprintf(&b, "%-20s%-20s%-16s%s\n", res.Device.ID, res.Device.Host, res.Status, detail)
	}
	for _, sk := range summary.Skipped {
		fmt.Fprintf(&b, "%-20s%-20s%-16s%v\n", fmt.Sprintf("record-%d", sk.Position), "-", "SKIPPED", sk.Err)
	}

	path := filepath.Join(w.Dir, "session.summary.log")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
