package run

import (
	"context"
	"sync"
	"time"

	"github.com/dynconf/dynconf/pkg/device"
	"github.com/dynconf/dynconf/pkg/render"
	"github.com/dynconf/dynconf/pkg/session"
	"github.com/dynconf/dynconf/pkg/util"
)

// Mode selects what happens after rendering.
type Mode string

const (
	// ModeConfigure sends the rendered commands inside the platform's
	// configuration mode. The default, and the system's primary effect.
	ModeConfigure Mode = "configure"
	// ModeShow sends the rendered commands as-is and captures output.
	ModeShow Mode = "show"
	// ModeRender writes rendered configs to disk without connecting.
	ModeRender Mode = "render"
)

// ValidMode reports whether m names a known mode.
func ValidMode(m Mode) bool {
	return m == ModeConfigure || m == ModeShow || m == ModeRender
}

// Status is a device's position in its pipeline state machine:
//
//	Pending → Rendering → (RenderFailed | Rendered)
//	        → Connecting → (ConnectFailed | Connected)
//	        → Sending → (SendFailed | Completed)
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusRendering     Status = "RENDERING"
	StatusRenderFailed  Status = "RENDER_FAILED"
	StatusRendered      Status = "RENDERED"
	StatusConnecting    Status = "CONNECTING"
	StatusConnectFailed Status = "CONNECT_FAILED"
	StatusConnected     Status = "CONNECTED"
	StatusSending       Status = "SENDING"
	StatusSendFailed    Status = "SEND_FAILED"
	StatusCompleted     Status = "COMPLETED"
)

// Failed reports whether the status is a failure terminal state.
func (s Status) Failed() bool {
	switch s {
	case StatusRenderFailed, StatusConnectFailed, StatusSendFailed:
		return true
	}
	return false
}

// Result is the recorded outcome for one device.
type Result struct {
	Device   *device.Device
	Status   Status
	Commands []string // rendered command sequence
	Outputs  []session.CommandResult
	Err      error
	Duration time.Duration
}

// Summary aggregates every device's outcome, in data-file order.
type Summary struct {
	Results   []*Result
	Skipped   []SkippedRecord
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// OK reports whether every device completed (skipped records count as
// failures for the exit code, since the operator asked for them).
func (s *Summary) OK() bool {
	return s.Failed == 0 && len(s.Skipped) == 0
}

// Runner executes the per-device pipeline over an environment.
type Runner struct {
	Env      *Environment
	Renderer *render.Renderer
	Dialer   session.Dialer
	Mode     Mode

	// Workers bounds concurrent devices. 1 (the default) preserves
	// strict data-file-order processing.
	Workers int

	Progress ProgressReporter
}

// Run processes every device and returns the summary. Devices are
// independent: any one device's failure is recorded and the rest proceed.
func (r *Runner) Run(ctx context.Context) *Summary {
	devices := r.Env.Devices
	progress := r.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(devices) {
		workers = len(devices)
	}

	progress.RunStart(devices, r.Mode)
	start := time.Now()

	// Results land at the device's own index, so the summary keeps
	// data-file order no matter how workers are scheduled.
	results := make([]*Result, len(devices))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex // serializes progress callbacks
	done := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := r.processDevice(ctx, devices[i])
				results[i] = res
				mu.Lock()
				done++
				progress.DeviceEnd(res, done, len(devices))
				mu.Unlock()
			}
		}()
	}
	for i := range devices {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	summary := &Summary{
		Results:  results,
		Skipped:  r.Env.Skipped,
		Duration: time.Since(start),
	}
	for _, res := range results {
		if res.Status == StatusCompleted {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	progress.RunEnd(summary)
	return summary
}

// processDevice walks one device through the state machine. Every failure
// is terminal for this device only.
func (r *Runner) processDevice(ctx context.Context, dev *device.Device) *Result {
	res := &Result{Device: dev, Status: StatusPending}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()
	log := util.WithDevice(dev.ID)

	res.Status = StatusRendering
	commands, err := r.Renderer.Commands(dev.Template, dev.Extra.Map())
	if err != nil {
		log.Debugf("render failed: %v", err)
		res.Status, res.Err = StatusRenderFailed, err
		return res
	}
	res.Status = StatusRendered
	res.Commands = commands
	log.Debugf("rendered %d commands from %s", len(commands), dev.Template)

	if r.Mode == ModeRender {
		res.Status = StatusCompleted
		return res
	}

	res.Status = StatusConnecting
	sess, err := r.Dialer.Open(ctx, session.Params{
		Host:       dev.Host,
		DeviceType: dev.DeviceType,
		Username:   dev.Username,
		Password:   dev.Password,
		Port:       dev.Port,
		Secret:     dev.Secret,
	})
	if err != nil {
		log.Debugf("connect failed: %v", err)
		res.Status, res.Err = StatusConnectFailed, err
		return res
	}
	defer sess.Close()
	res.Status = StatusConnected

	toSend := commands
	if r.Mode == ModeConfigure {
		toSend = session.PlatformFor(dev.DeviceType).WrapConfig(commands)
	}

	res.Status = StatusSending
	outputs, err := sess.Send(ctx, toSend)
	res.Outputs = outputs
	if err != nil {
		log.Debugf("send failed: %v", err)
		res.Status, res.Err = StatusSendFailed, err
		return res
	}

	res.Status = StatusCompleted
	return res
}
