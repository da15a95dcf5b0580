package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dynconf/dynconf/internal/testutil"
	"github.com/dynconf/dynconf/pkg/device"
	"github.com/dynconf/dynconf/pkg/render"
	"github.com/dynconf/dynconf/pkg/util"
)

// Helper to create a working dir with a data file and template
func fixture(t *testing.T, dataName, data, template string) (dataFile string, tmplDir string) {
	t.Helper()
	dir := t.TempDir()
	dataFile = filepath.Join(dir, dataName)
	if err := os.WriteFile(dataFile, []byte(data), 0o644); err != nil {
		t.Fatalf("writing data file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "template.j2"), []byte(template), 0o644); err != nil {
		t.Fatalf("writing template: %v", err)
	}
	return dataFile, dir
}

const loopbackTemplate = "interface Loopback0\n ip address {{ new_loopback_ip }} 255.255.255.255\n"

const loopbackCSV = "host,device_type,new_loopback_ip\n" +
	"switch1,cisco_ios,10.255.255.11\n" +
	"switch2,cisco_ios,10.255.255.12\n"

func newRunner(t *testing.T, dataFile, tmplDir string, dialer *testutil.FakeDialer, mode Mode) *Runner {
	t.Helper()
	env, err := NewEnvironment(dataFile, Options{})
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	renderer, err := render.New(tmplDir)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	return &Runner{
		Env:      env,
		Renderer: renderer,
		Dialer:   dialer,
		Mode:     mode,
	}
}

func TestRunEndToEnd(t *testing.T) {
	dataFile, tmplDir := fixture(t, "devices.csv", loopbackCSV, loopbackTemplate)
	dialer := testutil.NewFakeDialer()
	summary := newRunner(t, dataFile, tmplDir, dialer, ModeConfigure).Run(context.Background())

	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %d succeeded, %d failed", summary.Succeeded, summary.Failed)
	}
	if !summary.OK() {
		t.Error("summary.OK() = false")
	}

	// Rendered commands per device, before config-mode wrapping
	wantRendered := map[string][]string{
		"switch1": {"interface Loopback0", " ip address 10.255.255.11 255.255.255.255"},
		"switch2": {"interface Loopback0", " ip address 10.255.255.12 255.255.255.255"},
	}
	for _, res := range summary.Results {
		if !reflect.DeepEqual(res.Commands, wantRendered[res.Device.Host]) {
			t.Errorf("%s rendered = %q, want %q", res.Device.Host, res.Commands, wantRendered[res.Device.Host])
		}
		if res.Status != StatusCompleted {
			t.Errorf("%s status = %s", res.Device.Host, res.Status)
		}
	}

	// Sent commands are wrapped in config mode, in rendered order
	sent := dialer.SentTo("switch1")
	if len(sent) != 1 {
		t.Fatalf("switch1 got %d batches", len(sent))
	}
	want := []string{
		"configure terminal",
		"interface Loopback0",
		" ip address 10.255.255.11 255.255.255.255",
		"end",
	}
	if !reflect.DeepEqual(sent[0], want) {
		t.Errorf("switch1 sent = %q, want %q", sent[0], want)
	}

	// Connection parameters flow from the record with defaults applied
	if len(dialer.Opened) != 2 {
		t.Fatalf("opened %d sessions, want 2", len(dialer.Opened))
	}
	p := dialer.Opened[0]
	if p.Username != device.DefaultUsername || p.Port != device.DefaultPort {
		t.Errorf("params = %+v, defaults not applied", p)
	}
}

func TestRunConnectFailureIsolation(t *testing.T) {
	data := "host,device_type,new_loopback_ip\n" +
		"switch1,cisco_ios,10.255.255.11\n" +
		"unreachable,cisco_ios,10.255.255.12\n" +
		"switch3,cisco_ios,10.255.255.13\n"
	dataFile, tmplDir := fixture(t, "devices.csv", data, loopbackTemplate)

	dialer := testutil.NewFakeDialer()
	dialer.RefuseHosts["unreachable"] = "connection refused"
	summary := newRunner(t, dataFile, tmplDir, dialer, ModeConfigure).Run(context.Background())

	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %d succeeded, %d failed; want 2/1", summary.Succeeded, summary.Failed)
	}

	// Results stay in data-file order and only device 2 failed
	statuses := []Status{}
	for _, res := range summary.Results {
		statuses = append(statuses, res.Status)
	}
	want := []Status{StatusCompleted, StatusConnectFailed, StatusCompleted}
	if !reflect.DeepEqual(statuses, want) {
		t.Errorf("statuses = %v, want %v", statuses, want)
	}
	if !errors.Is(summary.Results[1].Err, util.ErrConnect) {
		t.Errorf("failed device error = %v, want ErrConnect", summary.Results[1].Err)
	}
}

func TestRunRenderFailureIsolation(t *testing.T) {
	// switch2's record lacks the variable the template references
	data := `
- host: switch1
  device_type: cisco_ios
  new_loopback_ip: 10.255.255.11
- host: switch2
  device_type: cisco_ios
`
	dataFile, tmplDir := fixture(t, "devices.yaml", data, loopbackTemplate)

	dialer := testutil.NewFakeDialer()
	summary := newRunner(t, dataFile, tmplDir, dialer, ModeConfigure).Run(context.Background())

	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %d succeeded, %d failed; want 1/1", summary.Succeeded, summary.Failed)
	}
	res := summary.Results[1]
	if res.Status != StatusRenderFailed {
		t.Errorf("switch2 status = %s, want RENDER_FAILED", res.Status)
	}
	if !errors.Is(res.Err, util.ErrRender) {
		t.Errorf("switch2 error = %v, want ErrRender", res.Err)
	}
	// The failing device never got a connection
	if len(dialer.SentTo("switch2")) != 0 {
		t.Error("render-failed device received commands")
	}
}

func TestRunCommandRejectionIsolation(t *testing.T) {
	dataFile, tmplDir := fixture(t, "devices.csv", loopbackCSV, loopbackTemplate)
	dialer := testutil.NewFakeDialer()
	dialer.RejectCommand["switch1"] = " ip address 10.255.255.11 255.255.255.255"
	summary := newRunner(t, dataFile, tmplDir, dialer, ModeConfigure).Run(context.Background())

	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %d succeeded, %d failed; want 1/1", summary.Succeeded, summary.Failed)
	}
	res := summary.Results[0]
	if res.Status != StatusSendFailed {
		t.Errorf("switch1 status = %s, want SEND_FAILED", res.Status)
	}
	if !errors.Is(res.Err, util.ErrCommand) {
		t.Errorf("switch1 error = %v, want ErrCommand", res.Err)
	}
	// Partial output up to the rejected command is preserved
	if len(res.Outputs) != 2 { // "configure terminal" + "interface Loopback0"
		t.Errorf("partial outputs = %d, want 2", len(res.Outputs))
	}
}

func TestRunRenderModeDoesNotConnect(t *testing.T) {
	dataFile, tmplDir := fixture(t, "devices.csv", loopbackCSV, loopbackTemplate)
	dialer := testutil.NewFakeDialer()
	summary := newRunner(t, dataFile, tmplDir, dialer, ModeRender).Run(context.Background())

	if summary.Succeeded != 2 {
		t.Fatalf("summary = %d succeeded, want 2", summary.Succeeded)
	}
	if len(dialer.Opened) != 0 {
		t.Errorf("render mode opened %d sessions", len(dialer.Opened))
	}
}

func TestRunShowModeSendsUnwrapped(t *testing.T) {
	dataFile, tmplDir := fixture(t, "devices.csv",
		"host,device_type,target\nswitch1,cisco_ios,10.0.0.1\n",
		"show ip route {{ target }}\n")
	dialer := testutil.NewFakeDialer()
	summary := newRunner(t, dataFile, tmplDir, dialer, ModeShow).Run(context.Background())

	if summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	sent := dialer.SentTo("switch1")
	if !reflect.DeepEqual(sent[0], []string{"show ip route 10.0.0.1"}) {
		t.Errorf("show mode sent = %q", sent[0])
	}
	if got := summary.Results[0].Outputs[0].Output; got != "ok: show ip route 10.0.0.1" {
		t.Errorf("captured output = %q", got)
	}
}

func TestRunParallelPreservesOrderAndIsolation(t *testing.T) {
	data := "host,device_type,new_loopback_ip\n"
	hosts := []string{"d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8"}
	for i, h := range hosts {
		data += h + ",cisco_ios,10.0.0." + string(rune('1'+i)) + "\n"
	}
	dataFile, tmplDir := fixture(t, "devices.csv", data, loopbackTemplate)

	dialer := testutil.NewFakeDialer()
	dialer.RefuseHosts["d4"] = "no route to host"
	runner := newRunner(t, dataFile, tmplDir, dialer, ModeConfigure)
	runner.Workers = 4
	summary := runner.Run(context.Background())

	if summary.Succeeded != 7 || summary.Failed != 1 {
		t.Fatalf("summary = %d/%d, want 7/1", summary.Succeeded, summary.Failed)
	}
	// Results indexed by data-file position regardless of scheduling
	for i, res := range summary.Results {
		if res.Device.Host != hosts[i] {
			t.Errorf("result %d = %s, want %s", i, res.Device.Host, hosts[i])
		}
	}
	if summary.Results[3].Status != StatusConnectFailed {
		t.Errorf("d4 status = %s", summary.Results[3].Status)
	}
	// Each device got exactly its own single batch
	for _, h := range hosts {
		if h == "d4" {
			continue
		}
		if batches := dialer.SentTo(h); len(batches) != 1 {
			t.Errorf("%s received %d batches", h, len(batches))
		}
	}
}

func TestNewEnvironmentValidationPolicy(t *testing.T) {
	data := "host,device_type\nswitch1,cisco_ios\n,cisco_ios\n"
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "devices.csv")
	if err := os.WriteFile(dataFile, []byte(data), 0o644); err != nil {
		t.Fatalf("writing data file: %v", err)
	}

	// Default policy: the whole run fails before any device is touched
	_, err := NewEnvironment(dataFile, Options{})
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("NewEnvironment error = %v, want ErrValidation", err)
	}

	// skip-invalid: the bad record is dropped and reported
	env, err := NewEnvironment(dataFile, Options{SkipInvalid: true})
	if err != nil {
		t.Fatalf("NewEnvironment(skip): %v", err)
	}
	if len(env.Devices) != 1 || len(env.Skipped) != 1 {
		t.Fatalf("devices=%d skipped=%d, want 1/1", len(env.Devices), len(env.Skipped))
	}
	if env.Skipped[0].Position != 2 {
		t.Errorf("skipped position = %d, want 2", env.Skipped[0].Position)
	}
}
