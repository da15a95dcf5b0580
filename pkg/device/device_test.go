package device

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dynconf/dynconf/pkg/loader"
	"github.com/dynconf/dynconf/pkg/util"
)

// Helper to build a raw record from key/value pairs
func rawRecord(t *testing.T, pairs ...any) *loader.Record {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("rawRecord needs key/value pairs")
	}
	rec := loader.NewRecord()
	for i := 0; i < len(pairs); i += 2 {
		rec.Set(pairs[i].(string), pairs[i+1])
	}
	return rec
}

func TestNewRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		raw     *loader.Record
		missing string
	}{
		{"no host", rawRecord(t, "device_type", "cisco_ios"), "host"},
		{"empty host", rawRecord(t, "host", "", "device_type", "cisco_ios"), "host"},
		{"no device_type", rawRecord(t, "host", "switch1"), "device_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.raw, 3, Defaults{})
			if !errors.Is(err, util.ErrValidation) {
				t.Fatalf("New() error = %v, want ErrValidation", err)
			}
			var verr *util.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a *ValidationError", err)
			}
			if verr.Field != tt.missing {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.missing)
			}
			if verr.Position != 3 {
				t.Errorf("ValidationError.Position = %d, want 3", verr.Position)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	d, err := New(rawRecord(t, "host", "switch1", "device_type", "cisco_ios"), 1, Defaults{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.ID != "switch1" {
		t.Errorf("ID = %q, want host", d.ID)
	}
	if d.Username != DefaultUsername {
		t.Errorf("Username = %q, want %q", d.Username, DefaultUsername)
	}
	if d.Password != DefaultPassword {
		t.Errorf("Password = %q, want %q", d.Password, DefaultPassword)
	}
	if d.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", d.Port, DefaultPort)
	}
	if d.Secret != "" {
		t.Errorf("Secret = %q, want empty", d.Secret)
	}
	if d.Template != DefaultTemplate {
		t.Errorf("Template = %q, want %q", d.Template, DefaultTemplate)
	}
}

func TestNewRunDefaultsOverrideBuiltins(t *testing.T) {
	defaults := Defaults{Username: "ops", Password: "hunter2", Secret: "en", Template: "base.j2"}
	d, err := New(rawRecord(t, "host", "switch1", "device_type", "cisco_ios"), 1, defaults)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Username != "ops" || d.Password != "hunter2" || d.Secret != "en" || d.Template != "base.j2" {
		t.Errorf("run defaults not applied: %+v", d)
	}
}

func TestNewRecordFieldsWinOverDefaults(t *testing.T) {
	raw := rawRecord(t,
		"host", "switch1",
		"device_type", "cisco_ios",
		"id", "edge-1",
		"username", "local",
		"password", "pw",
		"port", "2222",
		"secret", "s3",
		"template", "edge.j2",
	)
	d, err := New(raw, 1, Defaults{Username: "ops"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.ID != "edge-1" || d.Username != "local" || d.Password != "pw" ||
		d.Port != 2222 || d.Secret != "s3" || d.Template != "edge.j2" {
		t.Errorf("record fields not applied: %+v", d)
	}
}

func TestNewExtraFields(t *testing.T) {
	raw := rawRecord(t,
		"host", "switch1",
		"device_type", "cisco_ios",
		"username", "ops",
		"new_loopback_ip", "10.255.255.11",
		"vlan", 100,
	)
	d, err := New(raw, 1, Defaults{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Extras verbatim, in original order
	if got := d.Extra.Keys(); !reflect.DeepEqual(got, []string{"new_loopback_ip", "vlan"}) {
		t.Errorf("Extra.Keys = %v", got)
	}
	if v, _ := d.Extra.Get("new_loopback_ip"); v != "10.255.255.11" {
		t.Errorf("new_loopback_ip = %v", v)
	}
	if v, _ := d.Extra.Get("vlan"); v != 100 {
		t.Errorf("vlan = %v (%T), want 100", v, v)
	}

	// Special fields must not leak into templates
	for _, key := range []string{"host", "device_type", "id", "username", "password", "port", "secret", "template"} {
		if _, ok := d.Extra.Get(key); ok {
			t.Errorf("special field %q leaked into Extra", key)
		}
	}
}

func TestNewPortHandling(t *testing.T) {
	tests := []struct {
		name string
		raw  *loader.Record
		want int
	}{
		{"int port", rawRecord(t, "host", "h", "device_type", "cisco_ios", "port", 830), 830},
		{"string port", rawRecord(t, "host", "h", "device_type", "cisco_ios", "port", "2022"), 2022},
		{"telnet default", rawRecord(t, "host", "h", "device_type", "cisco_ios_telnet"), 23},
		{"telnet explicit", rawRecord(t, "host", "h", "device_type", "cisco_ios_telnet", "port", 2023), 2023},
		{"ssh default", rawRecord(t, "host", "h", "device_type", "cisco_ios"), 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.raw, 1, Defaults{})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if d.Port != tt.want {
				t.Errorf("Port = %d, want %d", d.Port, tt.want)
			}
		})
	}

	if _, err := New(rawRecord(t, "host", "h", "device_type", "d", "port", "abc"), 1, Defaults{}); err == nil {
		t.Error("New with bad port did not fail")
	}
}

func TestNewIsDeterministic(t *testing.T) {
	build := func() *Device {
		d, err := New(rawRecord(t, "host", "h", "device_type", "d", "x", "1"), 1, Defaults{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return d
	}
	a, b := build(), build()
	if a.Addr() != b.Addr() || !reflect.DeepEqual(a.Extra.Map(), b.Extra.Map()) {
		t.Error("New is not deterministic")
	}
}
