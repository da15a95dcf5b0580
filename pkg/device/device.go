// Package device normalizes raw data-file records into device descriptors.
package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dynconf/dynconf/pkg/loader"
	"github.com/dynconf/dynconf/pkg/util"
)

// Built-in defaults for special fields, matching the documented behavior.
const (
	DefaultUsername = "admin"
	DefaultPassword = "Password1"
	DefaultPort     = 22
	DefaultTemplate = "template.j2"

	// telnetPort is substituted for an unset port when the device type
	// names a telnet transport.
	telnetPort = 23
)

// Device is one normalized device record: connection parameters plus the
// residual template variables. Connection fields are internal scope — they
// are never exposed to templates.
type Device struct {
	ID         string // reporting only, defaults to Host
	Host       string
	DeviceType string
	Username   string
	Password   string
	Port       int
	Secret     string
	Template   string

	// Extra holds every data-file field outside the special set, under
	// the original names and in the original order.
	Extra *loader.Record
}

// Defaults supplies run-wide fallbacks for the optional special fields.
// Zero values fall back to the package constants.
type Defaults struct {
	Username string
	Password string
	Secret   string
	Template string
}

// New builds a Device from one raw record. pos is the record's 1-based
// position in the data file, used in validation errors. The raw record is
// consumed: special fields are removed and the remainder becomes Extra.
func New(raw *loader.Record, pos int, defaults Defaults) (*Device, error) {
	host := takeString(raw, "host")
	if host == "" {
		return nil, &util.ValidationError{Position: pos, Field: "host"}
	}
	deviceType := takeString(raw, "device_type")
	if deviceType == "" {
		return nil, &util.ValidationError{Position: pos, Field: "device_type"}
	}

	d := &Device{
		Host:       host,
		DeviceType: deviceType,
		ID:         takeString(raw, "id"),
		Username:   takeString(raw, "username"),
		Password:   takeString(raw, "password"),
		Secret:     takeString(raw, "secret"),
		Template:   takeString(raw, "template"),
		Extra:      raw,
	}

	port, set, err := takePort(raw)
	if err != nil {
		return nil, fmt.Errorf("record %d (%s): %w", pos, host, err)
	}

	if d.ID == "" {
		d.ID = d.Host
	}
	if d.Username == "" {
		d.Username = defaultOr(defaults.Username, DefaultUsername)
	}
	if d.Password == "" {
		d.Password = defaultOr(defaults.Password, DefaultPassword)
	}
	if d.Secret == "" {
		d.Secret = defaults.Secret
	}
	if d.Template == "" {
		d.Template = defaultOr(defaults.Template, DefaultTemplate)
	}

	switch {
	case set:
		d.Port = port
	case strings.Contains(d.DeviceType, "telnet"):
		d.Port = telnetPort
	default:
		d.Port = DefaultPort
	}

	return d, nil
}

// Addr returns the host:port dial address.
func (d *Device) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

func defaultOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// takeString removes key from the record and returns its string form.
// Non-string scalars (YAML may parse ports or IDs as numbers) are
// formatted; absent keys return "".
func takeString(r *loader.Record, key string) string {
	v, ok := r.Delete(key)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// takePort removes the port field and parses it. Returns set=false when
// the field was absent or empty.
func takePort(r *loader.Record) (port int, set bool, err error) {
	v, ok := r.Delete("port")
	if !ok || v == nil {
		return 0, false, nil
	}
	switch p := v.(type) {
	case int:
		return p, true, nil
	case string:
		if p == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, false, fmt.Errorf("invalid port %q", p)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("invalid port %v", v)
	}
}
