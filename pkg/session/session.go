// Package session provides the remote-device session capability: open a
// connection, send commands in order, collect per-command output, close.
package session

import (
	"context"
	"strings"
)

// Params are the connection parameters for one device. DeviceType is the
// vendor/platform identifier and selects the command dialogue (prompt
// handling, paging, privileged mode); it is otherwise opaque to callers.
type Params struct {
	Host       string
	DeviceType string
	Username   string
	Password   string
	Port       int
	Secret     string
}

// CommandResult pairs a sent command with the output the device returned.
type CommandResult struct {
	Command string `json:"in"`
	Output  string `json:"out"`
}

// Session is an open device connection.
type Session interface {
	// Send transmits commands in order and returns per-command output.
	// On a rejected command it returns the results collected so far
	// together with a CommandError; no further commands are sent.
	Send(ctx context.Context, commands []string) ([]CommandResult, error)
	Close() error
}

// Dialer opens sessions. The SSH implementation is the production dialer;
// tests substitute an in-memory one.
type Dialer interface {
	Open(ctx context.Context, p Params) (Session, error)
}

// Platform describes the command dialogue for a device type, in the style
// of per-platform SSH adaptation tables: prompt detection, paging,
// privileged-mode entry, and configuration-mode wrapping.
type Platform struct {
	PromptSuffixes []string
	DisablePaging  string
	EnableCommand  string
	EnableRequired bool
	ConfigEnter    string
	ConfigExit     string
}

var platforms = map[string]Platform{
	"cisco_ios": {
		PromptSuffixes: []string{"#", ">"},
		DisablePaging:  "terminal length 0",
		EnableCommand:  "enable",
		EnableRequired: true,
		ConfigEnter:    "configure terminal",
		ConfigExit:     "end",
	},
	"cisco_xe": {
		PromptSuffixes: []string{"#", ">"},
		DisablePaging:  "terminal length 0",
		EnableCommand:  "enable",
		EnableRequired: true,
		ConfigEnter:    "configure terminal",
		ConfigExit:     "end",
	},
	"cisco_nxos": {
		PromptSuffixes: []string{"#", ">"},
		DisablePaging:  "terminal length 0",
		ConfigEnter:    "configure terminal",
		ConfigExit:     "end",
	},
	"arista_eos": {
		PromptSuffixes: []string{"#", ">"},
		DisablePaging:  "terminal length 0",
		EnableCommand:  "enable",
		EnableRequired: true,
		ConfigEnter:    "configure terminal",
		ConfigExit:     "end",
	},
	"juniper_junos": {
		PromptSuffixes: []string{"#", ">", "%"},
		DisablePaging:  "set cli screen-length 0",
		ConfigEnter:    "configure",
		ConfigExit:     "commit and-quit",
	},
}

// defaultPlatform is used for unrecognized device types: generic prompt
// detection, no paging or privileged-mode handling.
var defaultPlatform = Platform{
	PromptSuffixes: []string{"#", ">", "$", "%"},
}

// PlatformFor returns the dialogue profile for a device type. Telnet
// variants ("cisco_ios_telnet") share their SSH platform's profile.
func PlatformFor(deviceType string) Platform {
	name := strings.TrimSuffix(deviceType, "_telnet")
	if p, ok := platforms[name]; ok {
		return p
	}
	return defaultPlatform
}

// WrapConfig surrounds commands with the platform's configuration-mode
// entry and exit, when the platform defines them.
func (p Platform) WrapConfig(commands []string) []string {
	if p.ConfigEnter == "" {
		return commands
	}
	wrapped := make([]string, 0, len(commands)+2)
	wrapped = append(wrapped, p.ConfigEnter)
	wrapped = append(wrapped, commands...)
	wrapped = append(wrapped, p.ConfigExit)
	return wrapped
}
