// Package testutil provides in-memory test doubles for the session layer.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/dynconf/dynconf/pkg/session"
	"github.com/dynconf/dynconf/pkg/util"
)

// FakeDialer is an in-memory session.Dialer. Hosts listed in RefuseHosts
// fail to connect; hosts listed in RejectCommand reject that command
// mid-session. Everything else echoes canned output per command.
type FakeDialer struct {
	mu sync.Mutex

	// RefuseHosts maps host → connect error message.
	RefuseHosts map[string]string

	// RejectCommand maps host → command string that the fake device
	// rejects.
	RejectCommand map[string]string

	// Opened records the params of every successful Open, in call order.
	Opened []session.Params

	// Sent records every command sequence sent, keyed by host.
	Sent map[string][][]string
}

// NewFakeDialer creates an empty fake.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		RefuseHosts:   map[string]string{},
		RejectCommand: map[string]string{},
		Sent:          map[string][][]string{},
	}
}

func (d *FakeDialer) Open(ctx context.Context, p session.Params) (session.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if msg, ok := d.RefuseHosts[p.Host]; ok {
		return nil, &util.ConnectError{Host: p.Host, Err: fmt.Errorf("%s", msg)}
	}
	d.Opened = append(d.Opened, p)
	return &fakeSession{dialer: d, params: p}, nil
}

// SentTo returns the command batches sent to host.
func (d *FakeDialer) SentTo(host string) [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Sent[host]
}

type fakeSession struct {
	dialer *FakeDialer
	params session.Params
	closed bool
}

func (s *fakeSession) Send(ctx context.Context, commands []string) ([]session.CommandResult, error) {
	s.dialer.mu.Lock()
	reject := s.dialer.RejectCommand[s.params.Host]
	batch := make([]string, len(commands))
	copy(batch, commands)
	s.dialer.Sent[s.params.Host] = append(s.dialer.Sent[s.params.Host], batch)
	s.dialer.mu.Unlock()

	var results []session.CommandResult
	for _, cmd := range commands {
		if reject != "" && cmd == reject {
			return results, &util.CommandError{
				Command: cmd,
				Err:     fmt.Errorf("device reported %q", "% Invalid input"),
			}
		}
		results = append(results, session.CommandResult{
			Command: cmd,
			Output:  "ok: " + cmd,
		})
	}
	return results, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}
