package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/dynconf/dynconf/pkg/util"
)

// Timeouts for the SSH dialogue. Connect matches the conventional
// ConnectTimeout=10; command reads get longer since slow devices echo
// large command sets back at line speed.
const (
	connectTimeout = 10 * time.Second
	commandTimeout = 30 * time.Second
)

// errorMarkers are output substrings that indicate the device rejected a
// command. Shared across the IOS-like platforms; harmless elsewhere.
var errorMarkers = []string{
	"% Invalid input",
	"% Incomplete command",
	"% Ambiguous command",
	"% Unknown command",
	"syntax error",
	"unknown command",
}

// SSHDialer opens interactive shell sessions over SSH with password
// authentication.
type SSHDialer struct{}

// NewSSHDialer creates the production SSH dialer.
func NewSSHDialer() *SSHDialer {
	return &SSHDialer{}
}

// Open dials the device, starts a shell, disables paging, and enters
// privileged mode when the platform requires it and a secret is set.
func (d *SSHDialer) Open(ctx context.Context, p Params) (Session, error) {
	if strings.Contains(p.DeviceType, "telnet") {
		return nil, &util.ConnectError{
			Host: p.Host,
			Err:  fmt.Errorf("device type %q requires a telnet transport, which this dialer does not provide", p.DeviceType),
		}
	}

	config := &ssh.ClientConfig{
		User: p.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(p.Password),
		},
		// Bulk provisioning runs against devices whose host keys are not
		// pre-distributed; key verification would need an out-of-band
		// inventory this tool does not have.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, &util.ConnectError{Host: p.Host, Err: err}
	}

	s := &sshSession{
		host:     p.Host,
		client:   client,
		platform: PlatformFor(p.DeviceType),
		output:   make(chan []byte, 16),
	}

	if err := s.startShell(); err != nil {
		client.Close()
		return nil, &util.ConnectError{Host: p.Host, Err: err}
	}

	if err := s.setup(ctx, p.Secret); err != nil {
		s.Close()
		return nil, &util.ConnectError{Host: p.Host, Err: err}
	}

	return s, nil
}

// sshSession drives an interactive remote shell: write a command, read
// until the device prompt reappears, repeat.
type sshSession struct {
	host     string
	client   *ssh.Client
	shell    *ssh.Session
	stdin    io.WriteCloser
	output   chan []byte
	pending  bytes.Buffer
	platform Platform
}

func (s *sshSession) startShell() error {
	shell, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("opening shell session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 115200,
		ssh.TTY_OP_OSPEED: 115200,
	}
	if err := shell.RequestPty("vt100", 0, 512, modes); err != nil {
		shell.Close()
		return fmt.Errorf("requesting pty: %w", err)
	}

	stdin, err := shell.StdinPipe()
	if err != nil {
		shell.Close()
		return err
	}
	stdout, err := shell.StdoutPipe()
	if err != nil {
		shell.Close()
		return err
	}

	if err := shell.Shell(); err != nil {
		shell.Close()
		return fmt.Errorf("starting shell: %w", err)
	}

	s.shell = shell
	s.stdin = stdin
	go s.pump(stdout)
	return nil
}

// pump feeds shell output to the session's channel until EOF.
func (s *sshSession) pump(r io.Reader) {
	defer close(s.output)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.output <- chunk
		}
		if err != nil {
			return
		}
	}
}

// setup consumes the login banner, disables paging, and enters privileged
// mode using the secret when the platform calls for it.
func (s *sshSession) setup(ctx context.Context, secret string) error {
	if _, err := s.readUntilPrompt(ctx); err != nil {
		return fmt.Errorf("waiting for initial prompt: %w", err)
	}

	if s.platform.EnableRequired && secret != "" {
		if err := s.enterEnable(ctx, secret); err != nil {
			return err
		}
	}

	if s.platform.DisablePaging != "" {
		if _, err := s.exchange(ctx, s.platform.DisablePaging); err != nil {
			return fmt.Errorf("disabling paging: %w", err)
		}
	}
	return nil
}

// enterEnable runs the privileged-mode dialogue: send the enable command,
// answer the password challenge with the secret if one appears.
func (s *sshSession) enterEnable(ctx context.Context, secret string) error {
	if err := s.write(s.platform.EnableCommand); err != nil {
		return err
	}
	out, err := s.readUntil(ctx, append(s.platform.PromptSuffixes, "assword:"))
	if err != nil {
		return fmt.Errorf("entering privileged mode: %w", err)
	}
	if strings.HasSuffix(strings.TrimRight(out, " "), "assword:") {
		if err := s.write(secret); err != nil {
			return err
		}
		if _, err := s.readUntilPrompt(ctx); err != nil {
			return fmt.Errorf("privileged mode authentication: %w", err)
		}
	}
	return nil
}

// Send transmits commands in order, collecting each command's output. The
// first rejected command aborts the remainder.
func (s *sshSession) Send(ctx context.Context, commands []string) ([]CommandResult, error) {
	results := make([]CommandResult, 0, len(commands))
	for _, cmd := range commands {
		out, err := s.exchange(ctx, cmd)
		if err != nil {
			return results, &util.CommandError{Command: cmd, Output: out, Err: err}
		}
		results = append(results, CommandResult{Command: cmd, Output: out})
		if marker := rejectionMarker(out); marker != "" {
			return results, &util.CommandError{
				Command: cmd,
				Output:  out,
				Err:     fmt.Errorf("device reported %q", marker),
			}
		}
	}
	return results, nil
}

// Close tears down the shell and the SSH connection.
func (s *sshSession) Close() error {
	if s.stdin != nil {
		// Best effort: let the device close the line cleanly.
		fmt.Fprintf(s.stdin, "exit\n")
		s.stdin.Close()
	}
	if s.shell != nil {
		s.shell.Close()
	}
	return s.client.Close()
}

// exchange writes one command and reads until the prompt returns. The
// echoed command line and the trailing prompt are stripped from the output.
func (s *sshSession) exchange(ctx context.Context, cmd string) (string, error) {
	if err := s.write(cmd); err != nil {
		return "", err
	}
	raw, err := s.readUntilPrompt(ctx)
	if err != nil {
		return raw, err
	}
	return cleanOutput(raw, cmd), nil
}

func (s *sshSession) write(line string) error {
	_, err := s.stdin.Write([]byte(line + "\n"))
	if err != nil {
		return fmt.Errorf("writing to %s: %w", s.host, err)
	}
	return nil
}

func (s *sshSession) readUntilPrompt(ctx context.Context) (string, error) {
	return s.readUntil(ctx, s.platform.PromptSuffixes)
}

// readUntil accumulates output until the last line ends with one of the
// given suffixes, the command timeout elapses, or the context is canceled.
func (s *sshSession) readUntil(ctx context.Context, suffixes []string) (string, error) {
	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()

	if promptReached(s.pending.String(), suffixes) {
		out := s.pending.String()
		s.pending.Reset()
		return out, nil
	}

	for {
		select {
		case chunk, ok := <-s.output:
			if !ok {
				return s.pending.String(), fmt.Errorf("connection to %s closed", s.host)
			}
			s.pending.Write(chunk)
			if promptReached(s.pending.String(), suffixes) {
				out := s.pending.String()
				s.pending.Reset()
				return out, nil
			}
		case <-timer.C:
			return s.pending.String(), fmt.Errorf("timed out waiting for prompt from %s", s.host)
		case <-ctx.Done():
			return s.pending.String(), ctx.Err()
		}
	}
}

// promptReached reports whether the trailing line of buffered output looks
// like a device prompt.
func promptReached(buffered string, suffixes []string) bool {
	trimmed := strings.TrimRight(buffered, " \t")
	if trimmed == "" {
		return false
	}
	if idx := strings.LastIndexByte(trimmed, '\n'); idx >= 0 {
		last := strings.TrimSpace(trimmed[idx+1:])
		if last == "" {
			return false
		}
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimRight(trimmed, " \t")
	for _, suffix := range suffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}

// cleanOutput strips the echoed command from the front and the prompt
// line from the back of raw shell output.
func cleanOutput(raw, cmd string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) > 0 && strings.Contains(lines[0], cmd) {
		lines = lines[1:]
	}
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// rejectionMarker returns the error marker found in output, or "".
func rejectionMarker(output string) string {
	for _, marker := range errorMarkers {
		if strings.Contains(output, marker) {
			return marker
		}
	}
	return ""
}
