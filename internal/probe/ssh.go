package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHProber runs bash /dev/tcp and /dev/udp probes on client hosts.
// One SSH connection per client is opened lazily and shared by its checks.
type SSHProber struct {
	dialTimeout time.Duration
	slack       time.Duration

	mu    sync.Mutex
	conns map[string]*sshConn
	agent net.Conn // shared SSH agent connection, dialed on first use
}

type sshConn struct {
	once    sync.Once
	client  *ssh.Client
	bastion *ssh.Client
	err     error
}

// SSHOption is a functional option for configuring SSHProber
type SSHOption func(*SSHProber)

// WithDialTimeout sets the SSH connect timeout
func WithDialTimeout(d time.Duration) SSHOption {
	return func(s *SSHProber) {
		s.dialTimeout = d
	}
}

// WithCommandSlack sets how long past the check timeout a remote command may run
func WithCommandSlack(d time.Duration) SSHOption {
	return func(s *SSHProber) {
		s.slack = d
	}
}

// NewSSHProber creates an SSHProber
func NewSSHProber(opts ...SSHOption) *SSHProber {
	s := &SSHProber{
		dialTimeout: 10 * time.Second,
		slack:       5 * time.Second,
		conns:       make(map[string]*sshConn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the prober identifier
func (s *SSHProber) Name() string {
	return "ssh"
}

// Probe runs the check on its client host; exit status 0 means reachable
func (s *SSHProber) Probe(ctx context.Context, c Check) Result {
	started := time.Now()

	client, err := s.clientFor(ctx, c.Client)
	if err != nil {
		return newResult(c, StatusError, err.Error(), started)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	code, err := s.runCommand(ctx, client, remoteCommand(c, timeout), timeout+s.slack)
	if err != nil {
		return newResult(c, StatusError, err.Error(), started)
	}
	return newResult(c, statusFromExit(c.Proto, code), exitDetail(code), started)
}

// Close closes every open connection
func (s *SSHProber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for key, conn := range s.conns {
		if conn.client != nil {
			errs = append(errs, conn.client.Close())
		}
		if conn.bastion != nil {
			errs = append(errs, conn.bastion.Close())
		}
		delete(s.conns, key)
	}
	if s.agent != nil {
		errs = append(errs, s.agent.Close())
		s.agent = nil
	}
	return errors.Join(errs...)
}

// remoteCommand builds the bash redirection probe for a check.
// Host names are validated by Plan.Validate before they reach here.
func remoteCommand(c Check, timeout time.Duration) string {
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	target := fmt.Sprintf(">/dev/tcp/%s/%d", c.Server, c.Port)
	if c.Proto == ProtoUDP {
		target = fmt.Sprintf("echo ping >/dev/udp/%s/%d", c.Server, c.Port)
	}
	return fmt.Sprintf(`bash -c 'timeout %d bash -c "%s" >/dev/null 2>&1'`, secs, target)
}

func statusFromExit(proto string, code int) Status {
	switch {
	case code != 0:
		return StatusClosed
	case proto == ProtoUDP:
		return StatusSent
	default:
		return StatusOpen
	}
}

func exitDetail(code int) string {
	switch code {
	case 0:
		return ""
	case 124:
		return "timed out"
	default:
		return fmt.Sprintf("exit status %d", code)
	}
}

// clientFor returns the shared connection for a client, dialing it once
func (s *SSHProber) clientFor(ctx context.Context, c Client) (*ssh.Client, error) {
	key := c.User + "@" + c.Address() + "|" + c.Bastion

	s.mu.Lock()
	conn, ok := s.conns[key]
	if !ok {
		conn = &sshConn{}
		s.conns[key] = conn
	}
	s.mu.Unlock()

	conn.once.Do(func() {
		conn.client, conn.bastion, conn.err = s.connect(ctx, c)
		if conn.err != nil {
			log.Printf("ssh: connect %s: %v", c.Host, conn.err)
		}
	})
	return conn.client, conn.err
}

// connect establishes an SSH connection, through the bastion when set
func (s *SSHProber) connect(ctx context.Context, c Client) (*ssh.Client, *ssh.Client, error) {
	config, err := s.buildSSHConfig(c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := c.Address()
	if c.Bastion == "" {
		client, err := s.dial(ctx, addr, config)
		return client, nil, err
	}

	bastionAddr := net.JoinHostPort(c.Bastion, "22")
	if strings.Contains(c.Bastion, ":") {
		bastionAddr = c.Bastion
	}
	bastion, err := s.dial(ctx, bastionAddr, config)
	if err != nil {
		return nil, nil, fmt.Errorf("bastion %s: %w", c.Bastion, err)
	}

	netConn, err := bastion.Dial("tcp", addr)
	if err != nil {
		bastion.Close()
		return nil, nil, fmt.Errorf("failed to dial through bastion: %w", err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		bastion.Close()
		return nil, nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), bastion, nil
}

func (s *SSHProber) dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// buildSSHConfig picks key, password or agent authentication
func (s *SSHProber) buildSSHConfig(c Client) (*ssh.ClientConfig, error) {
	user := c.User
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		return nil, fmt.Errorf("no SSH user for %s", c.Host)
	}

	var auth []ssh.AuthMethod
	if c.Key != "" {
		signer, err := loadSigner(c.Key, c.Passphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if len(auth) == 0 {
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, fmt.Errorf("no key, password or SSH agent for %s", c.Host)
		}
		agentConn, err := s.agentConn(sock)
		if err != nil {
			return nil, fmt.Errorf("failed to reach SSH agent: %w", err)
		}
		auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.dialTimeout,
	}, nil
}

// agentConn returns the shared agent connection; Close releases it
func (s *SSHProber) agentConn(sock string) (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agent == nil {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, err
		}
		s.agent = conn
	}
	return s.agent, nil
}

// loadSigner reads a private key file, expanding a leading ~
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[2:])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}

// runCommand executes a command and returns its exit status
func (s *SSHProber) runCommand(ctx context.Context, client *ssh.Client, cmd string, timeout time.Duration) (int, error) {
	session, err := client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return 0, fmt.Errorf("command failed: %w", err)
	case <-time.After(timeout):
		session.Signal(ssh.SIGKILL)
		return 0, fmt.Errorf("command timeout")
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return 0, ctx.Err()
	}
}
