package probe

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// testSSHServer accepts password "secret" and answers exec requests with
// exit status 1 for commands mentioning "blocked", 0 otherwise
type testSSHServer struct {
	addr     string
	accepted atomic.Int32

	mu       sync.Mutex
	commands []string
}

func newTestSSHServer(t *testing.T) *testSSHServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	config.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	s := &testSSHServer{addr: ln.Addr().String()}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepted.Add(1)
			go s.serve(conn, config)
		}
	}()
	return s
}

func (s *testSSHServer) serve(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer ch.Close()
			for req := range requests {
				if req.Type != "exec" {
					req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					req.Reply(false, nil)
					return
				}
				req.Reply(true, nil)

				s.mu.Lock()
				s.commands = append(s.commands, payload.Command)
				s.mu.Unlock()

				var status struct{ Status uint32 }
				if strings.Contains(payload.Command, "blocked") {
					status.Status = 1
				}
				ch.SendRequest("exit-status", false, ssh.Marshal(&status))
				return
			}
		}()
	}
}

func (s *testSSHServer) client(t *testing.T) Client {
	host, port, err := net.SplitHostPort(s.addr)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	return Client{Host: host, Port: p, User: "cloudadmin", Password: "secret"}
}

func TestSSHProber(t *testing.T) {
	server := newTestSSHServer(t)
	client := server.client(t)

	prober := NewSSHProber(WithDialTimeout(2 * time.Second))
	defer prober.Close()

	checks := []Check{
		{Client: client, Server: "ipa1", Port: 636, Proto: ProtoTCP, Timeout: time.Second},
		{Client: client, Server: "ipa1", Port: 88, Proto: ProtoUDP, Timeout: time.Second},
		{Client: client, Server: "blocked", Port: 389, Proto: ProtoTCP, Timeout: time.Second},
	}
	report := Run(context.Background(), prober, checks, 2)

	want := map[string]Status{
		"blocked/389": StatusClosed,
		"ipa1/636":    StatusOpen,
		"ipa1/88":     StatusSent,
	}
	for _, r := range report.Results {
		key := r.Server + "/" + strconv.Itoa(r.Port)
		if r.Status != want[key] {
			t.Errorf("%s: status = %q (%s), want %q", key, r.Status, r.Detail, want[key])
		}
	}
	if got := server.accepted.Load(); got != 1 {
		t.Errorf("connections = %d, want one shared connection", got)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.commands) != 3 {
		t.Fatalf("commands = %v", server.commands)
	}
}

func TestSSHProberAuthFailure(t *testing.T) {
	server := newTestSSHServer(t)
	client := server.client(t)
	client.Password = "wrong"

	prober := NewSSHProber(WithDialTimeout(2 * time.Second))
	defer prober.Close()

	r := prober.Probe(context.Background(), Check{Client: client, Server: "ipa1", Port: 443, Proto: ProtoTCP})
	if r.Status != StatusError || r.Passed {
		t.Errorf("result = %+v, want error", r)
	}
}

func TestRemoteCommand(t *testing.T) {
	tcp := remoteCommand(Check{Server: "ipa1", Port: 636, Proto: ProtoTCP}, 3*time.Second)
	if tcp != `bash -c 'timeout 3 bash -c ">/dev/tcp/ipa1/636" >/dev/null 2>&1'` {
		t.Errorf("tcp command = %s", tcp)
	}

	udp := remoteCommand(Check{Server: "ipa1", Port: 88, Proto: ProtoUDP}, 100*time.Millisecond)
	if udp != `bash -c 'timeout 1 bash -c "echo ping >/dev/udp/ipa1/88" >/dev/null 2>&1'` {
		t.Errorf("udp command = %s", udp)
	}
}

func TestStatusFromExit(t *testing.T) {
	tests := []struct {
		proto string
		code  int
		want  Status
	}{
		{ProtoTCP, 0, StatusOpen},
		{ProtoUDP, 0, StatusSent},
		{ProtoTCP, 1, StatusClosed},
		{ProtoUDP, 124, StatusClosed},
	}
	for _, tt := range tests {
		if got := statusFromExit(tt.proto, tt.code); got != tt.want {
			t.Errorf("statusFromExit(%s, %d) = %q, want %q", tt.proto, tt.code, got, tt.want)
		}
	}
	if exitDetail(124) != "timed out" || exitDetail(0) != "" || exitDetail(1) != "exit status 1" {
		t.Error("unexpected exit details")
	}
}

func TestLoadSigner(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "id_plain")
	if err := os.WriteFile(plain, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}

	encBlock, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	if err != nil {
		t.Fatal(err)
	}
	encrypted := filepath.Join(dir, "id_encrypted")
	if err := os.WriteFile(encrypted, pem.EncodeToMemory(encBlock), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadSigner(plain, ""); err != nil {
		t.Errorf("loadSigner(plain) error = %v", err)
	}
	if _, err := loadSigner(encrypted, "hunter2"); err != nil {
		t.Errorf("loadSigner(encrypted) error = %v", err)
	}
	if _, err := loadSigner(encrypted, ""); err == nil {
		t.Error("expected error without passphrase")
	}
	if _, err := loadSigner(filepath.Join(dir, "missing"), ""); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestBuildSSHConfig(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	prober := NewSSHProber()

	config, err := prober.buildSSHConfig(Client{Host: "app1", User: "cloudadmin", Password: "secret"})
	if err != nil {
		t.Fatalf("buildSSHConfig() error = %v", err)
	}
	if config.User != "cloudadmin" || len(config.Auth) != 1 {
		t.Errorf("config = %+v", config)
	}

	if _, err := prober.buildSSHConfig(Client{Host: "app1", User: "cloudadmin"}); err == nil {
		t.Error("expected error with no credentials and no agent")
	}
}

func TestBuildSSHConfigAgentClosed(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "agent.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer ln.Close()
	t.Setenv("SSH_AUTH_SOCK", sock)

	var accepted atomic.Int32
	closed := make(chan struct{}, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				buf := make([]byte, 64)
				for {
					if _, err := conn.Read(buf); err != nil {
						closed <- struct{}{}
						return
					}
				}
			}()
		}
	}()

	prober := NewSSHProber()
	for _, host := range []string{"app1", "app2", "app3"} {
		config, err := prober.buildSSHConfig(Client{Host: host, User: "cloudadmin"})
		if err != nil {
			t.Fatalf("buildSSHConfig(%s) error = %v", host, err)
		}
		if len(config.Auth) != 1 {
			t.Errorf("config.Auth = %d methods, want agent only", len(config.Auth))
		}
	}

	if err := prober.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("agent connection still open after Close")
	}
	if n := accepted.Load(); n != 1 {
		t.Errorf("agent dialed %d times, want 1", n)
	}
}
