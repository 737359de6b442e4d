package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

// LocalProber checks reachability from the machine running fwcheck
type LocalProber struct {
	dialer *net.Dialer
}

// NewLocalProber creates a LocalProber
func NewLocalProber() *LocalProber {
	return &LocalProber{dialer: &net.Dialer{}}
}

// Name returns the prober identifier
func (l *LocalProber) Name() string {
	return "local"
}

// Probe dials TCP ports and sends a datagram to UDP ports
func (l *LocalProber) Probe(ctx context.Context, c Check) Result {
	started := time.Now()
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
	conn, err := l.dialer.DialContext(ctx, c.Proto, addr)
	if err != nil {
		if c.Proto == ProtoUDP {
			return newResult(c, StatusError, err.Error(), started)
		}
		return newResult(c, StatusClosed, err.Error(), started)
	}
	defer conn.Close()

	if c.Proto == ProtoUDP {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		if _, err := conn.Write([]byte("ping\n")); err != nil {
			return newResult(c, StatusError, err.Error(), started)
		}
		return newResult(c, StatusSent, "", started)
	}
	return newResult(c, StatusOpen, "", started)
}
