package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sweeney/door-monitor/internal/logger"
)

// DialFunc opens a connection. It matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// TCPPusher opens a fresh TCP connection for every update.
//
// Failures are logged only on transitions: once when the receiver becomes
// unreachable and once when it is reachable again.
type TCPPusher struct {
	addr    string
	timeout time.Duration
	dial    DialFunc
	log     *logger.Logger

	mu                sync.Mutex
	lastAttemptFailed bool
}

// TCPOption configures a TCPPusher.
type TCPOption func(*TCPPusher)

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) TCPOption {
	return func(p *TCPPusher) { p.dial = dial }
}

// NewTCPPusher creates a pusher for addr. A timeout > 0 bounds both the dial
// and the write.
func NewTCPPusher(addr string, timeout time.Duration, log *logger.Logger, opts ...TCPOption) *TCPPusher {
	p := &TCPPusher{
		addr:    addr,
		timeout: timeout,
		dial:    (&net.Dialer{}).DialContext,
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Push sends the encoded state in one write and closes the connection.
func (p *TCPPusher) Push(ctx context.Context, open bool) error {
	err := p.send(ctx, open)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		if !p.lastAttemptFailed {
			p.log.Warnw("receiver push failed", "addr", p.addr, "err", err)
		}
		p.lastAttemptFailed = true
		return err
	}
	if p.lastAttemptFailed {
		p.log.Infow("receiver push recovered", "addr", p.addr)
	}
	p.lastAttemptFailed = false
	return nil
}

// Failing reports whether the most recent attempt failed.
func (p *TCPPusher) Failing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAttemptFailed
}

func (p *TCPPusher) send(ctx context.Context, open bool) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.addr, err)
	}
	defer conn.Close()

	if p.timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	payload := Encode(open)
	n, err := conn.Write(payload)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(payload) {
		return fmt.Errorf("write %d of %d bytes: %w", n, len(payload), ErrShortWrite)
	}
	return nil
}
