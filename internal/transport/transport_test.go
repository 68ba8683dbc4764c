package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/door-monitor/internal/logger"
)

func TestEncodeDecode(t *testing.T) {
	assert.Equal(t, []byte("True"), Encode(true))
	assert.Equal(t, []byte("False"), Encode(false))

	tests := []struct {
		in   string
		want bool
	}{
		{"True", true},
		{"False", false},
		{"true", false},
		{"True\n", false},
		{"Tru", false},
		{"", false},
		{"open", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decode([]byte(tt.in)), "Decode(%q)", tt.in)
	}
}

// listen accepts connections and forwards each full payload on the returned channel.
func listen(t *testing.T) (net.Listener, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			b, _ := io.ReadAll(conn)
			conn.Close()
			got <- string(b)
		}
	}()
	return ln, got
}

func TestTCPPusherSendsPayload(t *testing.T) {
	ln, got := listen(t)
	p := NewTCPPusher(ln.Addr().String(), time.Second, logger.Nop())

	require.NoError(t, p.Push(context.Background(), true))
	require.NoError(t, p.Push(context.Background(), false))

	assert.Equal(t, "True", <-got)
	assert.Equal(t, "False", <-got)
	assert.False(t, p.Failing())
}

func TestTCPPusherLogsTransitionsOnly(t *testing.T) {
	ln, got := listen(t)
	core, logs := observer.New(zapcore.DebugLevel)

	attempts := 0
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		attempts++
		if attempts <= 3 {
			return nil, errors.New("connection refused")
		}
		return (&net.Dialer{}).DialContext(ctx, network, ln.Addr().String())
	}
	p := NewTCPPusher("door-monitor:5000", time.Second, logger.FromCore(core), WithDialer(dial))

	for i := 0; i < 3; i++ {
		err := p.Push(context.Background(), true)
		require.Error(t, err)
		assert.True(t, p.Failing())
	}
	require.NoError(t, p.Push(context.Background(), true))
	assert.Equal(t, "True", <-got)

	assert.Equal(t, 1, logs.FilterMessage("receiver push failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("receiver push recovered").Len())
	assert.False(t, p.Failing())
}

func TestTCPPusherNoRecoveryLogWithoutFailure(t *testing.T) {
	ln, got := listen(t)
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewTCPPusher(ln.Addr().String(), time.Second, logger.FromCore(core))

	require.NoError(t, p.Push(context.Background(), false))
	<-got
	assert.Equal(t, 0, logs.Len())
}

func TestTCPPusherUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := NewTCPPusher(addr, 500*time.Millisecond, logger.Nop())
	assert.Error(t, p.Push(context.Background(), true))
	assert.True(t, p.Failing())
}

func TestHTTPPusher(t *testing.T) {
	var gotBody, gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewHTTPPusher(srv.URL, time.Second)

	require.NoError(t, p.Push(context.Background(), true))
	assert.Equal(t, "open", gotBody)
	assert.Equal(t, "text/plain", gotType)
	assert.Equal(t, http.MethodPost, gotMethod)

	require.NoError(t, p.Push(context.Background(), false))
	assert.Equal(t, "closed", gotBody)
}

func TestHTTPPusherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewHTTPPusher(srv.URL, time.Second).Push(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDualSecondaryNeverAffectsPrimary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	primary := &FakePusher{}
	secondary := &FakePusher{Err: errors.New("endpoint down")}
	d := &Dual{Primary: primary, Secondary: secondary, Log: logger.FromCore(core)}

	require.NoError(t, d.Push(context.Background(), true))
	assert.Equal(t, []bool{true}, primary.Pushed())
	assert.Equal(t, 1, logs.FilterMessage("secondary push failed").Len())
}

func TestDualReturnsPrimaryError(t *testing.T) {
	primary := &FakePusher{Err: errors.New("refused")}
	secondary := &FakePusher{}
	d := &Dual{Primary: primary, Secondary: secondary}

	assert.Error(t, d.Push(context.Background(), false))
	assert.Equal(t, []bool{false}, secondary.Pushed(), "secondary is attempted even if primary fails")
}

func TestDualWithoutSecondary(t *testing.T) {
	primary := &FakePusher{}
	d := &Dual{Primary: primary}
	require.NoError(t, d.Push(context.Background(), true))
	assert.Equal(t, []bool{true}, primary.Pushed())
}
