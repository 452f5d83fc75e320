package zapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testDispatcher(t *testing.T, url string, config DispatcherConfig) *Dispatcher {
	t.Helper()
	transport := NewTransportWithURL(url + Path)
	session := NewSession(transport, LocalCredential{Username: "admin", Password: "pw"})
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Millisecond
		config.MaxBackoff = 5 * time.Millisecond
	}
	return NewDispatcher(transport, session, config)
}

func TestDefaultDispatcherConfig(t *testing.T) {
	c := DefaultDispatcherConfig()
	if c.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", c.Concurrency)
	}
	if c.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.MaxAttempts)
	}
}

func TestDispatcher_CallAttachesSession(t *testing.T) {
	fr, srv := newFakeRouter(t)
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		writeOK(w, "system-state", map[string]any{"uptime": 100})
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	reply, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state"))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got := reply.Output()["uptime"]; got != float64(100) {
		t.Errorf("uptime = %v, want 100", got)
	}

	spec, token, cookie := fr.request(1)
	if spec.Root != "system-state" {
		t.Fatalf("second request root = %q", spec.Root)
	}
	if token != "tok-1" || cookie != "cookie-tok-1" {
		t.Errorf("call sent token %q cookie %q", token, cookie)
	}
}

func TestDispatcher_AuthFailureReauthenticatesOnce(t *testing.T) {
	fr, srv := newFakeRouter(t)
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		writeFailure(w, CodeAccessDenied, "access-denied")
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	_, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state"))
	if !IsAuthError(err) {
		t.Fatalf("Call() error = %v, want auth error", err)
	}

	// One lazy login plus exactly one re-login
	if got := fr.count(LoginRoot); got != 2 {
		t.Errorf("logins = %d, want 2", got)
	}
	if got := fr.count("system-state"); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if got := d.Stats().Reauths; got != 1 {
		t.Errorf("Reauths = %d, want 1", got)
	}
}

func TestDispatcher_AuthFailureRecovers(t *testing.T) {
	fr, srv := newFakeRouter(t)
	var rejected atomic.Bool
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		if rejected.CompareAndSwap(false, true) {
			fr.mu.Lock()
			fr.token = "tok-2"
			fr.mu.Unlock()
			writeFailure(w, CodeAccessDenied, "access-denied")
			return
		}
		writeOK(w, "system-state", map[string]any{})
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	if _, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state")); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	_, token, _ := fr.request(3)
	if token != "tok-2" {
		t.Errorf("retry sent token %q, want tok-2", token)
	}
	tok, _ := d.Session().Token()
	if tok.Generation != 2 {
		t.Errorf("Generation = %d, want 2", tok.Generation)
	}
}

func TestDispatcher_TimeoutRetriedThenSurfaced(t *testing.T) {
	fr, srv := newFakeRouter(t)
	fr.handle("network-devices", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{CallTimeout: 50 * time.Millisecond})
	_, err := d.Call(context.Background(), GetConfig(NSNetworkDevice, "network-devices"))
	if !IsTimeout(err) {
		t.Fatalf("Call() error = %v, want timeout", err)
	}
	if got := fr.count("network-devices"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if got := d.Stats().Retries; got != 2 {
		t.Errorf("Retries = %d, want 2", got)
	}
}

func TestDispatcher_ServerErrorRetried(t *testing.T) {
	fr, srv := newFakeRouter(t)
	var n atomic.Int32
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("busy"))
			return
		}
		writeOK(w, "system-state", map[string]any{})
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	if _, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state")); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got := fr.count("system-state"); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestDispatcher_NonRetryableErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler func(CallSpec, http.ResponseWriter, *http.Request)
		check   func(error) bool
	}{
		{
			name: "device error",
			handler: func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
				writeFailure(w, "4001", "invalid-value")
			},
			check: IsDeviceError,
		},
		{
			name: "protocol error",
			handler: func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
				writeOK(w, "unexpected-root", map[string]any{})
			},
			check: IsProtocolError,
		},
		{
			name: "non-JSON 200",
			handler: func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>login</html>"))
			},
			check: IsProtocolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr, srv := newFakeRouter(t)
			fr.handle("system-state", tt.handler)

			d := testDispatcher(t, srv.URL, DispatcherConfig{})
			_, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state"))
			if err == nil || !tt.check(err) {
				t.Fatalf("Call() error = %v", err)
			}
			if got := fr.count("system-state"); got != 1 {
				t.Errorf("attempts = %d, want 1", got)
			}
		})
	}
}

func TestDispatcher_LoginFailureNotRetried(t *testing.T) {
	fr, srv := newFakeRouter(t)
	fr.handle(LoginRoot, func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		writeFailure(w, CodeAccessDenied, "access-denied")
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	_, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state"))
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Call() error = %v, want ErrLoginFailed", err)
	}
	if got := fr.count(LoginRoot); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
	if got := fr.count("system-state"); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

func TestDispatcher_GateSerializesCalls(t *testing.T) {
	fr, srv := newFakeRouter(t)
	var inFlight, maxInFlight atomic.Int32
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		writeOK(w, "system-state", map[string]any{})
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state")); err != nil {
				t.Errorf("Call() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max in-flight = %d, want 1", got)
	}
	if got := fr.count(LoginRoot); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestDispatcher_Close(t *testing.T) {
	_, srv := newFakeRouter(t)
	d := testDispatcher(t, srv.URL, DispatcherConfig{})
	ctx := context.Background()

	if _, err := d.Call(ctx, GetConfig(NSSystem, "system-state")); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d.Session().State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", d.Session().State())
	}
	if _, err := d.Call(ctx, GetConfig(NSSystem, "system-state")); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Call() after Close error = %v, want ErrDispatcherClosed", err)
	}
}

func TestDispatcher_StalledReloginTimesOut(t *testing.T) {
	fr, srv := newFakeRouter(t)
	var logins atomic.Int32
	fr.handle(LoginRoot, func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		if logins.Add(1) > 1 {
			// The router stops answering once the session has expired
			<-r.Context().Done()
			return
		}
		http.SetCookie(w, &http.Cookie{Name: SysAuthCookie, Value: "cookie-tok-1"})
		writeOK(w, LoginRoot, map[string]any{"output": map[string]any{"token": "tok-1"}})
	})
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		writeFailure(w, CodeAccessDenied, "access-denied")
	})

	d := testDispatcher(t, srv.URL, DispatcherConfig{CallTimeout: 50 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state"))
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrLoginFailed) {
			t.Errorf("Call() error = %v, want ErrLoginFailed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Call() still blocked in re-login after 3s")
	}

	// The session lock is free again
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, ok := d.Session().Token(); ok {
		t.Error("Token() present after failed re-login")
	}
	if err := d.Session().Login(ctx); err == nil {
		t.Error("Login() against a stalled router should fail")
	}
}

func TestDispatcher_CloseDuringReauthSkipsLogin(t *testing.T) {
	fr, srv := newFakeRouter(t)
	d := testDispatcher(t, srv.URL, DispatcherConfig{})

	closed := make(chan error, 1)
	fr.handle("system-state", func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		go func() { closed <- d.Close(context.Background()) }()
		for !d.closed.Load() {
			time.Sleep(time.Millisecond)
		}
		writeFailure(w, CodeAccessDenied, "access-denied")
	})

	_, err := d.Call(context.Background(), GetConfig(NSSystem, "system-state"))
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Call() error = %v, want ErrDispatcherClosed", err)
	}
	if err := <-closed; err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := fr.count(LoginRoot); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
	if d.Session().State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", d.Session().State())
	}
}
