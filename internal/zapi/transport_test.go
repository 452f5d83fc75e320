package zapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewTransport(t *testing.T) {
	tr := NewTransport("192.168.212.1")
	if tr.URL != "https://192.168.212.1/zapi" {
		t.Errorf("URL = %s, want https://192.168.212.1/zapi", tr.URL)
	}
	if tr.Host != "192.168.212.1" {
		t.Errorf("Host = %s, want 192.168.212.1", tr.Host)
	}
	if tr.HTTPClient == nil {
		t.Fatal("HTTPClient should not be nil")
	}

	tr.SetTimeout(5 * time.Second)
	if tr.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", tr.HTTPClient.Timeout)
	}
}

func TestTransport_SendAttachesAuth(t *testing.T) {
	var gotToken, gotCookie, gotMethod, gotAgent string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAgent = r.UserAgent()
		gotToken = r.Header.Get(TokenHeader)
		if c, err := r.Cookie(SysAuthCookie); err == nil {
			gotCookie = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: SysAuthCookie, Value: "fresh"})
		w.Write([]byte(`{"rpc-reply":{"result":"ok"}}`))
	}))
	defer srv.Close()

	tr := NewTransportWithURL(srv.URL + Path)
	tr.UserAgent = "multy-cli/test"
	resp, err := tr.Send(context.Background(), []byte(`{}`), &Auth{Token: "abc", SysAuth: "def"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotAgent != "multy-cli/test" {
		t.Errorf("User-Agent = %q, want multy-cli/test", gotAgent)
	}
	if gotToken != "abc" {
		t.Errorf("token header = %q, want abc", gotToken)
	}
	if gotCookie != "def" {
		t.Errorf("sysauth cookie = %q, want def", gotCookie)
	}
	if resp.SysAuth != "fresh" {
		t.Errorf("resp.SysAuth = %q, want fresh", resp.SysAuth)
	}
}

func TestTransport_SendStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, "", IsAuthError},
		{"forbidden", http.StatusForbidden, "", IsAuthError},
		{"bad gateway html", http.StatusBadGateway, "<html>bad gateway</html>", IsRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewTransportWithURL(srv.URL+Path).Send(context.Background(), []byte(`{}`), nil)
			if err == nil || !tt.check(err) {
				t.Errorf("Send() error = %v", err)
			}
		})
	}
}

func TestTransport_SendJSONErrorBodyPassesThrough(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"rpc-reply":{"result":"error","rpc-error":{"error-message":"5000"}}}`))
	}))
	defer srv.Close()

	resp, err := NewTransportWithURL(srv.URL+Path).Send(context.Background(), []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestTransport_SendUnreachable(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL + Path
	srv.Close()

	_, err := NewTransportWithURL(url).Send(context.Background(), []byte(`{}`), nil)
	if !IsNetworkError(err) {
		t.Errorf("Send() error = %v, want network error", err)
	}
}
