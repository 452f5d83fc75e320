package zapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/muurk/multy/internal/logging"
)

// SysAuthCookie is the cookie name the router sets on login.
const SysAuthCookie = "sysauth"

// TokenHeader carries the session token on authenticated calls.
const TokenHeader = "ZAPI_TOKEN"

// maxReplySize bounds how much of a reply body is read.
const maxReplySize = 8 << 20

// Auth holds the credentials attached to an authenticated call.
type Auth struct {
	Token   string
	SysAuth string
}

// Response is the raw result of one POST.
type Response struct {
	StatusCode int
	Body       []byte
	// SysAuth is the sysauth cookie value if the router set one
	SysAuth string
}

// Sender sends one encoded envelope. *Transport implements it.
type Sender interface {
	Send(ctx context.Context, body []byte, auth *Auth) (*Response, error)
}

// Transport performs single HTTPS POSTs to a router's ZAPI endpoint.
type Transport struct {
	URL        string
	Host       string
	UserAgent  string // sent when non-empty
	HTTPClient *http.Client
}

// NewTransport creates a transport for the router at host (name or IP,
// optionally with port). The router's self-signed certificate is accepted.
func NewTransport(host string) *Transport {
	return NewTransportWithURL(fmt.Sprintf("https://%s%s", host, Path))
}

// NewTransportWithURL creates a transport for a full endpoint URL.
func NewTransportWithURL(endpoint string) *Transport {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Transport{
		URL:  endpoint,
		Host: host,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, // #nosec G402 -- routers ship self-signed certificates
				},
				MaxIdleConns:        2,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			// Per-call deadlines come from the context
			Timeout: 0,
		},
	}
}

// SetTimeout sets an overall client timeout on top of context deadlines.
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.HTTPClient.Timeout = timeout
}

// Send POSTs body and returns the raw reply.
//
// Transport failures are KindNetwork errors. HTTP 401/403 are KindAuth errors.
// A 5xx status whose body is not JSON is a retryable server error; any other
// status is handed back for the codec to interpret.
func (t *Transport) Send(ctx context.Context, body []byte, auth *Auth) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, NewProtocolError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	if auth != nil {
		if auth.Token != "" {
			req.Header.Set(TokenHeader, auth.Token)
		}
		if auth.SysAuth != "" {
			req.AddCookie(&http.Cookie{Name: SysAuthCookie, Value: auth.SysAuth})
		}
	}

	logging.LogRawBytes("send", t.Host, body)

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		zerr := ClassifyNetworkError(err, t.Host)
		return nil, zerr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		zerr := ClassifyNetworkError(err, t.Host)
		zerr.Message = "failed to read reply"
		return nil, zerr
	}

	logging.LogRawBytes("recv", t.Host, data)

	out := &Response{StatusCode: resp.StatusCode, Body: data}
	for _, c := range resp.Cookies() {
		if c.Name == SysAuthCookie {
			out.SysAuth = c.Value
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		zerr := NewAuthError(fmt.Sprintf("router returned HTTP %d", resp.StatusCode))
		zerr.StatusCode = resp.StatusCode
		zerr.Host = t.Host
		return nil, zerr
	case resp.StatusCode >= 500 && !json.Valid(data):
		zerr := NewServerError(resp.StatusCode, fmt.Sprintf("router returned HTTP %d", resp.StatusCode))
		zerr.Host = t.Host
		return nil, zerr
	}

	return out, nil
}
