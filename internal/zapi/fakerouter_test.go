package zapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeRouter is an in-process ZAPI endpoint for tests.
type fakeRouter struct {
	t *testing.T

	mu       sync.Mutex
	calls    map[string]int
	specs    []CallSpec
	tokens   []string
	cookies  []string
	handlers map[string]func(spec CallSpec, w http.ResponseWriter, r *http.Request)

	token string
}

func newFakeRouter(t *testing.T) (*fakeRouter, *httptest.Server) {
	t.Helper()
	fr := &fakeRouter{
		t:        t,
		calls:    map[string]int{},
		handlers: map[string]func(CallSpec, http.ResponseWriter, *http.Request){},
		token:    "tok-1",
	}
	fr.handle(LoginRoot, func(spec CallSpec, w http.ResponseWriter, r *http.Request) {
		fr.mu.Lock()
		tok := fr.token
		fr.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: SysAuthCookie, Value: "cookie-" + tok})
		writeOK(w, LoginRoot, map[string]any{"output": map[string]any{"token": tok}})
	})

	srv := httptest.NewTLSServer(http.HandlerFunc(fr.serve))
	t.Cleanup(srv.Close)
	return fr, srv
}

func (fr *fakeRouter) handle(root string, h func(CallSpec, http.ResponseWriter, *http.Request)) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.handlers[root] = h
}

func (fr *fakeRouter) count(root string) int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.calls[root]
}

// request returns the i-th request with the token and cookie it carried.
func (fr *fakeRouter) request(i int) (CallSpec, string, string) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if i >= len(fr.specs) {
		fr.t.Fatalf("request(%d): only %d requests received", i, len(fr.specs))
	}
	return fr.specs[i], fr.tokens[i], fr.cookies[i]
}

func (fr *fakeRouter) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != Path {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	spec, _, err := DecodeRequest(body)
	if err != nil {
		fr.t.Errorf("fake router received invalid request: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fr.mu.Lock()
	fr.calls[spec.Root]++
	fr.specs = append(fr.specs, spec)
	fr.tokens = append(fr.tokens, r.Header.Get(TokenHeader))
	if c, err := r.Cookie(SysAuthCookie); err == nil {
		fr.cookies = append(fr.cookies, c.Value)
	} else {
		fr.cookies = append(fr.cookies, "")
	}
	h := fr.handlers[spec.Root]
	fr.mu.Unlock()

	if h == nil {
		writeOK(w, spec.Root, map[string]any{})
		return
	}
	h(spec, w, r)
}

func writeOK(w http.ResponseWriter, root string, tree any) {
	writeJSON(w, map[string]any{
		"rpc-reply": map[string]any{
			"result": "ok",
			"data": []any{map[string]any{
				"xmlns": "urn:test",
				"root":  root,
				root:    tree,
			}},
		},
	})
}

func writeFailure(w http.ResponseWriter, code, tag string) {
	writeJSON(w, map[string]any{
		"rpc-reply": map[string]any{
			"result": "error",
			"rpc-error": map[string]any{
				"error-tag":     tag,
				"error-message": map[string]any{"text": code},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
