package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/atproto-handles/internal/domain"
	"github.com/tbourn/atproto-handles/internal/services"
)

// ---------- stubs ----------

type stubRegistry struct {
	resolve func(domainName, username string) (string, error)
	lookup  func(domainName, username string) (*domain.Claim, error)

	gotDomain, gotUsername string
}

func (s *stubRegistry) Resolve(ctx context.Context, domainName, username string) (string, error) {
	s.gotDomain, s.gotUsername = domainName, username
	return s.resolve(domainName, username)
}

func (s *stubRegistry) Lookup(ctx context.Context, domainName, username string) (*domain.Claim, error) {
	s.gotDomain, s.gotUsername = domainName, username
	return s.lookup(domainName, username)
}

type stubWorkflow struct {
	gotDomain string
	gotIn     services.Input
	view      services.View
}

func (s *stubWorkflow) Run(ctx context.Context, domainName string, in services.Input) services.View {
	s.gotDomain, s.gotIn = domainName, in
	return s.view
}

type stubProfiles struct {
	fn func(actor string) (*domain.Profile, error)
}

func (s stubProfiles) GetProfile(ctx context.Context, actor string) (*domain.Profile, error) {
	return s.fn(actor)
}

func aliceRegistry() *stubRegistry {
	return &stubRegistry{
		resolve: func(d, u string) (string, error) {
			if d == "example.com" && u == "alice" {
				return "did:plc:123", nil
			}
			return "", services.ErrClaimNotFound
		},
		lookup: func(d, u string) (*domain.Claim, error) {
			if d == "example.com" && u == "alice" {
				return &domain.Claim{Username: "alice", DID: "did:plc:123", Domain: domain.Domain{Name: "example.com"}}, nil
			}
			return nil, services.ErrClaimNotFound
		},
	}
}

func newHandleRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.GET("/.well-known/atproto-did", h.HostWellKnownDID)
	r.GET("/:domain", h.ClaimView)
	r.GET("/:domain/:username", h.GetHandle)
	r.GET("/:domain/:username/.well-known/atproto-did", h.WellKnownDID)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, w.Body.String())
	}
	return er
}

// ---------- well-known (path form) ----------

func TestWellKnownDID_Found(t *testing.T) {
	reg := aliceRegistry()
	r := newHandleRouter(New(reg, &stubWorkflow{}, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/Example.COM/Alice/.well-known/atproto-did", nil))

	if w.Code != http.StatusOK || w.Body.String() != "did:plc:123" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	if reg.gotDomain != "example.com" || reg.gotUsername != "alice" {
		t.Fatalf("registry got (%q, %q)", reg.gotDomain, reg.gotUsername)
	}
}

func TestWellKnownDID_NotFound(t *testing.T) {
	r := newHandleRouter(New(aliceRegistry(), &stubWorkflow{}, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/example.com/bob/.well-known/atproto-did", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	er := decodeError(t, w)
	if er.Code != ErrCodeHandleNotFound || er.RequestID != "rid-test" {
		t.Fatalf("unexpected body %+v", er)
	}
}

func TestWellKnownDID_StorageErrorHidesDetail(t *testing.T) {
	reg := &stubRegistry{resolve: func(string, string) (string, error) {
		return "", &services.StorageError{Op: "find claim", Err: errors.New("pq: password authentication failed")}
	}}
	r := newHandleRouter(New(reg, &stubWorkflow{}, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/example.com/alice/.well-known/atproto-did", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
	if er := decodeError(t, w); er.Code != ErrCodeResolveFailed {
		t.Fatalf("code=%q", er.Code)
	}
}

// ---------- well-known (host form) ----------

func TestHostWellKnownDID(t *testing.T) {
	cases := []struct {
		host       string
		wantStatus int
		wantBody   string
	}{
		{"alice.example.com", http.StatusOK, "did:plc:123"},
		{"ALICE.Example.com:8080", http.StatusOK, "did:plc:123"},
		{"alice.example.com.", http.StatusOK, "did:plc:123"},
		{"bob.example.com", http.StatusNotFound, ""},
		{"example.com", http.StatusNotFound, ""},
		{"localhost:8080", http.StatusNotFound, ""},
		{"alice..com", http.StatusNotFound, ""},
	}
	r := newHandleRouter(New(aliceRegistry(), &stubWorkflow{}, nil))
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/.well-known/atproto-did", nil)
		req.Host = tc.host
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.wantStatus {
			t.Fatalf("host %q: status=%d; want %d", tc.host, w.Code, tc.wantStatus)
		}
		if tc.wantBody != "" && w.Body.String() != tc.wantBody {
			t.Fatalf("host %q: body=%q", tc.host, w.Body.String())
		}
	}
}

func Test_splitHost(t *testing.T) {
	d, u, ok := splitHost("a.b.example.org")
	if !ok || d != "b.example.org" || u != "a" {
		t.Fatalf("splitHost = %q %q %v", d, u, ok)
	}
}

// ---------- claim view ----------

func TestClaimView_PassesQueryAndReturnsView(t *testing.T) {
	wf := &stubWorkflow{view: services.View{Domain: "example.com", State: services.StateTaken, Error: services.MsgUsernameTaken}}
	r := newHandleRouter(New(aliceRegistry(), wf, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/example.com?handle=alice&new-handle=Alice", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if wf.gotDomain != "example.com" || wf.gotIn.Handle != "alice" || wf.gotIn.NewHandle != "Alice" {
		t.Fatalf("workflow got %q %+v", wf.gotDomain, wf.gotIn)
	}
	var v services.View
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v", err)
	}
	if v.State != services.StateTaken || v.Error != services.MsgUsernameTaken {
		t.Fatalf("unexpected view %+v", v)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("claim view must not be cached")
	}
}

// ---------- handle page ----------

func TestGetHandle_FoundWithProfile(t *testing.T) {
	var gotActor string
	profiles := stubProfiles{fn: func(actor string) (*domain.Profile, error) {
		gotActor = actor
		return &domain.Profile{DID: actor, Handle: "alice.example.com", DisplayName: "Alice"}, nil
	}}
	r := newHandleRouter(New(aliceRegistry(), &stubWorkflow{}, profiles))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/example.com/alice", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotActor != "did:plc:123" {
		t.Fatalf("profile looked up by %q; want the claimed DID", gotActor)
	}
	var resp HandleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Username != "alice" || resp.Domain != "example.com" || resp.DID != "did:plc:123" || resp.Profile.DisplayName != "Alice" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetHandle_Errors(t *testing.T) {
	failingProfiles := stubProfiles{fn: func(string) (*domain.Profile, error) { return nil, errors.New("upstream 502") }}
	storageReg := &stubRegistry{lookup: func(string, string) (*domain.Claim, error) {
		return nil, &services.StorageError{Op: "find claim", Err: errors.New("db gone")}
	}}

	cases := []struct {
		name       string
		reg        Registry
		profiles   ProfileLookup
		path       string
		wantStatus int
		wantCode   string
	}{
		{"no claim", aliceRegistry(), failingProfiles, "/example.com/bob", http.StatusNotFound, ErrCodeHandleNotFound},
		{"profile missing", aliceRegistry(), failingProfiles, "/example.com/alice", http.StatusNotFound, ErrCodeProfileNotFound},
		{"storage", storageReg, failingProfiles, "/example.com/alice", http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newHandleRouter(New(tc.reg, &stubWorkflow{}, tc.profiles))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d; want %d", w.Code, tc.wantStatus)
			}
			if er := decodeError(t, w); er.Code != tc.wantCode {
				t.Fatalf("code=%q; want %q", er.Code, tc.wantCode)
			}
		})
	}
}
