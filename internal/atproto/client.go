// Package atproto is a minimal client for the public Bluesky AppView. Only the
// app.bsky.actor.getProfile query is implemented: it is how the claim
// workflow proves which account (DID) stands behind an existing handle.
package atproto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/atproto-handles/internal/domain"
)

const (
	// DefaultBaseURL is the unauthenticated public AppView.
	DefaultBaseURL = "https://public.api.bsky.app"

	defaultTimeout  = 5 * time.Second
	getProfilePath  = "/xrpc/app.bsky.actor.getProfile"
	maxErrBodyBytes = 4 << 10
)

// Error is an XRPC error response (non-2xx status).
type Error struct {
	Status  int
	Code    string // XRPC "error" field, e.g. "InvalidRequest"
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("xrpc: unexpected status code: %d", e.Status)
	}
	return fmt.Sprintf("xrpc: %d %s: %s", e.Status, e.Code, e.Message)
}

// Client performs XRPC queries against an AppView.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// New returns a Client for baseURL (DefaultBaseURL when empty). A non-positive
// timeout falls back to five seconds.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		userAgent: "atproto-handles/1.0",
	}
}

// profileView mirrors the fields of app.bsky.actor.defs#profileViewDetailed
// that are used here.
type profileView struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
}

// GetProfile resolves actor (a handle or a DID) to its profile.
//
// Any non-200 status is returned as *Error; a response without a DID is an
// error as well so callers never bind a claim to an empty identifier.
func (c *Client) GetProfile(ctx context.Context, actor string) (*domain.Profile, error) {
	ctx, span := otel.Tracer("atproto/Client").Start(ctx, "GetProfile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("atproto.actor", actor)),
	)
	defer span.End()

	p, err := c.getProfile(ctx, actor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("atproto.did", p.DID))
	return p, nil
}

func (c *Client) getProfile(ctx context.Context, actor string) (*domain.Profile, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("actor cannot be empty")
	}

	u := c.baseURL + getProfilePath + "?" + url.Values{"actor": {actor}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		xe := &Error{Status: resp.StatusCode}
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, maxErrBodyBytes)).Decode(&body) == nil {
			xe.Code, xe.Message = body.Error, body.Message
		}
		return nil, xe
	}

	var pv profileView
	if err := json.NewDecoder(resp.Body).Decode(&pv); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if pv.DID == "" {
		return nil, fmt.Errorf("profile for %q has no did", actor)
	}

	return &domain.Profile{
		DID:         pv.DID,
		Handle:      pv.Handle,
		DisplayName: pv.DisplayName,
		Description: pv.Description,
		Avatar:      pv.Avatar,
	}, nil
}
