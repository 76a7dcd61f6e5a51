// Handle HTTP handlers.
//
// This file exposes the registry over HTTP:
//   - GET /{domain}/{username}/.well-known/atproto-did  (DID document, path form)
//   - GET /.well-known/atproto-did                      (DID document, Host form)
//   - GET /{domain}?handle=&new-handle=                 (claim view)
//   - GET /{domain}/{username}                          (claimed handle + profile)
//
// Handlers are transport-thin: they normalize path input, call the services
// and translate results into responses. Internal failures never leak detail.
package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/atproto-handles/internal/domain"
	"github.com/tbourn/atproto-handles/internal/http/middleware"
	"github.com/tbourn/atproto-handles/internal/services"
)

//
// Service contracts (context-aware)
//

// Registry resolves claimed handles.
type Registry interface {
	// Resolve returns the DID bound to (domain, username).
	Resolve(ctx context.Context, domainName, username string) (string, error)
	// Lookup returns the claim row for (domain, username).
	Lookup(ctx context.Context, domainName, username string) (*domain.Claim, error)
}

// Workflow derives the claim view from request input.
type Workflow interface {
	Run(ctx context.Context, domainName string, in services.Input) services.View
}

// ProfileLookup fetches an account profile by DID or handle.
type ProfileLookup interface {
	GetProfile(ctx context.Context, actor string) (*domain.Profile, error)
}

//
// Handler wiring
//

// Handlers groups the handle endpoints.
type Handlers struct {
	registry Registry
	workflow Workflow
	profiles ProfileLookup
}

// New constructs and returns a Handlers instance bound to the given services.
func New(reg Registry, wf Workflow, profiles ProfileLookup) *Handlers {
	return &Handlers{registry: reg, workflow: wf, profiles: profiles}
}

//
// DTOs
//

// HandleResponse is the claimed handle page payload.
type HandleResponse struct {
	Username string          `json:"username" example:"alice"`
	Domain   string          `json:"domain" example:"example.com"`
	DID      string          `json:"did" example:"did:plc:ewvi7nxzyoun6zhxrhs64oiz"`
	Profile  *domain.Profile `json:"profile"`
}

//
// Helpers
//

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// splitHost maps "alice.example.com[:port]" to ("example.com", "alice").
// Hosts with fewer than three labels carry no username.
func splitHost(host string) (domainName, username string, ok bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = services.NormalizeDomain(host)
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return "", "", false
	}
	for _, l := range labels {
		if l == "" {
			return "", "", false
		}
	}
	return strings.Join(labels[1:], "."), labels[0], true
}

//
// Handlers
//

// WellKnownDID godoc
// @ID          wellKnownDID
// @Summary     Resolve a handle to its DID
// @Description Returns the DID claimed for username under domain as text/plain, the atproto HTTPS handle resolution document.
// @Tags        Handles
// @Produce     plain
// @Produce     json
//
// @Param       domain    path  string  true  "Domain"    example(example.com)
// @Param       username  path  string  true  "Username"  example(alice)
//
// @Success     200  {string}  string                  "DID"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /{domain}/{username}/.well-known/atproto-did [get]
func (h *Handlers) WellKnownDID(c *gin.Context) {
	h.resolve(c, services.NormalizeDomain(c.Param("domain")), normalizeUsername(c.Param("username")))
}

// HostWellKnownDID godoc
// @ID          hostWellKnownDID
// @Summary     Resolve the request host to its DID
// @Description Host-based form used by atproto resolvers: Host alice.example.com resolves username alice under example.com.
// @Tags        Handles
// @Produce     plain
// @Produce     json
//
// @Success     200  {string}  string                  "DID"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /.well-known/atproto-did [get]
func (h *Handlers) HostWellKnownDID(c *gin.Context) {
	domainName, username, ok := splitHost(c.Request.Host)
	if !ok {
		fail(c, http.StatusNotFound, ErrCodeHandleNotFound, "handle not found")
		return
	}
	h.resolve(c, domainName, username)
}

func (h *Handlers) resolve(c *gin.Context, domainName, username string) {
	did, err := h.registry.Resolve(c.Request.Context(), domainName, username)
	switch {
	case err == nil:
		text(c, http.StatusOK, did)
	case errors.Is(err, services.ErrClaimNotFound):
		fail(c, http.StatusNotFound, ErrCodeHandleNotFound, "handle not found")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("resolve failed")
		fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, "internal error")
	}
}

// ClaimView godoc
// @ID          claimView
// @Summary     Claim workflow view
// @Description Derives the claim page state from the query string: look up the existing account (handle), then validate and claim the proposed username (new-handle) under domain.
// @Tags        Claims
// @Produce     json
//
// @Param       domain      path   string  true   "Domain"              example(example.com)
// @Param       handle      query  string  false  "Existing handle"     example(alice.bsky.social)
// @Param       new-handle  query  string  false  "Proposed username"   example(alice)
//
// @Success     200  {object}  services.View
// @Router      /{domain} [get]
func (h *Handlers) ClaimView(c *gin.Context) {
	v := h.workflow.Run(c.Request.Context(), c.Param("domain"), services.Input{
		Handle:    c.Query("handle"),
		NewHandle: c.Query("new-handle"),
	})
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, v)
}

// GetHandle godoc
// @ID          getHandle
// @Summary     Claimed handle with profile
// @Description Looks up the claim for username under domain and the current profile of its DID.
// @Tags        Handles
// @Produce     json
//
// @Param       domain    path  string  true  "Domain"    example(example.com)
// @Param       username  path  string  true  "Username"  example(alice)
//
// @Success     200  {object}  handlers.HandleResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /{domain}/{username} [get]
func (h *Handlers) GetHandle(c *gin.Context) {
	ctx := c.Request.Context()
	domainName := services.NormalizeDomain(c.Param("domain"))
	username := normalizeUsername(c.Param("username"))

	claim, err := h.registry.Lookup(ctx, domainName, username)
	if err != nil {
		if errors.Is(err, services.ErrClaimNotFound) {
			fail(c, http.StatusNotFound, ErrCodeHandleNotFound, "handle not found")
			return
		}
		middleware.LoggerFrom(c).Error().Err(err).Msg("lookup failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
		return
	}

	profile, err := h.profiles.GetProfile(ctx, claim.DID)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("did", claim.DID).Msg("profile lookup failed")
		fail(c, http.StatusNotFound, ErrCodeProfileNotFound, "profile not found")
		return
	}

	if claim.Domain.Name != "" {
		domainName = claim.Domain.Name
	}
	ok(c, http.StatusOK, HandleResponse{
		Username: claim.Username,
		Domain:   domainName,
		DID:      claim.DID,
		Profile:  profile,
	})
}
