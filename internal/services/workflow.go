// Package services – ClaimWorkflow
//
// This file implements the user-facing claim sequence: look up the existing
// account on the external network, validate the proposed username under the
// domain, and commit the claim through the Registry. Every failure is mapped
// to one of a small closed set of categories; unexpected failures are also
// reported to an out-of-band notification channel.
//
// Run is a pure request-to-view function. All state is re-derived from the
// input on every call; nothing is kept between stages.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/atproto-handles/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHandleSuffix is appended to existing handles that contain no dot.
const DefaultHandleSuffix = "bsky.social"

// User-facing messages.
const (
	MsgAccountNotFound    = "Username not found - please try again."
	MsgUsernameTaken      = "Username already taken, please choose a different username."
	MsgInvalidUsername    = "Invalid username, please choose a different username."
	MsgReservedUsername   = "Reserved username, please choose a different username."
	MsgUnexpected         = "Unexpected error, the database may be out of order. Please try again later."
	MsgNotificationFailed = "Unexpected error, and the error report could not be delivered. Please try again later."
)

// ProfileLookup resolves an actor (handle or DID) to a profile.
type ProfileLookup interface {
	GetProfile(ctx context.Context, actor string) (*domain.Profile, error)
}

// Notifier delivers an error report out of band.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Claimer commits a claim. *Registry implements it.
type Claimer interface {
	Claim(ctx context.Context, domainName, username, did string) (ClaimOutcome, error)
}

// localPartRE is the allowed shape of a username.
var localPartRE = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ClaimWorkflow orchestrates the claim sequence.
type ClaimWorkflow struct {
	Registry Claimer
	Profiles ProfileLookup
	Notifier Notifier

	// Denylist holds blocked usernames; nil blocks nothing.
	Denylist *Denylist
	// Reserved holds usernames withheld by the operator; reported separately
	// from denylist hits.
	Reserved *Denylist

	// DefaultSuffix replaces DefaultHandleSuffix when set.
	DefaultSuffix string

	// Now is used for error report timestamps (time.Now when nil).
	Now func() time.Time
}

// ProposeResult describes a committed claim.
type ProposeResult struct {
	// Handle is the full normalized handle, e.g. "alice.example.com".
	Handle string
	// Username is the local part that was stored, e.g. "alice".
	Username string
	Outcome  ClaimOutcome
}

// LookupExistingAccount resolves rawHandle on the external network. A handle
// without a dot gets the default suffix appended. Any failure is reported as
// ErrAccountNotFound wrapping the cause.
func (w *ClaimWorkflow) LookupExistingAccount(ctx context.Context, rawHandle string) (*domain.Profile, error) {
	tr := otel.Tracer("services/ClaimWorkflow")
	ctx, span := tr.Start(ctx, "LookupExistingAccount")
	defer span.End()

	handle := w.normalizeExisting(rawHandle)
	span.SetAttributes(attribute.String("handle.existing", handle))
	if handle == "" {
		return nil, ErrAccountNotFound
	}

	p, err := w.Profiles.GetProfile(ctx, handle)
	if err != nil {
		profileLookupsTotal.WithLabelValues("error").Inc()
		zerolog.Ctx(ctx).Debug().Err(err).Str("handle", handle).Msg("profile lookup failed")
		span.SetStatus(codes.Error, "profile lookup")
		return nil, fmt.Errorf("%w: %w", ErrAccountNotFound, err)
	}
	profileLookupsTotal.WithLabelValues("ok").Inc()
	return p, nil
}

// ProposeNewUsername validates rawNewHandle under domainName and claims it for
// profile's DID.
//
// Errors: ErrInvalidUsername (bad shape or denylisted), ErrReservedUsername,
// ErrUsernameTaken, ErrUnexpected (reported to the notifier) or
// ErrNotificationFailed (the report could not be delivered).
func (w *ClaimWorkflow) ProposeNewUsername(ctx context.Context, domainName, rawNewHandle string, profile *domain.Profile) (ProposeResult, error) {
	tr := otel.Tracer("services/ClaimWorkflow")
	ctx, span := tr.Start(ctx, "ProposeNewUsername",
		trace.WithAttributes(attribute.String("handle.domain", domainName)),
	)
	defer span.End()

	domainName = NormalizeDomain(domainName)
	handle, local, err := w.validate(domainName, rawNewHandle)
	if err != nil {
		return ProposeResult{Handle: handle}, err
	}
	span.SetAttributes(attribute.String("handle.new", handle))

	if profile == nil || profile.DID == "" {
		return ProposeResult{Handle: handle}, w.unexpected(ctx, errors.New("claim without a resolved profile"))
	}

	out, err := w.Registry.Claim(ctx, domainName, local, profile.DID)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return ProposeResult{Handle: handle, Username: local}, ErrUsernameTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim")
		return ProposeResult{Handle: handle, Username: local}, w.unexpected(ctx, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("handle", handle).
		Str("did", profile.DID).
		Stringer("outcome", out).
		Msg("handle claimed")
	return ProposeResult{Handle: handle, Username: local, Outcome: out}, nil
}

// validate normalizes rawNewHandle and checks it against the allowed shape,
// the denylist and the reserved list. It returns the full handle and the
// local part.
func (w *ClaimWorkflow) validate(domainName, rawNewHandle string) (handle, local string, err error) {
	handle = NormalizeNewHandle(domainName, rawNewHandle)

	suffix := "." + domainName
	if domainName == "" || !strings.HasSuffix(handle, suffix) {
		return handle, "", ErrInvalidUsername
	}
	local = strings.TrimSuffix(handle, suffix)
	if !localPartRE.MatchString(local) {
		return handle, "", ErrInvalidUsername
	}
	if w.Denylist.Contains(local) {
		return handle, "", ErrInvalidUsername
	}
	if w.Reserved.Contains(local) {
		return handle, "", ErrReservedUsername
	}
	return handle, local, nil
}

// unexpected reports cause through the notifier and returns the category the
// user sees.
func (w *ClaimWorkflow) unexpected(ctx context.Context, cause error) error {
	log := zerolog.Ctx(ctx)
	log.Error().Err(cause).Msg("claim failed")

	if w.Notifier == nil {
		notificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %w", ErrNotificationFailed, cause)
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	msg := fmt.Sprintf("An error occurred at %s:\n```%v```", now().UTC().Format(time.RFC3339), cause)
	if nerr := w.Notifier.Notify(ctx, msg); nerr != nil {
		notificationsTotal.WithLabelValues("error").Inc()
		log.Error().Err(nerr).Msg("error notification failed")
		return fmt.Errorf("%w: %w", ErrNotificationFailed, cause)
	}
	notificationsTotal.WithLabelValues("ok").Inc()
	return fmt.Errorf("%w: %w", ErrUnexpected, cause)
}

func (w *ClaimWorkflow) normalizeExisting(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	if h == "" {
		return ""
	}
	if !strings.Contains(h, ".") {
		suffix := w.DefaultSuffix
		if suffix == "" {
			suffix = DefaultHandleSuffix
		}
		h += "." + suffix
	}
	return h
}

// NormalizeDomain trims, lowercases and strips a trailing dot.
func NormalizeDomain(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// NormalizeNewHandle trims and lowercases raw and appends ".domainName" when
// it contains no dot. It is idempotent: "Example" and "example.<domain>"
// normalize to the same handle.
func NormalizeNewHandle(domainName, raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(h, ".") {
		h += "." + domainName
	}
	return h
}

// Workflow states reported in View.State.
const (
	StateStart           = "start"
	StateAccountNotFound = "account_not_found"
	StateProfileFound    = "profile_found"
	StateClaimed         = "claimed"
	StateRejected        = "rejected"
	StateTaken           = "taken"
	StateError           = "error"
)

// Input is the request state of one claim round trip.
type Input struct {
	// Handle is the existing account handle ("handle" query parameter).
	Handle string
	// NewHandle is the proposed username ("new-handle" query parameter).
	NewHandle string
}

// View is the claim page view model.
type View struct {
	Domain string `json:"domain"`
	State  string `json:"state"`
	// Handle is the normalized existing handle, empty before stage one.
	Handle  string          `json:"handle,omitempty"`
	Profile *domain.Profile `json:"profile,omitempty"`
	// NewHandle is the normalized proposed handle.
	NewHandle string `json:"new_handle,omitempty"`
	// CanPropose reports whether the username form is enabled.
	CanPropose bool `json:"can_propose"`
	// Claimed is true once the claim is committed (new or already owned).
	Claimed bool   `json:"claimed"`
	Error   string `json:"error,omitempty"`
}

// Run derives the view for in from scratch; see the package comment.
func (w *ClaimWorkflow) Run(ctx context.Context, domainName string, in Input) View {
	v := View{Domain: NormalizeDomain(domainName), State: StateStart}

	if strings.TrimSpace(in.Handle) == "" {
		return v
	}
	v.Handle = w.normalizeExisting(in.Handle)

	profile, err := w.LookupExistingAccount(ctx, in.Handle)
	if err != nil {
		v.State = StateAccountNotFound
		v.Error = MsgAccountNotFound
		return v
	}
	v.Profile = profile
	v.State = StateProfileFound
	v.CanPropose = true

	if strings.TrimSpace(in.NewHandle) == "" {
		return v
	}

	res, err := w.ProposeNewUsername(ctx, v.Domain, in.NewHandle, profile)
	v.NewHandle = res.Handle
	switch {
	case err == nil:
		v.State = StateClaimed
		v.Claimed = true
	case errors.Is(err, ErrInvalidUsername):
		v.State, v.Error = StateRejected, MsgInvalidUsername
	case errors.Is(err, ErrReservedUsername):
		v.State, v.Error = StateRejected, MsgReservedUsername
	case errors.Is(err, ErrUsernameTaken):
		v.State, v.Error = StateTaken, MsgUsernameTaken
	case errors.Is(err, ErrNotificationFailed):
		v.State, v.Error = StateError, MsgNotificationFailed
	default:
		v.State, v.Error = StateError, MsgUnexpected
	}
	return v
}
