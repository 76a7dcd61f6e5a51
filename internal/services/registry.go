// Package services – Registry
//
// This file implements the Registry, the durable mapping from
// (domain, username) to DID. It answers resolution queries and performs the
// check-then-insert claim with friendly conflict reporting. The storage layer
// carries a unique index on (domain_id, username); a lost insert race is
// translated back into the same outcome the pre-insert check would have
// produced, so concurrent claims cannot create duplicates.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/atproto-handles/internal/domain"
	"github.com/tbourn/atproto-handles/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ClaimRepo defines the repository contract required by the Registry.
type ClaimRepo interface {
	// FindClaim fetches the claim for (domainName, username) or returns
	// repo.ErrNotFound.
	FindClaim(ctx context.Context, db *gorm.DB, domainName, username string) (*domain.Claim, error)

	// GetOrCreateDomain returns the domain row named name, creating it first
	// when absent.
	GetOrCreateDomain(ctx context.Context, db *gorm.DB, name string) (*domain.Domain, error)

	// CreateClaim inserts a claim; a unique violation returns repo.ErrDuplicate.
	CreateClaim(ctx context.Context, db *gorm.DB, d *domain.Domain, username, did string) (*domain.Claim, error)
}

// ClaimOutcome is the successful result of Registry.Claim.
type ClaimOutcome int

const (
	// ClaimCreated means a new row was written.
	ClaimCreated ClaimOutcome = iota + 1
	// ClaimAlreadyOwned means the username was already bound to the same DID;
	// nothing was written.
	ClaimAlreadyOwned
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimCreated:
		return "created"
	case ClaimAlreadyOwned:
		return "already_owned"
	default:
		return "unknown"
	}
}

// Registry owns the claim table.
type Registry struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the claim repository used by this service.
	Repo ClaimRepo
}

// NewRegistry constructs a Registry.
func NewRegistry(db *gorm.DB, r ClaimRepo) *Registry {
	return &Registry{DB: db, Repo: r}
}

// Resolve returns the DID claimed for username under domainName.
// It fails with ErrClaimNotFound when no claim exists and *StorageError on any
// other failure. No normalization is applied.
func (s *Registry) Resolve(ctx context.Context, domainName, username string) (string, error) {
	c, err := s.lookup(ctx, "Resolve", domainName, username)
	switch {
	case err == nil:
		resolutionsTotal.WithLabelValues("found").Inc()
		return c.DID, nil
	case errors.Is(err, ErrClaimNotFound):
		resolutionsTotal.WithLabelValues("not_found").Inc()
	default:
		resolutionsTotal.WithLabelValues("error").Inc()
	}
	return "", err
}

// Lookup returns the full claim row for (domainName, username) with its
// Domain preloaded. Errors follow Resolve.
func (s *Registry) Lookup(ctx context.Context, domainName, username string) (*domain.Claim, error) {
	return s.lookup(ctx, "Lookup", domainName, username)
}

func (s *Registry) lookup(ctx context.Context, op, domainName, username string) (*domain.Claim, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("handle.domain", domainName),
			attribute.String("handle.username", username),
		),
	)
	defer span.End()

	c, err := s.Repo.FindClaim(ctx, s.DB, domainName, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "find claim")
		return nil, &StorageError{Op: "find claim", Err: err}
	}
	return c, nil
}

// Claim binds username under domainName to did.
//
// Outcomes:
//   - no claim yet: the Domain row is created if needed and the claim is
//     inserted (ClaimCreated)
//   - claimed by the same DID: no-op (ClaimAlreadyOwned)
//   - claimed by a different DID: ErrUsernameTaken, stored DID unchanged
//   - persistence failure: *StorageError
//
// The existing claim is looked up by the compound (domain, username), so the
// same username under another domain never interferes.
func (s *Registry) Claim(ctx context.Context, domainName, username, did string) (ClaimOutcome, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "Claim",
		trace.WithAttributes(
			attribute.String("handle.domain", domainName),
			attribute.String("handle.username", username),
			attribute.String("handle.did", did),
		),
	)
	defer span.End()

	out, err := s.claim(ctx, domainName, username, did)
	switch {
	case err == nil:
		claimsTotal.WithLabelValues(out.String()).Inc()
		span.SetAttributes(attribute.String("handle.claim_outcome", out.String()))
	case errors.Is(err, ErrUsernameTaken):
		claimsTotal.WithLabelValues("taken").Inc()
	default:
		claimsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim")
	}
	return out, err
}

func (s *Registry) claim(ctx context.Context, domainName, username, did string) (ClaimOutcome, error) {
	existing, err := s.Repo.FindClaim(ctx, s.DB, domainName, username)
	switch {
	case err == nil:
		return compareOwner(existing, did)
	case !errors.Is(err, repo.ErrNotFound):
		return 0, &StorageError{Op: "find claim", Err: err}
	}

	d, err := s.Repo.GetOrCreateDomain(ctx, s.DB, domainName)
	if err != nil {
		return 0, &StorageError{Op: "get or create domain", Err: err}
	}

	if _, err := s.Repo.CreateClaim(ctx, s.DB, d, username, did); err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			return 0, &StorageError{Op: "create claim", Err: err}
		}
		// Lost the race: report against the row that won.
		winner, ferr := s.Repo.FindClaim(ctx, s.DB, domainName, username)
		if ferr != nil {
			return 0, &StorageError{Op: "find claim", Err: ferr}
		}
		return compareOwner(winner, did)
	}
	return ClaimCreated, nil
}

func compareOwner(c *domain.Claim, did string) (ClaimOutcome, error) {
	if c.DID == did {
		return ClaimAlreadyOwned, nil
	}
	return 0, ErrUsernameTaken
}
