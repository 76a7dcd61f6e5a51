// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Domain and
// Claim models.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving the claim rules (idempotent re-claim, conflict
// detection) to the services package.
//
// Error semantics:
//   - Lookups that match nothing return ErrNotFound.
//   - An insert that trips the (domain_id, username) unique index returns
//     ErrDuplicate so the service can re-read the winning row.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/atproto-handles/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a unique index rejected an insert.
var ErrDuplicate = errors.New("duplicate")

// FindDomain returns the domain row with the given name or ErrNotFound.
func FindDomain(ctx context.Context, db *gorm.DB, name string) (*domain.Domain, error) {
	var d domain.Domain
	if err := db.WithContext(ctx).Where("name = ?", name).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetOrCreateDomain returns the domain row named name, inserting it first if
// it does not exist. A concurrent insert of the same name is tolerated: the
// loser re-reads the row the winner created.
func GetOrCreateDomain(ctx context.Context, db *gorm.DB, name string) (*domain.Domain, error) {
	d, err := FindDomain(ctx, db, name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	d = &domain.Domain{Name: name, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return FindDomain(ctx, db, name)
		}
		return nil, err
	}
	return d, nil
}

// FindClaim fetches the claim for username under the domain named domainName,
// with its Domain preloaded. The lookup is keyed by the compound
// (domain, username); it returns ErrNotFound when either part is missing.
func FindClaim(ctx context.Context, db *gorm.DB, domainName, username string) (*domain.Claim, error) {
	tx := db.WithContext(ctx)
	domainIDs := tx.Model(&domain.Domain{}).Select("id").Where("name = ?", domainName)

	var c domain.Claim
	err := tx.Preload("Domain").
		Where("username = ? AND domain_id IN (?)", username, domainIDs).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClaim inserts a claim for username under d bound to did.
//
// The (domain_id, username) pair must be unique. A violation is reported as
// ErrDuplicate; other failures return the raw DB error.
func CreateClaim(ctx context.Context, db *gorm.DB, d *domain.Domain, username, did string) (*domain.Claim, error) {
	c := &domain.Claim{
		DomainID:  d.ID,
		Username:  username,
		DID:       did,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("Domain").Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	c.Domain = *d
	return c, nil
}

// CountClaims returns the number of claims stored for (domainName, username).
// With the unique index in place this is 0 or 1.
func CountClaims(ctx context.Context, db *gorm.DB, domainName, username string) (int64, error) {
	tx := db.WithContext(ctx)
	domainIDs := tx.Model(&domain.Domain{}).Select("id").Where("name = ?", domainName)

	var n int64
	err := tx.Model(&domain.Claim{}).
		Where("username = ? AND domain_id IN (?)", username, domainIDs).
		Count(&n).Error
	return n, err
}

// isUniqueViolation detects unique-constraint violations across drivers,
// including those that do not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
