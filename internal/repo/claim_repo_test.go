package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/atproto-handles/internal/domain"
)

func newClaimDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:claimrepo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetOrCreateDomain_CreatesOnceThenReuses(t *testing.T) {
	db := newClaimDB(t)
	ctx := context.Background()

	d1, err := GetOrCreateDomain(ctx, db, "example.com")
	if err != nil {
		t.Fatalf("first GetOrCreateDomain: %v", err)
	}
	if d1.ID == 0 || d1.Name != "example.com" || d1.CreatedAt.IsZero() {
		t.Fatalf("unexpected domain: %+v", d1)
	}

	d2, err := GetOrCreateDomain(ctx, db, "example.com")
	if err != nil {
		t.Fatalf("second GetOrCreateDomain: %v", err)
	}
	if d2.ID != d1.ID {
		t.Fatalf("expected same domain row, got %d vs %d", d2.ID, d1.ID)
	}

	var n int64
	db.Model(&domain.Domain{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one domain row, got %d", n)
	}
}

func TestFindDomain_NotFound(t *testing.T) {
	db := newClaimDB(t)
	_, err := FindDomain(context.Background(), db, "missing.example")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateClaim_And_FindClaim_ScopedByDomain(t *testing.T) {
	db := newClaimDB(t)
	ctx := context.Background()

	a, _ := GetOrCreateDomain(ctx, db, "a.example")
	b, _ := GetOrCreateDomain(ctx, db, "b.example")

	c, err := CreateClaim(ctx, db, a, "alice", "did:plc:aaa")
	if err != nil {
		t.Fatalf("CreateClaim a: %v", err)
	}
	if c.ID == 0 || c.Domain.Name != "a.example" {
		t.Fatalf("unexpected created claim: %+v", c)
	}
	if _, err := CreateClaim(ctx, db, b, "alice", "did:plc:bbb"); err != nil {
		t.Fatalf("CreateClaim b: %v", err)
	}

	got, err := FindClaim(ctx, db, "b.example", "alice")
	if err != nil {
		t.Fatalf("FindClaim: %v", err)
	}
	if got.DID != "did:plc:bbb" || got.Domain.Name != "b.example" {
		t.Fatalf("FindClaim returned wrong row: %+v", got)
	}

	if _, err := FindClaim(ctx, db, "a.example", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing username, got %v", err)
	}
	if _, err := FindClaim(ctx, db, "c.example", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing domain, got %v", err)
	}
}

func TestCreateClaim_Duplicate_ReturnsErrDuplicate(t *testing.T) {
	db := newClaimDB(t)
	ctx := context.Background()
	d, _ := GetOrCreateDomain(ctx, db, "example.com")

	if _, err := CreateClaim(ctx, db, d, "alice", "did:plc:1"); err != nil {
		t.Fatalf("first CreateClaim: %v", err)
	}
	_, err := CreateClaim(ctx, db, d, "alice", "did:plc:2")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	n, err := CountClaims(ctx, db, "example.com", "alice")
	if err != nil || n != 1 {
		t.Fatalf("CountClaims = %d, %v; want 1", n, err)
	}
}

func TestCreateClaim_Error_NoTable(t *testing.T) {
	dsn := fmt.Sprintf("file:claimrepo_empty_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	_, err = CreateClaim(context.Background(), db, &domain.Domain{ID: 1, Name: "x"}, "alice", "did:plc:1")
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected raw error when users table is missing, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey), true},
		{errors.New("UNIQUE constraint failed: users.domain_id, users.username"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "ux_users_domain_username"`), true},
		{errors.New("no such table: users"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("isUniqueViolation(%v) = %v; want %v", tc.err, got, tc.want)
		}
	}
}
