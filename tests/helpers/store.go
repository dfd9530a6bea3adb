package helpers

import (
	"context"
	"testing"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// CreateTestUser inserts a user with the given email and tier.
func CreateTestUser(t *testing.T, s store.Store, email string, tier domain.RateLimitTier) *domain.User {
	t.Helper()

	user := &domain.User{Email: email, RateLimitTier: tier}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}
