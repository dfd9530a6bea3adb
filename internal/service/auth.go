package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// Authenticate resolves the calling user. The X-Api-Key value is checked
// first, then the bearer token of the Authorization header.
func (s *Service) Authenticate(ctx context.Context, apiKey, authorization string) (*domain.User, error) {
	if apiKey != "" {
		user, err := s.store.GetUserByAPIKey(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to look up api key: %w", err)
		}
		if user != nil {
			return user, nil
		}
	}

	token, ok := bearerToken(authorization)
	if !ok || s.tokens == nil {
		return nil, ErrUnauthorized
	}
	userID, err := s.tokens.Parse(token)
	if err != nil {
		log.Debugf("rejected bearer token: %v", err)
		return nil, ErrUnauthorized
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// IssueToken creates an access token for an existing user.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", ErrUnauthorized
	}
	return s.tokens.Issue(user.ID, 0)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthorizeWatch checks that the credentials belong to the owner of the
// session a watcher asks to follow.
func (s *Service) AuthorizeWatch(ctx context.Context, apiKey, authorization, sessionID string) error {
	user, err := s.Authenticate(ctx, apiKey, authorization)
	if err != nil {
		return err
	}
	_, err = s.ownedSession(ctx, user, sessionID)
	return err
}
