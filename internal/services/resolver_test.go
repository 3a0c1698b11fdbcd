package services

import (
	"context"
	"errors"
	"testing"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAccountStore struct {
	byPageID map[string]*models.SocialAccount
	all      []*models.SocialAccount
	listErr  error
}

func (m *mockAccountStore) GetByPageID(ctx context.Context, platform, pageID string) (*models.SocialAccount, error) {
	if acc, ok := m.byPageID[pageID]; ok {
		return acc, nil
	}
	return nil, errors.New("not found")
}

func (m *mockAccountStore) ListByPlatform(ctx context.Context, platform string) ([]*models.SocialAccount, error) {
	return m.all, m.listErr
}

type mockRuleCounter struct {
	counts map[uuid.UUID]int64
}

func (m *mockRuleCounter) CountActiveByWorkspace(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	return m.counts[workspaceID], nil
}

func resolverConfig(legacyFallback bool, overrideToken string) *config.Config {
	cfg := &config.Config{}
	cfg.Webhook.LegacyFallback = legacyFallback
	cfg.Instagram.OverrideToken = overrideToken
	return cfg
}

func account(pageID, username string, primary bool) *models.SocialAccount {
	return &models.SocialAccount{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Platform:    models.PlatformInstagram,
		PageID:      pageID,
		Username:    username,
		AccessToken: "token-" + username,
		IsPrimary:   primary,
	}
}

func TestResolver_AuthoritativeLookup(t *testing.T) {
	acc := account("page_1", "mybrand", true)
	store := &mockAccountStore{byPageID: map[string]*models.SocialAccount{"page_1": acc}}
	r := NewResolver(store, &mockRuleCounter{}, resolverConfig(false, ""), logger.NewForTesting(), nil)

	got, err := r.Resolve(context.Background(), "page_1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, "token-mybrand", got.AccessToken, "stored token is used when no override is set")
}

func TestResolver_UnknownPageFailsWithoutFallback(t *testing.T) {
	store := &mockAccountStore{
		byPageID: map[string]*models.SocialAccount{},
		all:      []*models.SocialAccount{account("page_1", "mybrand", true)},
	}
	r := NewResolver(store, &mockRuleCounter{}, resolverConfig(false, ""), logger.NewForTesting(), nil)

	_, err := r.Resolve(context.Background(), "page_unknown")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolver_LegacyFallbackPrefersWorkspaceWithActiveRules(t *testing.T) {
	idle := account("page_1", "idle", true)
	busy := account("page_2", "busy", false)
	store := &mockAccountStore{
		byPageID: map[string]*models.SocialAccount{},
		all:      []*models.SocialAccount{idle, busy},
	}
	counts := &mockRuleCounter{counts: map[uuid.UUID]int64{busy.WorkspaceID: 3}}
	r := NewResolver(store, counts, resolverConfig(true, ""), logger.NewForTesting(), nil)

	got, err := r.Resolve(context.Background(), "page_unknown")
	require.NoError(t, err)
	assert.Equal(t, busy.ID, got.ID, "the workspace with active rules wins")
}

func TestResolver_LegacyFallbackLastResortIsFirstAccount(t *testing.T) {
	first := account("page_1", "first", true)
	second := account("page_2", "second", false)
	store := &mockAccountStore{
		byPageID: map[string]*models.SocialAccount{},
		all:      []*models.SocialAccount{first, second},
	}
	r := NewResolver(store, &mockRuleCounter{}, resolverConfig(true, ""), logger.NewForTesting(), nil)

	got, err := r.Resolve(context.Background(), "page_unknown")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "with no active rules anywhere, the first listed account wins")
}

func TestResolver_LegacyFallbackWithNoAccounts(t *testing.T) {
	store := &mockAccountStore{byPageID: map[string]*models.SocialAccount{}}
	r := NewResolver(store, &mockRuleCounter{}, resolverConfig(true, ""), logger.NewForTesting(), nil)

	_, err := r.Resolve(context.Background(), "page_unknown")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolver_OverrideTokenDoesNotMutateStoredAccount(t *testing.T) {
	acc := account("page_1", "mybrand", true)
	store := &mockAccountStore{byPageID: map[string]*models.SocialAccount{"page_1": acc}}
	r := NewResolver(store, &mockRuleCounter{}, resolverConfig(false, "dev-token"), logger.NewForTesting(), nil)

	got, err := r.Resolve(context.Background(), "page_1")
	require.NoError(t, err)
	assert.Equal(t, "dev-token", got.AccessToken)
	assert.Equal(t, "token-mybrand", acc.AccessToken, "the stored account keeps its own token")
}
