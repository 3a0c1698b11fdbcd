package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/commentpilot/commentpilot/internal/engine"
	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/google/uuid"
)

type mockResolver struct {
	accounts map[string]*models.SocialAccount
}

func (m *mockResolver) Resolve(ctx context.Context, pageID string) (*models.SocialAccount, error) {
	if acc, ok := m.accounts[pageID]; ok {
		return acc, nil
	}
	return nil, errors.New("no account for page")
}

type engineCall struct {
	workspaceID uuid.UUID
	event       models.CommentEvent
	accessToken string
}

type mockEngine struct {
	calls []engineCall
	panic bool
}

func (m *mockEngine) ProcessComment(ctx context.Context, workspaceID uuid.UUID, ev models.CommentEvent, accessToken string) engine.Result {
	if m.panic {
		panic("engine blew up")
	}
	m.calls = append(m.calls, engineCall{workspaceID, ev, accessToken})
	return engine.Result{Triggered: true, Actions: []string{"Replied to comment: ok"}}
}

type mockEventStore struct {
	events []*models.PlatformEvent
	err    error
}

func (m *mockEventStore) Create(ctx context.Context, event *models.PlatformEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func newTestProcessor(resolver *mockResolver) (*Processor, *mockEngine, *mockEventStore) {
	eng := &mockEngine{}
	events := &mockEventStore{}
	p := NewProcessor(resolver, eng, events, nil, logger.NewForTesting(), nil)
	return p, eng, events
}

func testAccount(pageID string) *models.SocialAccount {
	return &models.SocialAccount{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Platform:    models.PlatformInstagram,
		PageID:      pageID,
		Username:    "mybrand",
		AccessToken: "page-token",
	}
}

func commentChange(t *testing.T, value models.CommentValue) models.WebhookChange {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatal(err)
	}
	return models.WebhookChange{Field: "comments", Value: raw}
}

func TestProcess_RoutesCommentToEngine(t *testing.T) {
	account := testAccount("page_1")
	p, eng, _ := newTestProcessor(&mockResolver{accounts: map[string]*models.SocialAccount{"page_1": account}})

	payload := &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID: "page_1",
			Changes: []models.WebhookChange{commentChange(t, models.CommentValue{
				ID:    "c1",
				Text:  "what's the price?",
				From:  models.CommentAuthor{ID: "u9", Username: "shopper"},
				Media: &models.CommentMedia{ID: "m1"},
			})},
		}},
	}

	p.Process(context.Background(), payload)

	if len(eng.calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(eng.calls))
	}
	call := eng.calls[0]
	if call.workspaceID != account.WorkspaceID {
		t.Error("engine must receive the resolved workspace")
	}
	if call.accessToken != "page-token" {
		t.Error("engine must receive the account's token")
	}
	if call.event.CommentID != "c1" || call.event.MediaID != "m1" || call.event.Text != "what's the price?" {
		t.Errorf("unexpected comment event: %+v", call.event)
	}
}

func TestProcess_SkipsOwnComments(t *testing.T) {
	account := testAccount("page_1")
	p, eng, _ := newTestProcessor(&mockResolver{accounts: map[string]*models.SocialAccount{"page_1": account}})

	byPageID := models.CommentValue{ID: "c1", Text: "price", From: models.CommentAuthor{ID: account.PageID}}
	byUsername := models.CommentValue{ID: "c2", Text: "price", From: models.CommentAuthor{ID: "other", Username: "mybrand"}}

	p.Process(context.Background(), &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      "page_1",
			Changes: []models.WebhookChange{commentChange(t, byPageID), commentChange(t, byUsername)},
		}},
	})

	if len(eng.calls) != 0 {
		t.Errorf("own comments must never reach the engine, got %d calls", len(eng.calls))
	}
}

type mockIdentity struct {
	username string
	err      error
}

func (m *mockIdentity) PageUsername(ctx context.Context, accessToken string) (string, error) {
	return m.username, m.err
}

func TestProcess_OwnCommentDetectedThroughIdentityLookup(t *testing.T) {
	account := testAccount("page_1")
	account.Username = ""
	resolver := &mockResolver{accounts: map[string]*models.SocialAccount{"page_1": account}}

	eng := &mockEngine{}
	events := &mockEventStore{}
	p := NewProcessor(resolver, eng, events, &mockIdentity{username: "mybrand"}, logger.NewForTesting(), nil)

	own := models.CommentValue{ID: "c1", Text: "price", From: models.CommentAuthor{ID: "other", Username: "mybrand"}}
	stranger := models.CommentValue{ID: "c2", Text: "price", From: models.CommentAuthor{ID: "u9", Username: "shopper"}}

	p.Process(context.Background(), &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      "page_1",
			Changes: []models.WebhookChange{commentChange(t, own), commentChange(t, stranger)},
		}},
	})

	if len(eng.calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(eng.calls))
	}
	if eng.calls[0].event.CommentID != "c2" {
		t.Errorf("the stranger's comment should reach the engine, got %q", eng.calls[0].event.CommentID)
	}
}

func TestProcess_UnresolvedEntryIsPersistedNotProcessed(t *testing.T) {
	p, eng, events := newTestProcessor(&mockResolver{accounts: map[string]*models.SocialAccount{}})

	p.Process(context.Background(), &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID: "unknown_page",
			Changes: []models.WebhookChange{commentChange(t, models.CommentValue{
				ID: "c1", Text: "price", From: models.CommentAuthor{ID: "u9"},
			})},
		}},
	})

	if len(eng.calls) != 0 {
		t.Error("unroutable entries must not reach the engine")
	}
	if len(events.events) != 1 {
		t.Fatalf("unroutable entries must be persisted, got %d", len(events.events))
	}
	if events.events[0].WorkspaceID != nil {
		t.Error("orphan events carry no workspace")
	}
	if events.events[0].PageID != "unknown_page" {
		t.Errorf("orphan event must keep the page id, got %q", events.events[0].PageID)
	}
}

func TestProcess_NonCommentChangesArePersisted(t *testing.T) {
	account := testAccount("page_1")
	p, eng, events := newTestProcessor(&mockResolver{accounts: map[string]*models.SocialAccount{"page_1": account}})

	p.Process(context.Background(), &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID: "page_1",
			Changes: []models.WebhookChange{
				{Field: "mentions", Value: json.RawMessage(`{"media_id":"m5","comment_id":"c7"}`)},
				{Field: "story_insights", Value: json.RawMessage(`{"impressions":120}`)},
			},
			Messaging: []json.RawMessage{json.RawMessage(`{"sender":{"id":"u1"}}`)},
		}},
	})

	if len(eng.calls) != 0 {
		t.Error("non-comment changes must not reach the engine")
	}
	if len(events.events) != 3 {
		t.Fatalf("expected 3 persisted events, got %d", len(events.events))
	}
	fields := map[string]bool{}
	for _, ev := range events.events {
		fields[ev.Field] = true
		if ev.WorkspaceID == nil || *ev.WorkspaceID != account.WorkspaceID {
			t.Error("resolved events must carry the workspace")
		}
	}
	for _, want := range []string{"mentions", "story_insights", "messaging"} {
		if !fields[want] {
			t.Errorf("missing persisted field %q", want)
		}
	}
}

func TestProcess_EntryPanicDoesNotStopOtherEntries(t *testing.T) {
	account := testAccount("page_2")
	resolver := &mockResolver{accounts: map[string]*models.SocialAccount{
		"page_1": testAccount("page_1"),
		"page_2": account,
	}}

	eng := &mockEngine{panic: true}
	events := &mockEventStore{}
	p := NewProcessor(resolver, eng, events, nil, logger.NewForTesting(), nil)

	change := commentChange(t, models.CommentValue{ID: "c1", Text: "price", From: models.CommentAuthor{ID: "u9"}})

	payload := &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{
			{ID: "page_1", Changes: []models.WebhookChange{change}},
			{ID: "page_2", Changes: []models.WebhookChange{{Field: "mentions", Value: json.RawMessage(`{"media_id":"m5"}`)}}},
		},
	}

	p.Process(context.Background(), payload)

	if len(events.events) != 1 || events.events[0].Field != "mentions" {
		t.Errorf("second entry must still be processed after a panic, events: %+v", events.events)
	}
}

func TestProcess_MalformedCommentIsSkipped(t *testing.T) {
	account := testAccount("page_1")
	p, eng, _ := newTestProcessor(&mockResolver{accounts: map[string]*models.SocialAccount{"page_1": account}})

	p.Process(context.Background(), &models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID: "page_1",
			Changes: []models.WebhookChange{
				{Field: "comments", Value: json.RawMessage(`"not an object"`)},
				{Field: "comments", Value: json.RawMessage(`{"text":"missing id"}`)},
				commentChange(t, models.CommentValue{ID: "c1", Text: "price", From: models.CommentAuthor{ID: "u9"}}),
			},
		}},
	})

	if len(eng.calls) != 1 {
		t.Errorf("only the well-formed comment reaches the engine, got %d calls", len(eng.calls))
	}
}
