package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/google/uuid"
)

// Mock RuleStore
type mockRuleStore struct {
	rules []*models.AutomationRule
	err   error
}

func (m *mockRuleStore) ListActive(ctx context.Context, workspaceID uuid.UUID) ([]*models.AutomationRule, error) {
	return m.rules, m.err
}

// Mock LogStore
type mockLogStore struct {
	entries []*models.AutomationLog
	err     error
}

func (m *mockLogStore) Create(ctx context.Context, entry *models.AutomationLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

// Mock Messenger
type mockMessenger struct {
	replyCalls []string
	dmCalls    []string
	replyErr   error
	dmErr      error
}

func (m *mockMessenger) ReplyToComment(ctx context.Context, commentID, text, accessToken string) error {
	m.replyCalls = append(m.replyCalls, text)
	return m.replyErr
}

func (m *mockMessenger) SendPrivateReply(ctx context.Context, commentID, text, accessToken string) error {
	m.dmCalls = append(m.dmCalls, text)
	return m.dmErr
}

type testHarness struct {
	engine    *Engine
	logs      *mockLogStore
	messenger *mockMessenger
	slept     []time.Duration
}

func newHarness(rules ...*models.AutomationRule) *testHarness {
	h := &testHarness{
		logs:      &mockLogStore{},
		messenger: &mockMessenger{},
	}

	h.engine = New(
		&mockRuleStore{rules: rules},
		h.logs,
		h.messenger,
		logger.NewForTesting(),
		nil,
		WithSleeper(func(ctx context.Context, d time.Duration) {
			h.slept = append(h.slept, d)
		}),
		WithPicker(func(n int) int { return 0 }),
	)

	return h
}

func activeRule(ruleType models.RuleType, keywords []string, responses, dms []string) *models.AutomationRule {
	return &models.AutomationRule{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "test rule",
		RuleType:    ruleType,
		Keywords:    keywords,
		Responses: models.ResponseSet{
			CommentResponses: responses,
			DMResponses:      dms,
		},
		IsActive: true,
	}
}

func commentEvent(text string) models.CommentEvent {
	return models.CommentEvent{
		CommentID: "c1",
		UserID:    "u1",
		Username:  "commenter",
		Text:      text,
	}
}

func TestProcessComment_CommentDMRuleFiresBothPhases(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"Check DM!"}, []string{"Our price is $99"})
	h := newHarness(rule)

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("what's the price?"), "tok")

	if !result.Triggered {
		t.Fatal("expected rule to trigger")
	}
	if len(result.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %v", result.Actions)
	}
	if result.Actions[0] != "Replied to comment: Check DM!" {
		t.Errorf("unexpected comment action: %q", result.Actions[0])
	}
	if result.Actions[1] != "Sent DM: Our price is $99" {
		t.Errorf("unexpected dm action: %q", result.Actions[1])
	}

	if len(h.logs.entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(h.logs.entries))
	}
	for _, entry := range h.logs.entries {
		if entry.Status != models.ActionStatusSent {
			t.Errorf("expected status sent, got %s", entry.Status)
		}
		if entry.TriggerText != "what's the price?" {
			t.Errorf("expected trigger text preserved, got %q", entry.TriggerText)
		}
	}
	if h.logs.entries[0].ActionType != models.ActionTypeComment || h.logs.entries[1].ActionType != models.ActionTypeDM {
		t.Errorf("expected comment then dm log entries")
	}
}

func TestProcessComment_NoMatchDoesNothing(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"Check DM!"}, []string{"Our price is $99"})
	h := newHarness(rule)

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("nice post"), "tok")

	if result.Triggered {
		t.Error("expected no trigger")
	}
	if len(result.Actions) != 0 {
		t.Errorf("expected no actions, got %v", result.Actions)
	}
	if len(h.logs.entries) != 0 {
		t.Errorf("expected no log entries, got %d", len(h.logs.entries))
	}
	if len(h.messenger.replyCalls)+len(h.messenger.dmCalls) != 0 {
		t.Error("expected no gateway calls")
	}
}

func TestProcessComment_KeywordMatchIsCaseInsensitiveSubstring(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentOnly, []string{"info"}, []string{"Sent!"}, nil)
	h := newHarness(rule)

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("Please send INFO!!"), "tok")

	if !result.Triggered {
		t.Fatal("expected case-insensitive substring match to trigger")
	}
}

func TestProcessComment_EmptyKeywordsNeverTriggers(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, nil, []string{"hi"}, []string{"hello"})
	h := newHarness(rule)

	for _, text := range []string{"", "anything", "price info deal"} {
		result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent(text), "tok")
		if result.Triggered {
			t.Errorf("rule with no keywords must not trigger on %q", text)
		}
	}
}

func TestProcessComment_MediaTargeting(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentOnly, []string{"price"}, []string{"hi"}, nil)
	rule.TargetMediaIDs = []string{"m123"}
	h := newHarness(rule)

	ev := commentEvent("price?")
	ev.MediaID = "m999"
	if result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, ev, "tok"); result.Triggered {
		t.Error("rule must not trigger on a non-targeted post")
	}

	ev.MediaID = ""
	if result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, ev, "tok"); result.Triggered {
		t.Error("rule must not trigger when the media id is missing")
	}

	ev.MediaID = "m123"
	if result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, ev, "tok"); !result.Triggered {
		t.Error("rule must trigger on the targeted post")
	}
}

func TestProcessComment_DMOnlyNeverRepliesToComment(t *testing.T) {
	rule := activeRule(models.RuleTypeDMOnly, []string{"price"}, []string{"should not be used"}, []string{"dm text"})
	h := newHarness(rule)

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("price?"), "tok")

	if !result.Triggered {
		t.Fatal("expected trigger")
	}
	if len(h.messenger.replyCalls) != 0 {
		t.Errorf("dm_only rule must not call the comment-reply operation, got %v", h.messenger.replyCalls)
	}
	if len(h.messenger.dmCalls) != 1 {
		t.Errorf("expected one dm call, got %v", h.messenger.dmCalls)
	}
	if len(h.slept) != 0 {
		t.Errorf("dm_only rule must not pace the send, slept %v", h.slept)
	}
}

func TestProcessComment_FailedCommentPhaseStillAttemptsDM(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"hi"}, []string{"dm text"})
	h := newHarness(rule)
	h.messenger.replyErr = errors.New("rate limited")

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("price?"), "tok")

	if !result.Triggered {
		t.Fatal("trigger is independent of send success")
	}
	if len(result.Actions) != 1 || result.Actions[0] != "Sent DM: dm text" {
		t.Errorf("expected only the dm action, got %v", result.Actions)
	}
	if len(h.messenger.dmCalls) != 1 {
		t.Error("dm phase must run after a failed comment phase")
	}
	if len(h.slept) != 0 {
		t.Errorf("no pacing delay after a failed comment reply, slept %v", h.slept)
	}

	if len(h.logs.entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(h.logs.entries))
	}
	if h.logs.entries[0].Status != models.ActionStatusFailed {
		t.Error("comment phase entry must be failed")
	}
	if h.logs.entries[0].Error == nil || *h.logs.entries[0].Error != "rate limited" {
		t.Error("failed entry must carry the raw error text")
	}
	if h.logs.entries[1].Status != models.ActionStatusSent {
		t.Error("dm phase entry must be sent")
	}
}

func TestProcessComment_DelayOnlyAfterSuccessfulCommentReply(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"hi"}, []string{"dm"})
	h := newHarness(rule)

	h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("price?"), "tok")

	if len(h.slept) != 1 || h.slept[0] != 2*time.Second {
		t.Errorf("expected a single 2s pacing delay, got %v", h.slept)
	}
}

func TestProcessComment_FailedDMIsLoggedNotReturned(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"hi"}, []string{"dm"})
	h := newHarness(rule)
	h.messenger.dmErr = errors.New("messaging window closed")

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("price?"), "tok")

	if len(result.Actions) != 1 {
		t.Errorf("failed dm must not appear in actions, got %v", result.Actions)
	}
	if len(h.logs.entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(h.logs.entries))
	}
	if h.logs.entries[1].Status != models.ActionStatusFailed {
		t.Error("dm entry must be failed")
	}
}

func TestProcessComment_MultipleRulesFireIndependently(t *testing.T) {
	workspaceID := uuid.New()

	first := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"price reply"}, []string{"price dm"})
	first.WorkspaceID = workspaceID
	second := activeRule(models.RuleTypeCommentDM, []string{"ship"}, []string{"ship reply"}, []string{"ship dm"})
	second.WorkspaceID = workspaceID

	h := newHarness(first, second)

	result := h.engine.ProcessComment(context.Background(), workspaceID, commentEvent("price and shipping?"), "tok")

	if !result.Triggered {
		t.Fatal("expected trigger")
	}
	if len(result.Actions) != 4 {
		t.Errorf("expected actions from both rules, got %v", result.Actions)
	}
	if len(h.logs.entries) != 4 {
		t.Errorf("expected 4 log rows, got %d", len(h.logs.entries))
	}
}

func TestProcessComment_RuleWithoutResponsesSkipsPhase(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, nil, []string{"dm only content"})
	h := newHarness(rule)

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("price?"), "tok")

	if !result.Triggered {
		t.Fatal("expected trigger")
	}
	if len(h.messenger.replyCalls) != 0 {
		t.Error("empty comment-response pool must skip phase 1")
	}
	if len(h.messenger.dmCalls) != 1 {
		t.Error("dm phase must still run")
	}
	if len(h.slept) != 0 {
		t.Error("no pacing delay when phase 1 did not run")
	}
}

func TestProcessComment_RuleStoreFailureReturnsEmptyResult(t *testing.T) {
	h := &testHarness{logs: &mockLogStore{}, messenger: &mockMessenger{}}
	h.engine = New(
		&mockRuleStore{err: errors.New("connection refused")},
		h.logs,
		h.messenger,
		logger.NewForTesting(),
		nil,
	)

	result := h.engine.ProcessComment(context.Background(), uuid.New(), commentEvent("price?"), "tok")

	if result.Triggered || len(result.Actions) != 0 {
		t.Errorf("store failure must yield an empty result, got %+v", result)
	}
}

func TestProcessComment_LogWriteFailureDoesNotAbort(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentDM, []string{"price"}, []string{"hi"}, []string{"dm"})
	h := newHarness(rule)
	h.logs.err = errors.New("disk full")

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("price?"), "tok")

	if !result.Triggered || len(result.Actions) != 2 {
		t.Errorf("log failures must not affect dispatch, got %+v", result)
	}
}

func TestProcessComment_PicksFromResponsePool(t *testing.T) {
	rule := activeRule(models.RuleTypeCommentOnly, []string{"hi"}, []string{"a", "b", "c"}, nil)
	h := newHarness(rule)

	// Force selection of the last response.
	h.engine.pick = func(n int) int { return n - 1 }

	result := h.engine.ProcessComment(context.Background(), rule.WorkspaceID, commentEvent("hi"), "tok")

	if len(result.Actions) != 1 || result.Actions[0] != "Replied to comment: c" {
		t.Errorf("expected the picked response, got %v", result.Actions)
	}
}
