package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/commentpilot/commentpilot/internal/gateway"
	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
	"github.com/google/uuid"
)

// RuleStore is the engine's read-only view of stored rules
type RuleStore interface {
	ListActive(ctx context.Context, workspaceID uuid.UUID) ([]*models.AutomationRule, error)
}

// LogStore appends automation audit entries
type LogStore interface {
	Create(ctx context.Context, log *models.AutomationLog) error
}

// Result reports what a single comment dispatch did. Triggered is true
// when at least one rule matched, even if every send failed; Actions
// describes only the successful sends.
type Result struct {
	Triggered bool     `json:"triggered"`
	Actions   []string `json:"actions"`
}

// Engine matches inbound comments against a workspace's automation rules
// and runs the two-phase reply protocol per triggered rule. It performs
// no deduplication: replay protection is the ingress's responsibility,
// and repeated calls with the same comment repeat the side effects.
type Engine struct {
	rules     RuleStore
	logs      LogStore
	messenger gateway.Messenger
	logger    *logger.Logger
	metrics   *metrics.Metrics

	replyDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration)
	pick       func(n int) int
}

// Option configures an Engine
type Option func(*Engine)

// WithReplyDelay sets the pause between a successful comment reply and
// the follow-up DM on comment_dm rules. The pause gives the platform
// time to index the public reply before the private one references it.
func WithReplyDelay(d time.Duration) Option {
	return func(e *Engine) { e.replyDelay = d }
}

// WithSleeper replaces the delay implementation, for tests
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithPicker replaces the random response selector, for tests
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) { e.pick = pick }
}

// New creates a new automation engine
func New(rules RuleStore, logs LogStore, messenger gateway.Messenger, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Engine {
	e := &Engine{
		rules:      rules,
		logs:       logs,
		messenger:  messenger,
		logger:     log,
		metrics:    m,
		replyDelay: 2 * time.Second,
		sleep:      sleepContext,
		pick:       rand.Intn,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ProcessComment evaluates every active rule of the workspace against the
// comment and executes the reply phases of each match. It never returns
// an error: gateway failures are folded into the audit log, and rules
// fail independently of each other.
func (e *Engine) ProcessComment(ctx context.Context, workspaceID uuid.UUID, ev models.CommentEvent, accessToken string) Result {
	result := Result{Actions: []string{}}

	rules, err := e.rules.ListActive(ctx, workspaceID)
	if err != nil {
		e.logger.Error("Failed to load automation rules",
			logger.String("workspace_id", workspaceID.String()),
			logger.Err(err),
		)
		return result
	}

	for _, rule := range rules {
		e.metrics.RecordRuleEvaluated()

		if !e.ruleMatches(rule, ev) {
			continue
		}

		e.metrics.RecordRuleTriggered(string(rule.RuleType))
		result.Triggered = true

		e.logger.Info("Automation rule triggered",
			logger.String("rule_id", rule.ID.String()),
			logger.String("rule_type", string(rule.RuleType)),
			logger.String("comment_id", ev.CommentID),
		)

		actions := e.dispatch(ctx, rule, ev, accessToken)
		result.Actions = append(result.Actions, actions...)
	}

	return result
}

// ruleMatches applies the trigger conditions: media targeting first, then
// case-insensitive substring match over the keyword set (OR-combined).
// A rule with no keywords never triggers.
func (e *Engine) ruleMatches(rule *models.AutomationRule, ev models.CommentEvent) bool {
	if len(rule.Keywords) == 0 {
		return false
	}

	if !rule.AppliesToMedia(ev.MediaID) {
		return false
	}

	text := strings.ToLower(ev.Text)
	for _, keyword := range rule.Keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

// dispatch runs the two-phase reply protocol for one triggered rule and
// returns descriptions of the successful sends.
func (e *Engine) dispatch(ctx context.Context, rule *models.AutomationRule, ev models.CommentEvent, accessToken string) []string {
	var actions []string

	commentReplied := false

	// Phase 1: public comment reply.
	if rule.RuleType.RepliesToComment() && len(rule.Responses.CommentResponses) > 0 {
		text := rule.Responses.CommentResponses[e.pick(len(rule.Responses.CommentResponses))]

		err := e.messenger.ReplyToComment(ctx, ev.CommentID, text, accessToken)
		e.record(ctx, rule, ev, models.ActionTypeComment, text, err)

		if err == nil {
			commentReplied = true
			actions = append(actions, fmt.Sprintf("Replied to comment: %s", text))
		}
		// A failed comment reply does not stop the DM phase.
	}

	// Phase 2: private reply.
	if rule.RuleType.SendsDM() && len(rule.Responses.DMResponses) > 0 {
		if commentReplied && rule.RuleType == models.RuleTypeCommentDM {
			e.sleep(ctx, e.replyDelay)
		}

		text := rule.Responses.DMResponses[e.pick(len(rule.Responses.DMResponses))]

		err := e.messenger.SendPrivateReply(ctx, ev.CommentID, text, accessToken)
		e.record(ctx, rule, ev, models.ActionTypeDM, text, err)

		if err == nil {
			actions = append(actions, fmt.Sprintf("Sent DM: %s", text))
		}
	}

	return actions
}

// record appends one audit entry for an attempted phase
func (e *Engine) record(ctx context.Context, rule *models.AutomationRule, ev models.CommentEvent, actionType models.ActionType, responseText string, sendErr error) {
	entry := &models.AutomationLog{
		RuleID:         rule.ID,
		WorkspaceID:    rule.WorkspaceID,
		ActionType:     actionType,
		TriggerText:    ev.Text,
		ResponseText:   responseText,
		TargetUserID:   ev.UserID,
		TargetUsername: ev.Username,
		Status:         models.ActionStatusSent,
	}

	if sendErr != nil {
		entry.Status = models.ActionStatusFailed
		msg := sendErr.Error()
		entry.Error = &msg

		e.logger.Warn("Automation action failed",
			logger.String("rule_id", rule.ID.String()),
			logger.String("phase", string(actionType)),
			logger.Err(sendErr),
		)
	}

	e.metrics.RecordAction(string(actionType), string(entry.Status))

	if err := e.logs.Create(ctx, entry); err != nil {
		e.logger.Error("Failed to write automation log",
			logger.String("rule_id", rule.ID.String()),
			logger.Err(err),
		)
	}
}

// sleepContext waits for the duration or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
