package ingress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/commentpilot/commentpilot/internal/engine"
	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
	"github.com/google/uuid"
)

// AccountResolver maps an inbound entry's page ID to the connected account
// that owns it.
type AccountResolver interface {
	Resolve(ctx context.Context, pageID string) (*models.SocialAccount, error)
}

// CommentEngine evaluates a comment against a workspace's active rules.
type CommentEngine interface {
	ProcessComment(ctx context.Context, workspaceID uuid.UUID, ev models.CommentEvent, accessToken string) engine.Result
}

// EventStore persists non-comment webhook changes.
type EventStore interface {
	Create(ctx context.Context, event *models.PlatformEvent) error
}

// IdentityLookup resolves the business-account username behind a credential.
// Used when the stored account record predates username capture.
type IdentityLookup interface {
	PageUsername(ctx context.Context, accessToken string) (string, error)
}

// Processor routes webhook entries to the rule engine or the event store.
// Entries are independent: a panic or failure in one never stops the rest.
type Processor struct {
	resolver AccountResolver
	engine   CommentEngine
	events   EventStore
	identity IdentityLookup
	logger   *logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewProcessor(resolver AccountResolver, eng CommentEngine, events EventStore, identity IdentityLookup, log *logger.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		resolver: resolver,
		engine:   eng,
		events:   events,
		identity: identity,
		logger:   log,
		metrics:  m,
		timeout:  60 * time.Second,
	}
}

// Process handles a full webhook delivery. It is run off the request path;
// the HTTP handler has already acknowledged the delivery by the time this
// executes.
func (p *Processor) Process(ctx context.Context, payload *models.WebhookPayload) {
	for i := range payload.Entry {
		p.processEntry(ctx, &payload.Entry[i])
	}
}

func (p *Processor) processEntry(ctx context.Context, entry *models.WebhookEntry) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordEntryFailure()
			p.logger.Error("panic while processing webhook entry",
				logger.String("entry_id", entry.ID),
				logger.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	account, err := p.resolver.Resolve(ctx, entry.ID)
	if err != nil {
		p.metrics.RecordResolverMiss("entry")
		p.logger.Warn("no account for webhook entry, skipping",
			logger.String("entry_id", entry.ID),
			logger.Err(err),
		)
		p.persistOrphan(ctx, entry)
		return
	}

	for _, change := range entry.Changes {
		if change.Field == "comments" {
			p.handleComment(ctx, account, change.Value)
		} else {
			p.persistEvent(ctx, &account.WorkspaceID, entry.ID, change.Field, change.Value)
		}
		p.metrics.RecordEntryRouted(change.Field)
	}

	for _, msg := range entry.Messaging {
		p.persistEvent(ctx, &account.WorkspaceID, entry.ID, "messaging", msg)
		p.metrics.RecordEntryRouted("messaging")
	}
}

func (p *Processor) handleComment(ctx context.Context, account *models.SocialAccount, raw json.RawMessage) {
	var value models.CommentValue
	if err := json.Unmarshal(raw, &value); err != nil {
		p.metrics.RecordEntryFailure()
		p.logger.Warn("malformed comment change, skipping", logger.Err(err))
		return
	}
	if value.ID == "" {
		p.metrics.RecordEntryFailure()
		p.logger.Warn("comment change without an id, skipping")
		return
	}

	// Replying to our own comments would loop: every reply the engine posts
	// comes back through this webhook.
	ownUsername := account.Username
	if ownUsername == "" && p.identity != nil {
		if u, err := p.identity.PageUsername(ctx, account.AccessToken); err == nil {
			ownUsername = u
		}
	}
	if value.From.ID == account.PageID || (value.From.Username != "" && value.From.Username == ownUsername) {
		p.logger.Debug("skipping own comment",
			logger.String("comment_id", value.ID),
			logger.String("username", value.From.Username),
		)
		return
	}

	ev := models.CommentEvent{
		CommentID: value.ID,
		MediaID:   value.MediaID(),
		UserID:    value.From.ID,
		Username:  value.From.Username,
		Text:      value.Text,
	}

	result := p.engine.ProcessComment(ctx, account.WorkspaceID, ev, account.AccessToken)
	if result.Triggered {
		p.logger.Info("comment processed",
			logger.String("comment_id", ev.CommentID),
			logger.String("workspace_id", account.WorkspaceID.String()),
			logger.Int("actions", len(result.Actions)),
		)
	}
}

// persistOrphan keeps unroutable entries for later inspection. They carry no
// workspace and never reach the engine.
func (p *Processor) persistOrphan(ctx context.Context, entry *models.WebhookEntry) {
	for _, change := range entry.Changes {
		p.persistEvent(ctx, nil, entry.ID, change.Field, change.Value)
	}
}

func (p *Processor) persistEvent(ctx context.Context, workspaceID *uuid.UUID, pageID, field string, raw json.RawMessage) {
	payload := models.JSONB{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Non-object values (messaging echoes can be arrays) are wrapped.
		payload = models.JSONB{"value": json.RawMessage(raw)}
	}

	event := &models.PlatformEvent{
		WorkspaceID: workspaceID,
		PageID:      pageID,
		Field:       field,
		Payload:     payload,
	}
	if err := p.events.Create(ctx, event); err != nil {
		p.logger.Warn("failed to persist platform event",
			logger.String("page_id", pageID),
			logger.String("field", field),
			logger.Err(err),
		)
	}
}
