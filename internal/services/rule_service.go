package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/validator"
	"github.com/google/uuid"
)

const activeRuleCacheTTL = 5 * time.Minute

// RuleStore is the persistence surface the rule service needs.
type RuleStore interface {
	Create(ctx context.Context, workspaceID uuid.UUID, req *models.CreateRuleRequest) (*models.AutomationRule, error)
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.AutomationRule, error)
	List(ctx context.Context, workspaceID uuid.UUID, isActive *bool, limit, offset int) ([]*models.AutomationRule, int64, error)
	ListActive(ctx context.Context, workspaceID uuid.UUID) ([]*models.AutomationRule, error)
	Update(ctx context.Context, workspaceID, id uuid.UUID, req *models.UpdateRuleRequest) (*models.AutomationRule, error)
	SetActive(ctx context.Context, workspaceID, id uuid.UUID, active bool) error
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// RuleCache caches the active-rule list per workspace. Implemented by the
// Redis client; nil-able through NewRuleService.
type RuleCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RuleService owns rule CRUD and the cached active-rule lookup the engine
// reads on every comment.
type RuleService struct {
	rules     RuleStore
	cache     RuleCache
	validator *validator.Validator
	logger    *logger.Logger
}

func NewRuleService(rules RuleStore, cache RuleCache, v *validator.Validator, log *logger.Logger) *RuleService {
	return &RuleService{
		rules:     rules,
		cache:     cache,
		validator: v,
		logger:    log,
	}
}

// Create validates and persists a new rule, then drops the workspace's
// active-rule cache.
func (s *RuleService) Create(ctx context.Context, workspaceID uuid.UUID, req *models.CreateRuleRequest) (*models.AutomationRule, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	responses := models.ResponseSet{CommentResponses: req.Responses, DMResponses: req.DMResponses}
	if err := validateResponses(req.RuleType, &responses); err != nil {
		return nil, err
	}

	rule, err := s.rules.Create(ctx, workspaceID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	s.invalidate(ctx, workspaceID)
	s.logger.Info("rule created",
		logger.String("rule_id", rule.ID.String()),
		logger.String("workspace_id", workspaceID.String()),
		logger.String("rule_type", string(rule.RuleType)),
	)
	return rule, nil
}

func (s *RuleService) Get(ctx context.Context, workspaceID, id uuid.UUID) (*models.AutomationRule, error) {
	return s.rules.GetByID(ctx, workspaceID, id)
}

func (s *RuleService) List(ctx context.Context, workspaceID uuid.UUID, isActive *bool, limit, offset int) ([]*models.AutomationRule, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.rules.List(ctx, workspaceID, isActive, limit, offset)
}

// ListActive returns the workspace's active rules, served from cache when a
// fresh copy exists. Cache failures fall through to the database.
func (s *RuleService) ListActive(ctx context.Context, workspaceID uuid.UUID) ([]*models.AutomationRule, error) {
	key := activeRuleCacheKey(workspaceID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var rules []*models.AutomationRule
			if err := json.Unmarshal([]byte(cached), &rules); err == nil {
				return rules, nil
			}
			s.cache.Delete(ctx, key)
		}
	}

	rules, err := s.rules.ListActive(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(rules); err == nil {
			if err := s.cache.Set(ctx, key, encoded, activeRuleCacheTTL); err != nil {
				s.logger.Warn("failed to cache active rules", logger.Err(err))
			}
		}
	}
	return rules, nil
}

func (s *RuleService) Update(ctx context.Context, workspaceID, id uuid.UUID, req *models.UpdateRuleRequest) (*models.AutomationRule, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Keywords != nil && len(*req.Keywords) == 0 {
		return nil, fmt.Errorf("keywords cannot be emptied; disable the rule instead")
	}

	existing, err := s.rules.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	merged := existing.Responses
	if req.Responses != nil {
		merged.CommentResponses = *req.Responses
	}
	if req.DMResponses != nil {
		merged.DMResponses = *req.DMResponses
	}
	if err := validateResponses(existing.RuleType, &merged); err != nil {
		return nil, err
	}

	// The responses column is replaced whole on update, so a partial bundle
	// request must carry the untouched pool along from the existing rule.
	if req.Responses != nil || req.DMResponses != nil {
		clone := *req
		clone.Responses = &merged.CommentResponses
		clone.DMResponses = &merged.DMResponses
		req = &clone
	}

	rule, err := s.rules.Update(ctx, workspaceID, id, req)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, workspaceID)
	return rule, nil
}

func (s *RuleService) SetActive(ctx context.Context, workspaceID, id uuid.UUID, active bool) error {
	if err := s.rules.SetActive(ctx, workspaceID, id, active); err != nil {
		return err
	}
	s.invalidate(ctx, workspaceID)
	return nil
}

func (s *RuleService) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	if err := s.rules.Delete(ctx, workspaceID, id); err != nil {
		return err
	}
	s.invalidate(ctx, workspaceID)
	return nil
}

func (s *RuleService) invalidate(ctx context.Context, workspaceID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeRuleCacheKey(workspaceID)); err != nil {
		s.logger.Warn("failed to invalidate rule cache",
			logger.String("workspace_id", workspaceID.String()),
			logger.Err(err),
		)
	}
}

func activeRuleCacheKey(workspaceID uuid.UUID) string {
	return "rules:active:" + workspaceID.String()
}

// validateResponses enforces that a rule carries content for every phase its
// type dispatches. A comment_dm rule missing either pool would trigger and
// then silently do half its job.
func validateResponses(ruleType models.RuleType, responses *models.ResponseSet) error {
	if ruleType.RepliesToComment() && len(responses.CommentResponses) == 0 {
		return fmt.Errorf("rule type %s requires at least one comment response", ruleType)
	}
	if ruleType.SendsDM() && len(responses.DMResponses) == 0 {
		return fmt.Errorf("rule type %s requires at least one dm response", ruleType)
	}
	return nil
}
