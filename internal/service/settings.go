package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"payment-approval/internal/clients"
	"payment-approval/internal/domain"
)

type SettingsRepository interface {
	All(ctx context.Context) (map[string]string, error)
}

const (
	settingsCacheKey = "workflow_settings_snapshot"
	settingsCacheTTL = time.Minute
)

// SettingsService loads the workflow configuration snapshot handed to the
// orchestrator at the start of each transition. The redis cache keeps the
// settings table off the hot path; correctness does not depend on it.
type SettingsService struct {
	repo  SettingsRepository
	redis *clients.RedisClient
}

func NewSettingsService(repo SettingsRepository, redis *clients.RedisClient) *SettingsService {
	return &SettingsService{repo: repo, redis: redis}
}

func (s *SettingsService) Snapshot(ctx context.Context) (domain.WorkflowSettings, error) {
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, settingsCacheKey); err == nil {
			var cached domain.WorkflowSettings
			if err := json.Unmarshal([]byte(data), &cached); err == nil {
				return cached, nil
			}
		}
	}

	values, err := s.repo.All(ctx)
	if err != nil {
		return domain.WorkflowSettings{}, err
	}

	settings := parseSettings(values)

	if s.redis != nil {
		if data, err := json.Marshal(settings); err == nil {
			_ = s.redis.Set(ctx, settingsCacheKey, string(data), settingsCacheTTL)
		}
	}

	return settings, nil
}

// Invalidate drops the cached snapshot after a settings change.
func (s *SettingsService) Invalidate(ctx context.Context) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, settingsCacheKey)
	}
}

func parseSettings(values map[string]string) domain.WorkflowSettings {
	settings := domain.DefaultWorkflowSettings()

	if v, ok := values["approval_amount_limit"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.ApprovalAmountLimit = f
		}
	}
	if v, ok := values["authorization_amount_limit"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.AuthorizationAmountLimit = f
		}
	}
	if v, ok := values["require_dual_approval"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.RequireDualApproval = b
		}
	}
	if v, ok := values["enable_qr_verification"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.EnableQRVerification = b
		}
	}
	if v, ok := values["max_review_days"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			settings.MaxReviewDays = n
		}
	}
	if v, ok := values["reject_to_state"]; ok {
		state := domain.ApprovalState(v)
		if state == domain.StateDraft || state == domain.StateRejected {
			settings.RejectToState = state
		}
	}
	if v, ok := values["workflow_journal_ids"]; ok && v != "" {
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				settings.WorkflowJournalIDs = append(settings.WorkflowJournalIDs, id)
			}
		}
	}

	return settings
}
