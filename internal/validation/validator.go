// Package validation evaluates a ticket field set against the required
// and recommended rules for its ticket type, producing an ordered gap
// list with agent-facing prompts.
package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

// Input is everything gap evaluation depends on.
type Input struct {
	Fields      domain.Fields
	LawfulStart *time.Time
}

// Validator is a pure function of Input and the rule tables.
type Validator struct {
	calendar *compliance.Calendar
}

// NewValidator builds a validator that parses dates in the calendar zone.
func NewValidator(calendar *compliance.Calendar) *Validator {
	return &Validator{calendar: calendar}
}

// Validate returns gaps in rule-table order.
func (v *Validator) Validate(in Input) []domain.Gap {
	gaps := []domain.Gap{}
	for _, rule := range RulesFor(in.Fields.EffectiveType()) {
		present, problem := rule.check(in, v.calendar)
		switch {
		case !present:
			gaps = append(gaps, domain.Gap{
				Field:    rule.Field,
				Severity: rule.Severity,
				Kind:     domain.GapMissing,
				Message:  rule.Missing,
				Prompt:   rule.Prompt,
			})
		case problem != "":
			gaps = append(gaps, domain.Gap{
				Field:    rule.Field,
				Severity: domain.GapRequired,
				Kind:     domain.GapInvalid,
				Message:  problem,
				Prompt:   rule.InvalidPrompt,
			})
		}
	}
	return gaps
}

// Evaluate satisfies the orchestrator's evaluator contract.
func (v *Validator) Evaluate(_ context.Context, in Input) []domain.Gap {
	return v.Validate(in)
}

// Fingerprint is a content hash of the input and rules version. It fails
// when the input cannot be encoded, for example a NaN coordinate.
func Fingerprint(in Input) (string, error) {
	payload := struct {
		Version     string        `json:"v"`
		Fields      domain.Fields `json:"f"`
		LawfulStart string        `json:"l,omitempty"`
	}{Version: RulesVersion, Fields: in.Fields}
	if in.LawfulStart != nil {
		payload.LawfulStart = compliance.FormatDate(*in.LawfulStart)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// GapCache stores gap lists by fingerprint.
type GapCache interface {
	Get(ctx context.Context, fingerprint string) ([]domain.Gap, bool, error)
	Set(ctx context.Context, fingerprint string, gaps []domain.Gap) error
}

// CachedValidator consults a GapCache before evaluating. Cache failures
// degrade to direct evaluation.
type CachedValidator struct {
	inner  *Validator
	cache  GapCache
	logger *zap.Logger
}

// NewCachedValidator wraps inner with cache.
func NewCachedValidator(inner *Validator, cache GapCache, logger *zap.Logger) *CachedValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedValidator{inner: inner, cache: cache, logger: logger}
}

// Evaluate returns the cached gap list or computes and stores it.
func (c *CachedValidator) Evaluate(ctx context.Context, in Input) []domain.Gap {
	if c.cache == nil {
		return c.inner.Validate(in)
	}
	key, err := Fingerprint(in)
	if err != nil {
		c.logger.Warn("gap cache bypassed", zap.Error(err))
		return c.inner.Validate(in)
	}
	gaps, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("gap cache read failed", zap.String("fingerprint", key), zap.Error(err))
	} else if ok {
		return gaps
	}
	gaps = c.inner.Validate(in)
	if err := c.cache.Set(ctx, key, gaps); err != nil {
		c.logger.Warn("gap cache write failed", zap.String("fingerprint", key), zap.Error(err))
	}
	return gaps
}
