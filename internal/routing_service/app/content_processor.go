package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

// Spam score weights. The score is a 0..1 blend of three heuristics:
// longest repeated-character run relative to message length, hits against
// the token list, and the ratio of symbol characters to total characters.
const (
	spamWeightRepeatRun   = 0.4
	spamWeightTokenHit    = 0.25
	spamWeightSymbolRatio = 0.35
	minLenForHeuristics   = 8
)

// ContentProcessor validates and sanitizes inbound message bodies. It never
// alters semantic content: the only mutation is trimming leading and
// trailing whitespace, so the agent sees exactly what the sender wrote.
// Messages over the limit are rejected, never truncated.
//
// The spam token list is loaded from the store and refreshed on an interval;
// a failed refresh keeps the last good list rather than dropping protection.
type ContentProcessor struct {
	repo      domain.SpamTokenRepository
	logger    *slog.Logger
	maxRunes  int
	threshold float64

	mu     sync.RWMutex
	tokens []string
}

func NewContentProcessor(repo domain.SpamTokenRepository, logger *slog.Logger, maxRunes int, threshold float64) *ContentProcessor {
	return &ContentProcessor{
		repo:      repo,
		logger:    logger.With("component", "content_processor"),
		maxRunes:  maxRunes,
		threshold: threshold,
	}
}

// Process trims the body and returns it with a verdict and the computed spam
// score. The score is meaningful for accept and reject-spam-score verdicts;
// it is zero for empty and over-length rejections, which short-circuit.
func (p *ContentProcessor) Process(raw string) (string, domain.Verdict, float64) {
	sanitized := strings.TrimSpace(raw)
	if sanitized == "" {
		return sanitized, domain.VerdictRejectEmpty, 0
	}
	if utf8.RuneCountInString(sanitized) > p.maxRunes {
		return sanitized, domain.VerdictRejectTooLong, 0
	}
	score := p.spamScore(sanitized)
	if score >= p.threshold {
		return sanitized, domain.VerdictRejectSpam, score
	}
	return sanitized, domain.VerdictAccept, score
}

// RefreshTokens reloads the active spam token list from the store.
func (p *ContentProcessor) RefreshTokens(ctx context.Context) error {
	tokens, err := p.repo.GetActiveTokens(ctx)
	if err != nil {
		spamTokenRefreshCounter.WithLabelValues("error").Inc()
		p.logger.ErrorContext(ctx, "spam token refresh failed, keeping previous list", "error", err)
		return err
	}
	p.mu.Lock()
	p.tokens = tokens
	p.mu.Unlock()
	spamTokenRefreshCounter.WithLabelValues("ok").Inc()
	p.logger.DebugContext(ctx, "spam token list refreshed", "count", len(tokens))
	return nil
}

// RunTokenRefresh refreshes the token list on the given interval until ctx
// is cancelled. An initial refresh failure is logged, not fatal: the
// processor still enforces length and heuristic checks with an empty list.
func (p *ContentProcessor) RunTokenRefresh(ctx context.Context, interval time.Duration) error {
	_ = p.RefreshTokens(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = p.RefreshTokens(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *ContentProcessor) spamScore(text string) float64 {
	runes := []rune(text)
	if len(runes) < minLenForHeuristics {
		// Too short for ratios to mean anything; token hits still count.
		return spamWeightTokenHit * p.tokenHits(text)
	}

	longestRun := 1
	run := 1
	symbols := 0
	for i, r := range runes {
		if i > 0 && r == runes[i-1] {
			run++
			if run > longestRun {
				longestRun = run
			}
		} else {
			run = 1
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}

	runFactor := float64(longestRun) / float64(len(runes))
	symbolRatio := float64(symbols) / float64(len(runes))

	score := spamWeightRepeatRun*runFactor +
		spamWeightTokenHit*p.tokenHits(text) +
		spamWeightSymbolRatio*symbolRatio
	if score > 1 {
		score = 1
	}
	return score
}

// tokenHits returns the number of spam tokens found in the text, capped so a
// long token list cannot alone push the weighted score past 1.
func (p *ContentProcessor) tokenHits(text string) float64 {
	lower := strings.ToLower(text)
	p.mu.RLock()
	tokens := p.tokens
	p.mu.RUnlock()

	hits := 0
	for _, token := range tokens {
		if token != "" && strings.Contains(lower, token) {
			hits++
			if hits >= 4 {
				break
			}
		}
	}
	return float64(hits)
}
