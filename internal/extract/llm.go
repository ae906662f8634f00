package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"presales/internal/llm"
	"presales/internal/logger"
	"presales/internal/metrics"
	"presales/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const promptTemplate = `You are an AI assistant specialized in extracting specific information from conversations.

Please extract the %[1]s from the following conversation. Return ONLY the extracted information, nothing else.
If you cannot find the information, respond with "Not found".

Guidelines:
- For client names, extract the full name
- For business names, extract the complete business name
- For project descriptions, extract a concise description
- For features, extract a comma-separated list
- For timelines, extract the specific timeframe
- For budget ranges, extract the specific amount or range
- For follow-up consent, extract "yes" or "no"

CONVERSATION:
%[2]s

%[3]s:`

const (
	defaultMaxRetries  = 2
	defaultBackoffBase = time.Second
	defaultCacheSize   = 4096
	defaultMaxTokens   = 50
)

// absentReplies are model answers that mean "nothing to extract".
var absentReplies = map[string]struct{}{
	"not found": {},
	"none":      {},
	"n/a":       {},
	"unknown":   {},
}

// NoRetries disables retrying failed completions.
const NoRetries = -1

// LLMOptions tunes the LLM strategy. Zero values select defaults; set
// MaxRetries to NoRetries for a single attempt.
type LLMOptions struct {
	MaxRetries  int
	BackoffBase time.Duration
	CacheSize   int
	MaxTokens   int
}

// LLM extracts entities by prompting the completion capability. Positive
// results are memoized in a bounded LRU keyed by text hash and kind.
type LLM struct {
	completer   llm.Completer
	cache       *lru.Cache[string, string]
	maxRetries  int
	backoffBase time.Duration
	maxTokens   int
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewLLM builds the LLM strategy around completer.
func NewLLM(completer llm.Completer, opts LLMOptions, log *zap.Logger) (*LLM, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}
	return &LLM{
		completer:   completer,
		cache:       cache,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		maxTokens:   opts.MaxTokens,
		logger:      logger.OrNop(log).Named("extract.llm"),
		tracer:      otel.Tracer("presales/extract"),
	}, nil
}

// Extract returns the entity of the given kind found by the model.
// Completion failures are retried with exponential backoff and never
// surface as errors; exhausting the retries reports absence.
func (l *LLM) Extract(ctx context.Context, text string, kind Kind) (string, bool) {
	key := cacheKey(text, kind)
	if v, ok := l.cache.Get(key); ok {
		metrics.ExtractionOutcomes.WithLabelValues(string(kind), "llm", "cached").Inc()
		return v, true
	}

	ctx, span := l.tracer.Start(ctx, "extract.llm", trace.WithAttributes(attribute.String("kind", string(kind))))
	defer span.End()

	msgs := []models.Message{models.NewUserMessage(buildPrompt(text, kind))}
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := l.backoff(attempt)
			if !wait(ctx, delay) {
				span.SetAttributes(attribute.Bool("cancelled", true))
				return "", false
			}
		}
		reply, err := l.completer.Complete(ctx, msgs, 0, l.maxTokens)
		if err != nil {
			metrics.CompletionFailures.WithLabelValues("extract").Inc()
			l.logger.Warn("extraction completion failed",
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", l.maxRetries+1),
				zap.Error(err))
			continue
		}
		value := strings.TrimSpace(reply)
		if isAbsent(value) {
			metrics.ExtractionOutcomes.WithLabelValues(string(kind), "llm", "absent").Inc()
			return "", false
		}
		l.cache.Add(key, value)
		metrics.ExtractionOutcomes.WithLabelValues(string(kind), "llm", "found").Inc()
		return value, true
	}
	metrics.ExtractionOutcomes.WithLabelValues(string(kind), "llm", "failed").Inc()
	return "", false
}

// For returns the strategy that extracts kind through this LLM.
func (l *LLM) For(kind Kind) Strategy {
	return llmStrategy{llm: l, kind: kind}
}

// backoff is backoffBase * 2^attempt.
func (l *LLM) backoff(attempt int) time.Duration {
	return l.backoffBase << uint(attempt)
}

type llmStrategy struct {
	llm  *LLM
	kind Kind
}

func (s llmStrategy) Name() string { return "llm" }

func (s llmStrategy) Attempt(ctx context.Context, text string) (string, bool) {
	return s.llm.Extract(ctx, text, s.kind)
}

func buildPrompt(text string, kind Kind) string {
	return fmt.Sprintf(promptTemplate, kind, text, strings.ToUpper(string(kind)))
}

func cacheKey(text string, kind Kind) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]) + ":" + string(kind)
}

func isAbsent(value string) bool {
	if value == "" {
		return true
	}
	_, ok := absentReplies[strings.ToLower(value)]
	return ok
}

// wait blocks for d or until ctx is done. It reports whether the full
// delay elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
