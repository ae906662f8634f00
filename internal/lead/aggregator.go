// Package lead turns a conversation into a LeadRecord, decides whether
// the record may be stored and commits it.
package lead

import (
	"context"
	"strings"
	"sync"
	"time"

	"presales/internal/classify"
	"presales/internal/extract"
	"presales/internal/logger"
	"presales/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extractor resolves one entity kind from conversation text.
type Extractor interface {
	Extract(ctx context.Context, text string, kind extract.Kind) *string
}

// Aggregator recomputes every lead field from the whole conversation on
// each call. It holds no state between calls.
type Aggregator struct {
	extractor Extractor
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewAggregator(extractor Extractor, log *zap.Logger) *Aggregator {
	return &Aggregator{
		extractor: extractor,
		logger:    logger.OrNop(log).Named("lead"),
		tracer:    otel.Tracer("presales/lead"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Aggregate extracts all kinds concurrently over the flattened history.
func (a *Aggregator) Aggregate(ctx context.Context, history []models.Message) (models.LeadRecord, error) {
	ctx, span := a.tracer.Start(ctx, "lead.aggregate")
	defer span.End()

	text := ConversationText(history)

	var (
		mu     sync.Mutex
		values = make(map[extract.Kind]*string, len(extract.Kinds))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range extract.Kinds {
		kind := kind
		g.Go(func() error {
			v := a.extractor.Extract(gctx, text, kind)
			mu.Lock()
			values[kind] = v
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return models.LeadRecord{}, err
	}

	rec := models.LeadRecord{
		ClientName:         values[extract.ClientName],
		ClientBusiness:     values[extract.BusinessName],
		ContactInformation: values[extract.ContactInformation],
		ProjectDescription: values[extract.ProjectDescription],
		Features:           SplitFeatures(models.StringValue(values[extract.ProjectFeatures])),
		Timeline:           values[extract.ProjectTimeline],
		BudgetRange:        values[extract.BudgetRange],
		ConfirmedFollowUp:  IsConsent(models.StringValue(values[extract.FollowUpConsent])),
		Timestamp:          a.now(),
	}
	if pt, ok := classify.DetectProjectType(text); ok {
		rec.ProjectType = &pt
	}
	a.logger.Debug("lead aggregated",
		zap.Bool("has_name", rec.ClientName != nil),
		zap.Bool("has_contact", rec.ContactInformation != nil),
		zap.Bool("confirmed", rec.ConfirmedFollowUp))
	return rec, nil
}

// ConversationText joins user and assistant contents with newlines.
func ConversationText(history []models.Message) string {
	parts := make([]string, 0, len(history))
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// SplitFeatures splits a comma-separated list. Values without a comma
// yield an empty list.
func SplitFeatures(v string) []string {
	if !strings.Contains(v, ",") {
		return []string{}
	}
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsConsent accepts yes, true and confirmed in any case.
func IsConsent(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "confirmed":
		return true
	}
	return false
}
