package lead

import (
	"context"
	"fmt"

	"presales/internal/logger"
	"presales/internal/metrics"
	"presales/internal/models"

	"go.uber.org/zap"
)

// Repository stores leads, one per session.
type Repository interface {
	Upsert(ctx context.Context, lead *models.LeadRecord) (int64, bool, error)
}

// Notifier is told about newly stored leads.
type Notifier interface {
	NotifyLead(ctx context.Context, lead *models.LeadRecord) error
}

// Committer applies the gate and writes eligible leads.
type Committer struct {
	repo     Repository
	policy   Policy
	notifier Notifier
	logger   *zap.Logger
}

// NewCommitter builds a committer. notifier may be nil.
func NewCommitter(repo Repository, policy Policy, notifier Notifier, log *zap.Logger) *Committer {
	return &Committer{repo: repo, policy: policy, notifier: notifier, logger: logger.OrNop(log).Named("lead")}
}

// Commit stores rec when eligible and returns its id, or 0 when the gate
// rejects it.
func (c *Committer) Commit(ctx context.Context, rec *models.LeadRecord) (int64, error) {
	if !c.policy.Eligible(rec) {
		metrics.LeadsStored.WithLabelValues("ineligible").Inc()
		return 0, nil
	}
	id, created, err := c.repo.Upsert(ctx, rec)
	if err != nil {
		metrics.LeadsStored.WithLabelValues("error").Inc()
		metrics.PersistenceFailures.WithLabelValues("lead").Inc()
		return 0, fmt.Errorf("store lead: %w", err)
	}
	if created {
		metrics.LeadsStored.WithLabelValues("created").Inc()
	} else {
		metrics.LeadsStored.WithLabelValues("updated").Inc()
	}
	c.logger.Info("lead stored",
		zap.Int64("lead_id", id),
		zap.String("session_id", rec.SessionID),
		zap.Bool("created", created))

	if created && c.notifier != nil {
		if err := c.notifier.NotifyLead(ctx, rec); err != nil {
			c.logger.Warn("lead notification failed", zap.Int64("lead_id", id), zap.Error(err))
		}
	}
	return id, nil
}
