// Package notify fans newly stored leads out to email, SNS and a search
// index.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"presales/internal/config"
	"presales/internal/logger"
	"presales/internal/models"

	"go.uber.org/zap"
)

// Notifier receives a lead once it has been stored for the first time.
type Notifier interface {
	NotifyLead(ctx context.Context, lead *models.LeadRecord) error
}

// Multi calls every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyLead(ctx context.Context, lead *models.LeadRecord) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyLead(ctx, lead); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers enabled in cfg. It returns nil when
// none are configured.
func FromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (Notifier, error) {
	log = logger.OrNop(log).Named("notify")
	var out Multi

	n := cfg.Notify
	if len(n.SESRecipients) > 0 {
		client, err := NewSESClient(ctx, n.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		out = append(out, NewEmail(client, n.SESSender, n.SESRecipients))
		log.Info("lead email notifications enabled", zap.Int("recipients", len(n.SESRecipients)))
	}
	if n.SNSTopicARN != "" {
		client, err := NewSNSClient(ctx, n.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		out = append(out, NewTopic(client, n.SNSTopicARN))
		log.Info("lead topic notifications enabled", zap.String("topic", n.SNSTopicARN))
	}
	if len(cfg.Elasticsearch.Addresses) > 0 {
		idx, err := NewIndex(cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
		log.Info("lead indexing enabled", zap.String("index", idx.index))
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Summary renders a plain-text description of lead.
func Summary(lead *models.LeadRecord) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}
	line("Client", models.StringValue(lead.ClientName))
	line("Business", models.StringValue(lead.ClientBusiness))
	line("Contact", models.StringValue(lead.ContactInformation))
	line("Project type", models.StringValue(lead.ProjectType))
	line("Project", models.StringValue(lead.ProjectDescription))
	line("Features", strings.Join(lead.Features, ", "))
	line("Timeline", models.StringValue(lead.Timeline))
	line("Budget", models.StringValue(lead.BudgetRange))
	line("Session", lead.SessionID)
	return b.String()
}
