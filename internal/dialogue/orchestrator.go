// Package dialogue runs one chat turn end to end: history, intent,
// completion, persistence and lead capture.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"presales/internal/classify"
	"presales/internal/lead"
	"presales/internal/llm"
	"presales/internal/logger"
	"presales/internal/metrics"
	"presales/internal/models"
	"presales/internal/state"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultMaxTokens    = 500
	defaultTurnTimeout  = 60 * time.Second
	maxSaveAttempts     = 3
	detachedSaveTimeout = 5 * time.Second
)

// ErrInvalidTurn reports a turn without a user id or message.
var ErrInvalidTurn = errors.New("user_id and message are required")

// Store loads and saves conversation histories.
type Store interface {
	Load(ctx context.Context, userID, sessionID string) (*models.Conversation, error)
	Save(ctx context.Context, conv *models.Conversation) error
}

// Guidance renders reference text for budget and timeline questions.
type Guidance interface {
	BudgetText(ctx context.Context, projectType string) string
	TimelineText(ctx context.Context, projectType string) string
}

// Aggregator builds a lead from a conversation.
type Aggregator interface {
	Aggregate(ctx context.Context, history []models.Message) (models.LeadRecord, error)
}

// Committer stores eligible leads.
type Committer interface {
	Commit(ctx context.Context, rec *models.LeadRecord) (int64, error)
}

// Options tunes the orchestrator. Zero values select defaults, except
// Temperature which is passed to the model as is.
type Options struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	TurnTimeout  time.Duration
}

// TurnResult is what the caller sees for one processed turn.
type TurnResult struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Orchestrator struct {
	store      Store
	completer  llm.Completer
	guidance   Guidance
	aggregator Aggregator
	committer  Committer
	opts       Options
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewOrchestrator(store Store, completer llm.Completer, guidance Guidance, aggregator Aggregator, committer Committer, opts Options, log *zap.Logger) *Orchestrator {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = defaultTurnTimeout
	}
	return &Orchestrator{
		store:      store,
		completer:  completer,
		guidance:   guidance,
		aggregator: aggregator,
		committer:  committer,
		opts:       opts,
		logger:     logger.OrNop(log).Named("dialogue"),
		tracer:     otel.Tracer("presales/dialogue"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ProcessTurn handles one user message. An empty sessionID starts a new
// session. Completion failures yield the Apology with the session id
// intact. Persistence failures are logged and the turn is answered from
// memory. Only invalid input and ownership errors are returned.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID, message, sessionID string) (*TurnResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidTurn
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.TurnTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "dialogue.turn", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	start := time.Now()
	log := o.logger.With(zap.String("session_id", sessionID), zap.String("user_id", userID))

	conv, err := o.store.Load(ctx, userID, sessionID)
	if errors.Is(err, state.ErrSessionOwnership) {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("conversation").Inc()
		span.RecordError(err)
		log.Warn("load conversation failed, continuing in memory", zap.Error(err))
		conv = &models.Conversation{UserID: userID, SessionID: sessionID}
	}
	if conv.IsNew() {
		conv.Append(o.now(), models.NewSystemMessage(o.opts.SystemPrompt))
	}

	intent := classify.ClassifyIntent(message)
	span.SetAttributes(attribute.String("branch", string(intent)))
	defer func() {
		metrics.TurnsTotal.WithLabelValues(string(intent)).Inc()
		metrics.TurnDuration.WithLabelValues(string(intent)).Observe(time.Since(start).Seconds())
	}()

	reply, err := o.completer.Complete(ctx, o.compose(ctx, intent, conv.Messages, message), o.opts.Temperature, o.opts.MaxTokens)
	if err != nil {
		metrics.CompletionFailures.WithLabelValues("dialogue").Inc()
		span.RecordError(err)
		log.Error("completion failed", zap.String("branch", string(intent)), zap.Error(err))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			o.saveUserMessage(userID, sessionID, message, log)
		}
		return &TurnResult{Response: Apology, SessionID: sessionID, Timestamp: o.now()}, nil
	}

	saved, err := o.appendTurn(ctx, conv, message, reply)
	if errors.Is(err, state.ErrSessionOwnership) {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("conversation").Inc()
		span.RecordError(err)
		log.Warn("save conversation failed, answering from memory", zap.Error(err))
	}

	o.captureLead(ctx, saved, log)

	return &TurnResult{Response: reply, SessionID: sessionID, Timestamp: saved.UpdatedAt}, nil
}

// History returns the stored messages of a session, or none for an
// unknown session.
func (o *Orchestrator) History(ctx context.Context, userID, sessionID string) ([]models.Message, error) {
	conv, err := o.store.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if conv.Messages == nil {
		return []models.Message{}, nil
	}
	return conv.Messages, nil
}

// compose builds the completion input for intent. Guidance branches swap
// the standing prompt for a one-turn prompt and drop stored system
// messages.
func (o *Orchestrator) compose(ctx context.Context, intent classify.Intent, history []models.Message, message string) []models.Message {
	var guidanceText, topic string
	switch intent {
	case classify.IntentBudget:
		topic = "budget"
		guidanceText = o.guidance.BudgetText(ctx, detectProjectType(history, message))
	case classify.IntentTimeline:
		topic = "timeline"
		guidanceText = o.guidance.TimelineText(ctx, detectProjectType(history, message))
	default:
		msgs := make([]models.Message, 0, len(history)+1)
		msgs = append(msgs, history...)
		return append(msgs, models.NewUserMessage(message))
	}

	msgs := make([]models.Message, 0, len(history)+2)
	msgs = append(msgs, models.NewSystemMessage(GuidancePrompt(topic, guidanceText)))
	for _, m := range history {
		if m.Role != models.RoleSystem {
			msgs = append(msgs, m)
		}
	}
	return append(msgs, models.NewUserMessage(message))
}

func detectProjectType(history []models.Message, message string) string {
	text := lead.ConversationText(append(append([]models.Message(nil), history...), models.NewUserMessage(message)))
	pt, _ := classify.DetectProjectType(text)
	return pt
}

// appendTurn saves the user and assistant messages, reloading and
// re-appending when another writer got there first. The returned
// conversation holds the turn even when saving failed.
func (o *Orchestrator) appendTurn(ctx context.Context, conv *models.Conversation, message, reply string) (*models.Conversation, error) {
	for attempt := 1; ; attempt++ {
		conv.Append(o.now(), models.NewUserMessage(message), models.NewAssistantMessage(reply))
		err := o.store.Save(ctx, conv)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, state.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return conv, fmt.Errorf("save conversation: %w", err)
		}
		o.logger.Warn("conversation changed concurrently, reloading",
			zap.String("session_id", conv.SessionID), zap.Int("attempt", attempt))
		fresh, err := o.store.Load(ctx, conv.UserID, conv.SessionID)
		if err != nil {
			return conv, fmt.Errorf("reload conversation: %w", err)
		}
		if fresh.IsNew() {
			fresh.Append(o.now(), models.NewSystemMessage(o.opts.SystemPrompt))
		}
		conv = fresh
	}
}

// saveUserMessage keeps the user's input when the turn ran out of time.
// The turn context is already done, so a short detached one is used.
func (o *Orchestrator) saveUserMessage(userID, sessionID, message string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), detachedSaveTimeout)
	defer cancel()

	conv, err := o.store.Load(ctx, userID, sessionID)
	if err != nil {
		log.Warn("load conversation after timeout failed", zap.Error(err))
		return
	}
	if conv.IsNew() {
		conv.Append(o.now(), models.NewSystemMessage(o.opts.SystemPrompt))
	}
	conv.Append(o.now(), models.NewUserMessage(message))
	if err := o.store.Save(ctx, conv); err != nil {
		metrics.PersistenceFailures.WithLabelValues("conversation").Inc()
		log.Warn("save user message after timeout failed", zap.Error(err))
	}
}

// captureLead aggregates the saved history and commits the lead when the
// gate allows. Failures are logged and never fail the turn.
func (o *Orchestrator) captureLead(ctx context.Context, conv *models.Conversation, log *zap.Logger) {
	if o.aggregator == nil || o.committer == nil {
		return
	}
	rec, err := o.aggregator.Aggregate(ctx, conv.Messages)
	if err != nil {
		log.Warn("lead aggregation failed", zap.Error(err))
		return
	}
	rec.SessionID = conv.SessionID
	rec.UserID = conv.UserID
	id, err := o.committer.Commit(ctx, &rec)
	if err != nil {
		log.Error("lead commit failed", zap.Error(err))
		return
	}
	if id != 0 {
		log.Info("lead captured", zap.Int64("lead_id", id))
	}
}
