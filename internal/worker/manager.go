// Package worker serializes chat turns per session on a bounded,
// self-sizing pool of goroutines.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"presales/internal/dialogue"
	"presales/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrDispatcherBusy is returned when the pending-turn limit is reached.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrTurnCancelled is returned to callers whose queued turn was dropped.
	ErrTurnCancelled = errors.New("turn cancelled")
)

// Processor runs a single turn.
type Processor interface {
	ProcessTurn(ctx context.Context, userID, message, sessionID string) (*dialogue.TurnResult, error)
}

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type Manager struct {
	processor  Processor
	dispatcher *Dispatcher
	logger     *zap.Logger
	pending    atomic.Int64
	limit      int64
}

func NewManager(processor Processor, cfg DispatcherConfig, log *zap.Logger) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	m := &Manager{
		processor: processor,
		logger:    logger.OrNop(log).Named("worker"),
		limit:     int64(cfg.QueueSize),
	}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, m, cfg.IdleTimeout)
	return m
}

// Submit queues a turn and waits for its result. Turns sharing a session
// id run one at a time in submission order. A missing session id is
// assigned before queueing.
func (m *Manager) Submit(ctx context.Context, req TurnRequest) (*dialogue.TurnResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	req.Context = ctx

	if m.pending.Add(1) > m.limit {
		m.pending.Add(-1)
		return nil, ErrDispatcherBusy
	}

	task := &turnTask{req: req, resultCh: make(chan turnReturn, 1)}
	select {
	case m.dispatcher.JobQueue <- Job{Type: Turn, Turn: task}:
	default:
		m.pending.Add(-1)
		return nil, ErrDispatcherBusy
	}

	select {
	case ret := <-task.resultCh:
		return ret.result, ret.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelSession fails every queued turn of a session.
func (m *Manager) CancelSession(sessionID string) {
	for _, job := range m.dispatcher.CancelSession(sessionID) {
		m.finish(job.Turn, turnReturn{err: ErrTurnCancelled})
	}
}

// Pending reports queued plus running turns.
func (m *Manager) Pending() int {
	return int(m.pending.Load())
}

func (m *Manager) Stop() {
	m.dispatcher.Stop()
}

func (m *Manager) handleTurn(task *turnTask) {
	if task == nil {
		return
	}
	req := task.req
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		// the caller gave up while the turn was queued
		m.finish(task, turnReturn{err: err})
		return
	}
	res, err := m.processor.ProcessTurn(ctx, req.UserID, req.Message, req.SessionID)
	if err != nil {
		m.logger.Warn("turn failed", zap.String("session_id", req.SessionID), zap.Error(err))
	}
	m.finish(task, turnReturn{result: res, err: err})
}

func (m *Manager) finish(task *turnTask, ret turnReturn) {
	m.pending.Add(-1)
	task.resultCh <- ret
}
