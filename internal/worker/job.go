package worker

import (
	"context"

	"presales/internal/dialogue"
)

type jobType int

const (
	Turn jobType = iota
	Stop
)

// TurnRequest is one chat turn waiting for a worker.
type TurnRequest struct {
	Context   context.Context
	UserID    string
	SessionID string
	Message   string
}

type turnReturn struct {
	result *dialogue.TurnResult
	err    error
}

type turnTask struct {
	req      TurnRequest
	resultCh chan turnReturn
}

type Job struct {
	Type jobType
	Turn *turnTask
}

func (job Job) sessionID() string {
	if job.Turn == nil {
		return ""
	}
	return job.Turn.req.SessionID
}
