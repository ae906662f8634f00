package worker

import "go.uber.org/zap"

type Worker struct {
	id         int
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
	}
}

// Start serves jobs until told to stop. The pool registers the worker as
// idle when it is created.
func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			switch job.Type {
			case Stop:
				w.manager.logger.Debug("worker retired", zap.Int("worker", w.id))
				w.pool.retire(w.jobChannel)
				return
			case Turn:
				w.manager.handleTurn(job.Turn)
				w.manager.dispatcher.done(job.sessionID())
			}
			w.pool.Release(w.jobChannel)
		}
	}()
}
