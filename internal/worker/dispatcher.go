package worker

import (
	"container/list"
	"sync"
	"time"

	"presales/internal/metrics"

	"go.uber.org/zap"
)

type sessionQueue struct {
	jobs     []Job
	enqueued bool // in the ready list
	running  bool // a job of this session is on a worker
}

// Dispatcher hands jobs to pooled workers, rotating fairly between
// sessions and never running two jobs of one session at once.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // entry point for new jobs
	Manager  *Manager

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // LRU of session ids with runnable jobs
	positions map[string]*list.Element
	wake      chan struct{}
	quit      chan struct{}
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		JobQueue:  make(chan Job, queueSize),
		Manager:   manager,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	d.pool = newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)

	for i := 0; i < d.pool.min; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for {
		if d.dispatchOne() {
			// pick up a new job without blocking
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				return
			default:
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			return
		}
	}
}

// CancelSession drops the queued jobs of a session. A running job is not
// interrupted.
func (d *Dispatcher) CancelSession(sessionID string) []Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		return nil
	}
	dropped := q.jobs
	q.jobs = nil
	metrics.DispatcherQueueDepth.Sub(float64(len(dropped)))
	if elem, ok := d.positions[sessionID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
	}
	q.enqueued = false
	if !q.running {
		delete(d.queues, sessionID)
	}
	return dropped
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.sessionID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	metrics.DispatcherQueueDepth.Inc()
	d.markReadyLocked(sessionID, q)
}

func (d *Dispatcher) markReadyLocked(sessionID string, q *sessionQueue) {
	if q.enqueued || q.running || len(q.jobs) == 0 {
		return
	}
	q.enqueued = true
	d.positions[sessionID] = d.ready.PushBack(sessionID)
}

// done is called by a worker when a session's job has finished.
func (d *Dispatcher) done(sessionID string) {
	d.mu.Lock()
	q := d.queues[sessionID]
	if q != nil {
		q.running = false
		if len(q.jobs) == 0 {
			delete(d.queues, sessionID)
		} else {
			d.markReadyLocked(sessionID, q)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// dispatchOne sends the next job of the least recently served session to
// a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	sessionID := elem.Value.(string)
	d.ready.Remove(elem)
	delete(d.positions, sessionID)

	q := d.queues[sessionID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.enqueued = false
	q.running = true
	metrics.DispatcherQueueDepth.Dec()
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	d.Manager.logger.Debug("job assigned",
		zap.String("session_id", sessionID),
		zap.Int("worker", d.pool.workerID(workerChan)))
	workerChan <- job
	return true
}

// Stop halts dispatching and retires idle workers.
func (d *Dispatcher) Stop() {
	close(d.quit)
	d.pool.close()
}
