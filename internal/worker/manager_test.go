package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"presales/internal/dialogue"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeProcessor struct {
	mu       sync.Mutex
	order    []string
	inFlight map[string]int
	overlap  bool
	block    map[string]chan struct{}
	started  chan string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		inFlight: make(map[string]int),
		block:    make(map[string]chan struct{}),
		started:  make(chan string, 16),
	}
}

func (p *fakeProcessor) blockOn(message string) chan struct{} {
	ch := make(chan struct{})
	p.mu.Lock()
	p.block[message] = ch
	p.mu.Unlock()
	return ch
}

func (p *fakeProcessor) ProcessTurn(ctx context.Context, userID, message, sessionID string) (*dialogue.TurnResult, error) {
	p.mu.Lock()
	p.inFlight[sessionID]++
	if p.inFlight[sessionID] > 1 {
		p.overlap = true
	}
	p.order = append(p.order, message)
	gate := p.block[message]
	p.mu.Unlock()

	p.started <- message
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	p.inFlight[sessionID]--
	p.mu.Unlock()
	return &dialogue.TurnResult{Response: "re: " + message, SessionID: sessionID}, nil
}

func waitStarted(t *testing.T, p *fakeProcessor, want string) {
	t.Helper()
	select {
	case got := <-p.started:
		if got != want {
			t.Fatalf("expected %q to start, got %q", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("%q did not start", want)
	}
}

func TestSubmitReturnsResult(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 4}, zaptest.NewLogger(t))
	defer manager.Stop()

	res, err := manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "hello"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.Response != "re: hello" || res.SessionID != "s1" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if manager.Pending() != 0 {
		t.Fatalf("pending should drain, got %d", manager.Pending())
	}
}

func TestSubmitAssignsSessionID(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, zaptest.NewLogger(t))
	defer manager.Stop()

	res, err := manager.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestSameSessionRunsSerially(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 2, MaxWorkers: 4, QueueSize: 10}, zaptest.NewLogger(t))
	defer manager.Stop()

	release := proc.blockOn("first")
	done1 := make(chan struct{})
	go func() {
		_, _ = manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "first"})
		close(done1)
	}()
	waitStarted(t, proc, "first")

	done2 := make(chan struct{})
	go func() {
		_, _ = manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "second"})
		close(done2)
	}()

	select {
	case <-proc.started:
		t.Fatalf("second turn started while first was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done1
	waitStarted(t, proc, "second")
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatalf("second turn did not complete")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if proc.overlap {
		t.Fatalf("turns of one session overlapped")
	}
	if len(proc.order) != 2 || proc.order[0] != "first" || proc.order[1] != "second" {
		t.Fatalf("expected order [first second], got %v", proc.order)
	}
}

func TestOtherSessionsProceedWhileOneBlocks(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 1, MaxWorkers: 3, QueueSize: 10}, zaptest.NewLogger(t))
	defer manager.Stop()

	release := proc.blockOn("slow")
	defer close(release)
	go func() {
		_, _ = manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "slow-session", Message: "slow"})
	}()
	waitStarted(t, proc, "slow")

	fastDone := make(chan error, 1)
	go func() {
		_, err := manager.Submit(context.Background(), TurnRequest{UserID: "u2", SessionID: "fast-session", Message: "fast"})
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fast turn error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("fast session blocked by slow session")
	}
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, zaptest.NewLogger(t))
	defer manager.Stop()

	release := proc.blockOn("hold")
	defer close(release)
	go func() {
		_, _ = manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "hold"})
	}()
	waitStarted(t, proc, "hold")

	_, err := manager.Submit(context.Background(), TurnRequest{UserID: "u2", SessionID: "s2", Message: "extra"})
	if !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}
}

func TestCancelledCallerSkipsQueuedTurn(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, zaptest.NewLogger(t))
	defer manager.Stop()

	release := proc.blockOn("hold")
	go func() {
		_, _ = manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "hold"})
	}()
	waitStarted(t, proc, "hold")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := manager.Submit(ctx, TurnRequest{UserID: "u1", SessionID: "s1", Message: "late"})
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)

	// the cancelled turn never reaches the processor
	deadline := time.After(time.Second)
	for manager.Pending() != 0 {
		select {
		case <-deadline:
			t.Fatalf("pending did not drain: %d", manager.Pending())
		case <-time.After(5 * time.Millisecond):
		}
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	for _, msg := range proc.order {
		if msg == "late" {
			t.Fatalf("cancelled turn was processed")
		}
	}
}

func TestCancelSessionFailsQueuedTurns(t *testing.T) {
	proc := newFakeProcessor()
	manager := NewManager(proc, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, zaptest.NewLogger(t))
	defer manager.Stop()

	release := proc.blockOn("hold")
	defer close(release)
	go func() {
		_, _ = manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "hold"})
	}()
	waitStarted(t, proc, "hold")

	errCh := make(chan error, 1)
	go func() {
		_, err := manager.Submit(context.Background(), TurnRequest{UserID: "u1", SessionID: "s1", Message: "queued"})
		errCh <- err
	}()

	deadline := time.After(time.Second)
	for manager.Pending() < 2 {
		select {
		case <-deadline:
			t.Fatalf("second turn was not queued")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// allow the dispatcher loop to move the job off the entry channel
	time.Sleep(20 * time.Millisecond)
	manager.CancelSession("s1")

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTurnCancelled) {
			t.Fatalf("expected ErrTurnCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("queued turn was not cancelled")
	}
}

func TestPoolRetiresIdleWorkersAboveMin(t *testing.T) {
	manager := &Manager{logger: zap.NewNop()}
	pool := newJobChannelPool(1, 3, time.Hour, manager)
	defer pool.close()

	for i := 0; i < 3; i++ {
		pool.spawnWorker()
	}
	if running, idle := pool.size(); running != 3 || idle != 3 {
		t.Fatalf("expected 3 idle workers, got running=%d idle=%d", running, idle)
	}
	pool.spawnWorker()
	if running, _ := pool.size(); running != 3 {
		t.Fatalf("pool grew past max: %d", running)
	}

	pool.shutdownExpired(time.Now().Add(2 * time.Hour))

	deadline := time.After(time.Second)
	for {
		running, idle := pool.size()
		if running == 1 && idle == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 1 worker left, got running=%d idle=%d", running, idle)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
