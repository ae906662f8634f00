package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"presales/internal/config"
	"presales/internal/dialogue"
	"presales/internal/extract"
	"presales/internal/guidance"
	"presales/internal/lead"
	"presales/internal/models"
	"presales/internal/state"
	"presales/internal/storage"
	"presales/internal/worker"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, msgs []models.Message, _ float32, _ int) (string, error) {
	return "You said: " + msgs[len(msgs)-1].Content, nil
}

type testServer struct {
	router  *gin.Engine
	db      *sql.DB
	handler *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	db, err := storage.Open(config.DatabaseConfig{Driver: storage.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, storage.DriverSQLite); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	guideRepo := storage.NewGuidanceRepo(db, storage.DriverSQLite)
	seed := guidance.DefaultSeed()
	if _, err := guideRepo.Seed(context.Background(), seed.Budget, seed.Timeline); err != nil {
		t.Fatalf("seed guidance: %v", err)
	}

	store := state.NewStore(storage.NewConversationRepo(db, storage.DriverSQLite), nil, log)
	guide := guidance.NewStore(guideRepo, log)
	leads := storage.NewLeadRepo(db, storage.DriverSQLite)
	orch := dialogue.NewOrchestrator(store, echoCompleter{}, guide,
		lead.NewAggregator(extract.New(extract.DefaultChains(nil)), log),
		lead.NewCommitter(leads, lead.Policy{}, nil, log),
		dialogue.Options{}, log)
	manager := worker.NewManager(orch, worker.DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 8}, log)
	t.Cleanup(manager.Stop)

	handler := NewHandler(manager, orch, guide, leads, db, []string{"*"}, log)
	router := gin.New()
	handler.RegisterRoutes(router)
	return &testServer{router: router, db: db, handler: handler}
}

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodGet, "/", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var body map[string]string
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body["message"] != "Welcome to the Pre-Sales Chatbot API" {
		t.Fatalf("unexpected welcome: %v", body)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/health", nil, nil)
	assertStatus(t, resp, http.StatusOK)
}

func TestChatFlowKeepsSession(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat", map[string]string{
		"user_id": "u1",
		"message": "Hi, I want a blog.",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var first dialogue.TurnResult
	decodeJSON(t, resp.Body.Bytes(), &first)
	if first.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
	if first.Response != "You said: Hi, I want a blog." {
		t.Fatalf("unexpected response %q", first.Response)
	}

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/chat", map[string]string{
		"user_id":    "u1",
		"message":    "Tell me more.",
		"session_id": first.SessionID,
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var second dialogue.TurnResult
	decodeJSON(t, resp.Body.Bytes(), &second)
	if second.SessionID != first.SessionID {
		t.Fatalf("session changed: %s != %s", second.SessionID, first.SessionID)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/sessions/"+first.SessionID+"/messages?user_id=u1", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var history struct {
		Messages []models.Message `json:"messages"`
	}
	decodeJSON(t, resp.Body.Bytes(), &history)
	// system prompt plus two exchanges
	if len(history.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(history.Messages))
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/sessions/"+first.SessionID+"/messages?user_id=intruder", nil, nil)
	assertStatus(t, resp, http.StatusForbidden)
}

type brokenStore struct{}

func (brokenStore) Load(_ context.Context, userID, sessionID string) (*models.Conversation, error) {
	return nil, errors.New("db down")
}

func (brokenStore) Save(context.Context, *models.Conversation) error {
	return errors.New("disk full")
}

func TestChatAnswersWhenStorageFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	orch := dialogue.NewOrchestrator(brokenStore{}, echoCompleter{}, nil, nil, nil, dialogue.Options{}, log)
	manager := worker.NewManager(orch, worker.DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, log)
	t.Cleanup(manager.Stop)
	router := gin.New()
	NewHandler(manager, orch, nil, nil, nil, nil, log).RegisterRoutes(router)

	resp := doJSONRequest(t, router, http.MethodPost, "/chat", map[string]string{
		"user_id":    "u1",
		"message":    "Hello",
		"session_id": "s1",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var res dialogue.TurnResult
	decodeJSON(t, resp.Body.Bytes(), &res)
	if res.Response != "You said: Hello" || res.SessionID != "s1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestChatRejectsInvalidBodies(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body any
	}{
		{"missing message", map[string]string{"user_id": "u1"}},
		{"empty user", map[string]string{"user_id": "", "message": "hi"}},
		{"wrong type", map[string]any{"user_id": 5, "message": "hi"}},
	}
	for _, tc := range cases {
		resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat", tc.body, nil)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, resp.Code, resp.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestChatForeignSessionForbidden(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat", map[string]string{
		"user_id": "owner", "message": "hello", "session_id": "shared",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/chat", map[string]string{
		"user_id": "other", "message": "hello", "session_id": "shared",
	}, nil)
	assertStatus(t, resp, http.StatusForbidden)
}

func TestChatLeadScenarioIsListed(t *testing.T) {
	srv := newTestServer(t)
	sessionID := ""
	for _, msg := range []string{
		"My name is John Smith and I need an e-commerce website.",
		"My budget is around $10,000 and I need it in 2 months.",
		"You can contact me at john@example.com for follow-up.",
		"Yes, you can contact me.",
	} {
		body := map[string]string{"user_id": "u1", "message": msg}
		if sessionID != "" {
			body["session_id"] = sessionID
		}
		resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat", body, nil)
		assertStatus(t, resp, http.StatusOK)
		var res dialogue.TurnResult
		decodeJSON(t, resp.Body.Bytes(), &res)
		sessionID = res.SessionID
	}

	resp := doJSONRequest(t, srv.router, http.MethodGet, "/leads?limit=5", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Leads []models.LeadRecord `json:"leads"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if len(body.Leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(body.Leads))
	}
	if got := models.StringValue(body.Leads[0].ClientName); got != "John Smith" {
		t.Fatalf("unexpected client name %q", got)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/leads?limit=abc", nil, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestGuidanceEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSONRequest(t, srv.router, http.MethodGet, "/guidance/budget?project_type=blog", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var budget struct {
		Guidance []models.BudgetGuidance `json:"guidance"`
		Text     string                  `json:"text"`
	}
	decodeJSON(t, resp.Body.Bytes(), &budget)
	if len(budget.Guidance) != 1 || budget.Guidance[0].ProjectType != "blog" {
		t.Fatalf("unexpected budget guidance: %#v", budget.Guidance)
	}
	if !strings.Contains(budget.Text, "$2,000-$5,000") {
		t.Fatalf("unexpected budget text %q", budget.Text)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/guidance/timeline", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var timeline struct {
		Guidance []models.TimelineGuidance `json:"guidance"`
	}
	decodeJSON(t, resp.Body.Bytes(), &timeline)
	if len(timeline.Guidance) != 3 {
		t.Fatalf("expected all timeline rows, got %d", len(timeline.Guidance))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, nil, nil, []string{"https://app.example.com"}, nil)
	router := gin.New()
	h.RegisterRoutes(router)

	for origin, want := range map[string]string{
		"https://app.example.com": "https://app.example.com",
		"https://evil.example.com": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Fatalf("origin %s: got %q want %q", origin, got, want)
		}
	}
}

type stubTurns struct {
	err error
}

func (s stubTurns) Submit(context.Context, worker.TurnRequest) (*dialogue.TurnResult, error) {
	return nil, s.err
}

func TestChatErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[error]int{
		worker.ErrDispatcherBusy:  http.StatusTooManyRequests,
		state.ErrSessionOwnership: http.StatusForbidden,
		dialogue.ErrInvalidTurn:   http.StatusBadRequest,
		context.DeadlineExceeded:  http.StatusGatewayTimeout,
		errors.New("boom"):        http.StatusInternalServerError,
	}
	for err, want := range cases {
		h := NewHandler(stubTurns{err: err}, nil, nil, nil, nil, nil, zaptest.NewLogger(t))
		router := gin.New()
		h.RegisterRoutes(router)
		resp := doJSONRequest(t, router, http.MethodPost, "/chat", map[string]string{"user_id": "u", "message": "m"}, nil)
		if resp.Code != want {
			t.Fatalf("%v: expected %d, got %d", err, want, resp.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	_ = doJSONRequest(t, srv.router, http.MethodPost, "/chat", map[string]string{"user_id": "u1", "message": "hello"}, nil)

	resp := doJSONRequest(t, srv.router, http.MethodGet, "/metrics", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "presales_turns_total") {
		t.Fatalf("metrics output missing turn counter")
	}
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}
