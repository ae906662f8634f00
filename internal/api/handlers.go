package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"presales/internal/dialogue"
	"presales/internal/guidance"
	"presales/internal/logger"
	"presales/internal/models"
	"presales/internal/state"
	"presales/internal/worker"
)

const (
	welcomeMessage   = "Welcome to the Pre-Sales Chatbot API"
	defaultLeadLimit = 50
	maxLeadLimit     = 500
)

type TurnSubmitter interface {
	Submit(ctx context.Context, req worker.TurnRequest) (*dialogue.TurnResult, error)
}

type HistoryReader interface {
	History(ctx context.Context, userID, sessionID string) ([]models.Message, error)
}

type GuidanceReader interface {
	Budget(ctx context.Context, projectType string) ([]models.BudgetGuidance, error)
	Timeline(ctx context.Context, projectType string) ([]models.TimelineGuidance, error)
}

type LeadLister interface {
	List(ctx context.Context, limit int) ([]models.LeadRecord, error)
}

// Pinger reports backing store health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler wires HTTP routes to the chat pipeline and its read models.
type Handler struct {
	turns    TurnSubmitter
	history  HistoryReader
	guidance GuidanceReader
	leads    LeadLister
	db       Pinger
	origins  []string
	logger   *zap.Logger
}

// NewHandler constructs a Handler. db may be nil.
func NewHandler(turns TurnSubmitter, history HistoryReader, guide GuidanceReader, leads LeadLister, db Pinger, corsOrigins []string, log *zap.Logger) *Handler {
	return &Handler{
		turns:    turns,
		history:  history,
		guidance: guide,
		leads:    leads,
		db:       db,
		origins:  corsOrigins,
		logger:   logger.OrNop(log).Named("api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.cors(), h.requestLogger())
	router.GET("/", h.root)
	router.GET("/health", h.health)
	router.POST("/chat", h.chat)
	router.GET("/sessions/:session_id/messages", h.getSessionMessages)
	router.GET("/guidance/budget", h.budgetGuidance)
	router.GET("/guidance/timeline", h.timelineGuidance)
	router.GET("/leads", h.listLeads)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
}

func (h *Handler) health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var chatRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"user_id":    map[string]interface{}{"type": "string", "minLength": 1},
		"message":    map[string]interface{}{"type": "string", "minLength": 1},
		"session_id": map[string]interface{}{"type": []interface{}{"string", "null"}},
	},
	"required": []interface{}{"user_id", "message"},
}

func validateChatRequest(body map[string]interface{}) []string {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(chatRequestSchema), gojsonschema.NewGoLoader(body))
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return errs
}

func (h *Handler) chat(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if errs := validateChatRequest(body); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": errs})
		return
	}
	userID, _ := body["user_id"].(string)
	message, _ := body["message"].(string)
	sessionID, _ := body["session_id"].(string)

	res, err := h.turns.Submit(c.Request.Context(), worker.TurnRequest{
		UserID:    userID,
		SessionID: strings.TrimSpace(sessionID),
		Message:   message,
	})
	if err != nil {
		h.writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) writeTurnError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dialogue.ErrInvalidTurn):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, state.ErrSessionOwnership):
		c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another user"})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		// client went away
		c.Status(499)
	default:
		h.logger.Error("chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	userID := strings.TrimSpace(c.Query("user_id"))
	if sessionID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and user_id are required"})
		return
	}
	messages, err := h.history.History(c.Request.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, state.ErrSessionOwnership) {
			c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another user"})
			return
		}
		h.logger.Error("load session history failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *Handler) budgetGuidance(c *gin.Context) {
	projectType := strings.TrimSpace(c.Query("project_type"))
	rows, err := h.guidance.Budget(c.Request.Context(), projectType)
	if err != nil {
		h.logger.Error("budget guidance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rows == nil {
		rows = []models.BudgetGuidance{}
	}
	c.JSON(http.StatusOK, gin.H{"guidance": rows, "text": guidance.FormatBudget(rows)})
}

func (h *Handler) timelineGuidance(c *gin.Context) {
	projectType := strings.TrimSpace(c.Query("project_type"))
	rows, err := h.guidance.Timeline(c.Request.Context(), projectType)
	if err != nil {
		h.logger.Error("timeline guidance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rows == nil {
		rows = []models.TimelineGuidance{}
	}
	c.JSON(http.StatusOK, gin.H{"guidance": rows, "text": guidance.FormatTimeline(rows)})
}

func (h *Handler) listLeads(c *gin.Context) {
	limit := defaultLeadLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxLeadLimit)
	}
	leads, err := h.leads.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list leads failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// cors answers preflight requests and stamps allowed origins.
func (h *Handler) cors() gin.HandlerFunc {
	allowAll := len(h.origins) == 0
	allowed := make(map[string]struct{}, len(h.origins))
	for _, o := range h.origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
