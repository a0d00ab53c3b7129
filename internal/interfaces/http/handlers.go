package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/service"
	"github.com/hadlocna/operations/internal/domain/entity"
)

const (
	dateLayout       = "2006-01-02"
	defaultKeepAlive = 15 * time.Second
)

// CredentialManager exposes the stored OAuth credential to operators
type CredentialManager interface {
	Status(ctx context.Context) (*entity.CredentialStatus, error)
	Revoke(ctx context.Context) error
}

// HealthFunc reports overall health and per-component details
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	scanService service.ScanService
	credentials CredentialManager
	health      HealthFunc
	keepAlive   time.Duration
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(
	scanService service.ScanService,
	credentials CredentialManager,
	health HealthFunc,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		scanService: scanService,
		credentials: credentials,
		health:      health,
		keepAlive:   defaultKeepAlive,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ScanRequestBody is the body of POST /api/scan. Dates are YYYY-MM-DD or RFC3339.
type ScanRequestBody struct {
	DateFrom string `json:"dateFrom" form:"dateFrom"`
	DateTo   string `json:"dateTo" form:"dateTo"`
}

// EmailsResponse is the body of GET /api/emails
type EmailsResponse struct {
	Query  string                  `json:"query"`
	Emails []entity.MessageSummary `json:"emails"`
	Total  int                     `json:"total"`
}

// HealthCheck handles GET /api/health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		healthy, details := h.health(c.Request.Context())
		response.Components = details
		if !healthy {
			response.Status = "degraded"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// Status handles GET /api/status
func (h *Handlers) Status(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := h.scanService.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list scan runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve scan runs",
		})
		return
	}
	if runs == nil {
		runs = []*entity.ScanRun{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    runs,
	})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.scanService.GetRun(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get scan run", zap.String("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve scan run",
		})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "scan run not found",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    run,
	})
}

// Scan handles POST /api/scan and returns the aggregated summary
func (h *Handlers) Scan(c *gin.Context) {
	var body ScanRequestBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid request body",
			})
			return
		}
	}

	req, err := body.toScanRequest(entity.TriggerAPI)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	summary, err := h.scanService.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForError(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    summary,
	})
}

// StreamScan handles GET /api/scan/stream. Progress is sent as server-sent
// events named log, error and complete; the stream ends after error or complete.
// Closing the connection stops the scan from starting further candidates.
func (h *Handlers) StreamScan(c *gin.Context) {
	var body ScanRequestBody
	if err := c.ShouldBindQuery(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	req, err := body.toScanRequest(entity.TriggerStream)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	stream := h.scanService.Stream(ctx, req)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	events := stream.Events()
	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(e.Type.String(), e.Payload())
			return !e.Type.IsTerminal()

		case <-keepAlive.C:
			_, err := fmt.Fprint(w, ": keep-alive\n\n")
			return err == nil

		case <-ctx.Done():
			h.logger.Info("Stream client disconnected", zap.String("run_id", stream.RunID()))
			return false
		}
	})
}

// ListEmails handles GET /api/emails
func (h *Handlers) ListEmails(c *gin.Context) {
	var body ScanRequestBody
	if err := c.ShouldBindQuery(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	req, err := body.toScanRequest(entity.TriggerAPI)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	query, emails, err := h.scanService.Preview(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to preview messages", zap.Error(err))
		c.JSON(statusForError(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	if emails == nil {
		emails = []entity.MessageSummary{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: EmailsResponse{
			Query:  query,
			Emails: emails,
			Total:  len(emails),
		},
	})
}

// OAuthStatus handles GET /api/oauth/status
func (h *Handlers) OAuthStatus(c *gin.Context) {
	status, err := h.credentials.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read credential status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read credential status",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    status,
	})
}

// RevokeOAuth handles POST /api/oauth/revoke
func (h *Handlers) RevokeOAuth(c *gin.Context) {
	if err := h.credentials.Revoke(c.Request.Context()); err != nil {
		h.logger.Error("Failed to revoke credential", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to revoke credential",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

func (b ScanRequestBody) toScanRequest(trigger string) (entity.ScanRequest, error) {
	req := entity.ScanRequest{Trigger: trigger}

	from, err := parseDate(b.DateFrom)
	if err != nil {
		return req, fmt.Errorf("invalid dateFrom: %w", err)
	}
	to, err := parseDate(b.DateTo)
	if err != nil {
		return req, fmt.Errorf("invalid dateTo: %w", err)
	}
	if from != nil && to != nil && !to.After(*from) {
		return req, errors.New("dateTo must be after dateFrom")
	}

	req.DateFrom = from
	req.DateTo = to
	return req, nil
}

// parseDate accepts a calendar date (UTC midnight) or an RFC3339 timestamp
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", s)
	}
	return &t, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, entity.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusBadGateway
	}
}
