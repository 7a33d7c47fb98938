package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payhub/approval-engine/internal/application/service"
	"github.com/payhub/approval-engine/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService service.WorkflowService
	templateService service.TemplateService
	reportService   service.ReportService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	templateService service.TemplateService,
	reportService service.ReportService,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflowService: workflowService,
		templateService: templateService,
		reportService:   reportService,
		logger:          logger,
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
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StartWorkflowRequest represents the body of POST /api/v1/workflows
type StartWorkflowRequest struct {
	PaymentID  int64  `json:"payment_id" binding:"required"`
	TemplateID *int64 `json:"template_id"`
	UserID     string `json:"user_id" binding:"required"`
}

// DecisionRequest represents the body of POST /api/v1/workflows/:id/decision
type DecisionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// CancelRequest represents the body of POST /api/v1/workflows/:id/cancel
type CancelRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// DecisionResponse pairs the updated instance with its transition.
type DecisionResponse struct {
	Instance   *entity.WorkflowInstance `json:"instance"`
	Transition *entity.Transition       `json:"transition"`
}

// ActionableQuery represents query parameters for the actionable listing
type ActionableQuery struct {
	UserID string `form:"user_id"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Sort   string `form:"sort"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// StartWorkflow handles POST /api/v1/workflows
func (h *Handlers) StartWorkflow(c *gin.Context) {
	var req StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	inst, err := h.workflowService.Start(c.Request.Context(), service.StartRequest{
		PaymentID:  req.PaymentID,
		TemplateID: req.TemplateID,
		UserID:     req.UserID,
	})
	if err != nil {
		h.renderError(c, err, "failed to start workflow")
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    inst,
	})
}

// Decide handles POST /api/v1/workflows/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	inst, transition, err := h.workflowService.Decide(c.Request.Context(), id, req.UserID, req.Action, req.Note)
	if err != nil {
		h.renderError(c, err, "failed to record decision")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: DecisionResponse{
			Instance:   inst,
			Transition: transition,
		},
	})
}

// Cancel handles POST /api/v1/workflows/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	inst, err := h.workflowService.Cancel(c.Request.Context(), id, req.UserID, req.Reason)
	if err != nil {
		h.renderError(c, err, "failed to cancel workflow")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    inst,
	})
}

// ListActionable handles GET /api/v1/workflows/actionable
func (h *Handlers) ListActionable(c *gin.Context) {
	var q ActionableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if q.UserID == "" {
		h.badRequest(c, "user_id is required")
		return
	}

	page, err := h.workflowService.ListActionable(c.Request.Context(), q.UserID, service.Pagination{
		Page:  q.Page,
		Limit: q.Limit,
		Sort:  q.Sort,
	})
	if err != nil {
		h.renderError(c, err, "failed to list actionable workflows")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// GetHistory handles GET /api/v1/workflows/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	history, err := h.workflowService.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err, "failed to load history")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    history,
	})
}

// ExportHistory handles GET /api/v1/workflows/:id/history/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	buf, filename, err := h.reportService.BuildHistoryWorkbook(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err, "failed to export history")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// CreateTemplate handles POST /api/v1/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var tpl entity.WorkflowTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	tpl.IsActive = true

	created, err := h.templateService.CreateTemplate(c.Request.Context(), &tpl)
	if err != nil {
		h.renderError(c, err, "failed to create template")
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    created,
	})
}

// ListTemplates handles GET /api/v1/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	templates, err := h.templateService.ListTemplates(c.Request.Context(), includeInactive)
	if err != nil {
		h.renderError(c, err, "failed to list templates")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    templates,
	})
}

// DeactivateTemplate handles POST /api/v1/templates/:id/deactivate
func (h *Handlers) DeactivateTemplate(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid template id")
		return
	}

	if err := h.templateService.DeactivateTemplate(c.Request.Context(), id); err != nil {
		h.renderError(c, err, "failed to deactivate template")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
	})
}

func (h *Handlers) instanceID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid instance id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// renderError maps application errors to HTTP statuses. Unknown errors are
// logged and returned as opaque 500s.
func (h *Handlers) renderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "user is not allowed to act on this stage"})
	case errors.Is(err, service.ErrInstanceNotFound),
		errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrInstanceNotActive),
		errors.Is(err, service.ErrPaymentHasActiveInstance),
		errors.Is(err, service.ErrTemplateHasNoStages):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrPersistenceUnavailable):
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "storage temporarily unavailable"})
	default:
		h.logger.Error(fallback, "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: fallback})
	}
}
