package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crestlinehotels/onboarding/internal/application/orchestrator"
	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/application/registry"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
	"github.com/crestlinehotels/onboarding/internal/domain/onboarding"
	"github.com/crestlinehotels/onboarding/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	orchestrator  orchestrator.Orchestrator
	updateService registry.UpdateService
	audit         port.AuditRepository
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	orch orchestrator.Orchestrator,
	updateService registry.UpdateService,
	audit port.AuditRepository,
	logger Logger,
) *Handlers {
	return &Handlers{
		orchestrator:  orch,
		updateService: updateService,
		audit:         audit,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success  bool                     `json:"success"`
	Data     interface{}              `json:"data,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Failures []onboarding.RuleFailure `json:"failures,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// InitiateSessionRequest is the body for POST /api/sessions
type InitiateSessionRequest struct {
	ApplicationID string  `json:"application_id" binding:"required"`
	EmployeeID    string  `json:"employee_id" binding:"required"`
	ManagerID     string  `json:"manager_id" binding:"required"`
	PropertyID    string  `json:"property_id" binding:"required"`
	JobTitle      string  `json:"job_title"`
	WorkState     string  `json:"work_state" binding:"required"`
	StartDate     string  `json:"start_date"`
	PayRate       float64 `json:"pay_rate"`
	Supervisor    string  `json:"supervisor"`
}

// CompleteStepRequest is the body for POST /api/sessions/:id/steps
type CompleteStepRequest struct {
	FormType  string                 `json:"form_type" binding:"required"`
	Data      map[string]interface{} `json:"data" binding:"required"`
	Signature string                 `json:"signature"`
}

// TransitionRequest is the body for POST /api/sessions/:id/transition
type TransitionRequest struct {
	TargetPhase string `json:"target_phase" binding:"required"`
}

// CorrectionsRequest is the body for POST /api/sessions/:id/corrections
type CorrectionsRequest struct {
	FormTypes []string `json:"form_types" binding:"required"`
	Reason    string   `json:"reason" binding:"required"`
}

// GenerateUpdateLinkRequest is the body for POST /api/updates
type GenerateUpdateLinkRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	FormType   string `json:"form_type" binding:"required"`
}

// SubmitUpdateRequest is the body for POST /api/update-forms/:token
type SubmitUpdateRequest struct {
	Data      map[string]interface{} `json:"data" binding:"required"`
	Signature string                 `json:"signature"`
}

// UpdateLinkResponse carries the one-time token back to the issuer.
type UpdateLinkResponse struct {
	UpdateID  string `json:"update_id"`
	Token     string `json:"token"`
	FormType  string `json:"form_type"`
	ExpiresAt string `json:"expires_at"`
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

// InitiateSession handles POST /api/sessions
func (h *Handlers) InitiateSession(c *gin.Context) {
	actor := currentActor(c)
	if actor.Role != entity.RoleHR && actor.Role != entity.RoleSystem {
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "only HR may initiate onboarding",
		})
		return
	}

	var req InitiateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid initiate request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	offer := orchestrator.JobOffer{
		ApplicationID: req.ApplicationID,
		EmployeeID:    req.EmployeeID,
		ManagerID:     req.ManagerID,
		PropertyID:    req.PropertyID,
		JobTitle:      req.JobTitle,
		WorkState:     req.WorkState,
		PayRate:       req.PayRate,
		Supervisor:    req.Supervisor,
	}
	if req.StartDate != "" {
		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid start_date, expected YYYY-MM-DD",
			})
			return
		}
		offer.StartDate = startDate
	}

	session, err := h.orchestrator.InitiateOnboarding(c.Request.Context(), offer)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    session,
	})
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	session, err := h.orchestrator.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    session,
	})
}

// CompleteStep handles POST /api/sessions/:id/steps
func (h *Handlers) CompleteStep(c *gin.Context) {
	var req CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	session, err := h.orchestrator.CompleteStep(c.Request.Context(),
		c.Param("id"), req.FormType, req.Data, req.Signature, currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    session,
	})
}

// RequestTransition handles POST /api/sessions/:id/transition
func (h *Handlers) RequestTransition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	session, err := h.orchestrator.RequestPhaseTransition(c.Request.Context(),
		c.Param("id"), req.TargetPhase, currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    session,
	})
}

// RequestCorrections handles POST /api/sessions/:id/corrections
func (h *Handlers) RequestCorrections(c *gin.Context) {
	var req CorrectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	session, err := h.orchestrator.RequestCorrections(c.Request.Context(),
		c.Param("id"), req.FormTypes, req.Reason, currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    session,
	})
}

// GetSessionAudit handles GET /api/sessions/:id/audit
func (h *Handlers) GetSessionAudit(c *gin.Context) {
	entries, err := h.audit.ListByTarget(c.Request.Context(), entity.TargetSession, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// GenerateUpdateLink handles POST /api/updates
func (h *Handlers) GenerateUpdateLink(c *gin.Context) {
	actor := currentActor(c)
	if actor.Role != entity.RoleHR {
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "only HR may issue update links",
		})
		return
	}

	var req GenerateUpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	token, session, err := h.updateService.GenerateUpdateLink(c.Request.Context(),
		req.EmployeeID, req.FormType, actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data: UpdateLinkResponse{
			UpdateID:  session.ID,
			Token:     token,
			FormType:  session.FormType,
			ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		},
	})
}

// ValidateUpdateToken handles GET /api/update-forms/:token
func (h *Handlers) ValidateUpdateToken(c *gin.Context) {
	session, err := h.updateService.ValidateUpdateToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    session,
	})
}

// SubmitUpdate handles POST /api/update-forms/:token
func (h *Handlers) SubmitUpdate(c *gin.Context) {
	var req SubmitUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	record, err := h.updateService.SubmitUpdate(c.Request.Context(),
		c.Param("token"), req.Data, req.Signature)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    record,
	})
}

// AcknowledgeUpdate handles POST /api/updates/:id/acknowledge
func (h *Handlers) AcknowledgeUpdate(c *gin.Context) {
	actor := currentActor(c)

	err := h.updateService.AcknowledgeUpdate(c.Request.Context(), c.Param("id"), actor.ID, actor.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
	})
}

// respondError maps domain errors to HTTP status codes. Compliance failures
// keep their rule IDs in the body so clients can explain corrective action.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var validationErr *onboarding.ValidationError
	var stepErr *onboarding.StepMismatchError
	var duplicateErr *onboarding.DuplicateSessionError
	var expiredErr *onboarding.SessionExpiredError
	var tokenExpiredErr *onboarding.TokenExpiredError
	var tokenUsedErr *onboarding.TokenAlreadyUsedError
	var complianceErr *onboarding.ComplianceError
	var unknownEmployeeErr *onboarding.UnknownEmployeeError
	var notUpdatableErr *onboarding.FormNotUpdatableError

	switch {
	case errors.As(err, &complianceErr):
		c.JSON(http.StatusLocked, Response{
			Success:  false,
			Error:    complianceErr.Error(),
			Failures: complianceErr.Failures,
		})

	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   validationErr.Error(),
		})

	case errors.As(err, &stepErr), errors.As(err, &duplicateErr),
		errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   err.Error(),
		})

	case errors.As(err, &expiredErr), errors.As(err, &tokenExpiredErr),
		errors.As(err, &tokenUsedErr):
		c.JSON(http.StatusGone, Response{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, onboarding.ErrSessionNotFound),
		errors.Is(err, onboarding.ErrTokenNotFound),
		errors.As(err, &unknownEmployeeErr):
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, onboarding.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, onboarding.ErrUnknownForm), errors.As(err, &notUpdatableErr):
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.logger.Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "internal error",
		})
	}
}
