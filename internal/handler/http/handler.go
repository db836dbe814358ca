package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/imovelbot/wa-messaging-service/docs"
	"github.com/imovelbot/wa-messaging-service/internal/cache"
	"github.com/imovelbot/wa-messaging-service/internal/domain"
	messageRepo "github.com/imovelbot/wa-messaging-service/internal/repository/messaging"
	"github.com/imovelbot/wa-messaging-service/internal/service"
)

type Handler struct {
	dispatcher    service.Dispatcher
	aggregator    *service.Aggregator
	repo          messageRepo.Repository
	cache         cache.Cache
	server        *http.Server
	logger        *slog.Logger
	defaultTenant string
	verifyToken   string
	webhookSecret string
}

// @title WhatsApp Messaging Service API
// @version 1.0
// @description Outbound messaging compliance, inbound webhook and conversational funnel
// @host localhost:8080
// @BasePath /
func NewHttpHandler(addr string, dispatcher service.Dispatcher, aggregator *service.Aggregator, repo messageRepo.Repository, c cache.Cache, logger *slog.Logger, defaultTenant, verifyToken, webhookSecret string) *Handler {
	h := &Handler{
		dispatcher:    dispatcher,
		aggregator:    aggregator,
		repo:          repo,
		cache:         c,
		logger:        logger,
		defaultTenant: defaultTenant,
		verifyToken:   verifyToken,
		webhookSecret: webhookSecret,
	}

	// create router
	router := gin.Default()

	// register routes
	router.GET("/webhook", h.verifyWebhook)
	router.POST("/webhook", h.receiveWebhook)
	router.POST("/messages/text", h.sendText)
	router.POST("/messages/template", h.sendTemplate)
	router.GET("/message-logs", h.listMessageLogs)
	router.GET("/suppressions", h.listSuppressions)
	router.POST("/suppressions", h.addSuppression)
	router.DELETE("/suppressions", h.removeSuppression)
	router.PUT("/tenants/:name/settings", h.updateTenantSettings)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// create http server
	h.server = &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

type sendTextRequest struct {
	Tenant         string `json:"tenant"`
	To             string `json:"to" binding:"required"`
	Text           string `json:"text" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// SendText godoc
// @Summary Send a free-form text message
// @Description Runs the compliance guard chain and dispatches the text with bounded retries
// @Tags Messages
// @Accept json
// @Param request body sendTextRequest true "send request"
// @Success 200 {object} service.SendOutcome
// @Failure 422 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /messages/text [post]
func (h *Handler) sendText(c *gin.Context) {
	var req sendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.dispatcher.SendText(c.Request.Context(), h.tenantOrDefault(req.Tenant), req.To, req.Text, req.IdempotencyKey)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type sendTemplateRequest struct {
	Tenant         string           `json:"tenant"`
	To             string           `json:"to" binding:"required"`
	TemplateName   string           `json:"template_name" binding:"required"`
	Language       string           `json:"language"`
	Components     []map[string]any `json:"components"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// SendTemplate godoc
// @Summary Send a pre-approved template message
// @Description Template sends bypass the session window and may initiate contact
// @Tags Messages
// @Accept json
// @Param request body sendTemplateRequest true "send request"
// @Success 200 {object} service.SendOutcome
// @Failure 422 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /messages/template [post]
func (h *Handler) sendTemplate(c *gin.Context) {
	var req sendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Language == "" {
		req.Language = "pt_BR"
	}

	outcome, err := h.dispatcher.SendTemplate(c.Request.Context(), h.tenantOrDefault(req.Tenant), req.To, req.TemplateName, req.Language, req.Components, req.IdempotencyKey)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// ListMessageLogs godoc
// @Summary List outbound audit log entries
// @Tags Messages
// @Param tenant query string false "tenant name"
// @Param limit query int false "max rows"
// @Success 200 {array} domain.MessageLog
// @Router /message-logs [get]
func (h *Handler) listMessageLogs(c *gin.Context) {
	tenant, err := h.repo.EnsureTenant(h.tenantOrDefault(c.Query("tenant")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	logs, err := h.repo.ListMessageLogs(tenant.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListSuppressions godoc
// @Summary List suppressed recipients for a tenant
// @Tags Suppressions
// @Param tenant query string false "tenant name"
// @Success 200 {array} domain.SuppressedContact
// @Router /suppressions [get]
func (h *Handler) listSuppressions(c *gin.Context) {
	tenant, err := h.repo.EnsureTenant(h.tenantOrDefault(c.Query("tenant")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.repo.ListSuppressed(tenant.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

type suppressionRequest struct {
	Tenant string `json:"tenant"`
	WaID   string `json:"wa_id" binding:"required"`
	Reason string `json:"reason"`
}

// AddSuppression godoc
// @Summary Suppress a recipient (opt-out)
// @Description Idempotent: re-adding refreshes the reason instead of duplicating
// @Tags Suppressions
// @Accept json
// @Param request body suppressionRequest true "suppression"
// @Success 200
// @Router /suppressions [post]
func (h *Handler) addSuppression(c *gin.Context) {
	var req suppressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tenant, err := h.repo.EnsureTenant(h.tenantOrDefault(req.Tenant))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.repo.Suppress(tenant.ID, req.WaID, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// RemoveSuppression godoc
// @Summary Remove a recipient from the suppression list
// @Tags Suppressions
// @Param tenant query string false "tenant name"
// @Param wa_id query string true "recipient id"
// @Success 200 {object} map[string]int64
// @Router /suppressions [delete]
func (h *Handler) removeSuppression(c *gin.Context) {
	waID := c.Query("wa_id")
	if waID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wa_id is required"})
		return
	}
	tenant, err := h.repo.EnsureTenant(h.tenantOrDefault(c.Query("tenant")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	removed, err := h.repo.Unsuppress(tenant.ID, waID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// UpdateTenantSettings godoc
// @Summary Update a tenant's messaging settings
// @Tags Tenants
// @Accept json
// @Param name path string true "tenant name"
// @Param request body domain.TenantSettings true "settings"
// @Success 200 {object} domain.TenantSettings
// @Router /tenants/{name}/settings [put]
func (h *Handler) updateTenantSettings(c *gin.Context) {
	settings := domain.DefaultTenantSettings()
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tenant, err := h.repo.UpdateTenantSettings(c.Param("name"), settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tenant.Settings())
}

func (h *Handler) tenantOrDefault(name string) string {
	if name == "" {
		return h.defaultTenant
	}
	return name
}

// sendError maps the dispatcher's error taxonomy onto HTTP statuses.
func (h *Handler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOutsideSessionWindow),
		errors.Is(err, service.ErrSuppressedContact):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
