package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gateprov/gateprov/internal/credcache"
	"github.com/gateprov/gateprov/internal/entity"
	"github.com/gateprov/gateprov/internal/infrastructure/config"
	"github.com/gateprov/gateprov/internal/infrastructure/monitoring"
	"github.com/gateprov/gateprov/internal/infrastructure/resilience"
	"github.com/gateprov/gateprov/internal/logging"
	"github.com/gateprov/gateprov/internal/registry"
	"github.com/gateprov/gateprov/internal/remote/session"
	"github.com/gateprov/gateprov/internal/workflow"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *registry.Manager
	creds    *credcache.Cache
	cfg      *config.Config
	log      *logging.Logger
	metrics  *monitoring.Metrics

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// NewHandlers creates a new handler set.
func NewHandlers(reg *registry.Manager, creds *credcache.Cache, cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		registry: reg,
		creds:    creds,
		cfg:      cfg,
		log:      logger.Named("api"),
		metrics:  metrics,
		breakers: make(map[string]*resilience.Breaker),
	}
}

// Root reports service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "gateprov",
	})
}

// Health reports service health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"instances": len(h.registry.List()),
		"uptime":    h.metrics.Uptime().String(),
	})
}

// ListInstances lists registered remote instances, credentials excluded.
func (h *Handlers) ListInstances(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instances": h.registry.List(),
	})
}

// ReloadRegistry re-reads the registry file.
func (h *Handlers) ReloadRegistry(c *gin.Context) {
	if err := h.registry.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instances": len(h.registry.List()),
	})
}

// ValidateDraft runs the network-free draft validation.
func (h *Handlers) ValidateDraft(c *gin.Context) {
	var draft entity.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draft: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, entity.Validate(&draft))
}

// CreateEntity runs the full creation workflow against one instance.
//
// The response status reflects where the run stopped: 201 for any committed
// create (caveats ride along on the body), 409 for a duplicate name, 502 for
// a panel that could not be driven, 503 while the instance's breaker is open.
func (h *Handlers) CreateEntity(c *gin.Context) {
	instanceID := c.Param("id")
	log := h.log.With(
		zap.String("instance", instanceID),
		zap.String("request_id", c.GetString("request_id")))

	var draft entity.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draft: " + err.Error()})
		return
	}

	if report := entity.Validate(&draft); !report.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "draft failed validation",
			"report": report,
		})
		return
	}

	inst, err := h.creds.GetOrFetch(c.Request.Context(), instanceID,
		func(context.Context) (registry.Instance, error) {
			return h.registry.Get(instanceID)
		})
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, registry.ErrInactive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var result *workflow.Result
	var runErr error
	brkErr := h.breakerFor(inst.ID).Do(func() error {
		result, runErr = h.provision(c.Request.Context(), inst, &draft)
		if errors.Is(runErr, workflow.ErrDuplicateName) {
			// The panel answered; only transport-level failures count
			// against the breaker.
			return nil
		}
		return runErr
	})
	if brkErr != nil {
		runErr = brkErr
	}
	if runErr != nil {
		status := statusForError(runErr)
		log.Warn("creation failed", zap.Int("status", status), zap.Error(runErr))
		body := gin.H{"error": runErr.Error()}
		if result != nil && result.Message != "" {
			body["message"] = result.Message
		}
		c.JSON(status, body)
		return
	}

	log.Info("entity created",
		zap.String("entity", draft.Name),
		zap.String("entity_id", result.EntityID))
	c.JSON(http.StatusCreated, result)
}

// provision opens a fresh session and runs one workflow. Sessions are not
// pooled: the panel ties token validity to the cookie jar, so sharing one
// across concurrent runs trades correctness for very little.
func (h *Handlers) provision(ctx context.Context, inst registry.Instance, draft *entity.Draft) (*workflow.Result, error) {
	sess, err := session.Establish(ctx, session.Config{
		BaseURL:      inst.BaseURL,
		Username:     inst.Username,
		Password:     inst.Password,
		UserAgent:    h.cfg.Remote.UserAgent,
		NavTimeout:   h.cfg.Remote.NavTimeout,
		ReadTimeout:  h.cfg.Remote.ReadTimeout,
		WriteTimeout: h.cfg.Remote.WriteTimeout,
		RatePerSec:   h.cfg.Remote.RatePerSec,
		Logger:       h.log,
		Metrics:      h.metrics,
	})
	if err != nil {
		return nil, err
	}

	runner := workflow.NewRunner(sess, h.log,
		workflow.WithMetrics(h.metrics),
		workflow.WithInstanceLabel(inst.ID))
	return runner.Create(ctx, draft)
}

// breakerFor returns the circuit breaker for one instance, creating it on
// first use.
func (h *Handlers) breakerFor(id string) *resilience.Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.breakers[id]; ok {
		return b
	}
	b := resilience.New(id, resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			h.log.Warn("breaker state change",
				zap.String("instance", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	h.breakers[id] = b
	return b
}

// statusForError maps workflow and session failures onto API statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrAuthenticationFailed),
		errors.Is(err, session.ErrAuthTokenNotFound),
		errors.Is(err, session.ErrNetworkTimeout),
		errors.Is(err, session.ErrTransport),
		errors.Is(err, workflow.ErrDuplicateCheckFailed),
		errors.Is(err, workflow.ErrCreateFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
