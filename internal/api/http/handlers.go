package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/microhost/internal/app"
	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/microhost/internal/source"
	"github.com/GriffinCanCode/microhost/internal/source/event"
	"github.com/GriffinCanCode/microhost/internal/source/fetch"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// BreakerSource reports circuit breaker states per origin
type BreakerSource interface {
	Breakers() map[string]resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	apps        *app.Manager
	breakers    BreakerSource
	linkTimeout time.Duration
	logger      *zap.Logger
}

// NewHandlers creates a new handler set. breakers may be nil.
func NewHandlers(apps *app.Manager, breakers BreakerSource, linkTimeout time.Duration, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if linkTimeout <= 0 {
		linkTimeout = 10 * time.Second
	}
	return &Handlers{
		apps:        apps,
		breakers:    breakers,
		linkTimeout: linkTimeout,
		logger:      logger,
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	r.POST("/apps", h.MountApp)
	r.GET("/apps", h.ListApps)
	r.GET("/apps/:id", h.GetApp)
	r.GET("/apps/:id/html", h.RenderApp)
	r.POST("/apps/:id/links", h.InsertLink)
	r.DELETE("/apps/:id", h.UnmountApp)

	r.DELETE("/cache", h.ResetCache)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"apps":   h.apps.Stats(),
	}
	if h.breakers != nil {
		states := make(map[string]string)
		for origin, state := range h.breakers.Breakers() {
			states[origin] = state.String()
		}
		resp["breakers"] = states
	}
	c.JSON(http.StatusOK, resp)
}

// MountApp fetches and mounts an app
func (h *Handlers) MountApp(c *gin.Context) {
	var req app.MountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.apps.Mount(c.Request.Context(), req)
	switch {
	case errors.Is(err, app.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(mountFailureStatus(err), gin.H{"error": err.Error(), "app": inst.Info()})
	default:
		c.JSON(http.StatusCreated, inst.Info())
	}
}

// ListApps lists apps, optionally filtered with ?state=
func (h *Handlers) ListApps(c *gin.Context) {
	var filter *app.State
	if s := c.Query("state"); s != "" {
		state := app.State(s)
		switch state {
		case app.StateLoading, app.StateMounted, app.StateError:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state " + s})
			return
		}
		filter = &state
	}

	c.JSON(http.StatusOK, gin.H{
		"apps":  h.apps.List(filter),
		"stats": h.apps.Stats(),
	})
}

// GetApp returns one app with its resources
func (h *Handlers) GetApp(c *gin.Context) {
	info, ok := h.apps.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": app.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// RenderApp serializes the app container
func (h *Handlers) RenderApp(c *gin.Context) {
	out, err := h.apps.Render(c.Param("id"))
	if errors.Is(err, app.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}

// LinkRequest describes a link inserted into a running app
type LinkRequest struct {
	Rel    string `json:"rel" binding:"required"`
	Href   string `json:"href"`
	Global bool   `json:"global"`
}

// LinkResponse reports what ended up in the app head
type LinkResponse struct {
	Node  string `json:"node"`
	Event string `json:"event,omitempty"`
}

// InsertLink inserts a link and, for stylesheets, waits for its load or
// error event
func (h *Handlers) InsertLink(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attrs := []html.Attribute{{Key: "rel", Val: req.Rel}}
	if req.Href != "" {
		attrs = append(attrs, html.Attribute{Key: "href", Val: req.Href})
	}
	if req.Global {
		attrs = append(attrs, html.Attribute{Key: source.GlobalAttr})
	}
	link := dom.NewElement("link", attrs...)

	events := make(chan event.Type, 1)
	listener := func(ev event.Event) {
		select {
		case events <- ev.Type:
		default:
		}
	}

	id := c.Param("id")
	node, err := h.apps.InsertLink(c.Request.Context(), id, link, listener)
	switch {
	case errors.Is(err, app.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, app.ErrNotMounted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	defer h.apps.Forget(id, link)

	var resp LinkResponse
	if node.Type == html.ElementNode && node.Data == "style" {
		select {
		case ev := <-events:
			resp.Event = string(ev)
		case <-time.After(h.linkTimeout):
			h.logger.Warn("link event timed out", zap.String("id", id), zap.String("href", req.Href))
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "timed out waiting for stylesheet"})
			return
		case <-c.Request.Context().Done():
			return
		}
	}

	inst, ok := h.apps.Instance(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": app.ErrNotFound.Error()})
		return
	}
	out, err := inst.Document().Render(node)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp.Node = out
	c.JSON(http.StatusOK, resp)
}

// UnmountApp drops an app
func (h *Handlers) UnmountApp(c *gin.Context) {
	id := c.Param("id")
	if !h.apps.Unmount(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": app.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "app_id": id})
}

// ResetCache empties the global cache
func (h *Handlers) ResetCache(c *gin.Context) {
	before := h.apps.Stats().Cache
	h.apps.ResetCache()
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": before})
}

// mountFailureStatus maps an entry document failure to a response code
func mountFailureStatus(err error) int {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}
