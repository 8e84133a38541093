// Package server exposes the collaboration backend: snapshot save/load,
// cursor presence, the canvas event stream, directory search, and PDF
// export.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/inkforge/boardsync/internal/directory"
	"github.com/inkforge/boardsync/internal/export"
	"github.com/inkforge/boardsync/internal/mutation"
	"github.com/inkforge/boardsync/internal/persistence"
	"github.com/inkforge/boardsync/internal/presence"
	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

var (
	errMissingHub         = errors.New("broadcast hub dependency required")
	errMissingSnapshots   = errors.New("snapshot service dependency required")
	errMissingCursorStore = errors.New("cursor store dependency required")
)

// Dependencies carries the router's collaborators. Directory is optional;
// without it the directory routes answer 404.
type Dependencies struct {
	Hub       *BroadcastHub
	Snapshots *persistence.Service
	Cursors   presence.CursorStore
	Directory *directory.Service
	Logger    *zap.Logger
}

// NewHTTPHandler assembles the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Hub == nil {
		return nil, errMissingHub
	}
	if deps.Snapshots == nil {
		return nil, errMissingSnapshots
	}
	if deps.Cursors == nil {
		return nil, errMissingCursorStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		hub:       deps.Hub,
		snapshots: deps.Snapshots,
		cursors:   deps.Cursors,
		directory: deps.Directory,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router.GET("/healthz", handler.handleHealth)

	canvas := router.Group("/canvas/:canvasID")
	canvas.GET("/snapshot", handler.handleSnapshotLoad)
	canvas.PUT("/snapshot", handler.handleSnapshotSave)
	canvas.GET("/cursors", handler.handleCursorsList)
	canvas.PUT("/cursors/:userID", handler.handleCursorSet)
	canvas.POST("/cursors/:userID/touch", handler.handleCursorTouch)
	canvas.DELETE("/cursors/:userID", handler.handleCursorDelete)
	canvas.GET("/ws", handler.handleCanvasStream)
	canvas.GET("/export.pdf", handler.handleExportPDF)

	if deps.Directory != nil {
		router.GET("/directory/:kind", handler.handleDirectorySearch)
	}

	return router, nil
}

type httpHandler struct {
	hub       *BroadcastHub
	snapshots *persistence.Service
	cursors   presence.CursorStore
	directory *directory.Service
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func canvasIDParam(c *gin.Context) (scene.CanvasID, bool) {
	canvasID, err := scene.NewCanvasID(c.Param("canvasID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_canvas_id"})
		return "", false
	}
	return canvasID, true
}

type snapshotSavePayload struct {
	SavedBy string       `json:"savedBy"`
	Scene   *scene.Scene `json:"scene"`
}

func (h *httpHandler) handleSnapshotSave(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	var request snapshotSavePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Scene == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	savedBy, err := scene.NewUserID(request.SavedBy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	if err := h.snapshots.Save(c.Request.Context(), canvasID, request.Scene, savedBy); err != nil {
		h.logger.Error("snapshot save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *httpHandler) handleSnapshotLoad(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	snapshot, err := h.snapshots.Load(c.Request.Context(), canvasID)
	if err != nil {
		if h.snapshots.NotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot_not_found"})
			return
		}
		h.logger.Error("snapshot load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *httpHandler) handleCursorsList(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	cursors, err := h.cursors.All(c.Request.Context(), canvasID.String())
	if err != nil {
		h.logger.Error("cursor list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_list_failed"})
		return
	}
	c.JSON(http.StatusOK, cursors)
}

func (h *httpHandler) handleCursorSet(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	userID, err := scene.NewUserID(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	var cursor presence.Cursor
	if err := c.ShouldBindJSON(&cursor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if cursor.Timestamp.IsZero() {
		cursor.Timestamp = time.Now().UTC()
	}
	if err := h.cursors.Set(c.Request.Context(), canvasID.String(), userID.String(), cursor); err != nil {
		h.logger.Error("cursor set failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_set_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCursorTouch(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	userID, err := scene.NewUserID(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	if err := h.cursors.Touch(c.Request.Context(), canvasID.String(), userID.String()); err != nil {
		h.logger.Error("cursor touch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_touch_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCursorDelete(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	userID, err := scene.NewUserID(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	if err := h.cursors.Delete(c.Request.Context(), canvasID.String(), userID.String()); err != nil {
		h.logger.Error("cursor delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor_delete_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCanvasStream attaches one websocket to the canvas's event stream.
// Inbound frames are published to every subscriber of the canvas; outbound
// frames mirror the hub, own echoes included.
func (h *httpHandler) handleCanvasStream(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	events, cancel := h.hub.Subscribe(ctx, canvasID.String())
	defer cancel()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for event := range events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	for {
		var event mutation.Event
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		// The path, not the sender, names the canvas.
		event.CanvasID = canvasID.String()
		if err := h.hub.Publish(event); err != nil {
			h.logger.Warn("event publish failed",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
	cancel()
	<-writeDone
}

func (h *httpHandler) handleDirectorySearch(c *gin.Context) {
	kind, err := directory.NewEntryKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_kind"})
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	summaries, err := h.directory.Search(c.Request.Context(), kind, query)
	if err != nil {
		h.logger.Error("directory search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *httpHandler) handleExportPDF(c *gin.Context) {
	canvasID, ok := canvasIDParam(c)
	if !ok {
		return
	}
	snapshot, err := h.snapshots.Load(c.Request.Context(), canvasID)
	if err != nil {
		if h.snapshots.NotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot_not_found"})
			return
		}
		h.logger.Error("snapshot load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=\""+canvasID.String()+".pdf\"")
	if err := export.WritePDF(c.Writer, snapshot); err != nil {
		h.logger.Error("pdf export failed", zap.Error(err))
	}
}
