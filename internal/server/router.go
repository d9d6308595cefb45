package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vinylvision/backend/internal/catalog"
	"github.com/vinylvision/backend/internal/extraction"
	"github.com/vinylvision/backend/internal/library"
	"github.com/vinylvision/backend/internal/scanner"
)

var (
	errMissingLibraryService = errors.New("library service dependency required")
	errMissingScanner        = errors.New("scanner dependency required")
)

type Dependencies struct {
	Library    *library.Service
	Scanner    *scanner.Reconciler
	Dispatcher *EventDispatcher
	Logger     *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Library == nil {
		return nil, errMissingLibraryService
	}
	if deps.Scanner == nil {
		return nil, errMissingScanner
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewEventDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		library:    deps.Library,
		scanner:    deps.Scanner,
		dispatcher: dispatcher,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/records", handler.handleListRecords)
	router.POST("/records", handler.handleSaveRecord)
	router.DELETE("/records/:id", handler.handleDeleteRecord)
	router.POST("/scan", handler.handleScan)
	router.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	library    *library.Service
	scanner    *scanner.Reconciler
	dispatcher *EventDispatcher
	logger     *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListRecords(c *gin.Context) {
	c.JSON(http.StatusOK, h.library.Records())
}

type duplicateResponsePayload struct {
	Error  string `json:"error"`
	ID     string `json:"id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

func (h *httpHandler) handleSaveRecord(c *gin.Context) {
	var record catalog.Record
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	replaced, err := h.library.Save(c.Request.Context(), record)
	if err != nil {
		var duplicate *library.DuplicateError
		switch {
		case errors.As(err, &duplicate):
			c.JSON(http.StatusConflict, duplicateResponsePayload{
				Error:  "duplicate_record",
				ID:     duplicate.Existing.ID,
				Artist: duplicate.Existing.Artist,
				Title:  duplicate.Existing.Title,
			})
		case errors.Is(err, catalog.ErrInvalidRecord):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_record"})
		default:
			h.logger.Error("failed to save record", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		}
		return
	}

	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	c.JSON(status, record)
}

func (h *httpHandler) handleDeleteRecord(c *gin.Context) {
	// Deletion is destructive and must never be implicit.
	if !strings.EqualFold(c.Query("confirm"), "true") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation_required"})
		return
	}

	id := c.Param("id")
	if err := h.library.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, library.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record_not_found"})
			return
		}
		h.logger.Error("failed to delete record", zap.String("record_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type scanRequestPayload struct {
	Image string `json:"image"`
	Mode  string `json:"mode"`
}

func (h *httpHandler) handleScan(c *gin.Context) {
	var request scanRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Image) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	mode, err := extraction.ParseMode(request.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_mode"})
		return
	}

	draft, err := h.scanner.Reconcile(c.Request.Context(), request.Image, mode)
	if err != nil {
		if errors.Is(err, extraction.ErrUnsupportedImage) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported_image"})
			return
		}
		h.logger.Error("scan reconciliation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan_failed"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(eventCollectionChange, event)
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, time.Now().UTC().Format(time.RFC3339))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
