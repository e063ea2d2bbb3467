// Package handler implements the HTTP layer of the reference feedback backend.
//
// EDUCATIONAL CONTEXT:
// Handlers sit at the edge of the service. Each one:
// 1. Parses the request (JSON body, path id, query filters).
// 2. Validates it through gin's binding tags on model.FeedbackRequest.
// 3. Calls the repository.
// 4. Shapes the JSON response the dialog client expects:
//
//   - success bodies are wrapped as {"data": record}
//   - validation failures answer 422 with per-field messages
//   - every other failure answers {"error": CODE, "message": text}
//
// They hold no SQL and no business rules beyond input normalisation.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/bluefermion/marketfeedback/internal/feedback"
	"github.com/bluefermion/marketfeedback/internal/model"
	"github.com/bluefermion/marketfeedback/internal/repository"
)

// Store is the persistence the handlers need. *repository.SQLiteRepository satisfies it.
type Store interface {
	Create(ctx context.Context, f *model.Feedback) (int64, error)
	Update(ctx context.Context, f *model.Feedback) error
	GetByID(ctx context.Context, id int64) (*model.Feedback, error)
	List(ctx context.Context, filter repository.ListFilter) ([]*model.Feedback, error)
	Ping(ctx context.Context) error
}

// Keys of the request body that map onto record columns. Everything else is meta.
var requestFields = map[string]bool{
	"id": true, "rating": true, "comment": true, "feedback_type": true,
	"subject": true, "priority": true, "status": true,
	"user_id": true, "user_type": true, "meta": true,
	"created_at": true, "updated_at": true,
	"feedbackType": true, "type": true, "category": true, "message": true,
}

// FeedbackHandler serves the /feedback resource.
type FeedbackHandler struct {
	repo Store
	log  *zap.Logger
}

// NewFeedbackHandler wires the handler to its store.
func NewFeedbackHandler(repo Store, logger *zap.Logger) *FeedbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	useJSONFieldNames()
	return &FeedbackHandler{repo: repo, log: logger.Named("handler")}
}

// Register mounts the routes on r.
func (h *FeedbackHandler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/feedback", h.Create)
	r.GET("/feedback", h.List)
	r.GET("/feedback/:id", h.Get)
	r.PUT("/feedback/:id", h.Update)
}

// Health reports whether the database is reachable.
// Endpoint: GET /health
func (h *FeedbackHandler) Health(c *gin.Context) {
	if err := h.repo.Ping(c.Request.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Create stores a new submission.
// Endpoint: POST /feedback
func (h *FeedbackHandler) Create(c *gin.Context) {
	f, ok := h.bindFeedback(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repo.Create(ctx, f); err != nil {
		h.log.Error("failed to create feedback", zap.Error(err))
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to save feedback")
		return
	}

	h.log.Info("feedback created",
		zap.Int64("id", f.ID),
		zap.String("feedback_type", f.FeedbackType),
		zap.String("user_type", f.UserType),
		zap.Int("rating", f.Rating),
	)
	c.JSON(http.StatusCreated, model.FeedbackResponse{Data: f, Message: "Feedback submitted"})
}

// Update replaces a submission, as sent by the dialog after an edit.
// Endpoint: PUT /feedback/:id
func (h *FeedbackHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	f, ok := h.bindFeedback(c)
	if !ok {
		return
	}
	f.ID = id

	// Update refreshes f from the stored row, so the response carries the
	// original created_at.
	err := h.repo.Update(c.Request.Context(), f)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(c, http.StatusNotFound, codeNotFound, "Feedback not found")
		return
	}
	if err != nil {
		h.log.Error("failed to update feedback", zap.Int64("id", id), zap.Error(err))
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update feedback")
		return
	}

	h.log.Info("feedback updated", zap.Int64("id", id), zap.Int("rating", f.Rating))
	c.JSON(http.StatusOK, model.FeedbackResponse{Data: f, Message: "Feedback updated"})
}

// Get returns one submission.
// Endpoint: GET /feedback/:id
func (h *FeedbackHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	f, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(c, http.StatusNotFound, codeNotFound, "Feedback not found")
		return
	}
	if err != nil {
		h.log.Error("failed to get feedback", zap.Int64("id", id), zap.Error(err))
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load feedback")
		return
	}
	c.JSON(http.StatusOK, model.FeedbackResponse{Data: f})
}

// List returns submissions newest first.
// Endpoint: GET /feedback?limit=&offset=&feedback_type=&user_type=&user_id=
func (h *FeedbackHandler) List(c *gin.Context) {
	filter := repository.ListFilter{
		UserType: c.Query("user_type"),
		UserID:   c.Query("user_id"),
	}
	if t := c.Query("feedback_type"); t != "" {
		parsed, ok := feedback.ParseType(t)
		if !ok {
			writeError(c, http.StatusBadRequest, codeBadRequest, "Unknown feedback_type: "+t)
			return
		}
		filter.FeedbackType = parsed.Wire()
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, "limit must be a number")
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, "offset must be a number")
		return
	}

	list, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("failed to list feedback", zap.Error(err))
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load feedback")
		return
	}

	// Echo the page the repository actually applied, after clamping.
	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	c.JSON(http.StatusOK, model.FeedbackListResponse{
		Data:   list,
		Limit:  min(limit, repository.MaxListLimit),
		Offset: max(filter.Offset, 0),
	})
}

// bindFeedback decodes and validates the body and maps it onto a record. On
// failure it has already written the response.
func (h *FeedbackHandler) bindFeedback(c *gin.Context) (*model.Feedback, bool) {
	var req model.FeedbackRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		writeBindError(c, err)
		return nil, false
	}

	// ShouldBindBodyWith caches the body, so it can be decoded a second time
	// into a map to pick up the keys that become meta.
	var raw map[string]any
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidJSON, "Request body must be a JSON object")
		return nil, false
	}

	f := &model.Feedback{
		Rating:   req.Rating,
		Comment:  strings.TrimSpace(req.Comment),
		Subject:  strings.TrimSpace(req.Subject),
		Priority: req.Priority,
		Status:   req.Status,
		UserID:   req.UserID,
		UserType: req.UserType,
		Meta:     extractMeta(raw),
	}

	// BACKWARD COMPATIBILITY: older widget builds send message instead of
	// comment, and feedbackType/type/category instead of feedback_type. The
	// canonical field wins when both are present.
	if f.Comment == "" {
		f.Comment = strings.TrimSpace(req.LegacyMessage)
	}

	f.FeedbackType = req.FeedbackType
	if f.FeedbackType == "" {
		for _, alias := range []string{req.LegacyFeedbackType, req.LegacyType, req.LegacyCategory} {
			if alias == "" {
				continue
			}
			t, ok := feedback.ParseType(alias)
			if !ok {
				writeValidation(c, map[string][]string{
					"feedback_type": {"feedback_type must be one of: user_experience performance product_service transactional"},
				})
				return nil, false
			}
			f.FeedbackType = t.Wire()
			break
		}
	}
	return f, true
}

// extractMeta collects body keys that are not record fields. A nested "meta"
// object is merged in as well.
func extractMeta(raw map[string]any) map[string]any {
	meta := map[string]any{}
	if nested, ok := raw["meta"].(map[string]any); ok {
		for k, v := range nested {
			meta[k] = v
		}
	}
	for k, v := range raw {
		if !requestFields[k] && v != nil {
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, codeBadRequest, "Invalid feedback id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
