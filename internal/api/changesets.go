package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/httputil"
	"github.com/persistorai/changelog/internal/middleware"
	"github.com/persistorai/changelog/internal/models"
)

// ChangeSetHandler serves change set endpoints.
type ChangeSetHandler struct {
	repo    ChangeSetRepository
	records RecordRepository
	log     *logrus.Logger
}

// NewChangeSetHandler creates a ChangeSetHandler.
func NewChangeSetHandler(repo ChangeSetRepository, records RecordRepository, log *logrus.Logger) *ChangeSetHandler {
	return &ChangeSetHandler{repo: repo, records: records, log: log}
}

// List handles GET /api/v1/changesets.
func (h *ChangeSetHandler) List(c *gin.Context) {
	opts := models.ChangeSetQueryOpts{Author: c.Query("author")}
	opts.Limit, opts.Offset = page(c)

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "invalid since format, use RFC3339")
			return
		}
		opts.Since = &t
	}

	sets, hasMore, err := h.repo.ListChangeSets(c.Request.Context(), opts)
	if err != nil {
		h.log.WithError(err).Error("listing change sets")
		httputil.RespondError(c, http.StatusInternalServerError, httputil.CodeInternal, "internal server error")

		return
	}

	httputil.RespondPage(c, "data", sets, hasMore)
}

// Get handles GET /api/v1/changesets/:id.
func (h *ChangeSetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "id must be a UUID")
		return
	}

	cs, err := h.repo.GetChangeSet(c.Request.Context(), id)
	if errors.Is(err, models.ErrChangeSetNotFound) {
		httputil.RespondError(c, http.StatusNotFound, httputil.CodeNotFound, "change set not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("getting change set")
		httputil.RespondError(c, http.StatusInternalServerError, httputil.CodeInternal, "internal server error")

		return
	}

	c.JSON(http.StatusOK, cs)
}

// Record handles POST /api/v1/changesets. The author defaults to the
// authenticated principal.
func (h *ChangeSetHandler) Record(c *gin.Context) {
	var req models.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(c, http.StatusRequestEntityTooLarge, httputil.CodeTooLarge, "request body too large")
			return
		}

		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "invalid request body")

		return
	}

	if req.Author == "" {
		req.Author = c.GetString(middleware.PrincipalKey)
	}

	if err := req.Validate(); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeValidation, err.Error())
		return
	}

	result, err := h.records.Record(c.Request.Context(), req)
	if errors.Is(err, models.ErrConflictingTransaction) {
		httputil.RespondError(c, http.StatusConflict, httputil.CodeConflict, "a save is already in progress")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("recording change set")
		httputil.RespondError(c, http.StatusInternalServerError, httputil.CodeInternal, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":           "changesets.record",
		"author":           req.Author,
		"principal":        c.GetString(middleware.PrincipalKey),
		"objects":          len(req.Objects),
		"property_changes": result.PropertyChanges,
	}).Info("audit")

	status := http.StatusOK
	if result.ChangeSetID != nil {
		status = http.StatusCreated
	}

	c.JSON(status, result)
}
