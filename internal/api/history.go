package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/httputil"
)

// HistoryHandler serves object and property history endpoints.
type HistoryHandler struct {
	repo HistoryRepository
	log  *logrus.Logger
}

// NewHistoryHandler creates a HistoryHandler with the given repository and logger.
func NewHistoryHandler(repo HistoryRepository, log *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{repo: repo, log: log}
}

// ObjectChanges handles GET /api/v1/objects/:type/:ref/changes.
func (h *HistoryHandler) ObjectChanges(c *gin.Context) {
	p, ok := pathParams(c, "type", "ref")
	if !ok {
		return
	}
	typeName, ref := p[0], p[1]
	limit, offset := page(c)

	changes, hasMore, err := h.repo.ObjectHistory(c.Request.Context(), typeName, ref, limit, offset)
	if err != nil {
		h.log.WithError(err).Error("getting object history")
		httputil.RespondError(c, http.StatusInternalServerError, httputil.CodeInternal, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action": "history.object",
		"type":   typeName,
		"ref":    ref,
		"count":  len(changes),
	}).Info("audit")

	httputil.RespondPage(c, "changes", changes, hasMore)
}

// PropertyChanges handles GET /api/v1/objects/:type/:ref/properties/:property.
func (h *HistoryHandler) PropertyChanges(c *gin.Context) {
	p, ok := pathParams(c, "type", "ref", "property")
	if !ok {
		return
	}
	typeName, ref, property := p[0], p[1], p[2]
	limit, offset := page(c)

	changes, hasMore, err := h.repo.PropertyHistory(c.Request.Context(), typeName, ref, property, limit, offset)
	if err != nil {
		h.log.WithError(err).Error("getting property history")
		httputil.RespondError(c, http.StatusInternalServerError, httputil.CodeInternal, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":   "history.property",
		"type":     typeName,
		"ref":      ref,
		"property": property,
		"count":    len(changes),
	}).Info("audit")

	httputil.RespondPage(c, "changes", changes, hasMore)
}
