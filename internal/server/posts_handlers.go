package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	queryOffset     = "i"
	queryRange      = "range"
	queryLinkedPost = "linked_post"
	queryPostID     = "post_id"
)

// handlePosts serves both the paginated listing (?i=&range=) and the single post
// lookup (?linked_post=).
func (h *httpHandler) handlePosts(c *gin.Context) {
	offsetRaw, hasOffset := c.GetQuery(queryOffset)
	rangeRaw, hasRange := c.GetQuery(queryRange)
	if hasOffset && hasRange {
		h.listPosts(c, offsetRaw, rangeRaw)
		return
	}
	if linkedRaw, ok := c.GetQuery(queryLinkedPost); ok {
		h.lookupPost(c, linkedRaw)
		return
	}
	c.String(http.StatusBadRequest, "Missing pagination or linked_post parameters")
}

func (h *httpHandler) listPosts(c *gin.Context, offsetRaw, rangeRaw string) {
	offset, offsetErr := strconv.Atoi(offsetRaw)
	requested, rangeErr := strconv.Atoi(rangeRaw)
	if offsetErr != nil || rangeErr != nil {
		c.String(http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	records, err := h.postsService.List(c.Request.Context(), offset, requested)
	if err != nil {
		if errors.Is(err, posts.ErrInvalidPage) {
			c.String(http.StatusBadRequest, "Invalid pagination parameters")
			return
		}
		h.logger.Error("failed to list posts", zap.Error(err), zap.String("request_id", requestIDFrom(c)))
		c.String(http.StatusInternalServerError, "Unable to load posts")
		return
	}
	c.JSON(http.StatusOK, newArticleResponses(records))
}

func (h *httpHandler) lookupPost(c *gin.Context, idRaw string) {
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid linked_post parameter")
		return
	}

	records, err := h.postsService.FindByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to load post", zap.Error(err), zap.Int64("post_id", id), zap.String("request_id", requestIDFrom(c)))
		c.String(http.StatusInternalServerError, "Unable to load posts")
		return
	}
	c.JSON(http.StatusOK, newArticleResponses(records))
}

func (h *httpHandler) handleUpsertPost(c *gin.Context) {
	var request articlePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ID == nil || request.PostTime.IsZero() {
		c.String(http.StatusBadRequest, "Invalid post payload")
		return
	}

	if _, err := h.postsService.Save(c.Request.Context(), principalFrom(c), request.saveRequest()); err != nil {
		if errors.Is(err, posts.ErrPostNotFound) {
			h.logger.Warn("post update ignored: no such post", zap.Int64("post_id", *request.ID), zap.String("request_id", requestIDFrom(c)))
			c.String(http.StatusAccepted, "accepted")
			return
		}
		h.logger.Error("failed to save post", zap.Error(err), zap.Int64("post_id", *request.ID), zap.String("request_id", requestIDFrom(c)))
		c.String(http.StatusInternalServerError, "Unable to save post")
		return
	}
	c.String(http.StatusAccepted, "accepted")
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query(queryPostID), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	if _, err := h.postsService.Delete(c.Request.Context(), principalFrom(c), id); err != nil {
		h.logger.Error("failed to delete post", zap.Error(err), zap.Int64("post_id", id), zap.String("request_id", requestIDFrom(c)))
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	c.String(http.StatusAccepted, "accepted")
}
