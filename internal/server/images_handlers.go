package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/images"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/imaging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	immutableMaxAge = 31536000
	noCacheMaxAge   = 0
)

func (h *httpHandler) handleListImages(c *gin.Context) {
	names, err := h.imagesService.ListNames(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.logger.Error("failed to list images", zap.Error(err), zap.String("request_id", requestIDFrom(c)))
		c.String(http.StatusInternalServerError, "Unable to load images")
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *httpHandler) handleUploadImage(c *gin.Context) {
	clientName := strings.TrimSpace(c.GetHeader(fileNameHeader))
	if clientName == "" {
		c.String(http.StatusBadRequest, "Missing File-Name header")
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	defer body.Close()

	result, err := h.imagesService.Ingest(c.Request.Context(), principalFrom(c), clientName, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.String(http.StatusRequestEntityTooLarge, "Upload too large")
		case errors.Is(err, images.ErrInvalidName):
			c.String(http.StatusBadRequest, "Missing File-Name header")
		case errors.Is(err, imaging.ErrDecode), errors.Is(err, imaging.ErrEncode):
			c.String(http.StatusInternalServerError, "Unable to process image")
		default:
			c.String(http.StatusInternalServerError, "Unable to store image")
		}
		return
	}
	c.JSON(http.StatusOK, result.Names)
}

// handleImage serves a stored payload. Stored names embed "?v=<version>", which a
// browser sends as the query string, so the raw query is folded back into the name.
func (h *httpHandler) handleImage(variant images.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := requestedImageName(c)
		if name == "" {
			cacheFor(c, noCacheMaxAge)
			c.Status(http.StatusOK)
			return
		}

		asset, err := h.imagesService.Fetch(c.Request.Context(), name, variant)
		if err != nil {
			if errors.Is(err, imaging.ErrDecode) || errors.Is(err, imaging.ErrEncode) {
				c.String(http.StatusInternalServerError, "Unable to process image")
				return
			}
			h.logger.Error("failed to load image", zap.Error(err), zap.String("name", name), zap.String("request_id", requestIDFrom(c)))
			cacheFor(c, noCacheMaxAge)
			c.Status(http.StatusOK)
			return
		}
		if !asset.Found {
			cacheFor(c, noCacheMaxAge)
			c.Status(http.StatusOK)
			return
		}

		cacheFor(c, immutableMaxAge)
		c.Data(http.StatusOK, asset.Format.ContentType(), asset.Data)
	}
}

func requestedImageName(c *gin.Context) string {
	name := strings.TrimPrefix(c.Param("name"), "/")
	rawQuery := c.Request.URL.RawQuery
	if rawQuery == "" {
		return name
	}
	query, err := url.PathUnescape(rawQuery)
	if err != nil {
		query = rawQuery
	}
	return name + "?" + query
}
