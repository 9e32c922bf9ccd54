package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"meet-signal/internal/auth"
	"meet-signal/internal/config"
	"meet-signal/internal/metrics"
	"meet-signal/internal/models"
	"meet-signal/internal/storage"
	"meet-signal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers form boundaries and the meetingId field on top of
// the file itself.
const multipartSlack = 64 << 10

type UploadHandlers struct {
	store     storage.BlobStore
	links     *auth.Service
	maxBytes  int64
	publicURL string
	now       func() time.Time
}

func NewUploadHandlers(store storage.BlobStore, links *auth.Service, cfg config.UploadConfig) *UploadHandlers {
	return &UploadHandlers{
		store:     store,
		links:     links,
		maxBytes:  cfg.MaxBytes,
		publicURL: cfg.PublicURL,
		now:       time.Now,
	}
}

func (h *UploadHandlers) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartSlack)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.reject(c, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error(), "too_large")
			return
		}
		h.reject(c, http.StatusBadRequest, "File and meetingId are required", "bad_request")
		return
	}
	defer file.Close()

	meetingID := strings.TrimSpace(c.Request.FormValue("meetingId"))
	if meetingID == "" {
		h.reject(c, http.StatusBadRequest, "File and meetingId are required", "bad_request")
		return
	}
	if header.Size > h.maxBytes {
		h.reject(c, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error(), "too_large")
		return
	}

	key, err := storage.ObjectKey(meetingID, header.Filename, h.now())
	if err != nil {
		h.reject(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	mimeType, err := detectMimeType(file, header)
	if err != nil {
		logger.Error("Upload read error: %v", err)
		h.reject(c, http.StatusInternalServerError, "Upload failed", "error")
		return
	}

	if err := h.store.Put(c.Request.Context(), key, mimeType, file, header.Size); err != nil {
		logger.Error("Upload store error for %s: %v", key, err)
		h.reject(c, http.StatusInternalServerError, "Upload failed", "error")
		return
	}

	fileURL, err := h.link(key)
	if err != nil {
		logger.Error("Signing link for %s: %v", key, err)
		h.reject(c, http.StatusInternalServerError, "Upload failed", "error")
		return
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	metrics.UploadBytes.Add(float64(header.Size))
	logger.Info("Stored %s (%d bytes, %s)", key, header.Size, mimeType)

	c.JSON(http.StatusOK, models.FileDescriptor{
		FileURL:  fileURL,
		FileName: storage.SanitizeFileName(header.Filename),
		FileSize: header.Size,
		MimeType: mimeType,
	})
}

// Download serves a stored file from disk or redirects to a presigned URL.
func (h *UploadHandlers) Download(c *gin.Context) {
	key := c.Param("meetingId") + "/" + c.Param("file")
	if err := storage.CheckKey(key); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err := h.links.Validate(c.Query("token"), key); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	obj, err := h.store.Get(c.Request.Context(), key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	case err != nil:
		logger.Error("Download of %s failed: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}

	if obj.URL != nil {
		c.Redirect(http.StatusFound, obj.URL.String())
		return
	}
	c.File(obj.Path)
}

func (h *UploadHandlers) link(key string) (string, error) {
	u := h.publicURL + "/" + key
	token, err := h.links.Sign(key)
	if err != nil || token == "" {
		return u, err
	}
	return u + "?token=" + token, nil
}

func (h *UploadHandlers) reject(c *gin.Context, status int, msg, result string) {
	metrics.Uploads.WithLabelValues(result).Inc()
	c.JSON(status, gin.H{"error": msg})
}

// detectMimeType trusts the part header unless it is missing or generic,
// then sniffs the first 512 bytes and rewinds.
func detectMimeType(file multipart.File, header *multipart.FileHeader) (string, error) {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
