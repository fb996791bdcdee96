package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/deptconnect/portal/internal/content"
	"github.com/deptconnect/portal/internal/storage"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// MaxAttachmentSize bounds a single uploaded file.
const MaxAttachmentSize = 5 << 20

func (h *Host) publish(c *gin.Context, d content.Draft) {
	if h.pub == nil {
		respondError(c, errs.Config("backend", "is not available"))
		return
	}
	if err := c.ShouldBindJSON(d); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.pub.Publish(c.Request.Context(), d)
	if err != nil {
		h.log.Warn().Err(err).Str("kind", string(d.Kind())).Msg("write rejected")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "kind": d.Kind()})
}

// CreatePost publishes an announcement, event or achievement.
func (h *Host) CreatePost(c *gin.Context) {
	kind, err := content.ParseKind(c.Param("category"))
	if err != nil || !kind.IsPost() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown category", "code": errs.CodeNotFound})
		return
	}
	h.publish(c, content.NewDraft(kind))
}

// SendMessage posts to the department chat.
func (h *Host) SendMessage(c *gin.Context) {
	h.publish(c, content.NewDraft(content.KindChat))
}

// UploadAttachment stores an achievement image and returns the portal path to
// put in the achievement's imageUrl.
func (h *Host) UploadAttachment(c *gin.Context) {
	if h.files == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachments are not configured"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	if fh.Size > MaxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	owner := c.GetString(middleware.IdentityKey)
	key, err := h.files.Upload(c.Request.Context(), owner, fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		h.log.Error().Err(err).Str("file", fh.Filename).Msg("attachment upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "url": content.AttachmentPath + key})
}

// GetAttachment streams a stored attachment.
func (h *Host) GetAttachment(c *gin.Context) {
	if h.files == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachments are not configured"})
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !storage.ValidKey(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found", "code": errs.CodeNotFound})
		return
	}
	obj, err := h.files.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found", "code": errs.CodeNotFound})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("attachment read failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "attachment unavailable"})
		return
	}
	defer obj.Body.Close()
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}
