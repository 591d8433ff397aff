package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/common"
	"github.com/lingodoc/platform/internal/models"
)

type registerFileReq struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
	WordCount int64  `json:"word_count"`
	PageCount int64  `json:"page_count"`
}

// RegisterFile records metadata for an object the client already put in
// storage. Uploads themselves do not pass through the API.
func (h *Handler) RegisterFile(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req registerFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Filename == "" || req.Path == "" || req.Size <= 0 {
		common.Fail(c, http.StatusBadRequest, 10005, "filename, path and size required")
		return
	}

	file := models.File{
		UserID:    uid,
		Filename:  req.Filename,
		Path:      req.Path,
		Size:      req.Size,
		MimeType:  req.MimeType,
		WordCount: req.WordCount,
		PageCount: req.PageCount,
		Status:    "uploaded",
	}
	if err := h.DB.Create(&file).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, file)
}

func (h *Handler) ListFiles(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var files []models.File
	if err := h.DB.Where("user_id = ?", uid).Order("created_at DESC").Find(&files).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"files": files})
}

// DeleteFile removes the metadata row and then the storage object. The
// object delete is best-effort: an orphaned blob is preferable to a
// dangling row pointing at nothing.
func (h *Handler) DeleteFile(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "invalid file id")
		return
	}

	var file models.File
	if err := h.DB.Where("id = ? AND user_id = ?", id, uid).First(&file).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "file not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	if err := h.DB.Delete(&file).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if err := h.Files.Remove(c.Request.Context(), file.Path); err != nil {
		h.Log.Warn().Str("path", file.Path).Err(err).Msg("failed to remove storage object")
	}

	common.OK(c, gin.H{"deleted": file.ID})
}
