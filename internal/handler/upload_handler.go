// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"kb-assist-go/internal/config"
	"kb-assist-go/internal/model"
	"kb-assist-go/internal/service"
	"kb-assist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理文档上传请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理多文件上传请求。
// 文件先落盘到临时目录，再交给 UploadService 解析入库；
// 单个文件保存失败不会中止整批。
func (h *UploadHandler) Upload(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	form, err := c.MultipartForm()
	if err != nil {
		log.Warnf("Upload: Invalid multipart form, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的上传请求"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中没有文件"})
		return
	}

	tempDir := filepath.Join(config.Conf.Upload.TempDir, fmt.Sprintf("%d", user.ID))
	if err := os.MkdirAll(tempDir, os.ModePerm); err != nil {
		log.Error("Upload: 创建临时目录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	var filePaths []string
	for _, file := range files {
		// 文件名加时间戳前缀，避免同名覆盖
		dst := filepath.Join(tempDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
		if err := c.SaveUploadedFile(file, dst); err != nil {
			log.Warnf("Upload: 保存文件失败: %s, error: %v", file.Filename, err)
			continue
		}
		filePaths = append(filePaths, dst)
	}

	if len(filePaths) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "所有文件保存失败"})
		return
	}

	count, err := h.uploadService.IngestFiles(c.Request.Context(), filePaths, user.ID)
	if err != nil {
		log.Errorf("Upload: 文档入库失败, userID: %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文档入库失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"documentCount": count,
		},
	})
}

// ListFiles 返回当前用户上传过的文件记录。
func (h *UploadHandler) ListFiles(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	files, err := h.uploadService.ListFiles(user.ID)
	if err != nil {
		log.Errorf("ListFiles: 查询文件记录失败, userID: %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文件记录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    files,
	})
}
