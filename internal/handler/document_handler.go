package handler

import (
	"net/http"
	"strconv"

	"camaral-smart-go/internal/service"
	"camaral-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责知识库源文件的管理接口。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 接收一个 multipart 文件并触发异步摄取。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 file 字段",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Upload: Failed to open multipart file '%s': %v", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		log.Errorf("Upload: Failed for '%s': %v", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件已接收，摄取任务已投递",
		"data": gin.H{
			"id":       doc.ID,
			"fileMd5":  doc.FileMD5,
			"fileName": doc.FileName,
		},
	})
}

// List 返回全部源文件及其摄取状态。
func (h *DocumentHandler) List(c *gin.Context) {
	infos, err := h.documentService.List(c.Request.Context())
	if err != nil {
		log.Errorf("List: Failed to list documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "查询文档列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": infos})
}

// Delete 删除一个源文件及其全部索引分块。
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的文档 ID",
		})
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), uint(id)); err != nil {
		log.Errorf("Delete: Failed for document %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "删除成功"})
}
