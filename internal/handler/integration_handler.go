package handler

import (
	"errors"
	"net/http"

	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
)

// IntegrationHandler 集成测试页：每次调用都会写一条 TestLog，失败时也返回该记录
type IntegrationHandler struct {
	integrationService *service.IntegrationService
}

func NewIntegrationHandler(integrationService *service.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{integrationService: integrationService}
}

func (h *IntegrationHandler) InvokeLLM(c *gin.Context) {
	var req service.LLMProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, entry, err := h.integrationService.InvokeLLM(c.Request.Context(), req)
	if err != nil {
		respondProbeError(c, err, entry)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":     res.Response,
		"total_tokens": res.TotalTokens,
		"test_log":     entry,
	})
}

func (h *IntegrationHandler) GenerateImage(c *gin.Context) {
	var req service.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, entry, err := h.integrationService.GenerateImage(c.Request.Context(), req)
	if err != nil {
		respondProbeError(c, err, entry)
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": img, "test_log": entry})
}

func (h *IntegrationHandler) SendEmail(c *gin.Context) {
	var req service.Email
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.integrationService.SendEmail(c.Request.Context(), req)
	if err != nil {
		respondProbeError(c, err, entry)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "发送成功", "test_log": entry})
}

func (h *IntegrationHandler) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}

	file, entry, err := h.integrationService.UploadFile(c.Request.Context(), fh)
	if err != nil {
		respondProbeError(c, err, entry)
		return
	}

	c.JSON(http.StatusOK, gin.H{"file": file, "test_log": entry})
}

func respondProbeError(c *gin.Context, err error, entry any) {
	var verr *service.ValidationError
	if errors.As(err, &verr) || errors.Is(err, service.ErrFileTooLarge) || errors.Is(err, service.ErrImageUnsupported) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "test_log": entry})
}
