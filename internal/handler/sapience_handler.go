package handler

import (
	"errors"
	"net/http"

	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
)

type SapienceHandler struct {
	sapienceService *service.SapienceService
}

func NewSapienceHandler(sapienceService *service.SapienceService) *SapienceHandler {
	return &SapienceHandler{sapienceService: sapienceService}
}

func (h *SapienceHandler) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": service.SapiencePresets})
}

// RunTest 发送题目并返回回答与耗时，不落库
func (h *SapienceHandler) RunTest(c *gin.Context) {
	var req struct {
		TestType string `json:"test_type"`
		Prompt   string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.sapienceService.Run(c.Request.Context(), req.TestType, req.Prompt)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// SaveResult 人工评分后保存
func (h *SapienceHandler) SaveResult(c *gin.Context) {
	var req service.SapienceSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.sapienceService.Save(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": rec})
}

func (h *SapienceHandler) RecentResults(c *gin.Context) {
	tests, err := h.sapienceService.Recent(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": tests})
}
