package handler

import (
	"context"
	"net/http"

	"support-lab/internal/logger"
	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
)

type SupportHandler struct {
	supportService *service.SupportService
	uploads        *service.UploadStore
}

func NewSupportHandler(supportService *service.SupportService, uploads *service.UploadStore) *SupportHandler {
	return &SupportHandler{supportService: supportService, uploads: uploads}
}

// SubmitTicket 提交工单并同步返回分析结果
func (h *SupportHandler) SubmitTicket(c *gin.Context) {
	var req service.SupportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 客户端断开后也要把工单写完
	ctx := context.WithoutCancel(c.Request.Context())
	payload, err := h.supportService.SubmitAndAnalyze(ctx, req)
	// 无论成败都可能新增了工单，让列表重新读取
	if rerr := h.supportService.Refresh(ctx); rerr != nil {
		logger.WithComponent("handler").Warn("刷新工单列表缓存失败", "error", rerr)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payload)
}

// ListTickets 工单列表，支持 search/status/error_type 筛选
func (h *SupportHandler) ListTickets(c *gin.Context) {
	tickets, err := h.supportService.ListTickets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	filtered := service.FilterTickets(tickets, service.TicketFilter{
		Search:    c.Query("search"),
		Status:    c.DefaultQuery("status", service.FilterAll),
		ErrorType: c.DefaultQuery("error_type", service.FilterAll),
	})

	c.JSON(http.StatusOK, gin.H{
		"tickets": filtered,
		"total":   len(tickets),
	})
}

func (h *SupportHandler) GetTicket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	detail, err := h.supportService.GetTicketDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": detail})
}

func (h *SupportHandler) RefreshTickets(c *gin.Context) {
	if err := h.supportService.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已刷新"})
}

// UploadImage 工单截图上传，返回可访问的 URL
func (h *SupportHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}

	file, err := h.uploads.Save(fh)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}
