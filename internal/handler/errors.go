package handler

import (
	"errors"
	"net/http"
	"strconv"

	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError 把 service 层错误映射为状态码，统一 {"error": ...} 结构
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
		return
	}

	var werr *service.WorkflowError
	if errors.As(err, &werr) {
		status := http.StatusInternalServerError
		if werr.Stage == service.StageInvoke || werr.Stage == service.StageDecode {
			status = http.StatusBadGateway
		}
		body := gin.H{"error": werr.Error(), "stage": werr.Stage}
		if werr.TicketID != 0 {
			body["ticket_id"] = werr.TicketID
		}
		c.JSON(status, body)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
	case errors.Is(err, service.ErrInvalidSort), errors.Is(err, service.ErrFileTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrImageUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法 id"})
		return 0, false
	}
	return uint(id), true
}
