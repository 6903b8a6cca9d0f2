package handler

import (
	"net/http"
	"strconv"

	"support-lab/internal/model"
	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultTestLogLimit = 100

type TestLogHandler struct {
	testLogService *service.TestLogService
}

func NewTestLogHandler(testLogService *service.TestLogService) *TestLogHandler {
	return &TestLogHandler{testLogService: testLogService}
}

type testLogInput struct {
	TestCategory  string `json:"test_category" binding:"required"`
	TestName      string `json:"test_name" binding:"required"`
	Status        string `json:"status" binding:"required,oneof=passed failed"`
	ResultData    string `json:"result_data"`
	ExecutionTime int64  `json:"execution_time"`
}

func (in testLogInput) toModel() model.TestLog {
	return model.TestLog{
		TestCategory:  in.TestCategory,
		TestName:      in.TestName,
		Status:        in.Status,
		ResultData:    in.ResultData,
		ExecutionTime: in.ExecutionTime,
	}
}

// ListTestLogs 支持 category/status/test_name 精确筛选，sort 默认 -created_at
func (h *TestLogHandler) ListTestLogs(c *gin.Context) {
	limit := defaultTestLogLimit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.testLogService.Filter(c.Request.Context(), service.TestLogFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		TestName: c.Query("test_name"),
	}, c.DefaultQuery("sort", service.SortNewestFirst), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_logs": logs})
}

func (h *TestLogHandler) CreateTestLog(c *gin.Context) {
	var req testLogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := req.toModel()
	if err := h.testLogService.Create(c.Request.Context(), &log); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_log": log})
}

func (h *TestLogHandler) BulkCreateTestLogs(c *gin.Context) {
	var req struct {
		TestLogs []testLogInput `json:"test_logs" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs := make([]model.TestLog, 0, len(req.TestLogs))
	for _, in := range req.TestLogs {
		logs = append(logs, in.toModel())
	}
	created, err := h.testLogService.BulkCreate(c.Request.Context(), logs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_logs": created})
}

func (h *TestLogHandler) UpdateTestLog(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req service.TestLogUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log, err := h.testLogService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_log": log})
}

func (h *TestLogHandler) DeleteTestLog(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.testLogService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// Dashboard 首页统计
func (h *TestLogHandler) Dashboard(c *gin.Context) {
	summary, err := h.testLogService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
