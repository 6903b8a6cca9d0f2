package service

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"support-lab/internal/logger"
	"support-lab/internal/model"

	"github.com/go-playground/validator/v10"
)

// SupportRequest 提交表单；app_name / problem_description / error_type 必填
type SupportRequest struct {
	AppName            string          `json:"app_name" validate:"required,max=200"`
	PageName           string          `json:"page_name" validate:"max=200"`
	ProblemDescription string          `json:"problem_description" validate:"required"`
	ExpectedBehavior   string          `json:"expected_behavior"`
	CodeSnippet        string          `json:"code_snippet"`
	ChatHistory        string          `json:"chat_history"`
	ImageURLs          []string        `json:"image_urls" validate:"dive,required"`
	ErrorType          model.ErrorType `json:"error_type" validate:"required,oneof=runtime_error build_error ui_issue database_error integration_error performance other"`
	Priority           model.Priority  `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

// AnalysisPayload 返回给调用方展示的分析结果
type AnalysisPayload struct {
	TicketID  uint            `json:"ticket_id"`
	Analysis  string          `json:"analysis"`
	Solutions []Solution      `json:"solutions"`
	ErrorType model.ErrorType `json:"error_type"`
}

// ValidationError 必填项缺失或枚举值非法；此时不会创建任何记录
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "请填写所有必填项: " + strings.Join(e.Fields, ", ")
}

const (
	StageCreate = "create"
	StageInvoke = "invoke"
	StageDecode = "decode"
	StageUpdate = "update"
)

// WorkflowError 提交流程某一步失败；TicketID 非 0 时工单停留在 analyzing
type WorkflowError struct {
	TicketID uint
	Stage    string
	Err      error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("工单分析失败(stage=%s, ticket_id=%d): %v", e.Stage, e.TicketID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息里用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}

// Normalize 去掉首尾空白并补默认优先级，然后校验
func (r SupportRequest) Normalize() (SupportRequest, error) {
	r.AppName = strings.TrimSpace(r.AppName)
	r.PageName = strings.TrimSpace(r.PageName)
	r.ProblemDescription = strings.TrimSpace(r.ProblemDescription)
	r.ErrorType = model.ErrorType(strings.TrimSpace(string(r.ErrorType)))
	r.Priority = model.Priority(strings.TrimSpace(string(r.Priority)))
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}

	urls := make([]string, 0, len(r.ImageURLs))
	for _, u := range r.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	r.ImageURLs = urls

	if err := validateStruct(r); err != nil {
		return r, err
	}
	return r, nil
}

func (r SupportRequest) toTicket() *model.SupportTicket {
	return &model.SupportTicket{
		AppName:            r.AppName,
		PageName:           r.PageName,
		ProblemDescription: r.ProblemDescription,
		ExpectedBehavior:   r.ExpectedBehavior,
		CodeSnippet:        r.CodeSnippet,
		ChatHistory:        r.ChatHistory,
		ImageURLs:          strings.Join(r.ImageURLs, ","),
		ErrorType:          r.ErrorType,
		Priority:           r.Priority,
		Status:             model.StatusAnalyzing,
	}
}

type SupportService struct {
	store   TicketStore
	gateway Gateway
	cache   TicketListCache
	log     *slog.Logger
}

func NewSupportService(store TicketStore, gateway Gateway, cache TicketListCache) *SupportService {
	if cache == nil {
		cache = NewMemoryTicketCache(0)
	}
	return &SupportService{
		store:   store,
		gateway: gateway,
		cache:   cache,
		log:     logger.WithComponent("support"),
	}
}

// SubmitAndAnalyze 创建工单(analyzing) -> 生成提示词 -> 调用推理服务 -> 校验结果 -> 更新工单(solved)
// 任何一步失败都不重试、不回滚，工单保持 analyzing 供排查
// 调用方断开不会中断流程，只受推理服务的 HTTP 超时约束
func (s *SupportService) SubmitAndAnalyze(ctx context.Context, req SupportRequest) (*AnalysisPayload, error) {
	ctx = context.WithoutCancel(ctx)
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	// 先落库，保证推理失败时提交内容不丢
	ticket := req.toTicket()
	if err := s.store.Create(ctx, ticket); err != nil {
		return nil, &WorkflowError{Stage: StageCreate, Err: err}
	}
	log := s.log.With("ticket_id", ticket.ID, "app_name", ticket.AppName, "error_type", ticket.ErrorType)
	log.Info("工单已创建，开始分析")

	prompt := BuildAnalysisPrompt(req)
	res, err := s.gateway.Invoke(ctx, InvokeRequest{
		Prompt:                 prompt,
		AddContextFromInternet: false,
		ResponseJSONSchema:     AnalysisSchema,
	})
	if err != nil {
		log.Error("调用推理服务失败", "error", err)
		return nil, &WorkflowError{TicketID: ticket.ID, Stage: StageInvoke, Err: err}
	}

	raw := []byte(res.JSON)
	if len(raw) == 0 {
		raw = []byte(res.Text)
	}
	analysis, err := DecodeAnalysis(raw)
	if err != nil {
		log.Error("推理结果校验失败", "error", err, "raw", truncate(string(raw), 300))
		return nil, &WorkflowError{TicketID: ticket.ID, Stage: StageDecode, Err: err}
	}

	solutionsText, err := MarshalSolutions(analysis.Solutions)
	if err != nil {
		return nil, &WorkflowError{TicketID: ticket.ID, Stage: StageUpdate, Err: err}
	}
	if _, err := s.store.Update(ctx, ticket.ID, map[string]interface{}{
		"analysis_result": analysis.Analysis,
		"solutions":       solutionsText,
		"status":          model.StatusSolved,
	}); err != nil {
		log.Error("保存分析结果失败", "error", err)
		return nil, &WorkflowError{TicketID: ticket.ID, Stage: StageUpdate, Err: err}
	}

	log.Info("工单分析完成", "solutions", len(analysis.Solutions), "tokens", res.TotalTokens)
	return &AnalysisPayload{
		TicketID:  ticket.ID,
		Analysis:  analysis.Analysis,
		Solutions: analysis.Solutions,
		ErrorType: ticket.ErrorType,
	}, nil
}
