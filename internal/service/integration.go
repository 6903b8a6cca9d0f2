package service

import (
	"context"
	"encoding/json"
	"mime/multipart"

	"support-lab/internal/model"
)

const integrationsCategory = "Integrations"

type LLMProbeRequest struct {
	Prompt                 string         `json:"prompt" validate:"required"`
	AddContextFromInternet bool           `json:"add_context_from_internet"`
	ResponseJSONSchema     map[string]any `json:"response_json_schema"`
}

type LLMProbeResult struct {
	Response    any `json:"response"`
	TotalTokens int `json:"total_tokens"`
}

// IntegrationService 外部集成探测：每次调用都记一条 TestLog
// images 为 nil 表示当前推理服务不支持文生图
type IntegrationService struct {
	gateway Gateway
	images  ImageGenerator
	mailer  Mailer
	uploads *UploadStore
	logs    *TestLogService
}

func NewIntegrationService(gateway Gateway, images ImageGenerator, mailer Mailer, uploads *UploadStore, logs *TestLogService) *IntegrationService {
	return &IntegrationService{gateway: gateway, images: images, mailer: mailer, uploads: uploads, logs: logs}
}

func llmProbeName(req LLMProbeRequest) string {
	switch {
	case req.ResponseJSONSchema != nil:
		return "LLM with JSON Schema"
	case req.AddContextFromInternet:
		return "LLM with Web Context"
	default:
		return "LLM Basic Call"
	}
}

func (s *IntegrationService) InvokeLLM(ctx context.Context, req LLMProbeRequest) (*LLMProbeResult, *model.TestLog, error) {
	if err := validateStruct(req); err != nil {
		return nil, nil, err
	}
	out, entry, err := s.logs.Record(ctx, integrationsCategory, llmProbeName(req), func(ctx context.Context) (any, error) {
		res, err := s.gateway.Invoke(ctx, InvokeRequest{
			Prompt:                 req.Prompt,
			AddContextFromInternet: req.AddContextFromInternet,
			ResponseJSONSchema:     req.ResponseJSONSchema,
		})
		if err != nil {
			return nil, err
		}
		result := &LLMProbeResult{Response: res.Text, TotalTokens: res.TotalTokens}
		if len(res.JSON) > 0 {
			result.Response = json.RawMessage(res.JSON)
		}
		return result, nil
	})
	if err != nil {
		return nil, entry, err
	}
	return out.(*LLMProbeResult), entry, nil
}

func (s *IntegrationService) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, *model.TestLog, error) {
	if err := validateStruct(req); err != nil {
		return nil, nil, err
	}
	if s.images == nil {
		return nil, nil, ErrImageUnsupported
	}
	out, entry, err := s.logs.Record(ctx, integrationsCategory, "Generate Image", func(ctx context.Context) (any, error) {
		return s.images.GenerateImage(ctx, req)
	})
	if err != nil {
		return nil, entry, err
	}
	return out.(*ImageResult), entry, nil
}

func (s *IntegrationService) SendEmail(ctx context.Context, email Email) (*model.TestLog, error) {
	if err := validateStruct(email); err != nil {
		return nil, err
	}
	_, entry, err := s.logs.Record(ctx, integrationsCategory, "Send Email", func(ctx context.Context) (any, error) {
		if err := s.mailer.Send(ctx, email); err != nil {
			return nil, err
		}
		return map[string]string{"to": email.To, "subject": email.Subject}, nil
	})
	return entry, err
}

func (s *IntegrationService) UploadFile(ctx context.Context, fh *multipart.FileHeader) (*UploadedFile, *model.TestLog, error) {
	out, entry, err := s.logs.Record(ctx, integrationsCategory, "Upload File", func(ctx context.Context) (any, error) {
		return s.uploads.Save(fh)
	})
	if err != nil {
		return nil, entry, err
	}
	return out.(*UploadedFile), entry, nil
}
