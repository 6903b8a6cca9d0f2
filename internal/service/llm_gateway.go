package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"support-lab/internal/config"
)

// Gateway 外部推理服务：prompt (+ 可选 JSON Schema) -> 文本或结构化数据
type Gateway interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
}

type InvokeRequest struct {
	Prompt                 string
	AddContextFromInternet bool
	// 为 nil 时返回自由文本
	ResponseJSONSchema map[string]any
}

type InvokeResult struct {
	// 模型原始回答
	Text string
	// 传了 schema 时为抽取出的 JSON 值（未做字段校验）
	JSON        json.RawMessage
	TotalTokens int
}

// Value 结构化结果优先，否则返回文本
func (r *InvokeResult) Value() any {
	if r == nil {
		return nil
	}
	if len(r.JSON) > 0 {
		return r.JSON
	}
	return r.Text
}

// ImageGenerator 文生图；只有 openai 兼容实现提供
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

type ImageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	// 例如 1024x1024，为空时由服务端决定
	Size string `json:"size"`
}

type ImageResult struct {
	// 远程地址或 data: URL
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

var ErrImageUnsupported = errors.New("当前 llm.provider 不支持图片生成")

var ErrNoJSONPayload = errors.New("响应中没有可解析的 JSON")

// NewGateway 根据 llm.provider 选择实现
func NewGateway(cfg config.LLMConfig) (Gateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case "dify", "":
		return NewDifyClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("不支持的 llm.provider: %s", cfg.Provider)
	}
}

// schemaInstruction 附加在 prompt 末尾，要求模型只输出符合 schema 的 JSON
func schemaInstruction(schema map[string]any) string {
	b, _ := json.MarshalIndent(schema, "", "  ")
	return "Respond with a single JSON value only (no Markdown, no extra text) that conforms to this JSON schema:\n" + string(b)
}

// extractJSONPayload 从模型回答里抠出 JSON：兼容 ```json 包裹和前后多余文本
func extractJSONPayload(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// 去掉 ```json 这一行的语言标记
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if json.Valid([]byte(s)) {
		return compactJSON(s), nil
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, ErrNoJSONPayload
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return nil, ErrNoJSONPayload
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, ErrNoJSONPayload
	}
	return compactJSON(candidate), nil
}

func compactJSON(s string) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return json.RawMessage(s)
	}
	return json.RawMessage(buf.Bytes())
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// 回退到字符边界，避免截出半个汉字
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
