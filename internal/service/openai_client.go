package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"support-lab/internal/config"
	"support-lab/internal/logger"
)

// OpenAIClient 任意 OpenAI 兼容的 /chat/completions 接口
type OpenAIClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	imageModel string
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	c := &OpenAIClient{
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openai.com/v1"
	}
	if c.model == "" {
		c.model = "gpt-4o-mini"
	}
	if c.imageModel == "" {
		c.imageModel = "dall-e-3"
	}
	if cfg.TimeoutSeconds <= 0 {
		c.client.Timeout = 120 * time.Second
	}
	return c
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openaiJSONSchema `json:"json_schema,omitempty"`
}

type openaiJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	if req.AddContextFromInternet {
		// chat completions 不支持联网，忽略该标记
		logger.WithComponent("openai").Warn("add_context_from_internet 不受支持，已忽略")
	}

	body := openaiRequest{
		Model:    c.model,
		Messages: []openaiMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.ResponseJSONSchema != nil {
		body.Messages = append([]openaiMessage{{Role: "system", Content: schemaInstruction(req.ResponseJSONSchema)}}, body.Messages...)
		body.ResponseFormat = &openaiResponseFormat{
			Type: "json_schema",
			JSONSchema: &openaiJSONSchema{
				Name:   "response",
				Schema: req.ResponseJSONSchema,
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, truncate(string(raw), 500))
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(raw, &oaiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if oaiResp.Error != nil {
		return nil, fmt.Errorf("API返回错误: %s", oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("响应中没有 choices")
	}

	content := oaiResp.Choices[0].Message.Content
	result := &InvokeResult{
		Text:        content,
		TotalTokens: oaiResp.Usage.TotalTokens,
	}
	if req.ResponseJSONSchema != nil {
		if payload, err := extractJSONPayload(content); err == nil {
			result.JSON = payload
		} else {
			logger.WithComponent("openai").Warn("回答中没有 JSON", "content", truncate(content, 200))
		}
	}
	return result, nil
}

type openaiImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type openaiImageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateImage 调用 /images/generations，只取第一张
func (c *OpenAIClient) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	payload, err := json.Marshal(openaiImageRequest{
		Model:  c.imageModel,
		Prompt: req.Prompt,
		N:      1,
		Size:   req.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, truncate(string(raw), 500))
	}

	var imgResp openaiImageResponse
	if err := json.Unmarshal(raw, &imgResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if imgResp.Error != nil {
		return nil, fmt.Errorf("API返回错误: %s", imgResp.Error.Message)
	}
	if len(imgResp.Data) == 0 {
		return nil, fmt.Errorf("响应中没有图片")
	}

	img := imgResp.Data[0]
	result := &ImageResult{URL: img.URL, RevisedPrompt: img.RevisedPrompt}
	// 部分模型只返回 base64
	if result.URL == "" && img.B64JSON != "" {
		result.URL = "data:image/png;base64," + img.B64JSON
	}
	if result.URL == "" {
		return nil, fmt.Errorf("响应中没有图片地址")
	}
	return result, nil
}
