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

const difyUser = "support-lab"

type DifyClient struct {
	BaseURL           string
	APIKey            string
	Client            *http.Client
	AppType           string
	ResponseMode      string
	WorkflowSystemKey string
	WorkflowQueryKey  string
	WorkflowOutputKey string
}

func NewDifyClient(cfg config.LLMConfig) *DifyClient {
	c := &DifyClient{
		BaseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:            cfg.APIKey,
		AppType:           cfg.AppType,
		ResponseMode:      cfg.ResponseMode,
		WorkflowSystemKey: cfg.WorkflowSystemKey,
		WorkflowQueryKey:  cfg.WorkflowQueryKey,
		WorkflowOutputKey: cfg.WorkflowOutputKey,
		Client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
	// streaming 会返回 SSE，这里不解析
	if c.ResponseMode == "" {
		c.ResponseMode = "blocking"
	}
	if c.WorkflowSystemKey == "" {
		c.WorkflowSystemKey = "system"
	}
	if c.WorkflowQueryKey == "" {
		c.WorkflowQueryKey = "query"
	}
	if cfg.TimeoutSeconds <= 0 {
		c.Client.Timeout = 120 * time.Second
	}
	return c
}

type ChatRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	User           string                 `json:"user"`
}

type difyUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
	Metadata       struct {
		Usage difyUsage `json:"usage"`
	} `json:"metadata"`
}

type WorkflowRunRequest struct {
	Inputs       map[string]interface{} `json:"inputs"`
	ResponseMode string                 `json:"response_mode"`
	User         string                 `json:"user"`
}

type WorkflowRunResponse struct {
	TaskID string `json:"task_id"`
	Data   struct {
		ID          string                 `json:"id"`
		Outputs     map[string]interface{} `json:"outputs"`
		Status      string                 `json:"status"`
		Error       string                 `json:"error"`
		TotalTokens int                    `json:"total_tokens"`
	} `json:"data"`
}

// Invoke 实现 Gateway：有 schema 时把 schema 写进 prompt，再从回答里抽取 JSON
func (c *DifyClient) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	prompt := req.Prompt
	system := "You are a helpful assistant."
	if req.ResponseJSONSchema != nil {
		system = schemaInstruction(req.ResponseJSONSchema)
		prompt = prompt + "\n\n" + system
	}

	var inputs map[string]interface{}
	if c.AppType == "workflow" {
		inputs = map[string]interface{}{
			c.WorkflowSystemKey:         system,
			c.WorkflowQueryKey:          req.Prompt,
			"add_context_from_internet": req.AddContextFromInternet,
		}
	} else {
		inputs = map[string]interface{}{
			"add_context_from_internet": req.AddContextFromInternet,
		}
	}

	resp, err := c.ChatOrCompletion(ctx, prompt, inputs)
	if err != nil {
		return nil, err
	}

	result := &InvokeResult{
		Text:        resp.Answer,
		TotalTokens: resp.Metadata.Usage.TotalTokens,
	}
	if req.ResponseJSONSchema != nil {
		// 抽不出 JSON 时只返回原文，由调用方按解码失败处理
		if payload, err := extractJSONPayload(resp.Answer); err == nil {
			result.JSON = payload
		} else {
			logger.WithComponent("dify").Warn("回答中没有 JSON", "answer", truncate(resp.Answer, 200))
		}
	}
	return result, nil
}

// Chat 使用chat-messages端点（适用于chat模式应用）
func (c *DifyClient) Chat(ctx context.Context, prompt string, inputs map[string]interface{}) (*ChatResponse, error) {
	var chatResp ChatResponse
	err := c.post(ctx, "/chat-messages", ChatRequest{
		Inputs:       inputs,
		Query:        prompt,
		ResponseMode: c.ResponseMode,
		User:         difyUser,
	}, &chatResp)
	if err != nil {
		return nil, err
	}
	return &chatResp, nil
}

// Completion 使用completions端点（适用于completion模式应用）
func (c *DifyClient) Completion(ctx context.Context, prompt string, inputs map[string]interface{}) (*ChatResponse, error) {
	// completion 应用要求 query 放在 inputs 里
	merged := make(map[string]interface{}, len(inputs)+1)
	for k, v := range inputs {
		merged[k] = v
	}
	merged["query"] = prompt

	var resp ChatResponse
	err := c.post(ctx, "/completion-messages", ChatRequest{
		Inputs:       merged,
		ResponseMode: c.ResponseMode,
		User:         difyUser,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *DifyClient) WorkflowRun(ctx context.Context, inputs map[string]interface{}) (string, int, error) {
	var runResp WorkflowRunResponse
	err := c.post(ctx, "/workflows/run", WorkflowRunRequest{
		Inputs:       inputs,
		ResponseMode: c.ResponseMode,
		User:         difyUser,
	}, &runResp)
	if err != nil {
		return "", 0, err
	}
	if runResp.Data.Status != "" && runResp.Data.Status != "succeeded" {
		return "", 0, fmt.Errorf("workflow 执行失败: status=%s, %s", runResp.Data.Status, runResp.Data.Error)
	}

	answer := extractWorkflowAnswer(runResp.Data.Outputs, c.WorkflowOutputKey)
	return answer, runResp.Data.TotalTokens, nil
}

// ChatOrCompletion 智能选择API端点：workflow -> completion -> chat
func (c *DifyClient) ChatOrCompletion(ctx context.Context, prompt string, inputs map[string]interface{}) (*ChatResponse, error) {
	if c.AppType == "workflow" {
		ans, tokens, err := c.WorkflowRun(ctx, inputs)
		if err != nil {
			return nil, err
		}
		var resp ChatResponse
		resp.Answer = ans
		resp.Metadata.Usage.TotalTokens = tokens
		return &resp, nil
	}

	if c.AppType != "chat" {
		completionResp, err := c.Completion(ctx, prompt, inputs)
		if err == nil {
			return completionResp, nil
		}
		if c.AppType == "completion" {
			return nil, err
		}
		logger.WithComponent("dify").Warn("completion 端点失败，改用 chat", "error", err)
		chatResp, chatErr := c.Chat(ctx, prompt, inputs)
		if chatErr != nil {
			return nil, fmt.Errorf("所有API端点都失败: appType=%s, completion(%v), chat(%v)", c.AppType, err, chatErr)
		}
		return chatResp, nil
	}

	return c.Chat(ctx, prompt, inputs)
}

func (c *DifyClient) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, truncate(string(raw), 500))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func extractWorkflowAnswer(outputs map[string]interface{}, outputKey string) string {
	if outputs == nil {
		return ""
	}

	if outputKey != "" {
		if v, ok := outputs[outputKey]; ok {
			return stringifyOutput(v)
		}
	}

	for _, k := range []string{"answer", "text", "output", "result"} {
		if v, ok := outputs[k]; ok {
			return stringifyOutput(v)
		}
	}

	for _, v := range outputs {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}

	b, _ := json.Marshal(outputs)
	return string(b)
}

func stringifyOutput(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}
