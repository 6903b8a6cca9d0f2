package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"support-lab/internal/logger"
)

type Likelihood string

const (
	LikelihoodHigh   Likelihood = "high"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodLow    Likelihood = "low"
)

// Solution AI 给出的一条候选解决方案
type Solution struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Code        string     `json:"code,omitempty"`
	Likelihood  Likelihood `json:"likelihood"`
}

type AnalysisResult struct {
	Analysis  string     `json:"analysis"`
	Solutions []Solution `json:"solutions"`
}

// AnalysisSchema 调用推理服务时使用的固定输出 schema
var AnalysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"analysis": map[string]any{"type": "string"},
		"solutions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"code":        map[string]any{"type": "string"},
					"likelihood":  map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
				},
				"required": []string{"title", "description", "likelihood"},
			},
		},
	},
	"required": []string{"analysis", "solutions"},
}

// DecodeError 推理服务返回的结构不符合 AnalysisSchema
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "分析结果格式错误: " + e.Reason
	}
	return fmt.Sprintf("分析结果格式错误: %s: %s", e.Field, e.Reason)
}

// rawAnalysis 字段全用指针/RawMessage，区分“缺失”和“空值”
type rawAnalysis struct {
	Analysis  *string           `json:"analysis"`
	Solutions []json.RawMessage `json:"solutions"`
}

type rawSolution struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	Likelihood  *string `json:"likelihood"`
}

// DecodeAnalysis 严格校验推理结果，返回强类型结果或 *DecodeError
func DecodeAnalysis(raw []byte) (*AnalysisResult, error) {
	payload, err := extractJSONPayload(string(raw))
	if err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}

	var ra rawAnalysis
	if err := json.Unmarshal(payload, &ra); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if ra.Analysis == nil || strings.TrimSpace(*ra.Analysis) == "" {
		return nil, &DecodeError{Field: "analysis", Reason: "缺失或为空"}
	}
	if ra.Solutions == nil {
		return nil, &DecodeError{Field: "solutions", Reason: "缺失"}
	}

	out := &AnalysisResult{
		Analysis:  *ra.Analysis,
		Solutions: make([]Solution, 0, len(ra.Solutions)),
	}
	for i, item := range ra.Solutions {
		field := fmt.Sprintf("solutions[%d]", i)
		var rs rawSolution
		if err := json.Unmarshal(item, &rs); err != nil {
			return nil, &DecodeError{Field: field, Reason: err.Error()}
		}
		if rs.Title == nil || strings.TrimSpace(*rs.Title) == "" {
			return nil, &DecodeError{Field: field + ".title", Reason: "缺失或为空"}
		}
		if rs.Description == nil || strings.TrimSpace(*rs.Description) == "" {
			return nil, &DecodeError{Field: field + ".description", Reason: "缺失或为空"}
		}
		if rs.Likelihood == nil {
			return nil, &DecodeError{Field: field + ".likelihood", Reason: "缺失"}
		}
		likelihood, ok := normalizeLikelihood(*rs.Likelihood)
		if !ok {
			return nil, &DecodeError{Field: field + ".likelihood", Reason: fmt.Sprintf("非法取值 %q", *rs.Likelihood)}
		}

		sol := Solution{
			Title:       *rs.Title,
			Description: *rs.Description,
			Likelihood:  likelihood,
		}
		if rs.Code != nil {
			sol.Code = *rs.Code
		}
		out.Solutions = append(out.Solutions, sol)
	}
	return out, nil
}

func normalizeLikelihood(s string) (Likelihood, bool) {
	switch l := Likelihood(strings.ToLower(strings.TrimSpace(s))); l {
	case LikelihoodHigh, LikelihoodMedium, LikelihoodLow:
		return l, true
	default:
		return "", false
	}
}

// MarshalSolutions 入库用的 JSON 文本，nil 也写成 []
func MarshalSolutions(solutions []Solution) (string, error) {
	if solutions == nil {
		solutions = []Solution{}
	}
	b, err := json.Marshal(solutions)
	if err != nil {
		return "", fmt.Errorf("序列化 solutions 失败: %w", err)
	}
	return string(b), nil
}

// ParseSolutions 详情页反序列化；空串或坏数据一律返回空列表
func ParseSolutions(text string) []Solution {
	if strings.TrimSpace(text) == "" {
		return []Solution{}
	}
	var solutions []Solution
	if err := json.Unmarshal([]byte(text), &solutions); err != nil {
		logger.WithComponent("support").Warn("solutions 数据损坏，按空列表处理", "error", err, "raw", truncate(text, 120))
		return []Solution{}
	}
	if solutions == nil {
		return []Solution{}
	}
	return solutions
}
