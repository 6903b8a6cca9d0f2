package service

import (
	"fmt"
	"strings"
)

// BuildAnalysisPrompt 生成工单分析提示词；同样的输入总是得到同样的输出
func BuildAnalysisPrompt(req SupportRequest) string {
	hasChat := strings.TrimSpace(req.ChatHistory) != ""

	var prompt strings.Builder

	prompt.WriteString("You are an expert debugging assistant for Buildy apps (React, Vite, TypeScript, Tailwind CSS, shadcn/ui, TanStack Query).\n\n")

	prompt.WriteString("**App Context:**\n")
	prompt.WriteString(fmt.Sprintf("- App Name: %s\n", req.AppName))
	prompt.WriteString(fmt.Sprintf("- Page/Feature: %s\n", orPlaceholder(req.PageName, "Not specified")))
	prompt.WriteString(fmt.Sprintf("- Error Type: %s\n", req.ErrorType))
	prompt.WriteString(fmt.Sprintf("- Priority: %s\n", req.Priority))

	if hasChat {
		prompt.WriteString("\n**Chat History (Conversation between user and Buildy):**\n")
		prompt.WriteString(req.ChatHistory)
		prompt.WriteString("\n\n**IMPORTANT:** Use this chat history to understand:\n")
		prompt.WriteString("- What the user originally asked Buildy to build\n")
		prompt.WriteString("- What code and features were generated\n")
		prompt.WriteString("- Any modifications or corrections made along the way\n")
		prompt.WriteString("- The sequence of changes that led to the current state\n")
	} else {
		prompt.WriteString("\n**Chat History:** Not provided\n")
	}

	prompt.WriteString("\n**Problem Description:**\n")
	prompt.WriteString(req.ProblemDescription)
	prompt.WriteString("\n\n**Expected Behavior:**\n")
	prompt.WriteString(orPlaceholder(req.ExpectedBehavior, "Not specified"))
	prompt.WriteString("\n\n**Code/Error Messages:**\n")
	prompt.WriteString(orPlaceholder(req.CodeSnippet, "No code provided"))
	prompt.WriteString("\n\n")

	prompt.WriteString("**Task:**\n")
	prompt.WriteString("1. Analyze this issue and identify the most likely root causes")
	if hasChat {
		prompt.WriteString(" (use the chat history to understand the development context)")
	}
	prompt.WriteString("\n")
	prompt.WriteString("2. Provide 3-4 ranked solutions (high/medium/low likelihood)\n")
	prompt.WriteString("3. For each solution, include specific code examples when applicable\n")
	prompt.WriteString("4. Consider common Buildy patterns: routing, entity usage, integrations, React hooks\n")
	if hasChat {
		prompt.WriteString("5. Reference specific parts of the chat history that may have introduced the issue\n")
	}

	analysisHint := "Detailed analysis of the problem and likely causes (2-3 paragraphs)"
	if hasChat {
		analysisHint += ". If chat history is provided, reference specific requests or changes that may have caused the issue."
	}
	prompt.WriteString("\n**Return format:**\n")
	prompt.WriteString("{\n")
	prompt.WriteString(fmt.Sprintf("  \"analysis\": %q,\n", analysisHint))
	prompt.WriteString("  \"solutions\": [\n")
	prompt.WriteString("    {\n")
	prompt.WriteString("      \"title\": \"Short solution title\",\n")
	prompt.WriteString("      \"description\": \"Detailed explanation of the solution\",\n")
	prompt.WriteString("      \"code\": \"Code example if applicable (optional)\",\n")
	prompt.WriteString("      \"likelihood\": \"high|medium|low\"\n")
	prompt.WriteString("    }\n")
	prompt.WriteString("  ]\n")
	prompt.WriteString("}")

	return prompt.String()
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
