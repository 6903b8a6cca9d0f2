package service

import (
	"strings"
	"testing"

	"support-lab/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestBuildAnalysisPrompt_WithoutChat(t *testing.T) {
	prompt := BuildAnalysisPrompt(SupportRequest{
		AppName:            "Acme CRM",
		ProblemDescription: "Submit button does nothing",
		ErrorType:          model.ErrorTypeUI,
		Priority:           model.PriorityMedium,
	})

	assert.True(t, strings.HasPrefix(prompt, "You are an expert debugging assistant for Buildy apps"))
	assert.Contains(t, prompt, "- App Name: Acme CRM\n")
	assert.Contains(t, prompt, "- Page/Feature: Not specified\n")
	assert.Contains(t, prompt, "- Error Type: ui_issue\n")
	assert.Contains(t, prompt, "- Priority: medium\n")
	assert.Contains(t, prompt, "**Chat History:** Not provided")
	assert.Contains(t, prompt, "**Expected Behavior:**\nNot specified")
	assert.Contains(t, prompt, "**Code/Error Messages:**\nNo code provided")
	assert.Contains(t, prompt, "4. Consider common Buildy patterns")
	assert.NotContains(t, prompt, "5. Reference specific parts of the chat history")
	assert.NotContains(t, prompt, "IMPORTANT")
	assert.True(t, strings.HasSuffix(prompt, "}"))
}

func TestBuildAnalysisPrompt_WithChat(t *testing.T) {
	req := SupportRequest{
		AppName:            "Acme CRM",
		PageName:           "Contacts",
		ProblemDescription: "Submit button does nothing",
		ExpectedBehavior:   "Contact is saved",
		CodeSnippet:        "TypeError: x is undefined",
		ChatHistory:        "user: add a contact form\nbuildy: done",
		ErrorType:          model.ErrorTypeRuntime,
		Priority:           model.PriorityHigh,
	}
	prompt := BuildAnalysisPrompt(req)

	assert.Contains(t, prompt, "- Page/Feature: Contacts\n")
	assert.Contains(t, prompt, "**Chat History (Conversation between user and Buildy):**\nuser: add a contact form\nbuildy: done")
	assert.Contains(t, prompt, "**IMPORTANT:** Use this chat history to understand:")
	assert.Contains(t, prompt, "(use the chat history to understand the development context)")
	assert.Contains(t, prompt, "5. Reference specific parts of the chat history that may have introduced the issue")
	assert.Contains(t, prompt, "If chat history is provided, reference specific requests")
	assert.Contains(t, prompt, "Contact is saved")
	assert.Contains(t, prompt, "TypeError: x is undefined")
	assert.NotContains(t, prompt, "Not provided")

	assert.Equal(t, prompt, BuildAnalysisPrompt(req))
}
