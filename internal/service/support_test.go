package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"support-lab/internal/config"
	"support-lab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmeResponse = `{"analysis":"The button has no click handler bound.","solutions":[{"title":"Add onClick handler","description":"Bind the submit function to the button.","code":"<Button onClick={handleSubmit}>","likelihood":"high"},{"title":"Check form wrapper","description":"Ensure the button is inside the form.","likelihood":"Medium"}]}`

func acmeRequest() SupportRequest {
	return SupportRequest{
		AppName:            "Acme CRM",
		ProblemDescription: "Submit button does nothing",
		ErrorType:          model.ErrorTypeUI,
		Priority:           model.PriorityMedium,
	}
}

func TestSubmitAndAnalyze_Success(t *testing.T) {
	f := newSupportFixture(t)
	f.gateway.result = jsonResult(acmeResponse)
	ctx := context.Background()

	payload, err := f.svc.SubmitAndAnalyze(ctx, acmeRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "invoke", "update"}, f.log.list())
	assert.NotZero(t, payload.TicketID)
	assert.Equal(t, "The button has no click handler bound.", payload.Analysis)
	assert.Equal(t, model.ErrorTypeUI, payload.ErrorType)
	require.Len(t, payload.Solutions, 2)
	assert.Equal(t, "Add onClick handler", payload.Solutions[0].Title)
	assert.Equal(t, LikelihoodHigh, payload.Solutions[0].Likelihood)
	assert.Equal(t, LikelihoodMedium, payload.Solutions[1].Likelihood)

	tickets := f.allTickets(t)
	require.Len(t, tickets, 1)
	stored := tickets[0]
	assert.Equal(t, payload.TicketID, stored.ID)
	assert.Equal(t, model.StatusSolved, stored.Status)
	assert.Equal(t, payload.Analysis, stored.AnalysisResult)
	assert.Equal(t, payload.Solutions, ParseSolutions(stored.Solutions))

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.False(t, req.AddContextFromInternet)
	assert.Equal(t, AnalysisSchema, req.ResponseJSONSchema)
	assert.Contains(t, req.Prompt, "- App Name: Acme CRM")
	assert.Contains(t, req.Prompt, "**Chat History:** Not provided")
}

func TestSubmitAndAnalyze_RecordCreatedBeforeInvoke(t *testing.T) {
	f := newSupportFixture(t)
	var seen []model.SupportTicket
	f.gateway.result = jsonResult(acmeResponse)
	gw := &inspectingGateway{inner: f.gateway, inspect: func() {
		seen = f.allTickets(t)
	}}
	svc := NewSupportService(f.store, gw, nil)

	_, err := svc.SubmitAndAnalyze(context.Background(), acmeRequest())
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, model.StatusAnalyzing, seen[0].Status)
	assert.Equal(t, "Acme CRM", seen[0].AppName)
	assert.Equal(t, model.PriorityMedium, seen[0].Priority)
	assert.Empty(t, seen[0].AnalysisResult)
	assert.Empty(t, seen[0].Solutions)
}

type inspectingGateway struct {
	inner   Gateway
	inspect func()
}

func (g *inspectingGateway) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	g.inspect()
	return g.inner.Invoke(ctx, req)
}

func TestSubmitAndAnalyze_GatewayFailureLeavesAnalyzing(t *testing.T) {
	f := newSupportFixture(t)
	gwErr := errors.New("gateway unavailable")
	f.gateway.err = gwErr

	payload, err := f.svc.SubmitAndAnalyze(context.Background(), acmeRequest())
	assert.Nil(t, payload)

	var werr *WorkflowError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, StageInvoke, werr.Stage)
	assert.NotZero(t, werr.TicketID)
	assert.ErrorIs(t, err, gwErr)

	assert.Equal(t, []string{"create", "invoke"}, f.log.list())
	tickets := f.allTickets(t)
	require.Len(t, tickets, 1)
	assert.Equal(t, werr.TicketID, tickets[0].ID)
	assert.Equal(t, model.StatusAnalyzing, tickets[0].Status)
	assert.Empty(t, tickets[0].AnalysisResult)
	assert.Empty(t, tickets[0].Solutions)
}

func TestSubmitAndAnalyze_DecodeFailure(t *testing.T) {
	tests := []struct {
		name   string
		result *InvokeResult
		field  string
	}{
		{
			name:   "missing solutions",
			result: jsonResult(`{"analysis":"x"}`),
			field:  "solutions",
		},
		{
			name:   "bad likelihood",
			result: jsonResult(`{"analysis":"x","solutions":[{"title":"t","description":"d","likelihood":"certain"}]}`),
			field:  "solutions[0].likelihood",
		},
		{
			name:   "plain text answer",
			result: &InvokeResult{Text: "I could not analyze this."},
			field:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSupportFixture(t)
			f.gateway.result = tt.result

			_, err := f.svc.SubmitAndAnalyze(context.Background(), acmeRequest())

			var werr *WorkflowError
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, StageDecode, werr.Stage)
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.field, derr.Field)

			assert.Equal(t, 0, f.log.count("update"))
			tickets := f.allTickets(t)
			require.Len(t, tickets, 1)
			assert.Equal(t, model.StatusAnalyzing, tickets[0].Status)
		})
	}
}

func TestSubmitAndAnalyze_ValidationCreatesNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SupportRequest)
		field  string
	}{
		{"missing app name", func(r *SupportRequest) { r.AppName = "   " }, "app_name"},
		{"missing description", func(r *SupportRequest) { r.ProblemDescription = "" }, "problem_description"},
		{"missing error type", func(r *SupportRequest) { r.ErrorType = "" }, "error_type"},
		{"unknown error type", func(r *SupportRequest) { r.ErrorType = "cosmic_rays" }, "error_type"},
		{"unknown priority", func(r *SupportRequest) { r.Priority = "urgent" }, "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSupportFixture(t)
			req := acmeRequest()
			tt.mutate(&req)

			_, err := f.svc.SubmitAndAnalyze(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
			assert.Empty(t, f.log.list())
			assert.Empty(t, f.allTickets(t))
		})
	}
}

func TestSupportRequest_Normalize(t *testing.T) {
	req := SupportRequest{
		AppName:            "  Acme CRM ",
		ProblemDescription: " broken ",
		ErrorType:          model.ErrorTypeRuntime,
		ImageURLs:          []string{" http://x/a.png ", "", "  "},
	}

	got, err := req.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Acme CRM", got.AppName)
	assert.Equal(t, "broken", got.ProblemDescription)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Equal(t, []string{"http://x/a.png"}, got.ImageURLs)
}

func TestSubmitAndAnalyze_StoresImageURLs(t *testing.T) {
	f := newSupportFixture(t)
	f.gateway.result = jsonResult(acmeResponse)
	req := acmeRequest()
	req.ImageURLs = []string{"http://localhost/uploads/a.png", "http://localhost/uploads/b.png"}

	payload, err := f.svc.SubmitAndAnalyze(context.Background(), req)
	require.NoError(t, err)

	detail, err := f.svc.GetTicketDetail(context.Background(), payload.TicketID)
	require.NoError(t, err)
	assert.Equal(t, req.ImageURLs, detail.ImageURLList)
	assert.Equal(t, payload.Solutions, detail.ParsedSolutions)
}

func TestSubmitAndAnalyze_CallerCancelDoesNotStrandTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		body, _ := json.Marshal(map[string]any{"answer": acmeResponse})
		w.Write(body)
	}))
	defer srv.Close()

	conn := setupTestDB(t)
	gateway := NewDifyClient(config.LLMConfig{BaseURL: srv.URL, AppType: "chat"})
	svc := NewSupportService(NewGormTicketStore(conn), gateway, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	payload, err := svc.SubmitAndAnalyze(ctx, acmeRequest())
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	var stored model.SupportTicket
	require.NoError(t, conn.First(&stored, payload.TicketID).Error)
	assert.Equal(t, model.StatusSolved, stored.Status)
	assert.Len(t, ParseSolutions(stored.Solutions), 2)
}

func TestSubmitAndAnalyze_ProseAnswerIsDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Please share the console log."}}]}`))
	}))
	defer srv.Close()

	conn := setupTestDB(t)
	svc := NewSupportService(NewGormTicketStore(conn), NewOpenAIClient(config.LLMConfig{BaseURL: srv.URL}), nil)

	_, err := svc.SubmitAndAnalyze(context.Background(), acmeRequest())
	var werr *WorkflowError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, StageDecode, werr.Stage)
	var derr *DecodeError
	assert.ErrorAs(t, err, &derr)

	var stored model.SupportTicket
	require.NoError(t, conn.First(&stored, werr.TicketID).Error)
	assert.Equal(t, model.StatusAnalyzing, stored.Status)
}
