package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"encompass-agent/encompass"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
)

type scriptedModel struct {
	responses []*llms.ContentResponse
	repeat    *llms.ContentResponse
	calls     [][]llms.MessageContent
	toolCount []int
}

func (m *scriptedModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	var o llms.CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	m.toolCount = append(m.toolCount, len(o.Tools))
	m.calls = append(m.calls, append([]llms.MessageContent(nil), msgs...))

	if m.repeat != nil {
		return m.repeat, nil
	}
	if len(m.calls) > len(m.responses) {
		return nil, errors.New("unexpected model call")
	}
	return m.responses[len(m.calls)-1], nil
}

func (m *scriptedModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func answer(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func toolCalls(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

func call(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

type fakeDocs struct{}

func (fakeDocs) RetrieveRelevant(_ context.Context, query string) (string, error) {
	return "docs for " + query, nil
}

func (fakeDocs) ListPages(context.Context) ([]string, error) {
	return []string{"https://docs/a", "https://docs/b"}, nil
}

func (fakeDocs) PageContent(_ context.Context, url string) (string, error) {
	return "# Page\n\ncontent of " + url, nil
}

type fakeLoans struct {
	query *encompass.LoanQuery
	limit int
	err   error
}

func (f *fakeLoans) Token() (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "tok-123"}, nil
}

func (f *fakeLoans) FetchLoans(_ context.Context, q *encompass.LoanQuery, limit int) (json.RawMessage, error) {
	f.query, f.limit = q, limit
	return json.RawMessage(`[{"loanGuid":"g1","fields":{"Fields.364":"1001","Fields.1172":"FHA"}}]`), nil
}

func lastToolResponse(t *testing.T, msgs []llms.MessageContent) llms.ToolCallResponse {
	t.Helper()
	last := msgs[len(msgs)-1]
	if last.Role != llms.ChatMessageTypeTool {
		t.Fatalf("last message role = %s, want tool", last.Role)
	}
	resp, ok := last.Parts[0].(llms.ToolCallResponse)
	if !ok {
		t.Fatalf("last part = %T, want llms.ToolCallResponse", last.Parts[0])
	}
	return resp
}

func TestRunAnswersDirectly(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{answer("hello")}}
	a := New(model, NewTools(fakeDocs{}, &fakeLoans{}), zaptest.NewLogger(t))

	got, err := a.Run(context.Background(), "hi")
	if err != nil || got != "hello" {
		t.Fatalf("Run() = %q, %v", got, err)
	}
	if model.toolCount[0] != 6 {
		t.Errorf("tools offered = %d, want 6", model.toolCount[0])
	}
	first := model.calls[0]
	if first[0].Role != llms.ChatMessageTypeSystem || first[1].Role != llms.ChatMessageTypeHuman {
		t.Errorf("roles = %s, %s", first[0].Role, first[1].Role)
	}
}

func TestRunExecutesToolCalls(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCalls(call("c1", "retrieve_relevant_documentation", `{"user_query":"pipeline"}`)),
		answer("done"),
	}}
	a := New(model, NewTools(fakeDocs{}, &fakeLoans{}), zaptest.NewLogger(t))

	got, err := a.Run(context.Background(), "how do I query loans")
	if err != nil || got != "done" {
		t.Fatalf("Run() = %q, %v", got, err)
	}

	second := model.calls[1]
	if len(second) != 4 {
		t.Fatalf("messages on second call = %d, want 4", len(second))
	}
	if second[2].Role != llms.ChatMessageTypeAI {
		t.Errorf("assistant role = %s", second[2].Role)
	}
	resp := lastToolResponse(t, second)
	if resp.ToolCallID != "c1" || resp.Content != "docs for pipeline" {
		t.Errorf("tool response = %+v", resp)
	}
}

func TestRunReportsToolErrorsToModel(t *testing.T) {
	tests := []struct {
		name string
		call llms.ToolCall
		want string
	}{
		{name: "unknown tool", call: call("c1", "delete_everything", `{}`), want: `Error: unknown tool "delete_everything"`},
		{name: "bad arguments", call: call("c2", "get_page_content", `{"url":`), want: "Error: invalid tool arguments"},
		{name: "token failure", call: call("c3", "get_encompass_access_token", ``), want: "Error: expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{responses: []*llms.ContentResponse{toolCalls(tt.call), answer("sorry")}}
			a := New(model, NewTools(fakeDocs{}, &fakeLoans{err: errors.New("expired")}), zaptest.NewLogger(t))

			if _, err := a.Run(context.Background(), "q"); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			resp := lastToolResponse(t, model.calls[1])
			if !strings.HasPrefix(resp.Content, tt.want) {
				t.Errorf("tool response = %q, want prefix %q", resp.Content, tt.want)
			}
		})
	}
}

func TestRunStopsAfterMaxSteps(t *testing.T) {
	model := &scriptedModel{repeat: toolCalls(call("c", "list_documentation_pages", `{}`))}
	a := New(model, NewTools(fakeDocs{}, &fakeLoans{}), zaptest.NewLogger(t), WithMaxSteps(3))

	if _, err := a.Run(context.Background(), "loop"); !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("Run() error = %v, want ErrMaxSteps", err)
	}
	if len(model.calls) != 3 {
		t.Errorf("model calls = %d, want 3", len(model.calls))
	}
}

func findTool(t *testing.T, tools []Tool, name string) Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Definition.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not found", name)
	return Tool{}
}

func TestLoanTool(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{
			name: "filter as string",
			args: `{"filter_criteria_json":"{\"filter\":{\"canonicalName\":\"Fields.1172\",\"value\":\"FHA\",\"matchType\":\"exact\"}}","loan_limit":10}`,
		},
		{
			name: "filter as object",
			args: `{"filter_criteria_json":{"filter":{"canonicalName":"Fields.1172","value":"FHA","matchType":"exact"}},"loan_limit":10}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loans := &fakeLoans{}
			tool := findTool(t, NewTools(fakeDocs{}, loans), "get_encompass_loans")

			out, err := tool.Call(context.Background(), json.RawMessage(tt.args))
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if loans.limit != 10 || loans.query.Filter.CanonicalName != "Fields.1172" {
				t.Errorf("FetchLoans got limit=%d filter=%+v", loans.limit, loans.query.Filter)
			}
			if len(loans.query.Fields) != len(encompass.DefaultFields()) {
				t.Errorf("fields = %v, want defaults", loans.query.Fields)
			}
			if !strings.Contains(out, `"Loan Type":"FHA"`) || !strings.Contains(out, `"Loan Number":"1001"`) {
				t.Errorf("output = %s, want friendly names", out)
			}
		})
	}
}

func TestLoanToolRejectsInvalidFilter(t *testing.T) {
	loans := &fakeLoans{}
	tool := findTool(t, NewTools(fakeDocs{}, loans), "get_encompass_loans")

	_, err := tool.Call(context.Background(), json.RawMessage(`{"filter_criteria_json":"{\"filter\":{\"canonicalName\":\"Fields.1172\",\"matchType\":\"like\"}}"}`))
	if !errors.Is(err, encompass.ErrInvalidQuery) {
		t.Fatalf("Call() error = %v, want ErrInvalidQuery", err)
	}
	if loans.query != nil {
		t.Error("FetchLoans called for invalid filter")
	}
}

func TestFieldMapTool(t *testing.T) {
	tool := findTool(t, NewTools(fakeDocs{}, &fakeLoans{}), "get_user_friendly_name_to_canonical_name_map")
	out, err := tool.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if m["Loan Type"] != "Fields.1172" {
		t.Errorf("Loan Type = %q", m["Loan Type"])
	}
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt()
	for _, want := range []string{"10 loans", "Fields.1172", "retrieve_relevant_documentation"} {
		if !strings.Contains(p, want) {
			t.Errorf("SystemPrompt() missing %q", want)
		}
	}
}
