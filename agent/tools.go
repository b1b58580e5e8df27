package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"encompass-agent/encompass"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/oauth2"
)

// Docs is the documentation side of the toolset.
type Docs interface {
	RetrieveRelevant(ctx context.Context, query string) (string, error)
	ListPages(ctx context.Context) ([]string, error)
	PageContent(ctx context.Context, url string) (string, error)
}

// Loans is the loan API side of the toolset.
type Loans interface {
	Token() (*oauth2.Token, error)
	FetchLoans(ctx context.Context, query *encompass.LoanQuery, limit int) (json.RawMessage, error)
}

// Tool binds a function definition offered to the model to its handler.
type Tool struct {
	Definition llms.FunctionDefinition
	Call       func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t Tool) llmTool() llms.Tool {
	def := t.Definition
	return llms.Tool{Type: "function", Function: &def}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// NewTools returns the documentation and loan tools.
func NewTools(docs Docs, loans Loans) []Tool {
	return []Tool{
		{
			Definition: llms.FunctionDefinition{
				Name:        "retrieve_relevant_documentation",
				Description: "Retrieve relevant documentation chunks based on the query with RAG.",
				Parameters: objectSchema(map[string]any{
					"user_query": map[string]any{"type": "string", "description": "The user's question or query"},
				}, "user_query"),
			},
			Call: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					UserQuery string `json:"user_query"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				return docs.RetrieveRelevant(ctx, in.UserQuery)
			},
		},
		{
			Definition: llms.FunctionDefinition{
				Name:        "list_documentation_pages",
				Description: "Retrieve a list of all available Encompass Developer Connect documentation pages.",
				Parameters:  objectSchema(map[string]any{}),
			},
			Call: func(ctx context.Context, _ json.RawMessage) (string, error) {
				urls, err := docs.ListPages(ctx)
				if err != nil {
					return "", err
				}
				if len(urls) == 0 {
					return "No documentation pages found.", nil
				}
				return strings.Join(urls, "\n"), nil
			},
		},
		{
			Definition: llms.FunctionDefinition{
				Name:        "get_page_content",
				Description: "Retrieve the full content of a specific documentation page by combining all its chunks.",
				Parameters: objectSchema(map[string]any{
					"url": map[string]any{"type": "string", "description": "The URL of the page to retrieve"},
				}, "url"),
			},
			Call: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					URL string `json:"url"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				return docs.PageContent(ctx, in.URL)
			},
		},
		{
			Definition: llms.FunctionDefinition{
				Name:        "get_encompass_access_token",
				Description: "Get a bearer access token for the Encompass API.",
				Parameters:  objectSchema(map[string]any{}),
			},
			Call: func(context.Context, json.RawMessage) (string, error) {
				tok, err := loans.Token()
				if err != nil {
					return "", err
				}
				return tok.AccessToken, nil
			},
		},
		{
			Definition: llms.FunctionDefinition{
				Name:        "get_encompass_loans",
				Description: "Get loans from the Encompass loan pipeline matching the filter criteria JSON.",
				Parameters: objectSchema(map[string]any{
					"filter_criteria_json": map[string]any{"type": "string", "description": "Loan pipeline request body with filter and fields"},
					"loan_limit":           map[string]any{"type": "integer", "description": "Maximum number of loans to return"},
				}, "filter_criteria_json"),
			},
			Call: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					FilterCriteria json.RawMessage `json:"filter_criteria_json"`
					LoanLimit      int             `json:"loan_limit"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				query, err := encompass.ParseLoanQueryJSON(in.FilterCriteria)
				if err != nil {
					return "", err
				}
				raw, err := loans.FetchLoans(ctx, query, in.LoanLimit)
				if err != nil {
					return "", err
				}
				renamed, err := encompass.RenameFields(raw)
				if err != nil {
					return "", err
				}
				return string(renamed), nil
			},
		},
		{
			Definition: llms.FunctionDefinition{
				Name:        "get_user_friendly_name_to_canonical_name_map",
				Description: "Get the map of user friendly field names to Encompass canonical field names.",
				Parameters:  objectSchema(map[string]any{}),
			},
			Call: func(context.Context, json.RawMessage) (string, error) {
				out, err := json.Marshal(encompass.FieldMap())
				if err != nil {
					return "", err
				}
				return string(out), nil
			},
		},
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
