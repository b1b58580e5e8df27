package agent

import (
	"fmt"
	"strings"

	"encompass-agent/encompass"
)

const sampleSingleFilter = `{
  "filter": {"canonicalName": "Fields.1109", "value": "500000", "matchType": "greaterThan"},
  "fields": ["Fields.GUID", "Fields.364", "Loan.BorrowerName", "Fields.1393"]
}`

const sampleGroupFilter = `{
  "filter": {
    "terms": [
      {"canonicalName": "Fields.1109", "value": 450000, "matchType": "greaterThan"},
      {"canonicalName": "Fields.1172", "value": "Conventional", "matchType": "exact"}
    ],
    "operator": "And"
  },
  "fields": ["Fields.GUID", "Fields.364"]
}`

// SystemPrompt is the instruction set given to the model on every run.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are an expert at the Encompass Developer Connect API catalog and at retrieving loan data through the loan pipeline API.

If the user requests loans matching some criteria, first look up the pipeline API in the documentation, then get an access token, then build the filter JSON from the documentation, and finally call the loan API and answer with the returned data.

When you first look at the documentation, always start with retrieve_relevant_documentation. Use list_documentation_pages and get_page_content when a retrieved chunk is not enough.

`)
	fmt.Fprintf(&b, "Limit loan requests to %d loans unless the user asks for a different number.\n\n", encompass.DefaultLoanLimit)
	b.WriteString("For a single criterion, build the payload like this:\n")
	b.WriteString(sampleSingleFilter)
	b.WriteString("\n\nFor several criteria, combine terms with an operator like this:\n")
	b.WriteString(sampleGroupFilter)
	b.WriteString(`

When the user asks for investment property, primary home or secondary home, filter on Fields.1811.
When the user mentions Conventional, FHA, USDA or VA loans, filter on Fields.1172.
When the user mentions credit score or FICO score, filter on Fields.2853.
When the user mentions a borrower name, filter on Loan.BorrowerName.

`)
	fmt.Fprintf(&b, "Always request these fields: %s.\n", strings.Join(encompass.DefaultFields(), ", "))
	b.WriteString(`Use get_user_friendly_name_to_canonical_name_map to present user friendly field names instead of canonical names.

Do not ask the user before taking an action, just do it.
Always tell the user when no loans were found.
`)
	return b.String()
}
