package prompt

import "forensic_audit/pkg/core/calc"

// LineItemsID is the prompt used to pull Beneish line items out of a filing.
const LineItemsID = "extraction.line_items"

// LineItemsSchemaID names the schema of the line-item answer.
const LineItemsSchemaID = "line_items"

// EndMarker terminates the model's answer.
const EndMarker = "END"

var lineItemsPrompt = PromptTemplate{
	ID:          LineItemsID,
	Name:        "Beneish line items",
	Category:    "extraction",
	Description: "Extracts the thirteen M-Score line items per fiscal year from statement text.",
	SystemPrompt: `You convert financial statements into structured JSON. Read the document and return one JSON object with these keys, each an array with one entry per fiscal year in the same order:
{
  "Year": <array of fiscal years>,
  "Net Receivables": <array>,
  "Sales": <array>,
  "Cost of Goods Sold": <array>,
  "Current Assets": <array>,
  "PPE": <array of gross property, plant and equipment>,
  "Net PPE": <array>,
  "Securities": <array, use 0 when not reported>,
  "Total Assets": <array>,
  "Depreciation Expense": <array>,
  "SG&A Expenses": <array>,
  "Total Debt": <array>,
  "Income from Continuing Operations": <array>,
  "Cash from Operations": <array>
}
Use plain numbers in the statement's reporting unit. Write ONLY the JSON, without a code block, on a single line.
Write "END" on a new line when finished.`,
	UserPromptTmpl:   "{{.DocumentText}}",
	ResponseSchemaID: LineItemsSchemaID,
	Variables: []PromptVariable{
		{Name: "DocumentText", Type: "string", Description: "Plain text of the uploaded document", Required: true},
	},
	Stop:    []string{EndMarker},
	Version: "1",
}

// RegisterBuiltins adds the built-in prompts that r does not already have.
func RegisterBuiltins(r *Registry) {
	pt := lineItemsPrompt
	pt.Variables = append([]PromptVariable(nil), lineItemsPrompt.Variables...)
	pt.Stop = append([]string(nil), lineItemsPrompt.Stop...)
	r.registerIfAbsent(&pt)
	r.registerSchemaIfAbsent(lineItemsSchema())
}

// lineItemsSchema requires the period column and every line item the score
// cannot do without.
func lineItemsSchema() *ResponseSchema {
	required := []string{"Year"}
	for _, li := range calc.LineItems {
		if li.Required() {
			required = append(required, li.String())
		}
	}
	return &ResponseSchema{
		ID:       LineItemsSchemaID,
		Title:    "Beneish line items",
		Required: required,
	}
}
