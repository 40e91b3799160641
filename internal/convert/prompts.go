package convert

import (
	"strings"

	"github.com/dvloznov/statement-converter/internal/domain"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// buildPrompt embeds the extracted statement text in the task instruction.
func buildPrompt(sourceText string) string {
	var b strings.Builder

	b.WriteString("Based on the following text extracted from a bank statement PDF, perform the following tasks:\n")
	b.WriteString("1. Identify and list all transactions, extracting the date, a clear description, debit (withdrawals), and credit (deposits).\n")
	b.WriteString("2. For each transaction, assign a relevant category from this list: ")
	b.WriteString(strings.Join(domain.CategoryNames(), ", "))
	b.WriteString(".\n")
	b.WriteString("3. Calculate the running balance if available; otherwise, set it to 0.\n")
	b.WriteString("4. Calculate a summary object containing:\n")
	b.WriteString("   - totalIncome (sum of all credit transactions).\n")
	b.WriteString("   - totalSpending (sum of all debit transactions).\n")
	b.WriteString("   - spendingByCategory (an object where keys are categories and values are the sum of spending for that category).\n")
	b.WriteString("5. Format the entire output as a single valid JSON object, matching the provided schema.\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Dates must use the ISO format \"YYYY-MM-DD\".\n")
	b.WriteString("- Debit and credit are positive numbers; set the one that does not apply to null.\n")
	b.WriteString("- Category must be EXACTLY one of the categories listed above (case-sensitive).\n")
	b.WriteString("- Return ONLY the JSON object. Do not include any text, explanations, or Markdown formatting outside of it.\n\n")

	b.WriteString("Here is the text from the PDF:\n")
	b.WriteString("---\n")
	b.WriteString(sourceText)
	b.WriteString("\n---\n")

	return b.String()
}

// responseSchema declares the JSON document the model must return.
func responseSchema() *genai.Schema {
	byCategory := make(map[string]*genai.Schema, len(domain.Categories))
	for _, name := range domain.CategoryNames() {
		byCategory[name] = &genai.Schema{Type: genai.TypeNumber}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transactions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date": {
							Type:        genai.TypeString,
							Description: "The transaction date in YYYY-MM-DD format.",
						},
						"description": {
							Type:        genai.TypeString,
							Description: "A brief description of the transaction.",
						},
						"debit": {
							Type:        genai.TypeNumber,
							Description: "The withdrawal amount. Should be null if it is a credit.",
							Nullable:    genai.Ptr(true),
						},
						"credit": {
							Type:        genai.TypeNumber,
							Description: "The deposit amount. Should be null if it is a debit.",
							Nullable:    genai.Ptr(true),
						},
						"balance": {
							Type:        genai.TypeNumber,
							Description: "The account balance after the transaction.",
						},
						"category": {
							Type:        genai.TypeString,
							Description: "The assigned category for the transaction.",
							Format:      "enum",
							Enum:        domain.CategoryNames(),
						},
					},
					PropertyOrdering: []string{"date", "description", "debit", "credit", "balance", "category"},
					Required:         []string{"date", "description", "balance", "category"},
				},
			},
			"summary": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"totalIncome":   {Type: genai.TypeNumber},
					"totalSpending": {Type: genai.TypeNumber},
					"spendingByCategory": {
						Type:        genai.TypeObject,
						Description: "A key-value map of spending per category.",
						Properties:  byCategory,
					},
				},
				Required: []string{"totalIncome", "totalSpending", "spendingByCategory"},
			},
		},
		Required: []string{"transactions", "summary"},
	}
}

// generationConfig requests a JSON response constrained by responseSchema.
func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
}
