package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-converter/internal/domain"
)

// syntaxError marks model output that is not JSON at all, as opposed to JSON
// of the wrong shape.
type syntaxError struct {
	err error
}

func (e *syntaxError) Error() string { return "invalid JSON: " + e.err.Error() }
func (e *syntaxError) Unwrap() error { return e.err }

// decodeResult parses the model's raw answer and checks it against the
// declared response schema.
func decodeResult(raw string) (*domain.ConversionResult, error) {
	clean := cleanModelJSON(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, &syntaxError{err: err}
	}

	root, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, want object", parsed)
	}

	txs, err := transformTransactions(root)
	if err != nil {
		return nil, err
	}

	summary, err := transformSummary(root)
	if err != nil {
		return nil, err
	}

	return &domain.ConversionResult{
		Transactions: txs,
		Summary:      summary,
	}, nil
}

func transformTransactions(root map[string]interface{}) ([]domain.Transaction, error) {
	txAny, ok := root["transactions"]
	if !ok {
		return nil, fmt.Errorf("missing 'transactions' key in model output")
	}

	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("'transactions' is %T, want array", txAny)
	}

	result := make([]domain.Transaction, 0, len(txSlice))

	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("transaction %d is %T, want object", i, item)
		}

		t, err := transformTransaction(obj)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		result = append(result, t)
	}

	return result, nil
}

func transformTransaction(obj map[string]interface{}) (domain.Transaction, error) {
	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return domain.Transaction{}, err
	}
	if _, err := civil.ParseDate(dateStr); err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	desc, err := getStringField(obj, "description", true)
	if err != nil {
		return domain.Transaction{}, err
	}

	catName, err := getStringField(obj, "category", true)
	if err != nil {
		return domain.Transaction{}, err
	}
	category, err := domain.ParseCategory(catName)
	if err != nil {
		return domain.Transaction{}, err
	}

	debit, err := getOptionalAmountField(obj, "debit")
	if err != nil {
		return domain.Transaction{}, err
	}
	credit, err := getOptionalAmountField(obj, "credit")
	if err != nil {
		return domain.Transaction{}, err
	}

	// The prompt asks for 0 when the running balance is unknown.
	balance, err := getOptionalFloat64Field(obj, "balance")
	if err != nil {
		return domain.Transaction{}, err
	}
	var bal float64
	if balance != nil {
		bal = *balance
	}

	return domain.Transaction{
		Date:        dateStr,
		Description: desc,
		Debit:       debit,
		Credit:      credit,
		Balance:     bal,
		Category:    category,
	}, nil
}

func transformSummary(root map[string]interface{}) (domain.Summary, error) {
	sumAny, ok := root["summary"]
	if !ok {
		return domain.Summary{}, fmt.Errorf("missing 'summary' key in model output")
	}
	obj, ok := sumAny.(map[string]interface{})
	if !ok {
		return domain.Summary{}, fmt.Errorf("'summary' is %T, want object", sumAny)
	}

	income, err := getAmountField(obj, "totalIncome")
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summary: %w", err)
	}
	spending, err := getAmountField(obj, "totalSpending")
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summary: %w", err)
	}

	byAny, ok := obj["spendingByCategory"]
	if !ok {
		return domain.Summary{}, fmt.Errorf("summary: missing required field %q", "spendingByCategory")
	}
	byObj, ok := byAny.(map[string]interface{})
	if !ok {
		return domain.Summary{}, fmt.Errorf("summary: field %q has type %T, want object", "spendingByCategory", byAny)
	}

	byCategory := make(map[domain.Category]float64, len(byObj))
	for name, v := range byObj {
		category, err := domain.ParseCategory(name)
		if err != nil {
			return domain.Summary{}, fmt.Errorf("summary: spendingByCategory: %w", err)
		}
		amount, ok := v.(float64)
		if !ok {
			return domain.Summary{}, fmt.Errorf("summary: spendingByCategory[%q] has type %T, want number", name, v)
		}
		byCategory[category] += amount
	}

	return domain.Summary{
		TotalIncome:        income,
		TotalSpending:      spending,
		SpendingByCategory: byCategory,
	}, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	return s, nil
}

func getAmountField(m map[string]interface{}, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	if f < 0 {
		return 0, fmt.Errorf("field %q is negative: %v", key, f)
	}
	return f, nil
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
	return &f, nil
}

func getOptionalAmountField(m map[string]interface{}, key string) (*float64, error) {
	f, err := getOptionalFloat64Field(m, key)
	if err != nil || f == nil {
		return f, err
	}
	if *f < 0 {
		return nil, fmt.Errorf("field %q is negative: %v", key, *f)
	}
	return f, nil
}

// cleanModelJSON strips Markdown fences and surrounding prose in case the
// model ignored the instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = strings.TrimSpace(s[:end])
		}
	}

	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
