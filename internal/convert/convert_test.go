package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const groceryResponse = `{
  "transactions": [
    {"date": "2024-01-05", "description": "Grocery Store", "debit": 45.20, "credit": null, "balance": 0, "category": "Groceries"}
  ],
  "summary": {"totalIncome": 0, "totalSpending": 45.20, "spendingByCategory": {"Groceries": 45.20}}
}`

// fakeGenerator is a Generator returning a canned answer.
type fakeGenerator struct {
	mu        sync.Mutex
	text      string
	err       error
	calls     int
	gotModel  string
	gotPrompt string
	gotConfig *genai.GenerateContentConfig

	started chan struct{}
	release chan struct{}
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.gotModel = model
	f.gotConfig = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return textResponse(f.text), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 40,
		},
	}
}

// fakeRecorder captures outcomes reported by the client.
type fakeRecorder struct {
	outcomes []string
	prompt   int
	response int
}

func (r *fakeRecorder) ObserveConversion(outcome string, elapsed time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) AddTokens(prompt, response int) {
	r.prompt += prompt
	r.response += response
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	c, err := NewClient(context.Background(), Config{APIKey: "   "})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestConvert_Success(t *testing.T) {
	gen := &fakeGenerator{text: groceryResponse}
	rec := &fakeRecorder{}
	c := New(gen, Config{}, WithRecorder(rec))

	result, err := c.Convert(quietContext(), "2024-01-05 Grocery Store -45.20")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0]
	assert.Equal(t, "2024-01-05", tx.Date)
	assert.Equal(t, "Grocery Store", tx.Description)
	require.NotNil(t, tx.Debit)
	assert.Equal(t, 45.20, *tx.Debit)
	assert.Nil(t, tx.Credit)
	assert.Equal(t, 0.0, tx.Balance)
	assert.Equal(t, domain.CategoryGroceries, tx.Category)

	assert.Equal(t, 0.0, result.Summary.TotalIncome)
	assert.Equal(t, 45.20, result.Summary.TotalSpending)
	assert.Equal(t, 45.20, result.Summary.Spending(domain.CategoryGroceries))

	assert.Equal(t, DefaultModelName, gen.gotModel)
	assert.Contains(t, gen.gotPrompt, "2024-01-05 Grocery Store -45.20")
	assert.Contains(t, gen.gotPrompt, "Eating Out")
	require.NotNil(t, gen.gotConfig)
	assert.Equal(t, "application/json", gen.gotConfig.ResponseMIMEType)
	assert.ElementsMatch(t, []string{"transactions", "summary"}, gen.gotConfig.ResponseSchema.Required)

	assert.Equal(t, []string{"success"}, rec.outcomes)
	assert.Equal(t, 120, rec.prompt)
	assert.Equal(t, 40, rec.response)
}

func TestConvert_EmptyTransactionList(t *testing.T) {
	gen := &fakeGenerator{text: `{"transactions": [], "summary": {"totalIncome": 0, "totalSpending": 0, "spendingByCategory": {}}}`}
	c := New(gen, Config{Model: "gemini-test"})

	result, err := c.Convert(quietContext(), "no activity this period")
	require.NoError(t, err)
	assert.NotNil(t, result.Transactions)
	assert.Empty(t, result.Transactions)
	assert.Equal(t, "gemini-test", gen.gotModel)
}

func TestConvert_EmptyText(t *testing.T) {
	gen := &fakeGenerator{text: groceryResponse}
	c := New(gen, Config{})

	_, err := c.Convert(quietContext(), " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, gen.calls, "no request may be sent for empty text")
}

func TestConvert_TransportFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"structured 429", &genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Resource has been exhausted"}, KindRateLimit},
		{"structured resource exhausted", fmt.Errorf("wrapped: %w", &genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}), KindRateLimit},
		{"structured server error", &genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "backend unavailable"}, KindAPI},
		{"message with 429", errors.New("request failed with status 429"), KindRateLimit},
		{"message rate limit", errors.New("Rate Limit exceeded for project"), KindRateLimit},
		{"message quota", errors.New("quota exceeded"), KindRateLimit},
		{"network", errors.New("dial tcp: connection refused"), KindAPI},
		{"deadline", context.DeadlineExceeded, KindAPI},
		{"number containing 429 is not a status", errors.New("request id 14290 failed"), KindAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeGenerator{err: tt.err}, Config{})

			_, err := c.Convert(quietContext(), "some statement text")
			require.Error(t, err)

			kind, ok := KindOf(err)
			require.True(t, ok, "error must be classified: %v", err)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.want.DefaultMessage(), err.Error())
			assert.ErrorIs(t, err, tt.err, "cause must stay reachable for logging")
		})
	}
}

func TestConvert_RateLimitIsNeverAPIError(t *testing.T) {
	c := New(&fakeGenerator{err: &genai.APIError{Code: 429}}, Config{})

	_, err := c.Convert(quietContext(), "text")
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.False(t, errors.Is(err, ErrAPI))
}

func TestConvert_InvalidJSONIsParsingError(t *testing.T) {
	rec := &fakeRecorder{}
	c := New(&fakeGenerator{text: "Sure! Here are your transactions: date, amount"}, Config{}, WithRecorder(rec))

	_, err := c.Convert(quietContext(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParsing)
	assert.False(t, errors.Is(err, ErrAPI), "parsing failure must not be reported as API failure")
	assert.Equal(t, KindParsing.DefaultMessage(), err.Error())
	assert.NotContains(t, err.Error(), "Sure!", "raw output must not reach the user message")
	assert.Equal(t, []string{"parsing"}, rec.outcomes)
}

// Shape validation goes beyond JSON syntax; these cases would have been
// accepted by a syntax-only parse.
func TestConvert_SchemaViolationIsParsingError(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"array instead of object", `[{"date": "2024-01-05"}]`},
		{"missing summary", `{"transactions": []}`},
		{"missing transactions", `{"summary": {"totalIncome": 0, "totalSpending": 0, "spendingByCategory": {}}}`},
		{"unknown category", `{"transactions": [{"date": "2024-01-05", "description": "Rent", "debit": 900, "balance": 0, "category": "Housing"}], "summary": {"totalIncome": 0, "totalSpending": 900, "spendingByCategory": {}}}`},
		{"string amount", `{"transactions": [{"date": "2024-01-05", "description": "Shop", "debit": "12.00", "balance": 0, "category": "Shopping"}], "summary": {"totalIncome": 0, "totalSpending": 12, "spendingByCategory": {}}}`},
		{"bad date", `{"transactions": [{"date": "05/01/2024", "description": "Shop", "debit": 12, "balance": 0, "category": "Shopping"}], "summary": {"totalIncome": 0, "totalSpending": 12, "spendingByCategory": {}}}`},
		{"negative debit", `{"transactions": [{"date": "2024-01-05", "description": "Shop", "debit": -12, "balance": 0, "category": "Shopping"}], "summary": {"totalIncome": 0, "totalSpending": 12, "spendingByCategory": {}}}`},
		{"negative total", `{"transactions": [], "summary": {"totalIncome": -1, "totalSpending": 0, "spendingByCategory": {}}}`},
		{"unknown spending category", `{"transactions": [], "summary": {"totalIncome": 0, "totalSpending": 0, "spendingByCategory": {"Rent": 10}}}`},
		{"missing spendingByCategory", `{"transactions": [], "summary": {"totalIncome": 0, "totalSpending": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeGenerator{text: tt.text}, Config{})

			_, err := c.Convert(quietContext(), "text")
			assert.ErrorIs(t, err, ErrParsing)
		})
	}
}

func TestConvert_RejectsConcurrentCall(t *testing.T) {
	gen := &fakeGenerator{
		text:    groceryResponse,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := New(gen, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Convert(quietContext(), "first")
		done <- err
	}()

	<-gen.started
	_, err := c.Convert(quietContext(), "second")
	assert.ErrorIs(t, err, ErrConversionInFlight)

	close(gen.release)
	require.NoError(t, <-done)

	// The guard is released once the first call resolves.
	gen.started = nil
	gen.release = nil
	_, err = c.Convert(quietContext(), "third")
	assert.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestClassify_PassesClassifiedErrorsThrough(t *testing.T) {
	parsing := NewError(KindParsing, "", errors.New("bad json"))
	wrapped := fmt.Errorf("outer layer mentions 429 and rate limit: %w", parsing)

	got := classify(wrapped)
	assert.Same(t, parsing, got)
}

func TestError_MessageOverride(t *testing.T) {
	err := NewError(KindAPI, "Service is down for maintenance.", nil)
	assert.Equal(t, "Service is down for maintenance.", err.Error())
	assert.ErrorIs(t, err, ErrAPI)

	kind, ok := KindOf(fmt.Errorf("context: %w", err))
	assert.True(t, ok)
	assert.Equal(t, KindAPI, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced bare", "```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"leading prose", "Here you go: {\"a\":1} thanks", `{"a":1}`},
		{"not json", "no braces here", "no braces here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestDecodeResult_DefaultsAndCanonicalCategory(t *testing.T) {
	raw := `{"transactions": [
		{"date": "2024-02-01", "description": "Salary", "credit": 2500, "category": "income"},
		{"date": "2024-02-03", "description": "", "debit": 12.5, "credit": 3, "balance": 100.25, "category": " eating out "}
	], "summary": {"totalIncome": 2503, "totalSpending": 12.5, "spendingByCategory": {"eating out": 12.5}}}`

	result, err := decodeResult(raw)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	first := result.Transactions[0]
	assert.Equal(t, domain.CategoryIncome, first.Category)
	assert.Nil(t, first.Debit)
	assert.Equal(t, 0.0, first.Balance, "missing balance defaults to zero")

	second := result.Transactions[1]
	assert.Equal(t, domain.CategoryEatingOut, second.Category)
	assert.Empty(t, second.Description)
	assert.NotNil(t, second.Debit)
	assert.NotNil(t, second.Credit)

	assert.Equal(t, 12.5, result.Summary.Spending(domain.CategoryEatingOut))
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("LINE ONE\nLINE TWO")

	assert.True(t, strings.Contains(prompt, "---\nLINE ONE\nLINE TWO\n---"))
	assert.Contains(t, prompt, "Return ONLY the JSON object")
	for _, name := range domain.CategoryNames() {
		assert.Contains(t, prompt, name)
	}
}

func TestResponseSchema(t *testing.T) {
	schema := responseSchema()

	items := schema.Properties["transactions"].Items
	require.NotNil(t, items)
	assert.ElementsMatch(t, []string{"date", "description", "balance", "category"}, items.Required)
	assert.True(t, *items.Properties["debit"].Nullable)
	assert.True(t, *items.Properties["credit"].Nullable)
	assert.Equal(t, domain.CategoryNames(), items.Properties["category"].Enum)

	summary := schema.Properties["summary"]
	assert.ElementsMatch(t, []string{"totalIncome", "totalSpending", "spendingByCategory"}, summary.Required)
	assert.Len(t, summary.Properties["spendingByCategory"].Properties, len(domain.Categories))
}
