package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
	"google.golang.org/genai"
)

// maxLoggedResponse bounds how much of an unparsable model answer is logged.
const maxLoggedResponse = 4000

// Generator is the part of the Gemini API the client needs.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Recorder receives conversion outcomes, e.g. for metrics.
type Recorder interface {
	ObserveConversion(outcome string, elapsed time.Duration)
	AddTokens(prompt, response int)
}

// Config configures a Client.
type Config struct {
	// APIKey is the Gemini API key. Required by NewClient.
	APIKey string
	// Model defaults to DefaultModelName.
	Model string
	// Timeout bounds a single model call. Zero means no extra bound.
	Timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithRecorder attaches an outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// Client converts extracted statement text into a ConversionResult using a
// generative model. At most one conversion runs at a time per Client.
type Client struct {
	gen      Generator
	model    string
	timeout  time.Duration
	recorder Recorder
	inFlight atomic.Bool
}

// NewClient creates a Client backed by the Gemini API.
// It fails with ErrMissingAPIKey before any network setup when the key is empty.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}

	return New(gc.Models, cfg, opts...), nil
}

// New creates a Client over an arbitrary Generator.
func New(gen Generator, cfg Config, opts ...Option) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}

	c := &Client{
		gen:     gen,
		model:   model,
		timeout: cfg.Timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Convert sends sourceText to the model and returns the structured result.
//
// Failures after the request is issued are always a *Error of KindRateLimit,
// KindParsing or KindAPI. ErrEmptyText and ErrConversionInFlight are returned
// before anything is sent. Convert never retries.
func (c *Client) Convert(ctx context.Context, sourceText string) (*domain.ConversionResult, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, ErrEmptyText
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrConversionInFlight
	}
	defer c.inFlight.Store(false)

	log := logger.FromContext(ctx)
	start := time.Now()

	result, err := c.convert(ctx, sourceText)
	elapsed := time.Since(start)

	if err != nil {
		ce := classify(err)
		c.observe(ce.Kind.String(), elapsed)
		log.Error().
			Err(ce.Unwrap()).
			Str("kind", ce.Kind.String()).
			Str("model", c.model).
			Dur("duration", elapsed).
			Msg("Statement conversion failed")
		return nil, ce
	}

	c.observe("success", elapsed)
	log.Info().
		Int("transactions", len(result.Transactions)).
		Str("model", c.model).
		Dur("duration", elapsed).
		Msg("Statement conversion completed")

	return result, nil
}

func (c *Client) convert(ctx context.Context, sourceText string) (*domain.ConversionResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.gen.GenerateContent(ctx, c.model, genai.Text(buildPrompt(sourceText)), generationConfig())
	if err != nil {
		return nil, fmt.Errorf("convert: generate content: %w", err)
	}
	if resp == nil {
		return nil, newError(KindParsing, errors.New("convert: empty response from model"))
	}
	c.recordUsage(resp)

	rawText := strings.TrimSpace(resp.Text())

	result, err := decodeResult(rawText)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("raw_response", truncate(rawText, maxLoggedResponse)).
			Msg("Model output rejected")
		return nil, newError(KindParsing, fmt.Errorf("convert: decode model output: %w", err))
	}

	return result, nil
}

func (c *Client) recordUsage(resp *genai.GenerateContentResponse) {
	if c.recorder == nil || resp.UsageMetadata == nil {
		return
	}
	c.recorder.AddTokens(int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
}

func (c *Client) observe(outcome string, elapsed time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveConversion(outcome, elapsed)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
