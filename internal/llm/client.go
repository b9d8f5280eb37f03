// Package llm wraps github.com/sashabaranov/go-openai with the
// configuration, retry, and circuit-breaking conventions this corpus uses
// for talking to an OpenAI-compatible completion endpoint. Every component
// that needs a single non-streaming completion (episodic/prospective
// extraction, cluster titling) goes through Client.Complete; streaming
// synthesis uses Client.Stream directly.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/pkg/apperr"
	"github.com/notegraph/notegraph/pkg/config"
)

const maxRetries = 2

// Client is a circuit-broken, retrying wrapper around an OpenAI-compatible
// chat completion endpoint.
type Client struct {
	oa          *openai.Client
	cb          *gobreaker.CircuitBreaker
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

const defaultTimeout = 30 * time.Second

// New builds a Client from an LLMConfig. BaseURL lets this point at any
// OpenAI-compatible endpoint (vLLM, Ollama's OpenAI shim, LM Studio, etc),
// not just the public OpenAI API.
func New(cfg config.LLMConfig, cb config.CircuitBreakerConfig) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	var breaker *gobreaker.CircuitBreaker
	if cb.Enabled {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: cb.MaxRequests,
			Interval:    time.Duration(cb.IntervalSeconds) * time.Second,
			Timeout:     time.Duration(cb.TimeoutSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 3 {
					return false
				}
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cb.ReadyToTripRatio
			},
		})
	}

	return &Client{
		oa:          openai.NewClientWithConfig(oaCfg),
		cb:          breaker,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
	}
}

// Complete issues a single non-streaming chat completion, retrying
// transient failures with quadratic backoff (1s, then 4s), and records the call as an
// LLMOperation via record (may be nil to skip auditing, e.g. in tests).
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, kind string, record func(*store.LLMOperation)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	start := time.Now()
	var resp openai.ChatCompletionResponse
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * time.Second):
			}
		}

		if c.cb != nil {
			var raw interface{}
			raw, err = c.cb.Execute(func() (interface{}, error) {
				return c.oa.CreateChatCompletion(ctx, req)
			})
			if err == nil {
				resp = raw.(openai.ChatCompletionResponse)
			}
		} else {
			resp, err = c.oa.CreateChatCompletion(ctx, req)
		}

		if err == nil {
			break
		}
		if !isRetriable(err) || attempt == maxRetries {
			if record != nil {
				record(&store.LLMOperation{
					Kind: kind, PromptText: userPrompt, RawResponse: err.Error(),
					DurationMS: time.Since(start).Milliseconds(), CreatedAt: time.Now().UnixMilli(),
				})
			}
			return "", apperr.NewLLMUnavailableError(kind, err)
		}
	}

	if len(resp.Choices) == 0 {
		return "", apperr.NewLLMUnavailableError(kind, fmt.Errorf("no choices returned"))
	}
	content := resp.Choices[0].Message.Content

	if record != nil {
		record(&store.LLMOperation{
			Kind: kind, PromptText: userPrompt, RawResponse: content,
			TokensIn: resp.Usage.PromptTokens, TokensOut: resp.Usage.CompletionTokens,
			DurationMS: time.Since(start).Milliseconds(), CreatedAt: time.Now().UnixMilli(),
		})
	}
	return content, nil
}

// Stream issues a streaming chat completion and invokes onChunk for each
// delta received, used by internal/synth for SSE responses.
func (c *Client) Stream(ctx context.Context, systemPrompt, userPrompt string, onChunk func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	}

	stream, err := c.oa.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return apperr.NewLLMUnavailableError("synthesis", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return apperr.NewLLMUnavailableError("synthesis", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := onChunk(delta); err != nil {
				return err
			}
		}
	}
}

// Embeddings issues a single embeddings request for one or more texts
// against an OpenAI-compatible /embeddings endpoint, using the given model
// name (independent of the chat model configured for Complete/Stream).
func (c *Client) Embeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.EmbeddingRequestStrings{
		Input:          texts,
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	var resp openai.EmbeddingResponse
	var err error
	if c.cb != nil {
		var raw interface{}
		raw, err = c.cb.Execute(func() (interface{}, error) {
			return c.oa.CreateEmbeddings(ctx, req)
		})
		if err == nil {
			resp = raw.(openai.EmbeddingResponse)
		}
	} else {
		resp, err = c.oa.CreateEmbeddings(ctx, req)
	}
	if err != nil {
		return nil, apperr.NewEmbeddingFailure("", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperr.NewEmbeddingFailure("", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func isRetriable(err error) bool {
	s := strings.ToLower(err.Error())
	for _, needle := range []string{"timeout", "connection", "internal server error", "service unavailable", "bad gateway", "gateway timeout", "rate limit"} {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
