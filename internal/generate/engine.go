// Package generate turns natural-language requests into SQL with a
// streaming text-generation provider.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Params are the sampling parameters of a generation request.
type Params struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
}

// DefaultParams returns deterministic sampling with a short output cap and
// penalties that discourage repetition.
func DefaultParams() Params {
	return Params{
		Model:            "gpt-3.5-turbo-1106",
		MaxTokens:        200,
		Temperature:      0,
		TopP:             1,
		PresencePenalty:  1,
		FrequencyPenalty: 1,
	}
}

// Request is a complete generation request.
type Request struct {
	Params
	Messages []Message
}

// Provider streams generated text. onChunk is called in arrival order on
// the calling goroutine. Stream returns when the response ends, fails, or
// ctx is cancelled.
type Provider interface {
	Stream(ctx context.Context, req Request, onChunk func(string)) error
}

// Engine starts generation tasks.
type Engine struct {
	provider Provider
	params   Params
	logger   *slog.Logger
}

// NewEngine creates an engine. If logger is nil, a discard logger is used.
func NewEngine(provider Provider, params Params, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		provider: provider,
		params:   params,
		logger:   logger.With("component", "generate"),
	}
}

// Params returns the sampling parameters used for new tasks.
func (e *Engine) Params() Params {
	return e.params
}

// Task is a running generation. Tokens are appended to the draft in
// arrival order. After Cancel no further tokens are delivered.
type Task struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	draft strings.Builder
	err   error
}

// Cancel stops the generation. Safe to call multiple times.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Draft returns the text generated so far.
func (t *Task) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft.String()
}

// Err returns the task error once Done is closed. A cancelled task
// reports context.Canceled.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task finishes and returns the complete draft.
func (t *Task) Wait() (string, error) {
	<-t.done
	return t.Draft(), t.Err()
}

// Start begins generating SQL for intent. onToken, if set, receives each
// token on the task goroutine in the same order they are appended.
func (e *Engine) Start(ctx context.Context, intent string, catalog []core.Schema, onToken func(string)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	req := Request{Params: e.params, Messages: BuildPrompt(intent, catalog)}
	logger := e.logger.With("task", t.ID)

	go func() {
		defer close(t.done)
		defer cancel()

		logger.Debug("generation started", "model", req.Model, "messages", len(req.Messages))
		tokens := 0
		err := e.provider.Stream(ctx, req, func(chunk string) {
			if ctx.Err() != nil {
				return
			}
			t.mu.Lock()
			t.draft.WriteString(chunk)
			t.mu.Unlock()
			tokens++
			if onToken != nil {
				onToken(chunk)
			}
		})
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}

		t.mu.Lock()
		t.err = err
		t.mu.Unlock()

		switch {
		case errors.Is(err, context.Canceled):
			logger.Debug("generation cancelled", "tokens", tokens)
		case err != nil:
			logger.Warn("generation failed", "tokens", tokens, "error", err)
		default:
			logger.Debug("generation finished", "tokens", tokens)
		}
	}()

	return t
}

// Generate runs a generation to completion and returns the draft.
func (e *Engine) Generate(ctx context.Context, intent string, catalog []core.Schema, onToken func(string)) (string, error) {
	return e.Start(ctx, intent, catalog, onToken).Wait()
}
