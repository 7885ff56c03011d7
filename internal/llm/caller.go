package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

// validate is the shared struct validator. Stage output types declare their
// schema constraints via `validate:` tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Request describes one structured generation call.
type Request struct {
	Stage     string // stage name, for error context and cost attribution
	Model     string
	MaxTokens int64
	System    string
	Prompt    string
}

// CallError is a failed model call or a schema violation. It carries the
// stage name so the orchestrator can report exactly where the run halted.
type CallError struct {
	Stage string
	Err   error
}

func (e *CallError) Error() string {
	return "llm: stage " + e.Stage + ": " + e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Generate submits one prompt and unmarshals the response into T, then
// validates T against its schema tags. Single shot: a call error or schema
// violation is returned as a *CallError and never retried here — the
// orchestrator halts on it.
func Generate[T any](ctx context.Context, client anthropic.Client, req Request) (T, model.TokenUsage, error) {
	var out T
	var usage model.TokenUsage

	msgReq := anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.System != "" {
		msgReq.System = []anthropic.SystemBlock{{Text: req.System}}
	}

	resp, err := client.CreateMessage(ctx, msgReq)
	if err != nil {
		return out, usage, &CallError{Stage: req.Stage, Err: eris.Wrap(err, "create message")}
	}

	usage = model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		Cost:                resp.Usage.EstimateCost(req.Model),
	}

	out, err = Decode[T](req.Stage, resp.Text())
	if err != nil {
		return out, usage, err
	}
	return out, usage, nil
}

// Decode cleans a raw model response and unmarshals it into T, validating T
// against its schema tags. Batch callers decode collected results through
// the same gate Generate uses for direct calls.
func Decode[T any](stage, text string) (T, error) {
	var out T

	cleaned := CleanJSON(text)
	if cleaned == "" {
		return out, &CallError{Stage: stage, Err: eris.New("empty response")}
	}

	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		zap.L().Warn("llm: response is not valid JSON",
			zap.String("stage", stage),
			zap.Error(err),
		)
		return out, &CallError{Stage: stage, Err: eris.Wrap(err, "unmarshal response")}
	}

	if err := validate.Struct(out); err != nil {
		return out, &CallError{Stage: stage, Err: eris.Wrap(err, "schema violation")}
	}

	return out, nil
}

// CleanJSON strips markdown code fences and surrounding prose from a model
// response, returning the outermost JSON object or array.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip ```json ... ``` fences.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	// Fall back to the outermost braces when the model added prose.
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		start := strings.IndexAny(text, "{[")
		if start < 0 {
			return ""
		}
		var end int
		if text[start] == '{' {
			end = strings.LastIndex(text, "}")
		} else {
			end = strings.LastIndex(text, "]")
		}
		if end <= start {
			return ""
		}
		text = text[start : end+1]
	}

	return text
}
