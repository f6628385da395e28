// Package creativeprompt writes ad-creative generation prompts with an LLM
// instead of the fixed templates the winner scaler otherwise falls back on.
package creativeprompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/pkg/anthropic"
)

// Writer turns a winning product's title into a short generation prompt for
// the image/video model, tailored to the creative kind being produced.
type Writer struct {
	Client anthropic.Client
	Model  string
}

// NewWriter builds a Writer. model identifies the Anthropic model ID to
// request completions from.
func NewWriter(client anthropic.Client, model string) *Writer {
	return &Writer{Client: client, Model: model}
}

const maxPromptTokens = 120

const systemPrompt = "You write short, concrete prompts for an AI image/video generator. " +
	"Reply with ONLY the prompt text, one sentence, no preamble."

// Write asks the model for a single-sentence generation prompt describing
// productTitle for the given creative kind. Callers should fall back to a
// fixed template on error rather than failing the run.
func (w *Writer) Write(ctx context.Context, kind model.WinnerCreativeKind, productTitle string) (string, error) {
	resp, err := w.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     w.Model,
		MaxTokens: maxPromptTokens,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Product: %q. Generate %s prompt.", productTitle, shotFor(kind))},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "creativeprompt: create message")
	}
	return extractPrompt(resp)
}

// PromptJob identifies one winner/modality prompt to generate within a
// WriteBatch call.
type PromptJob struct {
	CustomID     string
	Kind         model.WinnerCreativeKind
	ProductTitle string
}

// WriteBatch generates every job's prompt in a single Anthropic batch
// request instead of one sequential CreateMessage call per winner per
// modality, the shape a tenant's refill run actually needs when several
// winners come due for new creatives in the same run. The shared system
// block is warmed with a sequential primer request first (§pricing: batch
// items land after the primer and hit the cache it creates) via
// BuildCachedSystemBlocks/PrimerRequest. Returns only the prompts that
// succeeded; callers fall back to a fixed template for any job missing
// from the result.
func (w *Writer) WriteBatch(ctx context.Context, jobs []PromptJob) (map[string]string, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	system := anthropic.BuildCachedSystemBlocks(systemPrompt)
	if _, err := anthropic.PrimerRequest(ctx, w.Client, anthropic.MessageRequest{
		Model: w.Model, MaxTokens: maxPromptTokens, System: system,
		Messages: []anthropic.Message{{Role: "user", Content: "Acknowledge."}},
	}); err != nil {
		zap.L().Warn("creativeprompt: cache primer failed, continuing without it", zap.Error(err))
	}

	items := make([]anthropic.BatchRequestItem, len(jobs))
	for i, j := range jobs {
		items[i] = anthropic.BatchRequestItem{
			CustomID: j.CustomID,
			Params: anthropic.MessageRequest{
				Model: w.Model, MaxTokens: maxPromptTokens, System: system,
				Messages: []anthropic.Message{
					{Role: "user", Content: fmt.Sprintf("Product: %q. Generate %s prompt.", j.ProductTitle, shotFor(j.Kind))},
				},
			},
		}
	}

	batch, err := w.Client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return nil, eris.Wrap(err, "creativeprompt: create batch")
	}
	done, err := anthropic.PollBatch(ctx, w.Client, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "creativeprompt: poll batch")
	}
	iter, err := w.Client.GetBatchResults(ctx, done.ID)
	if err != nil {
		return nil, eris.Wrap(err, "creativeprompt: get batch results")
	}
	result, err := anthropic.CollectBatchResultsDetailed(iter)
	if err != nil {
		return nil, eris.Wrap(err, "creativeprompt: collect batch results")
	}
	if len(result.Failures) > 0 {
		zap.L().Warn("creativeprompt: some batch prompts failed",
			zap.Int("failed", len(result.Failures)), zap.Int("succeeded", len(result.Succeeded)))
	}

	prompts := make(map[string]string, len(result.Succeeded))
	for customID, resp := range result.Succeeded {
		if prompt, err := extractPrompt(resp); err == nil {
			prompts[customID] = prompt
		}
	}
	return prompts, nil
}

func shotFor(kind model.WinnerCreativeKind) string {
	if kind == model.WinnerCreativeImage {
		return "a square lifestyle product photo"
	}
	return "a vertical social video showcase"
}

func extractPrompt(resp *anthropic.MessageResponse) (string, error) {
	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}
	prompt := strings.TrimSpace(text.String())
	if prompt == "" {
		return "", eris.New("creativeprompt: empty completion")
	}
	return prompt, nil
}
