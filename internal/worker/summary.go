package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ktulhu/internal/runtime"
	"ktulhu/internal/stream"
	"ktulhu/pkg/types"
)

// A chat gets one short title summary, generated asynchronously right
// after the first user message is answered.

const summaryPromptTemplate = `You output ONLY valid JSON with a single field "summary".
- Summarize the user's request in at most 3 lower-case words.
- Use short, meaningful keywords without punctuation.
- If the intent is unclear or generic, set "summary" to "general request".
Text to summarize:
%s
JSON:`

const fallbackSummary = "general request"

func shouldGenerateSummary(history []types.Message) bool {
	userCount := 0
	for _, m := range history {
		if m.Role == types.RoleSummary {
			return false
		}
		if m.Role == types.RoleUser {
			userCount++
		}
	}
	return userCount == 1
}

func (w *Worker) maybeSummarize(job *Job) {
	history, err := w.store.ListMessagesForChat(context.Background(), job.ChatID)
	if err != nil {
		w.log.Warn().Err(err).Str("chat_id", job.ChatID).Msg("failed to load history for summary check")
		return
	}
	if !shouldGenerateSummary(history) {
		return
	}

	w.log.Debug().Str("chat_id", job.ChatID).Msg("summary triggered")
	go func() {
		if err := w.generateSummary(job); err != nil {
			w.log.Error().Err(err).Str("chat_id", job.ChatID).Msg("summary generation failed")
		}
	}()
}

func (w *Worker) generateSummary(job *Job) error {
	ctx := context.Background()
	history, err := w.store.ListMessagesForChat(ctx, job.ChatID)
	if err != nil {
		return err
	}

	// Re-check under the fresh history: another writer may have
	// summarized already.
	for _, m := range history {
		if m.Role == types.RoleSummary {
			return nil
		}
	}

	var userTexts []string
	for _, m := range history {
		if m.Role == types.RoleUser && m.Text != "" {
			userTexts = append(userTexts, m.Text)
			if len(userTexts) == 3 {
				break
			}
		}
	}
	text := strings.Join(userTexts, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, text)
	raw, err := w.engine.GenerateCompletion(prompt, runtime.NewCancelFlag())
	if err != nil {
		return err
	}
	summary := extractSummary(stream.NormalizeFragment(raw))

	msg := &types.Message{
		ID:     uuid.NewString(),
		ChatID: job.ChatID,
		Role:   types.RoleSummary,
		Text:   summary,
		TS:     time.Now().Unix(),
	}
	if err := w.store.SaveMessage(ctx, msg); err != nil {
		return err
	}
	if err := w.store.TouchChat(ctx, job.ChatID); err != nil {
		w.log.Warn().Err(err).Str("chat_id", job.ChatID).Msg("failed to touch chat after summary")
	}

	w.forward(job, types.StreamEvent{
		Type:      "summary",
		ChatID:    job.ChatID,
		MessageID: msg.ID,
		Text:      summary,
		TS:        msg.TS,
	})
	return nil
}

type summaryJSON struct {
	Summary string `json:"summary"`
}

// extractSummary is deliberately lenient: models wrap the JSON in prose
// often enough that we fish the object out of the raw text before
// giving up and normalizing the text itself.
func extractSummary(raw string) string {
	if s, ok := parseSummaryJSON(raw); ok {
		return s
	}
	return normalizeSummary(raw)
}

func parseSummaryJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)

	var obj summaryJSON
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return normalizeSummary(obj.Summary), true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", false
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &obj); err != nil {
		return "", false
	}
	return normalizeSummary(obj.Summary), true
}

const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

func normalizeSummary(text string) string {
	flattened := strings.NewReplacer("\n", " ", "\r", " ").Replace(text)

	var words []string
	for _, w := range strings.Fields(flattened) {
		w = strings.Trim(w, asciiPunct)
		if w == "" {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}

	cleaned := strings.ToLower(strings.Join(words, " "))
	if cleaned == "" {
		return fallbackSummary
	}
	return cleaned
}
