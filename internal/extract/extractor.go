// Package extract implements language-model structured-field extraction over
// free dictation text.
//
// The [Extractor] sends the transcript to an [llm.Provider] with a system
// prompt that instructs the model to return a strict JSON object describing
// the work item: title, description, assignee, due date, priority, and group.
// Plant staff dictate in Spanish, so the prompt and the priority synonyms are
// Spanish-first.
//
// Extraction never fails outward: any provider error or unparseable response
// degrades to a fallback result whose title is a truncated copy of the raw
// text with normal priority, so record creation can always proceed.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomasrey88/plantavoz/internal/store"
	llm "github.com/tomasrey88/plantavoz/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMaxTitleLen = 80
)

// systemPromptTemplate is the base system prompt. The current date is
// interpolated at call time so relative due dates ("mañana", "el viernes")
// can be resolved by the model.
const systemPromptTemplate = `Sos un asistente que estructura dictados de planta para un sistema de mantenimiento.

Tu tarea: extraer los campos de la tarea o recordatorio dictado.

Reglas:
- "title": resumen corto e imperativo de la acción pedida. Nunca vacío.
- "description": detalle adicional del dictado, o "" si no hay.
- "assignee": nombre de la persona mencionada como responsable, tal como fue dicho, o "" si no se nombra a nadie.
- "due_date": fecha límite en formato YYYY-MM-DD (o YYYY-MM-DDTHH:MM si se dijo una hora), resolviendo fechas relativas contra la fecha actual: %s. "" si no se menciona plazo.
- "priority": una de "baja", "normal", "alta", "urgente". Usá "normal" si no se indica.
- "group": sector o proyecto mencionado, o "".
- No inventes datos que el dictado no contiene.

Respondé SOLO con un objeto JSON en este formato exacto (sin markdown, sin prosa):
{
  "title": "<string>",
  "description": "<string>",
  "assignee": "<string>",
  "due_date": "<string>",
  "priority": "<string>",
  "group": "<string>"
}`

// dueDateLayouts are the accepted formats for the model's due_date value.
var dueDateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// Fields is the structured result of extraction over one transcript.
type Fields struct {
	// Title is never empty: on extraction failure it is a truncated copy of
	// the raw text.
	Title string

	Description string

	// Assignee is the responsible person's name as dictated, unresolved.
	// Empty when nobody was named.
	Assignee string

	// DueAt is nil when no deadline was dictated.
	DueAt *time.Time

	Priority store.Priority

	// Group is the dictated sector or project name, if any.
	Group string

	// Fallback reports that the model's answer was unusable and the result
	// was synthesized from the raw text.
	Fallback bool
}

// llmFields is the expected JSON structure returned by the LLM.
type llmFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
	Group       string `json:"group"`
}

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(e *Extractor) {
		e.temperature = temp
	}
}

// WithMaxTitleLen sets the rune limit for fallback titles. Default: 80.
func WithMaxTitleLen(n int) Option {
	return func(e *Extractor) {
		e.maxTitleLen = n
	}
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(log *slog.Logger) Option {
	return func(e *Extractor) {
		e.log = log
	}
}

// WithNow overrides the clock used to anchor relative due dates. For tests.
func WithNow(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// Extractor turns free dictation text into [Fields] via an [llm.Provider].
// It is safe for concurrent use.
type Extractor struct {
	llm         llm.Provider
	temperature float64
	maxTitleLen int
	log         *slog.Logger
	now         func() time.Time
}

// New returns a new [Extractor] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		llm:         provider,
		temperature: defaultTemperature,
		maxTitleLen: defaultMaxTitleLen,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract asks the model to structure text. It always returns usable fields:
// provider errors, unparseable responses, and empty titles all degrade to the
// raw-text fallback instead of an error.
func (e *Extractor) Extract(ctx context.Context, text string) Fields {
	req := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, e.now().Format("2006-01-02")),
		Temperature:  e.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: text},
		},
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		e.log.Warn("extract: completion failed, using raw-text fallback", "error", err)
		return e.fallback(text)
	}

	var raw llmFields
	if err := json.Unmarshal([]byte(stripMarkdown(resp.Content)), &raw); err != nil {
		e.log.Warn("extract: unparseable model response, using raw-text fallback", "error", err)
		return e.fallback(text)
	}

	f := Fields{
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Assignee:    strings.TrimSpace(raw.Assignee),
		Priority:    store.ParsePriority(raw.Priority),
		Group:       strings.TrimSpace(raw.Group),
	}
	if f.Title == "" {
		f.Title = truncate(text, e.maxTitleLen)
	}
	if f.Title == "" {
		// Even the raw text was blank. Callers gate on transcript length, so
		// this only happens on direct misuse.
		return e.fallback(text)
	}
	if due := parseDueDate(raw.DueDate); due != nil {
		f.DueAt = due
	}
	return f
}

// fallback builds the degraded result: raw text as title, normal priority.
func (e *Extractor) fallback(text string) Fields {
	title := truncate(text, e.maxTitleLen)
	if title == "" {
		title = "(sin texto)"
	}
	return Fields{
		Title:    title,
		Priority: store.PriorityNormal,
		Fallback: true,
	}
}

// truncate trims text and cuts it to max runes, appending an ellipsis when
// anything was cut.
func truncate(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// parseDueDate tries the accepted layouts in order. Unparseable or empty
// values yield nil rather than an error: a bad date never blocks capture.
func parseDueDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
