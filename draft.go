package circlepress

import (
	"context"
	"fmt"
	"strings"

	"github.com/eringen/circlepress/llm"
)

// Fallback values used when the model reply cannot be parsed or omits a field.
const (
	DefaultDraftTitle   = "Untitled Draft"
	DefaultDraftExcerpt = "A new post from our community."
)

// DefaultDraftTags are applied when a generated draft carries no tags.
var DefaultDraftTags = []string{"community"}

// DefaultDraftMaxTokens bounds the size of a generated draft.
const DefaultDraftMaxTokens = 2000

// TextGenerator is the text-generation service a draft is produced by.
type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// DraftOptions steer the style of a generated draft. Zero values pick the
// conversational, medium-length community update.
type DraftOptions struct {
	Tone            string `json:"tone"`
	Length          string `json:"length"`
	BlogType        string `json:"blogType"`
	AddCallToAction bool   `json:"addCallToAction"`
}

var draftLengths = map[string]string{
	"short":  "about 300 words",
	"medium": "about 600 words",
	"long":   "about 1000 words",
}

const draftFraming = `You are an editor for a community publication. You turn raw transcripts
of meetings, talks and conversations into blog posts for community members.
Keep facts from the transcript; do not invent names, dates or numbers.
Write the post body as simple HTML using <p>, <h2>, <ul>, <li> and <strong>.

Respond with a single JSON object and nothing else:
{"title": string, "content": string, "excerpt": string, "tags": [string]}
The excerpt is one or two sentences. Use three to five lowercase tags.`

// DraftGenerator turns transcripts into structured post drafts.
type DraftGenerator struct {
	gen       TextGenerator
	maxTokens int
}

// NewDraftGenerator returns a generator backed by gen. maxTokens of zero
// uses DefaultDraftMaxTokens.
func NewDraftGenerator(gen TextGenerator, maxTokens int) *DraftGenerator {
	if maxTokens <= 0 {
		maxTokens = DefaultDraftMaxTokens
	}
	return &DraftGenerator{gen: gen, maxTokens: maxTokens}
}

// Generate makes one call to the text generator. A reply that is not JSON
// still yields a draft: the raw text becomes the content and the other
// fields take their defaults.
func (g *DraftGenerator) Generate(ctx context.Context, transcript string, opts DraftOptions) (GeneratedDraft, error) {
	if strings.TrimSpace(transcript) == "" {
		return GeneratedDraft{}, ErrEmptyInput
	}
	if g == nil || g.gen == nil {
		return GeneratedDraft{}, fmt.Errorf("%w: no text generator configured", ErrGenerationFailed)
	}
	reply, err := g.gen.Complete(ctx, BuildDraftPrompt(opts), transcript, g.maxTokens)
	if err != nil {
		return GeneratedDraft{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return ParseDraft(reply), nil
}

// BuildDraftPrompt combines the fixed framing with the style options into
// one system instruction.
func BuildDraftPrompt(opts DraftOptions) string {
	tone := strings.TrimSpace(opts.Tone)
	if tone == "" {
		tone = "conversational"
	}
	length, ok := draftLengths[strings.ToLower(strings.TrimSpace(opts.Length))]
	if !ok {
		length = draftLengths["medium"]
	}
	blogType := strings.TrimSpace(opts.BlogType)
	if blogType == "" {
		blogType = "community update"
	}

	var b strings.Builder
	b.WriteString(draftFraming)
	fmt.Fprintf(&b, "\n\nStyle: write a %s in a %s tone, %s long.", blogType, tone, length)
	if opts.AddCallToAction {
		b.WriteString("\nEnd with a short call to action inviting readers to get involved.")
	} else {
		b.WriteString("\nDo not add a call to action.")
	}
	return b.String()
}

// ParseDraft reads a model reply into a draft, falling back to defaults for
// anything missing.
func ParseDraft(reply string) GeneratedDraft {
	var parsed GeneratedDraft
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		return GeneratedDraft{
			Title:   DefaultDraftTitle,
			Content: reply,
			Excerpt: DefaultDraftExcerpt,
			Tags:    append([]string(nil), DefaultDraftTags...),
		}
	}
	parsed.Title = strings.TrimSpace(parsed.Title)
	if parsed.Title == "" {
		parsed.Title = DefaultDraftTitle
	}
	if strings.TrimSpace(parsed.Content) == "" {
		parsed.Content = reply
	}
	parsed.Excerpt = strings.TrimSpace(parsed.Excerpt)
	if parsed.Excerpt == "" {
		parsed.Excerpt = DefaultDraftExcerpt
	}
	parsed.Tags = NormalizeTags(parsed.Tags)
	if len(parsed.Tags) == 0 {
		parsed.Tags = append([]string(nil), DefaultDraftTags...)
	}
	return parsed
}
