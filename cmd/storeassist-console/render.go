package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/format"
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// renderer prints notifications as terminal output. Streaming deltas are
// written inline; everything else gets its own line.
type renderer struct {
	mu  sync.Mutex
	out io.Writer

	// midLine is set while a streamed message has printed text without a
	// trailing newline.
	midLine bool

	assistant *color.Color
	user      *color.Color
	muted     *color.Color
	warn      *color.Color
	fail      *color.Color
	ok        *color.Color
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{
		out:       out,
		assistant: color.New(color.FgCyan),
		user:      color.New(color.FgGreen),
		muted:     color.New(color.FgHiBlack),
		warn:      color.New(color.FgYellow),
		fail:      color.New(color.FgRed, color.Bold),
		ok:        color.New(color.FgGreen),
	}
}

// render is a Hub subscriber.
func (r *renderer) render(n events.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p := n.Data.(type) {
	case events.MessageCreatedPayload:
		if p.Message.Role == models.RoleUser {
			r.line(r.user, "you> %s", p.Message.Content)
		} else if p.Streaming {
			r.breakLine()
			r.assistant.Fprint(r.out, "assistant> ")
			r.midLine = true
		}
	case events.MessageDeltaPayload:
		r.assistant.Fprint(r.out, p.Delta)
		r.midLine = true
	case events.MessageCompletedPayload:
		if r.midLine {
			r.breakLine()
		} else if p.Message.Role == models.RoleAssistant {
			r.line(r.assistant, "assistant> %s", p.Message.Content)
		}
		for i, opt := range p.Options {
			r.line(r.muted, "  (%d) %s", i+1, opt)
		}
	case events.ThinkingPayload:
		if p.Visible {
			r.line(r.muted, "thinking...")
		}
	case events.StatusPayload:
		if p.Text != "" {
			r.line(r.muted, "%s", p.Text)
		}
	case events.ImagePlaceholderPayload:
		if p.Visible {
			r.line(r.muted, "%s", firstNonEmpty(p.Text, "Generating image..."))
		}
	case events.ImageGeneratedPayload:
		actions := make([]string, 0, len(p.Actions))
		for _, a := range p.Actions {
			actions = append(actions, string(a))
		}
		r.line(r.ok, "image: %s [%s]", p.Image.URL, strings.Join(actions, ", "))
	case events.SuggestionAddedPayload:
		r.line(r.warn, "suggestion %s: %s → %s (%s)", p.Suggestion.ID, p.FieldLabel,
			format.DisplayValue(p.Suggestion.Field, p.Suggestion.SuggestedValue), p.OptionsLabel)
		for _, v := range p.Added {
			r.line(r.ok, "  + %s", v)
		}
		for _, v := range p.Removed {
			r.line(r.fail, "  - %s", v)
		}
	case events.SuggestionResolvedPayload:
		r.line(r.muted, "suggestion %s %s", p.SuggestionID, p.Status)
	case events.UsagePayload:
		r.line(r.muted, "tokens: %d this turn, %d total", p.Turn.Total(), p.Total.Total())
	case events.BalanceFramePayload:
		if p.Final {
			r.line(r.muted, "balance: %.2f", p.Value)
		}
	case events.CatalogProposalPayload:
		r.line(r.warn, "catalog proposal: %s (%d steps)", p.Proposal.Title, len(p.Proposal.Steps))
	case events.ResearchConfirmationPayload:
		r.line(r.warn, "%s (/yes or /no)", p.Message)
	case events.AttachmentsChangedPayload:
		if len(p.Filenames) > 0 {
			r.line(r.muted, "attached: %s (%d slots left)", strings.Join(p.Filenames, ", "), p.Remaining)
		}
		for _, rej := range p.Rejections {
			r.line(r.warn, "rejected: %s", rej)
		}
	case events.TurnErrorPayload:
		r.line(r.fail, "error: %s", p.Message)
	case events.SessionChangedPayload:
		r.line(r.ok, "session %s: %s", p.SessionID, p.Title)
	}
}

func (r *renderer) line(c *color.Color, msg string, args ...any) {
	r.breakLine()
	c.Fprintf(r.out, msg, args...)
	_, _ = fmt.Fprintln(r.out)
}

func (r *renderer) breakLine() {
	if r.midLine {
		_, _ = fmt.Fprintln(r.out)
		r.midLine = false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
