package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Publish("s-1", ThinkingPayload{Visible: true})
	r.Publish("s-1", MessageDeltaPayload{MessageID: "m", Delta: "a"})
	r.Publish("s-1", MessageDeltaPayload{MessageID: "m", Delta: "b"})
	r.Publish("", BalanceFramePayload{Value: 1})

	assert.Equal(t, []string{TypeThinking, TypeMessageDelta, TypeMessageDelta, TypeBalanceFrame}, r.Types())
	assert.Len(t, r.OfType(TypeMessageDelta), 2)
	assert.Equal(t, MessageDeltaPayload{MessageID: "m", Delta: "b"}, r.Last(TypeMessageDelta))
	assert.Nil(t, r.Last(TypeTurnDone))
	assert.Equal(t, "", r.All()[3].SessionID)

	r.Reset()
	assert.Empty(t, r.All())
}

func TestFanout(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	p := Fanout(a, nil, b)
	p.Publish("s", TurnDonePayload{})
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)

	Discard.Publish("s", TurnDonePayload{})
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "session:abc", ChannelFor("abc"))
	assert.Equal(t, GlobalChannel, ChannelFor(""))
}

func TestPayloadTypesAreDistinct(t *testing.T) {
	payloads := []Payload{
		MessageCreatedPayload{}, MessageDeltaPayload{}, MessageCompletedPayload{},
		ThinkingPayload{}, StatusPayload{}, ImagePlaceholderPayload{},
		ImageGeneratedPayload{}, SuggestionAddedPayload{}, SuggestionResolvedPayload{},
		FieldPendingPayload{}, UsagePayload{}, BalanceFramePayload{},
		CatalogProposalPayload{}, ResearchConfirmationPayload{},
		AttachmentsChangedPayload{}, TurnErrorPayload{}, TurnDonePayload{},
		SessionChangedPayload{},
	}
	seen := map[string]bool{}
	for _, p := range payloads {
		assert.False(t, seen[p.EventType()], "duplicate type %s", p.EventType())
		seen[p.EventType()] = true
	}
	assert.Len(t, seen, 18)
}
