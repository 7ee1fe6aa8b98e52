package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
)

// replyFunc produces the reply for one SendMessage call.
type replyFunc func(ctx context.Context) (*remote.Reply, error)

type update struct {
	SessionID    string
	SuggestionID string
	Action       remote.SuggestionAction
}

// fakeRemote scripts the remote service in-process.
type fakeRemote struct {
	mu         sync.Mutex
	sessionIDs []string
	creates    []*remote.CreateSessionRequest
	createErr  error
	history    map[string]*remote.SessionHistory
	replies    []replyFunc
	sent       []*remote.MessageRequest
	updates    []update
	updateErr  error
}

func newFakeRemote(sessionIDs ...string) *fakeRemote {
	return &fakeRemote{sessionIDs: sessionIDs, history: map[string]*remote.SessionHistory{}}
}

func (f *fakeRemote) CreateSession(_ context.Context, req *remote.CreateSessionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	if len(f.sessionIDs) == 0 {
		return fmt.Sprintf("session-%d", len(f.creates)), nil
	}
	id := f.sessionIDs[0]
	f.sessionIDs = f.sessionIDs[1:]
	return id, nil
}

func (f *fakeRemote) GetSession(_ context.Context, sessionID string) (*remote.SessionHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.history[sessionID]; ok {
		return h, nil
	}
	return &remote.SessionHistory{}, nil
}

func (f *fakeRemote) SendMessage(ctx context.Context, _ string, msg *remote.MessageRequest) (*remote.Reply, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	if len(f.replies) == 0 {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: no scripted reply", remote.ErrTransport)
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	f.mu.Unlock()
	return next(ctx)
}

func (f *fakeRemote) UpdateSuggestion(_ context.Context, sessionID, suggestionID string, action remote.SuggestionAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update{SessionID: sessionID, SuggestionID: suggestionID, Action: action})
	return nil
}

func (f *fakeRemote) script(replies ...replyFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *fakeRemote) Sent() []*remote.MessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*remote.MessageRequest(nil), f.sent...)
}

func (f *fakeRemote) Updates() []update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]update(nil), f.updates...)
}

// sse renders event/data pairs as the service streams them.
func sse(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", pairs[i], pairs[i+1])
	}
	return b.String()
}

func streamReply(body string) replyFunc {
	return func(context.Context) (*remote.Reply, error) {
		return &remote.Reply{Stream: io.NopCloser(strings.NewReader(body))}, nil
	}
}

func jsonReply(resp *remote.MessageResponse) replyFunc {
	return func(context.Context) (*remote.Reply, error) {
		return &remote.Reply{JSON: resp}, nil
	}
}

// pipeReply returns a reply whose stream the test writes to. Like an HTTP
// body, the stream fails once the request context is canceled.
func pipeReply() (replyFunc, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return func(ctx context.Context) (*remote.Reply, error) {
		go func() {
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		return &remote.Reply{Stream: pr}, nil
	}, pw
}

type harness struct {
	manager  *Manager
	remote   *fakeRemote
	host     *host.Memory
	recorder *events.Recorder
}

func newHarness(t *testing.T, tools host.ToolExecutor, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Balance.AnimationDuration = 20 * time.Millisecond
	cfg.Balance.FrameInterval = 5 * time.Millisecond
	for _, fn := range mutate {
		fn(cfg)
	}

	h := &harness{
		remote:   newFakeRemote(),
		host:     host.NewMemory(),
		recorder: &events.Recorder{},
	}
	h.manager = NewManager(context.Background(), Options{
		Config:    cfg,
		Remote:    h.remote,
		Host:      h.host.Host(tools),
		Publisher: h.recorder,
		Store:     models.StoreContext{"store_name": "Acme"},
	})
	t.Cleanup(h.manager.Close)
	return h
}

func (h *harness) selectProduct(t *testing.T, id string, fields map[string]any) {
	t.Helper()
	e := &models.Entity{Type: models.EntityTypeProduct, ID: id, Title: "Mug", Fields: fields}
	h.host.PutEntity(e)
	require.NoError(t, h.manager.SelectEntity(context.Background(), e))
}

// sessionEvents returns the notification types published for sessionID.
func (h *harness) sessionEvents(sessionID string) []string {
	var out []string
	for _, n := range h.recorder.All() {
		if n.SessionID == sessionID {
			out = append(out, n.Type)
		}
	}
	return out
}
