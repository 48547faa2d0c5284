package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ent0n29/claudegram/internal/modelgw"
	"github.com/ent0n29/claudegram/internal/observability"
	"github.com/ent0n29/claudegram/internal/session"
)

type sentMessage struct {
	ChatID   int64
	Text     string
	Markdown bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	deleted []MessageRef
	edited  []MessageRef

	failSendContaining string
	nextID             int
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, markdown bool) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSendContaining != "" && strings.Contains(text, f.failSendContaining) {
		return MessageRef{}, errors.New("send failed")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Markdown: markdown})
	return MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeMessenger) Edit(_ context.Context, ref MessageRef, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, ref)
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeMessenger) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no messages sent")
	}
	return f.sent[len(f.sent)-1].Text
}

func testConfig() Config {
	return Config{
		MaxHistory:        20,
		MessageLimit:      4096,
		MasterPassword:    "secret123",
		DefaultProvider:   modelgw.ProviderAnthropic,
		DefaultCredential: "sk-ant-default",
		MaxTokens:         4096,
		Temperature:       0.7,
	}
}

func newTestDispatcher(cfg Config) (*Dispatcher, *session.MemoryStore, *fakeMessenger, *modelgw.Mock) {
	store := session.NewMemoryStore()
	messenger := &fakeMessenger{}
	gateway := modelgw.NewMock(modelgw.ProviderAnthropic)
	registry := modelgw.NewRegistry(gateway, modelgw.NewMock(modelgw.ProviderOpenAI))
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return NewDispatcher(cfg, store, registry, messenger, metrics), store, messenger, gateway
}

func authenticate(t *testing.T, store *session.MemoryStore, userID int64) {
	t.Helper()
	err := store.Update(context.Background(), userID, func(s *session.Session) error {
		s.Authenticate(modelgw.ProviderAnthropic, "sk-ant-bound")
		return nil
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func event(userID int64, text string) Event {
	return Event{ID: "ev-1", UserID: userID, ChatID: userID, MessageID: 1, Text: text}
}

func TestStartClearsHistoryKeepsAuthenticated(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(testConfig())
	authenticate(t, store, 42)
	_ = store.Update(ctx, 42, func(s *session.Session) error {
		s.AddTurn(session.RoleUser, "old", 20)
		return nil
	})

	if err := d.Handle(ctx, event(42, "/start")); err != nil {
		t.Fatalf("Handle(/start) error = %v", err)
	}

	snap, _ := store.GetOrCreate(ctx, 42)
	if len(snap.History) != 0 {
		t.Fatalf("history not cleared: %+v", snap.History)
	}
	if !snap.Authenticated {
		t.Fatalf("/start must not de-authenticate")
	}
	if !strings.Contains(messenger.lastText(t), "Welcome") {
		t.Fatalf("welcome not sent, got %q", messenger.lastText(t))
	}
}

func TestResetRequiresAuthentication(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(testConfig())

	if err := d.Handle(ctx, event(7, "/reset")); err != nil {
		t.Fatalf("Handle(/reset) error = %v", err)
	}
	if messenger.lastText(t) != authRequiredText {
		t.Fatalf("got %q, want auth-required notice", messenger.lastText(t))
	}

	snap, _ := store.GetOrCreate(ctx, 7)
	if snap.Authenticated || len(snap.History) != 0 {
		t.Fatalf("unauthenticated /reset mutated state: %+v", snap)
	}
}

func TestResetClearsHistoryWhenAuthenticated(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(testConfig())
	authenticate(t, store, 7)
	_ = store.Update(ctx, 7, func(s *session.Session) error {
		s.AddTurn(session.RoleUser, "old", 20)
		return nil
	})

	if err := d.Handle(ctx, event(7, "/reset")); err != nil {
		t.Fatalf("Handle(/reset) error = %v", err)
	}

	snap, _ := store.GetOrCreate(ctx, 7)
	if len(snap.History) != 0 {
		t.Fatalf("history not cleared")
	}
	if !snap.Authenticated {
		t.Fatalf("/reset must keep authentication")
	}
	if messenger.lastText(t) != resetConfirmText {
		t.Fatalf("got %q, want reset confirmation", messenger.lastText(t))
	}
}

func TestHelpMutatesNothing(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(testConfig())

	if err := d.Handle(ctx, event(3, "/help")); err != nil {
		t.Fatalf("Handle(/help) error = %v", err)
	}
	if !strings.Contains(messenger.lastText(t), "Help") {
		t.Fatalf("help not sent")
	}

	snap, _ := store.GetOrCreate(ctx, 3)
	if snap.Authenticated || len(snap.History) != 0 {
		t.Fatalf("/help mutated state: %+v", snap)
	}
}

func TestUnknownCommandNotice(t *testing.T) {
	d, _, messenger, _ := newTestDispatcher(testConfig())

	if err := d.Handle(context.Background(), event(3, "/frobnicate")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if messenger.lastText(t) != unknownCommandText {
		t.Fatalf("got %q, want unknown-command notice", messenger.lastText(t))
	}
}

func TestMalformedEventDropped(t *testing.T) {
	d, _, messenger, _ := newTestDispatcher(testConfig())

	if err := d.Handle(context.Background(), Event{ID: "ev-x", Text: "hello"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("malformed event must not produce a reply, sent %+v", messenger.sent)
	}
}

func TestFailedProbeLeavesUnauthenticated(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, gateway := newTestDispatcher(testConfig())
	gateway.ValidateErr = errors.New("401 invalid x-api-key")

	if err := d.Handle(ctx, event(9, "sk-ant-bogus")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	snap, _ := store.GetOrCreate(ctx, 9)
	if snap.Authenticated || snap.Credential != "" {
		t.Fatalf("failed probe flipped authentication: %+v", snap)
	}
	if messenger.lastText(t) != invalidKeyText {
		t.Fatalf("got %q, want invalid-key notice", messenger.lastText(t))
	}
	if len(gateway.Validated) != 1 || gateway.Validated[0] != "sk-ant-bogus" {
		t.Fatalf("probe not attempted exactly once: %v", gateway.Validated)
	}
}

func TestSuccessfulProbeBindsCredential(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(testConfig())

	if err := d.Handle(ctx, event(9, "sk-ant-valid-key")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	snap, _ := store.GetOrCreate(ctx, 9)
	if !snap.Authenticated || snap.Credential != "sk-ant-valid-key" || snap.Provider != modelgw.ProviderAnthropic {
		t.Fatalf("credential not bound: %+v", snap)
	}
	if !strings.Contains(messenger.lastText(t), "Authentication successful") {
		t.Fatalf("confirmation not sent")
	}
}

func TestPasswordAuthScenario(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(testConfig())

	for _, text := range []string{"/start", "wrong", "secret123"} {
		if err := d.Handle(ctx, event(42, text)); err != nil {
			t.Fatalf("Handle(%q) error = %v", text, err)
		}
	}

	snap, _ := store.GetOrCreate(ctx, 42)
	if !snap.Authenticated {
		t.Fatalf("password auth did not authenticate")
	}
	if snap.Credential != "sk-ant-default" || snap.Provider != modelgw.ProviderAnthropic {
		t.Fatalf("default credential not bound: %+v", snap)
	}
	if len(snap.History) != 0 {
		t.Fatalf("auth flow must not append turns: %+v", snap.History)
	}

	texts := make([]string, 0, len(messenger.sent))
	for _, m := range messenger.sent {
		texts = append(texts, m.Text)
	}
	if texts[1] != invalidAuthText {
		t.Fatalf("wrong password reply = %q", texts[1])
	}
}

func TestPasswordWithoutDefaultCredentialRejected(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultCredential = ""
	ctx := context.Background()
	d, store, messenger, _ := newTestDispatcher(cfg)

	if err := d.Handle(ctx, event(42, "secret123")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	snap, _ := store.GetOrCreate(ctx, 42)
	if snap.Authenticated {
		t.Fatalf("must not authenticate without a credential to bind")
	}
	if messenger.lastText(t) != invalidAuthText {
		t.Fatalf("got %q, want generic rejection", messenger.lastText(t))
	}
}

func TestChatRoundTrip(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, gateway := newTestDispatcher(testConfig())
	authenticate(t, store, 42)
	gateway.Reply = "hello back"

	if err := d.Handle(ctx, event(42, "hello")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	snap, _ := store.GetOrCreate(ctx, 42)
	if len(snap.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(snap.History))
	}
	if snap.History[0].Role != session.RoleUser || snap.History[1].Role != session.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", snap.History)
	}
	if snap.History[1].Content != "hello back" {
		t.Fatalf("assistant turn = %q", snap.History[1].Content)
	}

	if len(messenger.deleted) != 1 {
		t.Fatalf("working indicator not removed: %+v", messenger.deleted)
	}
	if messenger.lastText(t) != "hello back" {
		t.Fatalf("reply not sent, got %q", messenger.lastText(t))
	}
	if len(gateway.CompleteCalls) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(gateway.CompleteCalls))
	}
	if gateway.Credentials[0] != "sk-ant-bound" {
		t.Fatalf("completion used credential %q", gateway.Credentials[0])
	}
	if gateway.CompleteCalls[0].System == "" {
		t.Fatalf("system prompt missing from request")
	}
}

func TestChatFailureCommitsNoAssistantTurn(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, gateway := newTestDispatcher(testConfig())
	authenticate(t, store, 42)
	gateway.CompleteErr = errors.New("529 overloaded")

	if err := d.Handle(ctx, event(42, "hello")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	snap, _ := store.GetOrCreate(ctx, 42)
	if len(snap.History) != 1 || snap.History[0].Role != session.RoleUser {
		t.Fatalf("failed completion must leave only the user turn: %+v", snap.History)
	}
	if len(messenger.deleted) != 1 {
		t.Fatalf("working indicator not removed on failure")
	}
	last := messenger.lastText(t)
	if !strings.Contains(last, "/reset") || !strings.HasPrefix(last, chatFailurePrefix) {
		t.Fatalf("error reply = %q", last)
	}
}

func TestChatIndicatorFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, gateway := newTestDispatcher(testConfig())
	authenticate(t, store, 42)
	messenger.failSendContaining = thinkingText
	gateway.Reply = "still works"

	if err := d.Handle(ctx, event(42, "hello")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(messenger.deleted) != 0 {
		t.Fatalf("nothing to delete when the indicator never sent")
	}
	if messenger.lastText(t) != "still works" {
		t.Fatalf("reply not sent, got %q", messenger.lastText(t))
	}
}

func TestLongReplySplitIntoOrderedChunks(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, gateway := newTestDispatcher(testConfig())
	authenticate(t, store, 42)
	gateway.Reply = strings.Repeat("a", 9000)

	if err := d.Handle(ctx, event(42, "tell me everything")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// sent: indicator, then three chunks
	if len(messenger.sent) != 4 {
		t.Fatalf("sent %d messages, want 4", len(messenger.sent))
	}
	var rebuilt strings.Builder
	for i, m := range messenger.sent[1:] {
		if len(m.Text) > 4096 {
			t.Fatalf("chunk %d length %d exceeds the message limit", i, len(m.Text))
		}
		rebuilt.WriteString(m.Text)
	}
	wantSizes := []int{4096, 4096, 808}
	for i, want := range wantSizes {
		if got := len(messenger.sent[1+i].Text); got != want {
			t.Fatalf("chunk %d length = %d, want %d", i, got, want)
		}
	}
	if rebuilt.String() != gateway.Reply {
		t.Fatalf("chunks do not reassemble the reply in order")
	}
}

func TestChatDefensiveWithoutCredential(t *testing.T) {
	ctx := context.Background()
	d, store, messenger, gateway := newTestDispatcher(testConfig())
	// Force the inconsistent state directly: authenticated, no credential.
	_ = store.Update(ctx, 42, func(s *session.Session) error {
		s.Authenticated = true
		return nil
	})

	if err := d.Handle(ctx, event(42, "hello")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if messenger.lastText(t) != reconfigureText {
		t.Fatalf("got %q, want reconfiguration prompt", messenger.lastText(t))
	}
	if len(gateway.CompleteCalls) != 0 {
		t.Fatalf("no completion may be attempted without a credential")
	}
}
