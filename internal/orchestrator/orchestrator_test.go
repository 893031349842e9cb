package orchestrator

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhub/relay-gateway/internal/chat"
	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/conversation"
	"github.com/relayhub/relay-gateway/internal/profile"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/ratelimit"
)

type testEnv struct {
	orch     *Orchestrator
	profiles *profile.MemoryStore
	contexts *conversation.Store
	hits     map[string]*int64
}

// newTestEnv wires an orchestrator against httptest-backed providers
func newTestEnv(t *testing.T, connected bool, speechCfg config.SpeechConfig) *testEnv {
	t.Helper()

	hits := map[string]*int64{}
	providerSrv := func(name, body string) string {
		counter := new(int64)
		hits[name] = counter
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(counter, 1)
			w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv.URL
	}

	providers := map[string]config.ProviderConfig{
		"weather":            {Enabled: true, Endpoint: providerSrv("weather", `{"result":"18C, light rain"}`)},
		"search":             {Enabled: true, Endpoint: providerSrv("search", `{"data":["first hit","second hit"]}`)},
		"translate-main":     {Enabled: true, Endpoint: providerSrv("translate-main", `{"response":"bonjour"}`)},
		"translate-alt":      {Enabled: true, Endpoint: providerSrv("translate-alt", `{"answer":"bonjour"}`)},
		"youtube_transcribe": {Enabled: true, Endpoint: providerSrv("youtube_transcribe", `{"result":"full transcript"}`)},
		"youtube_summarize":  {Enabled: true, Endpoint: providerSrv("youtube_summarize", `{"result":"short summary"}`)},
		"phone_lookup":       {Enabled: true, Endpoint: providerSrv("phone_lookup", `{"result":"John Doe"}`)},
		"phone_info":         {Enabled: true, Endpoint: providerSrv("phone_info", `{"result":"6.1in OLED"}`)},
	}

	budgets := config.RateLimitConfig{MaxRequests: 100, Window: "1m"}
	limiter := ratelimit.New()
	registry := provider.NewRegistry(providers, budgets, limiter, slog.Default())
	registry.RegisterChain("translate", "translate-main", "translate-alt")

	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"test-model","response":"chat answer","eval_count":2}`))
	}))
	t.Cleanup(chatSrv.Close)
	chatRouter, err := chat.NewRouter(config.ChatConfig{
		Engines:      []config.EngineConfig{{Name: "local", Type: "ollama", URL: chatSrv.URL, Models: []string{"test-model", "other-model"}}},
		DefaultModel: "test-model",
	})
	require.NoError(t, err)

	profiles := profile.NewMemoryStore()
	contexts := conversation.NewStore()
	speech := provider.NewSpeechClient(speechCfg)

	orch := New(profiles, contexts, registry, chatRouter, speech, limiter, budgets,
		func() bool { return connected }, slog.Default())

	return &testEnv{orch: orch, profiles: profiles, contexts: contexts, hits: hits}
}

func (e *testEnv) hitCount(name string) int64 {
	if c, ok := e.hits[name]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}

func TestWeatherScenario(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", "Weather in Paris", "")
	assert.Contains(t, reply.Text, "Paris")
	assert.Contains(t, reply.Text, "18C")
	assert.Equal(t, int64(1), env.hitCount("weather"))
}

func TestWeatherClarificationSkipsProvider(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", "how is the weather", "")
	assert.Contains(t, reply.Text, "location")
	assert.Equal(t, int64(0), env.hitCount("weather"), "clarification must not call the provider")
}

func TestTranslateScenario(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", `Translate "Good morning" to French`, "")
	assert.Contains(t, reply.Text, "bonjour")
	assert.Equal(t, int64(1), env.hitCount("translate-main"))
	assert.Equal(t, int64(0), env.hitCount("translate-alt"))
}

func TestSearchScenario(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", "search for golang generics", "")
	assert.Contains(t, reply.Text, "first hit")
	assert.Contains(t, reply.Text, "golang generics")
}

func TestSummarizeRoutesToSummarizeProvider(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", "summarize https://youtube.com/watch?v=abc", "")
	assert.Contains(t, reply.Text, "short summary")
	assert.Equal(t, int64(1), env.hitCount("youtube_summarize"))
	assert.Equal(t, int64(0), env.hitCount("youtube_transcribe"))
}

func TestChatFallthrough(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", "tell me a story", "")
	assert.Equal(t, "chat answer", reply.Text)
	assert.Equal(t, "test-model", reply.Model)
}

func TestModelSwitch(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})

	reply := env.orch.Handle(context.Background(), "u1", "/model other-model", "")
	assert.Contains(t, reply.Text, "other-model")

	p, _ := env.profiles.Get(context.Background(), "u1")
	assert.Equal(t, "other-model", p.PreferredModel)
}

func TestModelSwitchInvalidListsValidSet(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	reply := env.orch.Handle(context.Background(), "u1", "/model bogus", "")
	assert.Contains(t, reply.Text, "Unknown model")
	assert.Contains(t, reply.Text, "test-model")
	assert.Contains(t, reply.Text, "other-model")
}

func TestModelsListAndHelp(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})

	reply := env.orch.Handle(context.Background(), "u1", "/models", "")
	assert.Contains(t, reply.Text, "test-model")

	reply = env.orch.Handle(context.Background(), "u1", "/help", "")
	assert.Contains(t, reply.Text, "/model <name>")
}

func TestDisconnectedGateRejectsProviderWork(t *testing.T) {
	env := newTestEnv(t, false, config.SpeechConfig{})

	reply := env.orch.Handle(context.Background(), "u1", "Weather in Paris", "")
	assert.Contains(t, reply.Text, "reconnecting")
	assert.Equal(t, int64(0), env.hitCount("weather"))

	// local intents still answer while disconnected
	reply = env.orch.Handle(context.Background(), "u1", "/help", "")
	assert.Contains(t, reply.Text, "Commands")
}

func TestContextAppendedPerMessage(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	env.orch.Handle(context.Background(), "u1", "Weather in Paris", "")
	env.orch.Handle(context.Background(), "u1", "search for pizza", "")
	assert.Equal(t, 2, env.contexts.Len("u1"))
}

func TestVoiceAttachedForShortReplies(t *testing.T) {
	speechSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		w.Write([]byte("audio-bytes"))
	}))
	defer speechSrv.Close()

	env := newTestEnv(t, true, config.SpeechConfig{Enabled: true, Endpoint: speechSrv.URL})
	env.profiles.Save(context.Background(), &profile.Profile{UserID: "u1", VoiceEnabled: true})

	reply := env.orch.Handle(context.Background(), "u1", "Weather in Paris", "")
	assert.Equal(t, []byte("audio-bytes"), reply.Audio)
}

func TestVoiceSkippedWithoutPreference(t *testing.T) {
	speechSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	}))
	defer speechSrv.Close()

	env := newTestEnv(t, true, config.SpeechConfig{Enabled: true, Endpoint: speechSrv.URL})
	reply := env.orch.Handle(context.Background(), "u1", "Weather in Paris", "")
	assert.Nil(t, reply.Audio)
}

func TestVoiceFailureIsSilent(t *testing.T) {
	speechSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer speechSrv.Close()

	env := newTestEnv(t, true, config.SpeechConfig{Enabled: true, Endpoint: speechSrv.URL})
	env.profiles.Save(context.Background(), &profile.Profile{UserID: "u1", VoiceEnabled: true})

	reply := env.orch.Handle(context.Background(), "u1", "Weather in Paris", "")
	assert.Contains(t, reply.Text, "Paris")
	assert.Nil(t, reply.Audio)
}

func TestPanicBecomesApology(t *testing.T) {
	env := newTestEnv(t, true, config.SpeechConfig{})
	// a nil chat router makes the chat path panic
	env.orch.chat = nil
	reply := env.orch.Handle(context.Background(), "u1", "hello there", "")
	assert.Equal(t, apologyReply, reply.Text)
}
