package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relayhub/relay-gateway/internal/chat"
	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/conversation"
	"github.com/relayhub/relay-gateway/internal/intent"
	"github.com/relayhub/relay-gateway/internal/metrics"
	"github.com/relayhub/relay-gateway/internal/profile"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/ratelimit"
)

// voiceMaxChars is the longest reply that still gets synthesized audio
const voiceMaxChars = 500

const apologyReply = "Sorry, something went wrong handling that message. Please try again."

// Reply is the orchestrator's answer for one inbound message
type Reply struct {
	Text  string
	Audio []byte
	Model string
}

// Orchestrator ties classification, rate limiting, provider dispatch, and
// conversation context together. One Handle call per inbound message; calls
// may interleave, even for the same user.
type Orchestrator struct {
	profiles  profile.Store
	contexts  *conversation.Store
	registry  *provider.Registry
	chat      *chat.Router
	speech    *provider.SpeechClient
	limiter   *ratelimit.Limiter
	budgets   config.RateLimitConfig
	connected func() bool
	logger    *slog.Logger
}

// New creates an orchestrator
func New(profiles profile.Store, contexts *conversation.Store, registry *provider.Registry, chatRouter *chat.Router, speech *provider.SpeechClient, limiter *ratelimit.Limiter, budgets config.RateLimitConfig, connected func() bool, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		profiles:  profiles,
		contexts:  contexts,
		registry:  registry,
		chat:      chatRouter,
		speech:    speech,
		limiter:   limiter,
		budgets:   budgets,
		connected: connected,
		logger:    logger,
	}
}

// Handle processes one inbound message end to end. It never lets an error
// escape: anything uncategorized becomes a generic apology reply.
func (o *Orchestrator) Handle(ctx context.Context, userID, text, mediaRef string) (reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in message pipeline", "user", userID, "panic", r)
			reply = &Reply{Text: apologyReply}
		}
	}()

	if err := o.profiles.Touch(ctx, userID); err != nil {
		o.logger.Warn("failed to touch profile", "user", userID, "error", err)
	}

	in := intent.Classify(text)
	metrics.MessagesHandled.WithLabelValues(string(in.Kind)).Inc()
	o.contexts.Append(userID, text, in)

	// special intents answer locally, even while the session is recovering
	switch in.Kind {
	case intent.ModelSwitch:
		return &Reply{Text: o.switchModel(ctx, userID, text)}
	case intent.ModelsList:
		return &Reply{Text: o.listModels()}
	case intent.Help:
		return &Reply{Text: helpText}
	}

	if o.connected != nil && !o.connected() {
		return &Reply{Text: "The session is reconnecting, please try again in a moment."}
	}

	textReply, model := o.dispatch(ctx, userID, text, in)
	reply = &Reply{Text: textReply, Model: model}
	o.maybeAttachVoice(ctx, userID, reply)
	return reply
}

func (o *Orchestrator) dispatch(ctx context.Context, userID, text string, in intent.Intent) (string, string) {
	switch in.Kind {
	case intent.Weather:
		loc, ok := location(text)
		if !ok {
			return "Which location would you like the weather for? Try: weather in Paris", ""
		}
		res := o.registry.Call(ctx, "weather", map[string]string{"location": loc})
		if !res.Success {
			return o.friendlyFailure("weather", res.Err), ""
		}
		return formatWeather(loc, res.Payload), ""

	case intent.Search:
		query, ok := searchQuery(text)
		if !ok {
			return "What would you like me to search for?", ""
		}
		res := o.registry.Call(ctx, "search", map[string]string{"query": query})
		if !res.Success {
			return o.friendlyFailure("search", res.Err), ""
		}
		return formatSearch(query, res.Payload), ""

	case intent.Translate:
		phrase, lang, ok := translatePair(text)
		if !ok {
			return `How should I translate that? Try: translate "good morning" to french`, ""
		}
		res := o.registry.CallCapability(ctx, "translate", map[string]string{"text": phrase, "target": lang})
		if !res.Success {
			return o.friendlyFailure("translation", res.Err), ""
		}
		return formatTranslation(lang, res.Payload), ""

	case intent.YoutubeTranscribe:
		url, ok := videoURL(text)
		if !ok {
			return "Please send a valid video link to transcribe.", ""
		}
		res := o.registry.Call(ctx, "youtube_transcribe", map[string]string{"url": url})
		if !res.Success {
			return o.friendlyFailure("transcription", res.Err), ""
		}
		return formatTranscript(res.Payload), ""

	case intent.YoutubeSummarize:
		url, ok := videoURL(text)
		if !ok {
			return "Please send a valid video link to summarize.", ""
		}
		res := o.registry.Call(ctx, "youtube_summarize", map[string]string{"url": url})
		if !res.Success {
			return o.friendlyFailure("summary", res.Err), ""
		}
		return formatSummary(res.Payload), ""

	case intent.PhoneLookup:
		number := intent.PhoneNumber(text)
		if number == "" {
			return "Which phone number should I look up?", ""
		}
		res := o.registry.Call(ctx, "phone_lookup", map[string]string{"number": number})
		if !res.Success {
			return o.friendlyFailure("number lookup", res.Err), ""
		}
		return formatPhoneLookup(number, res.Payload), ""

	case intent.PhoneInfo:
		model, ok := phoneModel(text)
		if !ok {
			return "Which phone model do you want specs for?", ""
		}
		res := o.registry.Call(ctx, "phone_info", map[string]string{"model": model})
		if !res.Success {
			return o.friendlyFailure("phone specs", res.Err), ""
		}
		return formatPhoneInfo(model, res.Payload), ""

	default:
		return o.handleChat(ctx, userID, text)
	}
}

// handleChat routes free-form messages to the user's preferred AI model,
// with the last few conversation turns prepended as context.
func (o *Orchestrator) handleChat(ctx context.Context, userID, text string) (string, string) {
	max, window := o.budgets.Budget("chat")
	if !o.limiter.Allow("chat:"+userID, max, window) {
		return "You are sending messages a bit too fast. Give me a moment.", ""
	}

	p, err := o.profiles.Get(ctx, userID)
	if err != nil {
		o.logger.Warn("profile lookup failed, using defaults", "user", userID, "error", err)
		p = &profile.Profile{UserID: userID}
	}

	resp, err := o.chat.Generate(&chat.Request{
		Prompt: o.buildPrompt(userID, text),
		Model:  p.PreferredModel,
		UserID: userID,
	})
	if err != nil {
		o.logger.Error("chat generation failed", "user", userID, "error", err)
		return "I could not reach the AI backend right now. Please try again shortly.", ""
	}
	return resp.Content, resp.Model
}

func (o *Orchestrator) buildPrompt(userID, text string) string {
	recent := o.contexts.Recent(userID, 5)
	if len(recent) <= 1 {
		return text
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, e := range recent[:len(recent)-1] {
		b.WriteString("- ")
		b.WriteString(e.Message)
		b.WriteString("\n")
	}
	b.WriteString("\nUser: ")
	b.WriteString(text)
	return b.String()
}

// switchModel validates and applies a /model command
func (o *Orchestrator) switchModel(ctx context.Context, userID, text string) string {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/model"))
	if name == "" || !o.chat.HasModel(name) {
		return fmt.Sprintf("Unknown model %q. Available models:\n%s", name, formatModelList(o.chat.ListModels()))
	}
	p, err := o.profiles.Get(ctx, userID)
	if err != nil {
		p = &profile.Profile{UserID: userID}
	}
	p.PreferredModel = name
	if err := o.profiles.Save(ctx, p); err != nil {
		o.logger.Error("failed to save profile", "user", userID, "error", err)
		return apologyReply
	}
	return fmt.Sprintf("Switched to model %s.", name)
}

func (o *Orchestrator) listModels() string {
	models := o.chat.ListModels()
	if len(models) == 0 {
		return "No models are configured."
	}
	return "Available models:\n" + formatModelList(models) +
		fmt.Sprintf("\nDefault: %s\nSwitch with /model <name>", o.chat.DefaultModel())
}

// maybeAttachVoice synthesizes audio for short replies when the user prefers
// voice. Synthesis failure is silent: the text reply stands on its own.
func (o *Orchestrator) maybeAttachVoice(ctx context.Context, userID string, reply *Reply) {
	if reply.Text == "" || len(reply.Text) >= voiceMaxChars {
		return
	}
	if o.speech == nil || !o.speech.Enabled() {
		return
	}
	p, err := o.profiles.Get(ctx, userID)
	if err != nil || !p.VoiceEnabled {
		return
	}
	max, window := o.budgets.Budget("speech")
	if !o.limiter.Allow("speech", max, window) {
		return
	}
	audio, err := o.speech.Synthesize(ctx, reply.Text)
	if err != nil {
		o.logger.Debug("speech synthesis failed, sending text only", "user", userID, "error", err)
		return
	}
	reply.Audio = audio
}

// friendlyFailure converts a provider error into user-facing text. The
// underlying reason never leaks for plain request failures.
func (o *Orchestrator) friendlyFailure(capability string, err error) string {
	switch {
	case errors.Is(err, provider.ErrDisabled):
		return fmt.Sprintf("The %s service is not enabled on this gateway.", capability)
	case errors.Is(err, provider.ErrRateLimited):
		return fmt.Sprintf("The %s service is rate limited right now. Try again in a minute.", capability)
	default:
		o.logger.Error("provider call failed", "capability", capability, "error", err)
		return fmt.Sprintf("The %s service did not respond. Please try again later.", capability)
	}
}

const helpText = `I can help with:
- Chat: just send a message
- Weather: "weather in Paris"
- Search: "search for golang concurrency"
- Translate: translate "good morning" to french
- Video transcripts: send a youtube link (add "summarize" for a summary)
- Phone lookup: "who is +1 555 123 4567"
- Phone specs: "specs of the Pixel 9"

Commands:
/models - list AI models
/model <name> - switch your AI model
/help - this message`
