package intent

import (
	"regexp"
	"strings"
)

// Kind identifies the handler a message routes to
type Kind string

const (
	Chat              Kind = "chat"
	Search            Kind = "search"
	Weather           Kind = "weather"
	Translate         Kind = "translate"
	YoutubeTranscribe Kind = "youtube_transcribe"
	YoutubeSummarize  Kind = "youtube_summarize"
	PhoneLookup       Kind = "phone_lookup"
	PhoneInfo         Kind = "phone_info"
	ModelSwitch       Kind = "model_switch"
	ModelsList        Kind = "models_list"
	Help              Kind = "help"
)

// Intent is the classification result for one message
type Intent struct {
	Kind       Kind
	Confidence float64
}

var (
	youtubeURL   = regexp.MustCompile(`(youtube\.com/watch|youtu\.be/|youtube\.com/shorts)`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`)
)

// rule is one entry in the ordered classification table. The first rule
// whose match function returns true wins; there is no scoring.
type rule struct {
	match      func(string) bool
	kind       Kind
	confidence float64
}

func hasAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// rules is evaluated top to bottom. Ordering is load-bearing: a video URL
// combined with a summarize keyword must win over the bare transcribe rule,
// and explicit commands outrank everything below them.
var rules = []rule{
	{func(s string) bool { return strings.HasPrefix(s, "/model ") }, ModelSwitch, 1.0},
	{func(s string) bool { return strings.TrimSpace(s) == "/models" }, ModelsList, 1.0},
	{func(s string) bool { return strings.TrimSpace(s) == "/help" || strings.TrimSpace(s) == "help" }, Help, 1.0},
	{func(s string) bool {
		return youtubeURL.MatchString(s) && hasAny(s, "summarize", "summarise", "summary")
	}, YoutubeSummarize, 0.95},
	{func(s string) bool { return youtubeURL.MatchString(s) }, YoutubeTranscribe, 0.9},
	{func(s string) bool { return hasAny(s, "translate") && strings.Contains(s, " to ") }, Translate, 0.9},
	{func(s string) bool { return hasAny(s, "weather", "forecast", "temperature in") }, Weather, 0.85},
	{func(s string) bool {
		return hasAny(s, "who is", "who's") && phonePattern.MatchString(s)
	}, PhoneLookup, 0.85},
	{func(s string) bool { return hasAny(s, "lookup", "whose number") && phonePattern.MatchString(s) }, PhoneLookup, 0.8},
	{func(s string) bool { return hasAny(s, "specs of", "specs for", "specifications of", "phone specs") }, PhoneInfo, 0.8},
	{func(s string) bool { return hasAny(s, "search for", "search ", "google ", "look up ") }, Search, 0.8},
	{func(s string) bool { return hasAny(s, "what is", "what are", "define ") }, Search, 0.6},
}

// Classify maps free-form text to an Intent. It is deterministic and
// side-effect free; unmatched input falls through to chat.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.match(lower) {
			return Intent{Kind: r.kind, Confidence: r.confidence}
		}
	}
	return Intent{Kind: Chat, Confidence: 0.5}
}

// HasPhoneNumber reports whether text contains a phone-number-shaped substring
func HasPhoneNumber(text string) bool {
	return phonePattern.MatchString(text)
}

// PhoneNumber returns the first phone-number-shaped substring, if any
func PhoneNumber(text string) string {
	return phonePattern.FindString(text)
}

// VideoURL returns true if text contains a recognizable video-sharing URL
func VideoURL(text string) bool {
	return youtubeURL.MatchString(strings.ToLower(text))
}
