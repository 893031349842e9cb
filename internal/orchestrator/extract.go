package orchestrator

import (
	"regexp"
	"strings"
)

// Parameter extractors. Each returns ("", false) when the message does not
// carry enough structure; the caller answers with a clarification instead
// of calling any provider.

var (
	locationPattern  = regexp.MustCompile(`(?i)(?:weather|forecast|temperature)\s+(?:in|for|at)\s+(.+)`)
	quotedTranslate  = regexp.MustCompile(`(?i)"([^"]+)"\s+(?:in)?to\s+([a-zA-Z]+)`)
	plainTranslate   = regexp.MustCompile(`(?i)translate\s+(.+?)\s+(?:in)?to\s+([a-zA-Z]+)\s*[?.!]*$`)
	videoURLPattern  = regexp.MustCompile(`https?://\S*(?:youtube\.com/watch\S*|youtu\.be/\S+|youtube\.com/shorts/\S+)`)
	phoneSpecPattern = regexp.MustCompile(`(?i)(?:specs|specifications)\s+(?:of|for)\s+(?:the\s+)?(.+)`)
)

var searchPrefixes = []string{"search for ", "search ", "google ", "look up ", "what is ", "what are ", "define "}

// searchQuery pulls the query phrase out of a search-shaped message
func searchQuery(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, prefix := range searchPrefixes {
		if idx := strings.Index(lower, prefix); idx >= 0 {
			query := strings.TrimSpace(text[idx+len(prefix):])
			query = strings.TrimRight(query, "?.! ")
			if query != "" {
				return query, true
			}
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// location pulls the place phrase out of a weather-shaped message
func location(text string) (string, bool) {
	m := locationPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	loc := strings.TrimSpace(strings.TrimRight(m[1], "?.! "))
	// drop trailing time qualifiers
	for _, suffix := range []string{" today", " tomorrow", " right now", " now"} {
		loc = strings.TrimSuffix(loc, suffix)
	}
	if loc == "" {
		return "", false
	}
	return loc, true
}

// translatePair pulls (text, targetLang) out of a translate-shaped message.
// The quoted form wins so that the phrase keeps its exact spacing.
func translatePair(text string) (string, string, bool) {
	if m := quotedTranslate.FindStringSubmatch(text); m != nil {
		return m[1], strings.ToLower(m[2]), true
	}
	if m := plainTranslate.FindStringSubmatch(text); m != nil {
		phrase := strings.Trim(strings.TrimSpace(m[1]), `"`)
		if phrase != "" {
			return phrase, strings.ToLower(m[2]), true
		}
	}
	return "", "", false
}

// videoURL pulls the first video-sharing URL out of the message
func videoURL(text string) (string, bool) {
	m := videoURLPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.TrimRight(m, ".,;"), true
}

// phoneModel pulls the device name out of a specs-shaped message
func phoneModel(text string) (string, bool) {
	m := phoneSpecPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	model := strings.TrimSpace(strings.TrimRight(m[1], "?.! "))
	if model == "" {
		return "", false
	}
	return model, true
}
