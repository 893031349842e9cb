package orchestrator

import (
	"fmt"
	"strings"
)

// Reply formatting per capability. Payloads are already normalized to a
// single string by the provider layer; these helpers add the line structure
// the transport renders.

func formatWeather(location, payload string) string {
	return fmt.Sprintf("Weather for %s:\n%s", location, indentLines(payload))
}

func formatSearch(query, payload string) string {
	return fmt.Sprintf("Results for %q:\n%s", query, indentLines(payload))
}

func formatTranslation(lang, payload string) string {
	return fmt.Sprintf("Translation (%s):\n%s", lang, payload)
}

func formatTranscript(payload string) string {
	return "Transcript:\n" + payload
}

func formatSummary(payload string) string {
	return "Summary:\n" + payload
}

func formatPhoneLookup(number, payload string) string {
	return fmt.Sprintf("Lookup for %s:\n%s", number, indentLines(payload))
}

func formatPhoneInfo(model, payload string) string {
	return fmt.Sprintf("Specs for %s:\n%s", model, indentLines(payload))
}

func formatModelList(models []string) string {
	lines := make([]string, 0, len(models))
	for _, m := range models {
		lines = append(lines, "- "+m)
	}
	return strings.Join(lines, "\n")
}

func indentLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = "- " + strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
