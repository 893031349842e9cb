package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationExtraction(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Weather in Paris", "Paris", true},
		{"weather in New York today", "New York", true},
		{"what's the forecast for Berlin?", "Berlin", true},
		{"temperature at the beach", "the beach", true},
		{"weather", "", false},
		{"how is the weather", "", false},
	}
	for _, tc := range cases {
		got, ok := location(tc.text)
		assert.Equal(t, tc.ok, ok, "text: %s", tc.text)
		assert.Equal(t, tc.want, got, "text: %s", tc.text)
	}
}

func TestTranslatePairExtraction(t *testing.T) {
	phrase, lang, ok := translatePair(`Translate "Good morning" to French`)
	assert.True(t, ok)
	assert.Equal(t, "Good morning", phrase)
	assert.Equal(t, "french", lang)

	phrase, lang, ok = translatePair("translate hello world to spanish")
	assert.True(t, ok)
	assert.Equal(t, "hello world", phrase)
	assert.Equal(t, "spanish", lang)

	_, _, ok = translatePair("translate this please")
	assert.False(t, ok)
}

func TestSearchQueryExtraction(t *testing.T) {
	q, ok := searchQuery("search for cheap flights to Lisbon")
	assert.True(t, ok)
	assert.Equal(t, "cheap flights to Lisbon", q)

	q, ok = searchQuery("what is a monad?")
	assert.True(t, ok)
	assert.Equal(t, "a monad", q)
}

func TestVideoURLExtraction(t *testing.T) {
	url, ok := videoURL("summarize https://youtube.com/watch?v=abc123 for me")
	assert.True(t, ok)
	assert.Equal(t, "https://youtube.com/watch?v=abc123", url)

	url, ok = videoURL("https://youtu.be/xyz789.")
	assert.True(t, ok)
	assert.Equal(t, "https://youtu.be/xyz789", url)

	_, ok = videoURL("no link here")
	assert.False(t, ok)
}

func TestPhoneModelExtraction(t *testing.T) {
	model, ok := phoneModel("specs of the Pixel 9?")
	assert.True(t, ok)
	assert.Equal(t, "Pixel 9", model)

	model, ok = phoneModel("specifications for Galaxy S25")
	assert.True(t, ok)
	assert.Equal(t, "Galaxy S25", model)

	_, ok = phoneModel("specs")
	assert.False(t, ok)
}
