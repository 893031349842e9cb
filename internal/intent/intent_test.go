package intent

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want Kind
	}{
		{"hello there", Chat},
		{"Weather in Paris", Weather},
		{"what's the forecast for tomorrow", Weather},
		{`Translate "Good morning" to French`, Translate},
		{"search for cheap flights", Search},
		{"what is the capital of Peru", Search},
		{"https://youtube.com/watch?v=abc123", YoutubeTranscribe},
		{"https://youtu.be/abc123 please", YoutubeTranscribe},
		{"who is +1 555 123 4567", PhoneLookup},
		{"specs of the Pixel 9", PhoneInfo},
		{"/model gpt-4", ModelSwitch},
		{"/models", ModelsList},
		{"/help", Help},
	}
	for _, tc := range cases {
		got := Classify(tc.text)
		if got.Kind != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.text, got.Kind, tc.want)
		}
		if got.Confidence <= 0 {
			t.Errorf("Classify(%q) confidence must be non-zero", tc.text)
		}
	}
}

func TestSummarizeOutranksTranscribe(t *testing.T) {
	got := Classify("summarize https://youtube.com/watch?v=abc123 for me")
	if got.Kind != YoutubeSummarize {
		t.Errorf("expected youtube_summarize, got %s", got.Kind)
	}
	got = Classify("https://youtu.be/xyz can you give me a summary")
	if got.Kind != YoutubeSummarize {
		t.Errorf("expected youtube_summarize, got %s", got.Kind)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	text := "Weather in Paris"
	first := Classify(text)
	for i := 0; i < 100; i++ {
		if got := Classify(text); got != first {
			t.Fatalf("classification not deterministic: %v vs %v", got, first)
		}
	}
}

func TestDefaultIsChat(t *testing.T) {
	got := Classify("tell me something interesting")
	if got.Kind != Chat || got.Confidence != 0.5 {
		t.Errorf("expected (chat, 0.5) default, got (%s, %v)", got.Kind, got.Confidence)
	}
}

func TestPhoneNumberExtraction(t *testing.T) {
	if got := PhoneNumber("who is +44 20 7946 0958?"); got == "" {
		t.Error("expected a phone number match")
	}
	if HasPhoneNumber("no digits here") {
		t.Error("expected no phone number match")
	}
}
