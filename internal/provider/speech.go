package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relayhub/relay-gateway/internal/config"
)

// SpeechClient calls the speech-synthesis provider. Synthesis is best
// effort: callers treat failure as non-fatal and drop the audio.
type SpeechClient struct {
	endpoint string
	voice    string
	enabled  bool
	client   *http.Client
}

// NewSpeechClient creates a speech client from config
func NewSpeechClient(cfg config.SpeechConfig) *SpeechClient {
	return &SpeechClient{
		endpoint: cfg.Endpoint,
		voice:    cfg.Voice,
		enabled:  cfg.Enabled,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether synthesis is configured
func (s *SpeechClient) Enabled() bool {
	return s.enabled && s.endpoint != ""
}

// Synthesize converts text to audio bytes. The provider may answer with raw
// audio or a JSON envelope carrying base64 audio; both shapes are accepted.
func (s *SpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("speech: %w", ErrDisabled)
	}

	payload := map[string]string{"text": text}
	if s.voice != "" {
		payload["voice"] = s.voice
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("speech: %w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: %w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: %w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: %w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: %w: %v", ErrRequestFailed, err)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var envelope struct {
			Audio string `json:"audio"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Audio == "" {
			return nil, fmt.Errorf("speech: %w: no audio in response", ErrRequestFailed)
		}
		decoded, err := base64.StdEncoding.DecodeString(envelope.Audio)
		if err != nil {
			return nil, fmt.Errorf("speech: %w: %v", ErrRequestFailed, err)
		}
		return decoded, nil
	}

	return data, nil
}
