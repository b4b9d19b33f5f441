// Package speech turns recorded audio into text. A local Whisper server is
// tried first; an OpenAI-compatible transcription API serves as fallback.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("no speech-to-text backend is configured")

// Transcriber converts one audio clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, audio []byte) (string, error)
}

// Observer receives the outcome of every outbound call.
type Observer interface {
	ObserveExternalCall(service string, start time.Time, err error)
}

type Config struct {
	WhisperURL string
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error any `json:"error"`
}

func (e errorResponse) message(fallback string) string {
	switch v := e.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fallback
}

// WhisperClient talks to a whisper.cpp style server: POST /inference with the
// audio as multipart "file".
type WhisperClient struct {
	http     *resty.Client
	observer Observer
}

func NewWhisperClient(url string, timeout time.Duration, observer Observer) *WhisperClient {
	return &WhisperClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(url, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		observer: observer,
	}
}

func (w *WhisperClient) Transcribe(ctx context.Context, fileName string, audio []byte) (text string, err error) {
	if w.observer != nil {
		start := time.Now()
		defer func() { w.observer.ObserveExternalCall("whisper", start, err) }()
	}

	var result transcriptionResponse
	var failure errorResponse
	resp, err := w.http.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(audio)).
		SetFormData(map[string]string{
			"response_format": "json",
			"temperature":     "0.0",
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/inference")
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("whisper returned %d: %s", resp.StatusCode(), failure.message(resp.Status()))
	}
	return strings.TrimSpace(result.Text), nil
}

// OpenAIClient calls <BaseURL>/audio/transcriptions.
type OpenAIClient struct {
	http     *resty.Client
	apiKey   string
	model    string
	observer Observer
}

func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration, observer Observer) *OpenAIClient {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		apiKey:   apiKey,
		model:    model,
		observer: observer,
	}
}

func (o *OpenAIClient) Transcribe(ctx context.Context, fileName string, audio []byte) (text string, err error) {
	if o.observer != nil {
		start := time.Now()
		defer func() { o.observer.ObserveExternalCall("openai_stt", start, err) }()
	}

	var result transcriptionResponse
	var failure errorResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetFileReader("file", fileName, bytes.NewReader(audio)).
		SetFormData(map[string]string{"model": o.model}).
		SetResult(&result).
		SetError(&failure).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("transcription API returned %d: %s", resp.StatusCode(), failure.message(resp.Status()))
	}
	return strings.TrimSpace(result.Text), nil
}

// Fallback tries Primary and, if it is nil or fails, Secondary.
type Fallback struct {
	Primary   Transcriber
	Secondary Transcriber
	Logger    zerolog.Logger
}

func (f *Fallback) Transcribe(ctx context.Context, fileName string, audio []byte) (string, error) {
	if f.Primary == nil && f.Secondary == nil {
		return "", ErrNotConfigured
	}
	if f.Primary != nil {
		text, err := f.Primary.Transcribe(ctx, fileName, audio)
		if err == nil {
			return text, nil
		}
		if f.Secondary == nil {
			return "", err
		}
		f.Logger.Warn().Err(err).Msg("local speech-to-text failed, falling back to cloud transcription")
	}
	return f.Secondary.Transcribe(ctx, fileName, audio)
}

// New builds the transcriber chain from cfg. The cloud backend is only used
// when an API key is present.
func New(cfg Config, observer Observer, logger zerolog.Logger) *Fallback {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	f := &Fallback{Logger: logger}
	if cfg.WhisperURL != "" {
		f.Primary = NewWhisperClient(cfg.WhisperURL, cfg.Timeout, observer)
	}
	if cfg.APIKey != "" && cfg.BaseURL != "" {
		f.Secondary = NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout, observer)
	}
	return f
}
