// Package openai provides an STT provider backed by the OpenAI audio
// transcriptions API.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tomasrey88/plantavoz/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithLanguage sets the ISO-639-1 language hint sent with every request
// (e.g., "es"). Empty lets the service auto-detect.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements stt.Provider using the OpenAI audio transcriptions API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model, language: cfg.language}, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &stt.TranscriptionError{Provider: p.Name(), Err: fmt.Errorf("empty audio payload")}
	}

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(audio), fileNameFor(mimeType), mimeType),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", &stt.TranscriptionError{Provider: p.Name(), Err: err}
	}
	return resp.Text, nil
}

// fileNameFor picks a filename extension the API recognises for the given
// attachment content type. The API rejects uploads without a known extension.
func fileNameFor(mimeType string) string {
	switch mimeType {
	case "audio/ogg", "application/ogg":
		return "voice-note.ogg"
	case "audio/mpeg", "audio/mp3":
		return "voice-note.mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "voice-note.m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "voice-note.wav"
	case "audio/webm", "video/webm":
		return "voice-note.webm"
	case "audio/flac", "audio/x-flac":
		return "voice-note.flac"
	default:
		return "voice-note.ogg"
	}
}
