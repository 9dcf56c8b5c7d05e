package speech

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"shopmate/pkg/config"
	"shopmate/pkg/errs"
	"shopmate/pkg/utils"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultVoice              = "alloy"
	defaultSpeechModel        = "gpt-4o-mini-tts"
	defaultTranscriptionModel = "gpt-4o-transcribe"
	defaultLanguage           = "en"
)

// Service turns assistant replies into mp3 audio and user recordings into
// text, using the OpenAI audio endpoints.
type Service struct {
	client             openai.Client
	voice              string
	speechModel        string
	transcriptionModel string
	language           string
}

// NewService builds a speech service. A nil httpClient uses a client with
// the given timeout.
func NewService(cfg config.SpeechConfig, timeout time.Duration, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{
		client:             openai.NewClient(opts...),
		voice:              orDefault(cfg.Voice, defaultVoice),
		speechModel:        orDefault(cfg.SpeechModel, defaultSpeechModel),
		transcriptionModel: orDefault(cfg.TranscriptionModel, defaultTranscriptionModel),
		language:           orDefault(cfg.Language, defaultLanguage),
	}
}

// speechRequest is the body of POST /audio/speech.
type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize returns the mp3 rendering of text.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "no text to synthesize")
	}

	var resp *http.Response
	err := s.client.Post(ctx, "audio/speech", speechRequest{
		Model:          s.speechModel,
		Voice:          s.voice,
		Input:          text,
		ResponseFormat: "mp3",
	}, &resp)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeSpeechFailed, "speech synthesis failed")
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeSpeechFailed, "reading synthesized audio")
	}
	slog.DebugContext(ctx, "Synthesized speech", "chars", len(text), "bytes", len(audio), "voice", s.voice)
	return audio, nil
}

// Transcribe converts a recording to text in the configured language.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeSpeechFailed, "reading audio upload")
	}
	if len(data) == 0 {
		return "", errs.New(errs.CodeInvalidRequest, "audio upload is empty")
	}

	mimeType, ext := utils.DetectAudioMimeAndExt(filename, data)
	if filename == "" || filename == "blob" {
		filename = "recording" + ext
	}

	res, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(data), filename, mimeType),
		Model:    openai.AudioModel(s.transcriptionModel),
		Language: openai.String(s.language),
	})
	if err != nil {
		return "", errs.Wrap(err, errs.CodeSpeechFailed, "transcription failed")
	}
	slog.DebugContext(ctx, "Transcribed audio", "file", filename, "mime", mimeType, "chars", len(res.Text))
	return res.Text, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
