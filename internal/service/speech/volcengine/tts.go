package volcengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultTTSEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	defaultTTSVoice    = "multi_female_shuangkuaisisi_moon_bigtts"

	resourceDefault = "volc.service_type.10029"
	resourceMega    = "volc.megatts.default"
	resourceSeed    = "seed-tts-2.0"
)

var errResourceMismatch = errors.New("resource ID is mismatched with speaker related resource")

// TTSConfig 语音合成配置
type TTSConfig struct {
	Credentials
	Endpoint string
	Voice    string
	Language string
}

// TTSClient synthesizes MP3 audio over the unidirectional stream API.
type TTSClient struct {
	cfg    TTSConfig
	dialer *websocket.Dialer
	logger *logrus.Entry
}

// NewTTSClient 创建火山引擎 TTS 客户端
func NewTTSClient(cfg TTSConfig) *TTSClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultTTSEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "ru"
	}
	return &TTSClient{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logrus.WithField("component", "volcengine-tts"),
	}
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

type ttsServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

// Synthesize 依次尝试候选音色与资源 ID，直到合成成功。
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("TTS text is empty")
	}

	var lastErr error
	for _, speaker := range speakerCandidates(c.cfg.Voice, defaultTTSVoice) {
		for _, resourceID := range resourceCandidates(speaker) {
			audio, err := c.synthesize(ctx, text, speaker, resourceID)
			if err == nil {
				return audio, nil
			}
			if !isResourceMismatch(err) {
				return nil, err
			}
			c.logger.WithFields(logrus.Fields{"speaker": speaker, "resource": resourceID}).WithError(err).Debug("resource mismatch, trying next")
			lastErr = err
		}
	}

	return nil, fmt.Errorf("TTS synthesis failed: %w", lastErr)
}

func (c *TTSClient) synthesize(ctx context.Context, text, speaker, resourceID string) ([]byte, error) {
	connectID := uuid.NewString()
	header, err := c.cfg.header(resourceID, connectID)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var req ttsRequest
	req.User.UID = connectID
	req.ReqParams.Speaker = speaker
	req.ReqParams.Text = text
	req.ReqParams.Language = c.cfg.Language
	req.ReqParams.AudioParams = ttsAudioParams{Format: "mp3", SampleRate: 24000}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	request, err := newClientRequest(payload, CompressionNone)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, request); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		frame, err := ParseFrame(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		body, err := frame.Body()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		switch frame.Type {
		case ErrorMessage:
			if strings.Contains(string(body), errResourceMismatch.Error()) {
				return nil, fmt.Errorf("%w: %s", errResourceMismatch, string(body))
			}
			return nil, fmt.Errorf("TTS error %d: %s", frame.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			audio.Write(body)

		case FullServerResponse:
			var msg ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err != nil {
					c.logger.WithError(err).Warn("failed to unmarshal TTS response")
				} else {
					if msg.Code != 0 && msg.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := frame.hasEvent() && frame.Event == EventSessionFinished
			if finished || frame.Last() || msg.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, errors.New("TTS audio is empty")
				}
				return audio.Bytes(), nil
			}
		}
	}
}

// resourceCandidates 根据音色推断可用的资源 ID。
func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{resourceMega}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "moon", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{resourceSeed, resourceDefault}
		}
	}
	return []string{resourceDefault, resourceSeed}
}

// speakerCandidates 返回去重后的音色列表，配置的音色优先。
func speakerCandidates(requested, fallback string) []string {
	var out []string
	for _, s := range []string{requested, fallback} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

func isResourceMismatch(err error) bool {
	return errors.Is(err, errResourceMismatch)
}
