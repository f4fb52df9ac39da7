package volcengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultASREndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	defaultASRResource = "volc.bigasr.sauc.duration"
	// 16kHz, 16bit, mono, 200ms
	asrChunkSize = 6400
)

// ErrMissingCredentials 表示缺少 AppID 或 AccessToken。
var ErrMissingCredentials = errors.New("volcengine speech credentials missing")

// Credentials 火山引擎鉴权信息
type Credentials struct {
	AppID       string
	AccessToken string
}

func (c Credentials) header(resourceID, connectID string) (http.Header, error) {
	appID := strings.TrimSpace(c.AppID)
	token := strings.TrimSpace(c.AccessToken)
	if appID == "" || token == "" {
		return nil, ErrMissingCredentials
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)
	return header, nil
}

// ASRConfig 语音识别配置
type ASRConfig struct {
	Credentials
	Endpoint   string
	ResourceID string
	Language   string
	// ChunkInterval 控制音频包发送间隔，模拟实时音频流。
	ChunkInterval time.Duration
}

// ASRClient recognizes a complete 16 kHz mono WAV clip.
type ASRClient struct {
	cfg    ASRConfig
	dialer *websocket.Dialer
	logger *logrus.Entry
}

// NewASRClient 创建火山引擎 ASR 客户端
func NewASRClient(cfg ASRConfig) *ASRClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultASREndpoint
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = defaultASRResource
	}
	if cfg.Language == "" {
		cfg.Language = "ru-RU"
	}
	return &ASRClient{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logrus.WithField("component", "volcengine-asr"),
	}
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text string `json:"text"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
}

func (c *ASRClient) buildRequest(uid string) asrRequest {
	var req asrRequest
	req.User.UID = uid
	req.Audio.Language = c.cfg.Language
	req.Audio.Format = "wav"
	req.Audio.Codec = "raw"
	req.Audio.Rate = 16000
	req.Audio.Bits = 16
	req.Audio.Channel = 1
	req.Request.ModelName = "bigmodel"
	req.Request.EnableITN = true
	req.Request.EnablePunc = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full"
	req.Request.EndWindowSize = 800
	return req
}

// Recognize 发送完整音频并等待最终识别结果。
func (c *ASRClient) Recognize(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", errors.New("no audio data to send")
	}

	connectID := uuid.NewString()
	header, err := c.cfg.header(c.cfg.ResourceID, connectID)
	if err != nil {
		return "", err
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, header)
	if err != nil {
		return "", fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	defer conn.Close()

	logger := c.logger.WithField("connect_id", connectID)
	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			logger = logger.WithField("logid", logid)
		}
	}

	payload, err := json.Marshal(c.buildRequest(connectID))
	if err != nil {
		return "", fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	request, err := newClientRequest(payload, CompressionGzip)
	if err != nil {
		return "", err
	}
	if err := writeFrame(conn, request); err != nil {
		return "", fmt.Errorf("failed to send ASR request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// ReadMessage 不感知 ctx，取消时关闭连接以解除阻塞
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	type outcome struct {
		text string
		err  error
	}
	recvCh := make(chan outcome, 1)
	go func() {
		text, err := c.receive(conn, logger)
		recvCh <- outcome{text: text, err: err}
	}()

	// 服务端可能在发送途中就返回错误，因此发送与接收并发进行
	sendCh := make(chan error, 1)
	go func() {
		sendCh <- c.sendAudio(ctx, conn, wav)
	}()

	for {
		select {
		case err := <-sendCh:
			if err != nil {
				return "", fmt.Errorf("failed to send audio data: %w", err)
			}
			sendCh = nil
		case out := <-recvCh:
			return out.text, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (c *ASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, wav []byte) error {
	// FullClientRequest 占用序号 1，音频从 2 开始
	sequence := int32(2)

	for start := 0; start < len(wav); start += asrChunkSize {
		end := min(start+asrChunkSize, len(wav))
		last := end == len(wav)

		frame, err := newAudioFrame(wav[start:end], sequence, last)
		if err != nil {
			return fmt.Errorf("failed to compress audio chunk: %w", err)
		}
		if err := writeFrame(conn, frame); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		if last {
			return nil
		}
		sequence++

		if c.cfg.ChunkInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ChunkInterval):
			}
		}
	}
	return nil
}

func (c *ASRClient) receive(conn *websocket.Conn, logger *logrus.Entry) (string, error) {
	var text string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("failed to read ASR response: %w", err)
		}

		frame, err := ParseFrame(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode ASR message: %w", err)
		}

		switch frame.Type {
		case ErrorMessage:
			body, _ := frame.Body()
			return "", fmt.Errorf("ASR error %d: %s", frame.ErrorCode, string(body))

		case FullServerResponse:
			body, err := frame.Body()
			if err != nil {
				return "", fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var msg asrServerMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				logger.WithError(err).Warn("failed to unmarshal ASR response")
				continue
			}
			if msg.Code != 0 && msg.Code != 20000000 {
				return "", fmt.Errorf("ASR API error %d: %s", msg.Code, msg.Message)
			}

			if candidate := msg.Result.Text; candidate != "" {
				text = candidate
			} else if len(msg.Result.Utterances) > 0 {
				text = joinUtterances(msg.Result.Utterances)
			}

			if frame.Last() || msg.Sequence < 0 {
				if text == "" {
					logger.Debug("empty transcript")
				}
				return strings.TrimSpace(text), nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, " ")
}

func writeFrame(conn *websocket.Conn, frame *Frame) error {
	data, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
