package session

import (
	"strings"
	"time"
)

// Role 标识对话中一条消息的发送方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode 标识当前由哪个功能接管自由文本输入。
type Mode string

const (
	ModeMain     Mode = "main"
	ModeGPT      Mode = "gpt"
	ModeTalk     Mode = "talk"
	ModeQuiz     Mode = "quiz"
	ModeBusiness Mode = "business"
	ModeFact     Mode = "fact"
)

const talkPrefix = string(ModeTalk) + ":"

// TalkMode returns the mode owned by a chosen persona.
func TalkMode(personaID string) Mode {
	return Mode(talkPrefix + personaID)
}

// IsTalk reports whether the mode belongs to the talk feature, with or without a persona.
func (m Mode) IsTalk() bool {
	return m == ModeTalk || strings.HasPrefix(string(m), talkPrefix)
}

// Persona returns the persona id of a talk mode, or "".
func (m Mode) Persona() string {
	if !strings.HasPrefix(string(m), talkPrefix) {
		return ""
	}
	return strings.TrimPrefix(string(m), talkPrefix)
}

// ImageMarker 标记提交到会话记录中的图片消息。
const ImageMarker = "[изображение]"

// Turn is one entry of the transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ImageURL 仅在请求内携带（data URL），不会写入会话记录。
	ImageURL string `json:"-"`
}

// Committed returns the turn as it is kept in the transcript: the inline image is
// dropped and replaced by ImageMarker in front of the caption.
func (t Turn) Committed() Turn {
	if t.ImageURL == "" {
		return t
	}
	t.ImageURL = ""
	if t.Content == "" {
		t.Content = ImageMarker
	} else {
		t.Content = ImageMarker + " " + t.Content
	}
	return t
}

// Score 记录测验得分。
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// State is a copy of one chat's conversational state.
type State struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chatId"`
	Mode       Mode      `json:"mode"`
	Topic      string    `json:"topic,omitempty"`
	Score      Score     `json:"score"`
	Transcript []Turn    `json:"transcript"`
	Generation uint64    `json:"generation"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeen   time.Time `json:"lastSeen"`
}

// Summary 是管理接口使用的会话概要。
type Summary struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chatId"`
	Mode      Mode      `json:"mode"`
	Topic     string    `json:"topic,omitempty"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}
