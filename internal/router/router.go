// Package router picks the feature handler for an inbound update.
package router

import (
	"strings"

	"github.com/zhouzirui/gptbot/internal/model/session"
)

// Kind 表示入站更新的形态。
type Kind int

const (
	KindCommand Kind = iota + 1
	KindText
	KindVoice
	KindPhoto
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindPhoto:
		return "photo"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Update is the routing-relevant shape of an inbound update.
// Payload holds the command name without the slash, or the callback data.
type Update struct {
	Kind    Kind
	Payload string
}

// Target names a feature handler.
type Target string

const (
	None     Target = ""
	Start    Target = "start"
	GPT      Target = "gpt"
	Talk     Target = "talk"
	Quiz     Target = "quiz"
	Business Target = "business"
	Fact     Target = "fact"
)

// Callback payloads with special routing.
const (
	CallbackMainMenu       = "main_menu"
	CallbackNewFact        = "new_fact"
	CallbackNewFactNoPhoto = "new_fact_no_photo"
)

var commands = map[string]Target{
	"start":    Start,
	"help":     Start,
	"gpt":      GPT,
	"talk":     Talk,
	"quiz":     Quiz,
	"business": Business,
	"fact":     Fact,
}

// 按前缀匹配的回调，顺序无关：各前缀互不为前缀。
var callbackPrefixes = []struct {
	prefix string
	target Target
}{
	{"gpt_", GPT},
	{"business_", Business},
	{"quiz_", Quiz},
	{"talk_", Talk},
}

// Route returns exactly one target for (mode, update). It never reads state.
func Route(mode session.Mode, u Update) Target {
	switch u.Kind {
	case KindCommand:
		return commands[strings.ToLower(u.Payload)]
	case KindCallback:
		return routeCallback(u.Payload)
	case KindText, KindVoice:
		return routeFreeText(mode)
	case KindPhoto:
		if mode == session.ModeGPT {
			return GPT
		}
		return None
	default:
		return None
	}
}

func routeCallback(data string) Target {
	switch data {
	case CallbackNewFact, CallbackNewFactNoPhoto:
		return Fact
	case CallbackMainMenu:
		return Start
	}
	for _, p := range callbackPrefixes {
		if strings.HasPrefix(data, p.prefix) {
			return p.target
		}
	}
	return None
}

func routeFreeText(mode session.Mode) Target {
	switch {
	case mode == session.ModeGPT:
		return GPT
	case mode.IsTalk():
		return Talk
	case mode == session.ModeQuiz:
		return Quiz
	case mode == session.ModeBusiness:
		return Business
	default:
		return None
	}
}
