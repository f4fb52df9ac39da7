package session

import "testing"

func TestTalkModeHelpers(t *testing.T) {
	cases := []struct {
		mode    Mode
		isTalk  bool
		persona string
	}{
		{mode: ModeTalk, isTalk: true, persona: ""},
		{mode: TalkMode("hawking"), isTalk: true, persona: "hawking"},
		{mode: ModeGPT, isTalk: false, persona: ""},
		{mode: Mode("talkative"), isTalk: false, persona: ""},
	}

	for _, tc := range cases {
		if got := tc.mode.IsTalk(); got != tc.isTalk {
			t.Errorf("%q.IsTalk() = %v, want %v", tc.mode, got, tc.isTalk)
		}
		if got := tc.mode.Persona(); got != tc.persona {
			t.Errorf("%q.Persona() = %q, want %q", tc.mode, got, tc.persona)
		}
	}
}

func TestTurnCommitted(t *testing.T) {
	cases := []struct {
		name string
		turn Turn
		want string
	}{
		{name: "text", turn: Turn{Role: RoleUser, Content: "привет"}, want: "привет"},
		{name: "caption", turn: Turn{Role: RoleUser, Content: "что это?", ImageURL: "data:image/png;base64,AAAA"}, want: "[изображение] что это?"},
		{name: "no caption", turn: Turn{Role: RoleUser, ImageURL: "data:image/png;base64,AAAA"}, want: "[изображение]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.turn.Committed()
			if got.ImageURL != "" || got.Content != tc.want {
				t.Fatalf("Committed() = %+v, want content %q", got, tc.want)
			}
		})
	}
}
