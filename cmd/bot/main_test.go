package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/zhouzirui/gptbot/internal/config"
)

func TestServeFailsWithoutBotToken(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "")
	t.Setenv("CHATGPT_TOKEN", "sk-test")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestExitOnErrorLogsFatal(t *testing.T) {
	logger := logrus.StandardLogger()
	hook := logtest.NewLocal(logger)
	defer hook.Reset()

	var code int
	prevExit := logger.ExitFunc
	logger.ExitFunc = func(c int) { code = c }
	defer func() { logger.ExitFunc = prevExit }()

	exitOnError(fmt.Errorf("load config: %w", config.ErrMissingCredential))

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.FatalLevel {
		t.Fatalf("expected fatal entry, got %+v", entry)
	}
	if !errors.Is(entry.Data[logrus.ErrorKey].(error), config.ErrMissingCredential) {
		t.Fatalf("unexpected error field: %v", entry.Data[logrus.ErrorKey])
	}
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	hook.Reset()
	exitOnError(nil)
	if hook.LastEntry() != nil {
		t.Fatal("nil error must not be logged")
	}
}

func TestRootSilencesCobraErrors(t *testing.T) {
	if !newRootCmd().SilenceErrors {
		t.Fatal("errors are reported through logrus, cobra must not print them")
	}
}

func TestPromptsCommandPrintsCatalogue(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"prompts"})
	cmd.SetOut(&out)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("prompts err: %v", err)
	}
	for _, want := range []string{"personas:", "id: cobain", "quiz_topics:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}
