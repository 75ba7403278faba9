package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubExec struct {
	calls []string
	err   error
}

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	return s.err
}

func (s *stubExec) AddJournalist(context.Context) error   { return s.record("add") }
func (s *stubExec) ResetPassword(context.Context) error   { return s.record("password") }
func (s *stubExec) Reset2FA(context.Context) error        { return s.record("2fa") }
func (s *stubExec) CreateSourceKey(context.Context) error { return s.record("create") }
func (s *stubExec) DeleteSourceKey(context.Context) error { return s.record("delete") }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	old := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = old })
	return &lines
}

func TestRunREPL_Dispatch(t *testing.T) {
	out := captureOutput(t)
	s := &stubExec{}

	runREPL(context.Background(), s, rdr("help\nadd-journalist\n\nreset-password\nreset-2fa\ncreate-source-key\ndelete-source-key\nbogus\nexit\nadd-journalist\n"))

	assert.Equal(t, []string{"add", "password", "2fa", "create", "delete"}, s.calls)
	assert.Contains(t, *out, helpText)
	assert.Contains(t, *out, "Unknown command: bogus")
	assert.Contains(t, *out, "Bye!")
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)
	s := &stubExec{err: errors.New("nope")}

	runREPL(context.Background(), s, rdr("reset-2fa\ncreate-source-key"))

	assert.Equal(t, []string{"2fa", "create"}, s.calls)
	assert.Contains(t, *out, "Error: nope")
}

func TestCommandFromArgs(t *testing.T) {
	assert.Equal(t, "reset-2fa", CommandFromArgs([]string{"-d", "postgres://x", "reset-2fa"}))
	assert.Equal(t, "", CommandFromArgs([]string{"-d", "memory://"}))
}
