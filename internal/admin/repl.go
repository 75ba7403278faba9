package admin

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

type execIface interface {
	AddJournalist(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	Reset2FA(ctx context.Context) error
	CreateSourceKey(ctx context.Context) error
	DeleteSourceKey(ctx context.Context) error
}

const helpText = "Available commands: add-journalist, reset-password, reset-2fa, create-source-key, delete-source-key, exit"

// dispatch runs one command. It returns false for an unknown command.
func dispatch(ctx context.Context, a execIface, cmd string) (bool, error) {
	switch cmd {
	case "add-journalist":
		return true, a.AddJournalist(ctx)
	case "reset-password":
		return true, a.ResetPassword(ctx)
	case "reset-2fa":
		return true, a.Reset2FA(ctx)
	case "create-source-key":
		return true, a.CreateSourceKey(ctx)
	case "delete-source-key":
		return true, a.DeleteSourceKey(ctx)
	default:
		return false, nil
	}
}

var commands = map[string]struct{}{
	"add-journalist":    {},
	"reset-password":    {},
	"reset-2fa":         {},
	"create-source-key": {},
	"delete-source-key": {},
}

// CommandFromArgs returns the first argument naming a console command, or
// "" when there is none. Flags and their values are skipped.
func CommandFromArgs(args []string) string {
	for _, arg := range args {
		if _, ok := commands[arg]; ok {
			return arg
		}
	}
	return ""
}

// runREPL reads commands line by line until EOF, "exit" or "quit".
// Command errors are printed and the loop continues. Commands prompt on
// the same reader, so lines are read without a separate scanner buffer.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader) {
	for {
		printlnFn("dk-admin> ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			known, err := dispatch(ctx, a, cmd)
			if !known {
				printlnFn("Unknown command:", cmd)
			} else if err != nil {
				printlnFn("Error:", err.Error())
			}
		}
	}
}

// Run executes cmd, or starts the interactive console when cmd is empty.
func (a *App) Run(ctx context.Context, cmd string) error {
	defer a.Close()

	if cmd == "" {
		printlnFn(helpText)
		runREPL(ctx, a, a.reader)
		return nil
	}

	known, err := dispatch(ctx, a, cmd)
	if !known {
		return fmt.Errorf("unknown command %q\n%s", cmd, helpText)
	}
	return err
}
