package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/ecodercc5/carlae/pkg/interpreter"
	"github.com/ecodercc5/carlae/pkg/parser"
	"github.com/ecodercc5/carlae/pkg/runtime"
)

// session holds the interpreter state threaded across REPL lines.
type session struct {
	interp *interpreter.Interpreter
	env    *runtime.Environment
}

func newSession() *session {
	interp := interpreter.New()
	return &session{
		interp: interp,
		env:    runtime.NewEnvironment(interp.GlobalEnvironment()),
	}
}

// Eval runs one line of input and renders the resulting value. Definitions
// persist into later lines through the shared environment. Blank and
// comment-only lines produce no output.
func (s *session) Eval(line string) (string, error) {
	if len(parser.Tokenize(line)) == 0 {
		return "", nil
	}
	value, env, err := s.interp.RunProgram(line, s.env)
	s.env = env
	if err != nil {
		return "", err
	}
	return formatValue(value), nil
}

func runREPL() int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := replHistoryPath()
	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}

	sess := newSession()
	for {
		input, err := line.Prompt("in> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(os.Stdout)
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "read input: %v\n", err)
			return 1
		}
		if input == "EXIT" {
			break
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		result, err := sess.Eval(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			continue
		}
		if result == "" {
			continue
		}
		fmt.Fprintf(os.Stdout, "out> %s\n", result)
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}
	return 0
}

func replHistoryPath() string {
	home, err := resolveCarlaeHome()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return ""
	}
	return filepath.Join(home, "history")
}
