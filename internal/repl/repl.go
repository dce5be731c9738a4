package repl

import (
	"bzr/internal/evaluator"
	"bzr/internal/lexer"
	"bzr/internal/object"
	"bzr/internal/parser"
	"bzr/internal/token"
	"bzr/internal/util"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

const (
	PROMPT       = ">> "
	CONTINUATION = ".. "
	HistoryFile  = util.HistoryFileName
)

// Repl evaluates each entry in one environment that lives for the whole session.
type Repl struct {
	evaluator   *evaluator.Evaluator
	env         *object.Environment
	out         io.Writer
	historyPath string
}

// New creates a REPL. An empty historyPath means ~/.bzr_history.
func New(e *evaluator.Evaluator, out io.Writer, historyPath string) *Repl {
	if historyPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			historyPath = filepath.Join(home, HistoryFile)
		}
	}
	return &Repl{
		evaluator:   e,
		env:         object.NewEnvironment(),
		out:         out,
		historyPath: historyPath,
	}
}

// Start reads entries until end of input or :quit.
func (r *Repl) Start() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	r.readHistory(ln)
	defer r.writeHistory(ln)

	for {
		src, ok := readEntry(ln)
		if !ok {
			fmt.Fprintln(r.out)
			return nil
		}

		switch strings.TrimSpace(src) {
		case "":
			continue
		case ":quit":
			return nil
		}

		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		r.Eval(src)
	}
}

// Eval runs one entry and prints its value, its diagnostics or its runtime error.
func (r *Repl) Eval(src string) {
	p := parser.New(lexer.New(src, "repl"))
	program := p.ParseProgram()

	result, err := r.evaluator.Run(program, r.env)
	switch {
	case errors.Is(err, evaluator.ErrParseErrors):
		printParserErrors(r.out, program.Errors)
	case errors.Is(err, evaluator.ErrNoValue):
	case err != nil:
		fmt.Fprintf(r.out, "error: %s\n", result.Inspect())
	default:
		fmt.Fprintln(r.out, result.Inspect())
	}
}

// readEntry keeps prompting while brackets are left open. The second result
// is false once input has ended.
func readEntry(ln *liner.State) (string, bool) {
	var b strings.Builder

	for {
		prompt := PROMPT
		if b.Len() > 0 {
			prompt = CONTINUATION
		}

		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			slog.Warn("failed to read input", slog.Any("error", err))
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if Complete(b.String()) {
			return b.String(), true
		}
	}
}

// Complete reports whether src closes every (, [ and { it opens. Extra closers
// count as complete so the parser can report them.
func Complete(src string) bool {
	l := lexer.New(src, "repl")
	depth := 0
	for tok := l.NextToken(); tok.Type != token.EOF; tok = l.NextToken() {
		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
		}
	}
	return depth <= 0
}

func (r *Repl) readHistory(ln *liner.State) {
	if r.historyPath == "" {
		return
	}
	f, err := os.Open(r.historyPath)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := ln.ReadHistory(f); err != nil {
		slog.Debug("could not read history", slog.String("path", r.historyPath), slog.Any("error", err))
	}
}

func (r *Repl) writeHistory(ln *liner.State) {
	if r.historyPath == "" {
		return
	}
	f, err := os.Create(r.historyPath)
	if err != nil {
		slog.Warn("could not save history", slog.String("path", r.historyPath), slog.Any("error", err))
		return
	}
	defer f.Close()
	_, _ = ln.WriteHistory(f)
}

func printParserErrors(out io.Writer, errors []string) {
	io.WriteString(out, "parser errors:\n")
	for _, msg := range errors {
		io.WriteString(out, "\t"+msg+"\n")
	}
}
