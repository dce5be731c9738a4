package main

import (
	"bzr/internal/evaluator"
	"bzr/internal/lexer"
	"bzr/internal/object"
	"bzr/internal/parser"
	"bzr/internal/util"
	"errors"
	"fmt"
	"io"
)

// runSource parses and evaluates one file and returns the process exit code.
func runSource(e *evaluator.Evaluator, src, filename, debugAST string, stdout, stderr io.Writer) int {
	p := parser.New(lexer.New(src, filename))
	program := p.ParseProgram()

	if debugAST != "" {
		if err := parser.RenderAST(stdout, program, debugAST); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}

	if diagnostics := p.Diagnostics(); len(diagnostics) > 0 {
		for _, d := range diagnostics {
			fmt.Fprintf(stderr, "%s\n%s\n\n", d, util.GetContextLines(src, d.Location.Line, d.Location.Column))
		}
		fmt.Fprintf(stderr, "%d error(s) in %s\n", len(diagnostics), filename)
		return 1
	}

	result, err := e.Run(program, object.NewEnvironment())
	switch {
	case err == nil, errors.Is(err, evaluator.ErrNoValue):
		return 0
	case errors.Is(err, evaluator.ErrParseErrors):
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	default:
		fmt.Fprintf(stderr, "error: %s\n", result.Inspect())
		return 1
	}
}
