package util

import (
	"fmt"
	"strings"
)

// contextBefore is how many lines are shown above the offending one.
const contextBefore = 2

// GetContextLines renders the lines leading up to line (1-based) with a caret
// under column. Columns count runes, like the lexer does.
func GetContextLines(src string, line, column int) string {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	var out strings.Builder

	start := max(line-contextBefore, 1)
	for i := start; i < line; i++ {
		fmt.Fprintf(&out, "     %3d | %s\n", i, lines[i-1])
	}

	content := lines[line-1]
	margin := fmt.Sprintf("  >  %3d | ", line)
	fmt.Fprintf(&out, "%s%s\n", margin, content)

	runes := []rune(content)
	prefix := min(max(column-1, 0), len(runes))
	out.WriteString(replaceVisibleWithSpaces(margin + string(runes[:prefix])))
	out.WriteString("^ unexpected here")

	return out.String()
}

// replaceVisibleWithSpaces blanks s out while keeping its tabs, so a caret
// printed after it lines up with the text above.
func replaceVisibleWithSpaces(s string) string {
	var buf strings.Builder
	for _, c := range s {
		if c == '\t' {
			buf.WriteRune('\t')
		} else {
			buf.WriteRune(' ')
		}
	}
	return buf.String()
}
