package shell

import (
	"strings"
	"unicode"
)

// Tokenize splits a command line on whitespace. Single quotes keep their
// content verbatim; double quotes also understand \n, \t, \" and \\, and any
// other escaped character stands for itself. Empty tokens are dropped and an
// unterminated quote runs to the end of the line.
func Tokenize(line string) []string {
	const (
		bare = iota
		single
		double
	)

	var (
		out  []string
		cur  strings.Builder
		mode = bare
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch mode {
		case bare:
			switch {
			case unicode.IsSpace(ch):
				flush()
			case ch == '\'':
				mode = single
			case ch == '"':
				mode = double
			default:
				cur.WriteRune(ch)
			}

		case single:
			if ch == '\'' {
				mode = bare
			} else {
				cur.WriteRune(ch)
			}

		case double:
			switch ch {
			case '"':
				mode = bare
			case '\\':
				if i+1 >= len(runes) {
					continue
				}
				i++
				switch next := runes[i]; next {
				case 'n':
					cur.WriteByte('\n')
				case 't':
					cur.WriteByte('\t')
				default:
					cur.WriteRune(next)
				}
			default:
				cur.WriteRune(ch)
			}
		}
	}
	flush()
	return out
}
