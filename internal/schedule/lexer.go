package schedule

import (
	"time"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokMonth tokenKind = iota
	tokInt
	tokDelim
	tokWord
	tokOther
)

// token is one lexeme of a schedule line. pos and end are byte offsets
// into the source so the parser can measure gaps and slice remainders.
type token struct {
	kind  tokenKind
	text  string
	pos   int
	end   int
	month time.Month // tokMonth
	value int        // tokInt
}

// maxDayDigits is the longest digit run that can be a day or month.
const maxDayDigits = 2

// lex splits s into tokens, skipping whitespace. Letter runs that name a
// month (optionally followed by ".") become tokMonth.
func lex(s string, tables Tables) []token {
	var toks []token
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case r >= '0' && r <= '9':
			j, v := i, 0
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				if j-i < 9 {
					v = v*10 + int(s[j]-'0')
				}
				j++
			}
			toks = append(toks, token{kind: tokInt, text: s[i:j], pos: i, end: j, value: v})
			i = j

		case r == '-' || r == '&' || r == '/':
			toks = append(toks, token{kind: tokDelim, text: string(r), pos: i, end: i + size})
			i += size

		case unicode.IsLetter(r):
			j := i
			for j < len(s) {
				r2, sz := utf8.DecodeRuneInString(s[j:])
				if !unicode.IsLetter(r2) {
					break
				}
				j += sz
			}
			tok := token{kind: tokWord, text: s[i:j], pos: i, end: j}
			if m, ok := tables.LookupMonth(tok.text); ok {
				tok.kind = tokMonth
				tok.month = m
				if j < len(s) && s[j] == '.' {
					j++
					tok.end = j
				}
			}
			toks = append(toks, tok)
			i = j

		default:
			toks = append(toks, token{kind: tokOther, text: string(r), pos: i, end: i + size})
			i += size
		}
	}
	return toks
}
