// Package query parses raw search text into free-text terms and
// key:value structured filters.
package query

import "strings"

// Parsed is the outcome of parsing one raw query string.
type Parsed struct {
	// Terms are free-text terms in input order.
	Terms []string
	// Filters maps lowercased filter keys to values. A repeated key keeps
	// the last occurrence.
	Filters map[string]string
}

// HasTerms reports whether at least one free-text term was parsed.
// Tier escalation requires this.
func (p Parsed) HasTerms() bool { return len(p.Terms) > 0 }

// JoinedTerms returns the free-text terms joined by single spaces,
// which is what the lexical tier searches for.
func (p Parsed) JoinedTerms() string { return strings.Join(p.Terms, " ") }

// token is one whitespace-delimited span with quote bookkeeping.
type token struct {
	text       string // raw text including quote characters
	colonIndex int    // index of the first unquoted colon, -1 if none
}

// Parse splits raw query text into free-text terms and key:value filters.
// Double-quoted spans are atomic: whitespace inside quotes does not split
// and a colon inside quotes never starts a filter. A token containing an
// unquoted colon is split at the first colon into a lowercased key and a
// value with quotes stripped; tokens with an empty key or value stay
// free text.
func Parse(raw string) Parsed {
	p := Parsed{Filters: make(map[string]string)}

	for _, tok := range tokenize(raw) {
		if tok.colonIndex >= 0 {
			key := strings.ToLower(stripQuotes(tok.text[:tok.colonIndex]))
			val := stripQuotes(tok.text[tok.colonIndex+1:])
			if key != "" && val != "" {
				p.Filters[key] = val
				continue
			}
		}
		if term := stripQuotes(tok.text); term != "" {
			p.Terms = append(p.Terms, term)
		}
	}

	return p
}

// tokenize splits raw on whitespace, treating double-quoted spans as atomic.
// An unterminated quote runs to the end of the input.
func tokenize(raw string) []token {
	var (
		tokens  []token
		current strings.Builder
		inQuote bool
		colonAt = -1
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, token{text: current.String(), colonIndex: colonAt})
		}
		current.Reset()
		colonAt = -1
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuote = !inQuote
			current.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			if r == ':' && !inQuote && colonAt < 0 {
				colonAt = current.Len()
			}
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}

func stripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
