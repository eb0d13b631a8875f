package extractor

import (
	"strings"
	"unicode"
)

// NormalizeDecorator splits decorator text into its dotted callable name and
// the raw text of its call arguments. A leading '@' is accepted. It never
// fails: unreadable text is returned with Malformed set and Name holding
// the trimmed text.
func NormalizeDecorator(raw string) Annotation {
	a := Annotation{Kind: AnnotationDecorator, Raw: raw}

	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if text == "" || !balanced(text) {
		a.Name = text
		a.Malformed = true
		return a
	}

	end := decoratorHeadEnd(text)
	if end == 0 {
		a.Name = text
		a.Malformed = true
		return a
	}
	a.Name = text[:end]

	rest := strings.TrimSpace(text[end:])
	if rest == "" {
		return a
	}
	// Only a single trailing call is understood; any other expression,
	// such as "app." or "a.b(1).c", keeps its full text.
	if !strings.HasPrefix(rest, "(") || matchingClose(rest, '(', ')') != len(rest)-1 {
		a.Name = text
		a.Malformed = true
		return a
	}
	a.RawArgs = strings.TrimSpace(rest[1 : len(rest)-1])
	return a
}

// NormalizeTypeHint canonicalizes whitespace in a parameter or return type
// hint. Leading ':' or '->' is stripped and string literals are kept verbatim.
func NormalizeTypeHint(raw string, kind AnnotationKind) Annotation {
	a := Annotation{Kind: kind, Raw: raw}

	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "->")
	text = strings.TrimPrefix(text, ":")
	text = strings.TrimSpace(text)

	a.Name = canonicalSpacing(text)
	a.Malformed = text == "" || !balanced(text)
	return a
}

// normalizeAnnotations replaces the raw annotations captured during
// traversal with their normalized form.
func normalizeAnnotations(symbols []*Symbol) {
	for _, s := range symbols {
		for i := range s.Decorators {
			s.Decorators[i] = NormalizeDecorator(s.Decorators[i].Raw)
		}
		for i := range s.Parameters {
			if hint := s.Parameters[i].TypeAnnotation; hint != nil {
				n := NormalizeTypeHint(hint.Raw, AnnotationParameter)
				s.Parameters[i].TypeAnnotation = &n
			}
		}
		if s.ReturnAnnotation != nil {
			n := NormalizeTypeHint(s.ReturnAnnotation.Raw, AnnotationReturn)
			s.ReturnAnnotation = &n
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// dottedNameEnd returns the byte length of the leading a.b.c name, or 0.
func dottedNameEnd(text string) int {
	end := 0
	expectStart := true
	for i, r := range text {
		switch {
		case expectStart && isIdentStart(r):
			expectStart = false
		case !expectStart && isIdentPart(r):
		case !expectStart && r == '.':
			expectStart = true
			continue
		default:
			return end
		}
		end = i + len(string(r))
	}
	return end
}

// decoratorHeadEnd returns the byte length of the leading decorator
// target: a dotted name with optional subscripts, as in
// "buttons[0].clicked.connect". It returns 0 when text does not start with
// a name.
func decoratorHeadEnd(text string) int {
	end := dottedNameEnd(text)
	if end == 0 {
		return 0
	}
	for end < len(text) && text[end] == '[' {
		j := matchingClose(text[end:], '[', ']')
		if j < 0 {
			return end
		}
		end += j + 1
		if end < len(text) && text[end] == '.' {
			next := dottedNameEnd(text[end+1:])
			if next == 0 {
				return end
			}
			end += 1 + next
		}
	}
	return end
}

// matchingClose returns the index of the bracket closing text[0], skipping
// quoted text.
func matchingClose(text string, left, right rune) int {
	depth := 0
	var quote rune
	escaped := false
	for i, r := range text {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case left:
			depth++
		case right:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// balanced reports whether brackets nest correctly and quotes are closed.
func balanced(text string) bool {
	var stack []rune
	var quote rune
	escaped := false
	for _, r := range text {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opener(r) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return quote == 0 && len(stack) == 0
}

func opener(r rune) rune {
	switch r {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}

// canonicalSpacing collapses whitespace runs to one space, drops spaces
// inside brackets and before commas, and puts one space after each comma.
func canonicalSpacing(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	var quote, prev rune
	escaped := false
	pendingSpace := false

	for _, r := range text {
		if quote != 0 {
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			prev = r
			continue
		}
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}

		space := pendingSpace || prev == ','
		switch {
		case prev == 0, strings.ContainsRune("([{", prev), strings.ContainsRune(")]},[", r):
			space = false
		}
		if space {
			b.WriteByte(' ')
		}

		if r == '\'' || r == '"' || r == '`' {
			quote = r
		}
		b.WriteRune(r)
		prev = r
		pendingSpace = false
	}
	return b.String()
}
