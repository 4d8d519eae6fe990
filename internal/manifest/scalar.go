package manifest

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("string is not valid UTF-8")

// plainUnsafe lists characters that force a quoted scalar anywhere in the
// string.
const plainUnsafe = "#:-[]{},&*!|>%@`'\"?"

var reservedWords = map[string]struct{}{
	"true": {}, "false": {}, "yes": {}, "no": {}, "on": {}, "off": {},
	"y": {}, "n": {}, "null": {}, "~": {}, "<<": {},
}

// formatScalar renders s as a manifest value. indent is the column of the
// key (or sequence dash) the value belongs to; block-literal content is
// placed two columns deeper.
func formatScalar(s string, indent int) (string, error) {
	if !utf8.ValidString(s) {
		return "", errInvalidUTF8
	}
	if strings.ContainsRune(s, '\n') {
		if literalSafe(s) {
			return blockLiteral(s, indent), nil
		}
		return doubleQuoted(s), nil
	}
	if needsEscapes(s) {
		return doubleQuoted(s), nil
	}
	if needsQuoting(s) {
		if strings.ContainsRune(s, '"') {
			return doubleQuoted(s), nil
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	}
	return s, nil
}

// needsQuoting reports whether s, written plain, would be misread or would
// resolve to something other than a string.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	if strings.ContainsAny(s, plainUnsafe) {
		return true
	}
	switch c := s[0]; {
	case c >= '0' && c <= '9', c == '.', c == '+':
		return true
	}
	_, reserved := reservedWords[strings.ToLower(s)]
	return reserved
}

// needsEscapes reports whether s holds a character that only the
// double-quoted style can carry.
func needsEscapes(s string) bool {
	for _, r := range s {
		if r == '\t' || !printable(r) {
			return true
		}
	}
	return false
}

// printable follows the structured-text printable set, excluding the
// characters a reader may treat as line breaks or a byte order mark.
func printable(r rune) bool {
	switch {
	case r == 0x85, r == 0x2028, r == 0x2029, r == 0xFEFF:
		return false
	case r >= 0x20 && r <= 0x7E:
		return true
	case r >= 0xA0 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

func doubleQuoted(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			switch {
			case printable(r):
				b.WriteRune(r)
			case r < 0x100:
				fmt.Fprintf(&b, `\x%02X`, r)
			case r < 0x10000:
				fmt.Fprintf(&b, `\u%04X`, r)
			default:
				fmt.Fprintf(&b, `\U%08X`, r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// literalSafe reports whether a multi-line string survives the block-literal
// style unchanged. Leading indentation on the first content line and
// whitespace-only lines at either end would be absorbed by indentation
// detection or chomping.
func literalSafe(s string) bool {
	for _, r := range s {
		if r != '\n' && r != '\t' && !printable(r) {
			return false
		}
	}
	body := strings.TrimRight(s, "\n")
	lines := strings.Split(body, "\n")

	first := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			if l != "" {
				return false
			}
			continue
		}
		first = i
		break
	}
	if first < 0 {
		return false
	}
	if c := lines[first][0]; c == ' ' || c == '\t' {
		return false
	}
	last := lines[len(lines)-1]
	return strings.TrimSpace(last) != "" || last == ""
}

// blockLiteral renders s with a chomping indicator that reproduces its
// trailing newlines exactly: "|-" for none, "|" for one, "|+" for more.
func blockLiteral(s string, indent int) string {
	body := strings.TrimRight(s, "\n")
	trailing := len(s) - len(body)

	var b strings.Builder
	switch trailing {
	case 0:
		b.WriteString("|-")
	case 1:
		b.WriteString("|")
	default:
		b.WriteString("|+")
	}

	pad := strings.Repeat(" ", indent+2)
	for _, line := range strings.Split(body, "\n") {
		b.WriteByte('\n')
		if line != "" {
			b.WriteString(pad)
			b.WriteString(line)
		}
	}
	for i := 1; i < trailing; i++ {
		b.WriteByte('\n')
	}
	return b.String()
}
