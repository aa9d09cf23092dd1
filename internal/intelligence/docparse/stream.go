package docparse

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Content stream text extraction
// ---------------------------------------------------------------------------

// reStringLiteral matches a PDF string literal, honoring backslash escapes so
// \( and \) inside the string do not end the match.
var reStringLiteral = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// leavesFromContent walks a decoded page content stream and returns the shown
// text as leaves in reading order. Show operators (Tj, TJ, ', ") append to
// the current leaf; positioning operators (Td, TD, T*) and ET terminate it,
// so one leaf roughly corresponds to one laid-out line.
func leavesFromContent(data []byte) []string {
	var leaves []string
	var cur strings.Builder

	flush := func() {
		if leaf := cleanLeaf(cur.String()); leaf != "" {
			leaves = append(leaves, leaf)
		}
		cur.Reset()
	}

	appendLiterals := func(line []byte) {
		for _, m := range reStringLiteral.FindAllSubmatch(line, -1) {
			cur.WriteString(decodeStringLiteral(m[1]))
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			appendLiterals(line)

		// ' and " move to the next line before showing, so they open a
		// fresh leaf.
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")),
			bytes.HasSuffix(line, []byte(`"`)) && bytes.Contains(line, []byte("(")):
			flush()
			appendLiterals(line)

		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			flush()
		}
	}
	flush()

	return leaves
}

// decodeStringLiteral resolves the escape sequences a PDF string literal may
// carry, including up to three octal digits.
func decodeStringLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for d := 0; d < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; d++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanLeaf collapses whitespace runs to single spaces, drops non-printable
// runes, and trims the result.
func cleanLeaf(s string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
