// Package parse turns raw upstream page markup into listing records.
//
// Every page the crawler sees is a server-rendered HTML document carrying a
// single embedded JSON state block. Extraction is a pure substring operation;
// all JSON handling happens afterwards with tolerant field coercion.
package parse

import "strings"

const (
	stateMarker     = `<script id="__NEXT_DATA__"`
	scriptEndMarker = "</script>"
)

// ExtractStateJSON locates the embedded page-state script block and returns
// its content. Markers are matched case-insensitively. Returns ok=false when
// any marker is missing, the markers are inverted, or the span is empty;
// callers treat that as "page yielded no data", never as a fatal error.
func ExtractStateJSON(html string) (string, bool) {
	start := indexFold(html, stateMarker, 0)
	if start < 0 {
		return "", false
	}

	tagEnd := strings.IndexByte(html[start:], '>')
	if tagEnd < 0 {
		return "", false
	}

	contentStart := start + tagEnd + 1
	end := indexFold(html, scriptEndMarker, contentStart)
	if end <= contentStart {
		// end == contentStart means the script block is empty.
		return "", false
	}

	return html[contentStart:end], true
}

// indexFold finds substr in s at or after from, folding ASCII letter case.
// The scan runs over s itself so the returned offset is valid for slicing
// s: lowercasing a copy would shift offsets whenever a rune's lowercase
// form has a different byte length. Both markers are pure ASCII.
func indexFold(s, substr string, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(substr) <= len(s); i++ {
		if equalFoldASCII(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
