package wordml

import (
	"strconv"
	"strings"
)

// Reconstruct rebuilds full document markup from the original document, the
// (possibly translated) paragraph units, and the fragment map. The document
// is re-segmented exactly as Segment does; each paragraph position whose
// unit has HasText set is replaced by the restored simplified text, every
// other paragraph keeps its original bytes. Reconstruction is best-effort
// and never fails: unknown unpaired IDs emit nothing, missing or malformed
// paired fragments fall back to the literal text.
//
// When every unit's Text is unchanged since extraction, the result is
// byte-identical to doc: untouched run text is spliced from the source
// bytes, so even non-canonical escaping (Word leaves quotes and apostrophes
// bare) survives the round trip.
func Reconstruct(doc string, units []ParagraphUnit, frags FragmentMap) string {
	byIndex := make(map[int]ParagraphUnit, len(units))
	for _, u := range units {
		byIndex[u.Index] = u
	}

	var sb strings.Builder
	sb.Grow(len(doc))
	pos := 0
	for i, s := range paragraphSpans(doc) {
		sb.WriteString(doc[pos:s.Start])
		if u, ok := byIndex[i]; ok && u.HasText {
			restore(&sb, u.Text, frags)
		} else {
			sb.WriteString(doc[s.Start:s.End])
		}
		pos = s.End
	}
	sb.WriteString(doc[pos:])
	return sb.String()
}

// restore expands one simplified paragraph string back into markup.
func restore(sb *strings.Builder, simplified string, frags FragmentMap) {
	i := 0
	for i < len(simplified) {
		open := strings.Index(simplified[i:], "{{")
		if open < 0 {
			// Stray text outside any marker (a model sometimes injects it);
			// keep it rather than dropping content.
			sb.WriteString(EscapeText(simplified[i:]))
			return
		}
		sb.WriteString(EscapeText(simplified[i : i+open]))
		i += open

		id, kind, next := parseMarker(simplified, i)
		if kind == markerNone {
			// Not a well-formed marker. Emit the braces literally and move on.
			sb.WriteString(EscapeText(simplified[i : i+2]))
			i += 2
			continue
		}
		i = next

		if kind == markerUnpaired {
			if f, ok := frags[id]; ok && f.Kind == Opaque {
				sb.WriteString(f.Raw)
			}
			continue
		}

		// Paired marker: capture text up to the matching close marker. If the
		// close side was lost, take everything up to the next marker instead.
		closeTok := "{{/" + strconv.Itoa(id) + "}}"
		var text string
		if end := strings.Index(simplified[i:], closeTok); end >= 0 {
			text = simplified[i : i+end]
			i += end + len(closeTok)
		} else if end := strings.Index(simplified[i:], "{{"); end >= 0 {
			text = simplified[i : i+end]
			i += end
		} else {
			text = simplified[i:]
			i = len(simplified)
		}

		if f, ok := frags[id]; ok && f.Kind == TextRun {
			// Unchanged text splices the original bytes back, preserving the
			// source's escaping choices. Only genuinely changed text is
			// re-escaped.
			content := f.Raw
			if text != UnescapeText(f.Raw) {
				content = EscapeText(text)
			}
			sb.WriteString(f.Before)
			sb.WriteString(strings.Replace(f.Template, textPlaceholder, content, 1))
			sb.WriteString(f.After)
		} else {
			sb.WriteString(EscapeText(text))
		}
	}
}

type markerType int

const (
	markerNone markerType = iota
	markerPaired
	markerUnpaired
)

// parseMarker parses a marker starting at the "{{" at position i. It
// returns the fragment ID, the marker type, and the position just past the
// marker. Close markers ("{{/N}}") are reported as markerNone: restore
// consumes them while scanning for the matching open side.
func parseMarker(s string, i int) (int, markerType, int) {
	j := i + 2
	start := j
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == start {
		return 0, markerNone, i
	}
	id, err := strconv.Atoi(s[start:j])
	if err != nil {
		return 0, markerNone, i
	}
	switch {
	case strings.HasPrefix(s[j:], "/}}"):
		return id, markerUnpaired, j + 3
	case strings.HasPrefix(s[j:], "}}"):
		return id, markerPaired, j + 2
	}
	return 0, markerNone, i
}
