package wordml

import "strings"

// element is a complete XML element located inside a larger string:
// [Start, End) covers the whole element, [ContentStart, ContentEnd) its
// character content. Self-closing elements have SelfClose set and empty
// content bounds at the element end.
type element struct {
	Start        int
	End          int
	ContentStart int
	ContentEnd   int
	SelfClose    bool
}

// elementSpans returns every complete element named name (e.g. "w:r") in s,
// in document order, skipping occurrences nested inside an already reported
// element of the same name.
func elementSpans(s, name string) []element {
	var elems []element
	open := "<" + name
	closeTag := "</" + name

	i := 0
	for i < len(s) {
		lt := strings.IndexByte(s[i:], '<')
		if lt < 0 {
			break
		}
		i += lt

		if !strings.HasPrefix(s[i:], open) || !isNameEnd(s, i+len(open)) {
			end := tagEnd(s, i)
			if end < 0 {
				break
			}
			i = end
			continue
		}

		end := tagEnd(s, i)
		if end < 0 {
			break
		}
		if selfClosing(s, i, end) {
			elems = append(elems, element{Start: i, End: end, ContentStart: end, ContentEnd: end, SelfClose: true})
			i = end
			continue
		}

		// Scan forward for the matching close tag, counting same-name nesting.
		elem := element{Start: i, ContentStart: end}
		depth := 1
		j := end
		for j < len(s) && depth > 0 {
			lt := strings.IndexByte(s[j:], '<')
			if lt < 0 {
				j = len(s)
				break
			}
			j += lt
			tend := tagEnd(s, j)
			if tend < 0 {
				j = len(s)
				break
			}
			switch {
			case strings.HasPrefix(s[j:], closeTag) && isNameEnd(s, j+len(closeTag)):
				depth--
				if depth == 0 {
					elem.ContentEnd = j
					elem.End = tend
				}
			case strings.HasPrefix(s[j:], open) && isNameEnd(s, j+len(open)) && !selfClosing(s, j, tend):
				depth++
			}
			j = tend
		}
		if depth > 0 {
			// Truncated markup: no matching close tag. Stop scanning.
			break
		}
		elems = append(elems, elem)
		i = elem.End
	}
	return elems
}

// Extract separates translatable text from structural markup for an ordered
// sequence of paragraph blocks. It returns one ParagraphUnit per block (same
// order, Index = position) and the fragment map shared by the whole
// document. Fragment IDs are allocated monotonically across all blocks and
// never reused.
func Extract(blocks []string) ([]ParagraphUnit, FragmentMap) {
	units := make([]ParagraphUnit, 0, len(blocks))
	frags := make(FragmentMap)
	nextID := 1
	for i, block := range blocks {
		units = append(units, extractBlock(i, block, frags, &nextID))
	}
	return units, frags
}

// extractBlock simplifies one paragraph block. Paragraphs without
// non-whitespace text are emitted as pass-through units and allocate no IDs.
func extractBlock(index int, block string, frags FragmentMap, nextID *int) ParagraphUnit {
	if !hasTranslatableText(block) {
		return ParagraphUnit{Index: index}
	}

	var sb strings.Builder
	pos := 0
	for _, run := range elementSpans(block, "w:r") {
		appendOpaque(&sb, block[pos:run.Start], frags, nextID)
		appendRun(&sb, block[run.Start:run.End], frags, nextID)
		pos = run.End
	}
	appendOpaque(&sb, block[pos:], frags, nextID)

	return ParagraphUnit{Index: index, Text: sb.String(), HasText: true}
}

// hasTranslatableText reports whether the block's concatenated text node
// content is non-empty after trimming whitespace.
func hasTranslatableText(block string) bool {
	var sb strings.Builder
	for _, t := range elementSpans(block, "w:t") {
		sb.WriteString(block[t.ContentStart:t.ContentEnd])
	}
	return strings.TrimSpace(UnescapeText(sb.String())) != ""
}

// appendOpaque stores raw as an opaque fragment and appends its unpaired
// marker. Whitespace-only separators carry no addressable semantics and are
// dropped without allocating an ID.
func appendOpaque(sb *strings.Builder, raw string, frags FragmentMap, nextID *int) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	id := *nextID
	*nextID++
	frags[id] = Fragment{Kind: Opaque, Raw: raw}
	sb.WriteString(unpairedMarker(id))
}

// appendRun emits one run: a paired marker plus a positional template when
// the run holds exactly one text node, an opaque fragment otherwise (line
// breaks, tabs, embedded objects, and the rare run with several text nodes).
func appendRun(sb *strings.Builder, run string, frags FragmentMap, nextID *int) {
	var texts []element
	for _, t := range elementSpans(run, "w:t") {
		if !t.SelfClose {
			texts = append(texts, t)
		}
	}
	if len(texts) != 1 {
		appendOpaque(sb, run, frags, nextID)
		return
	}

	t := texts[0]
	id := *nextID
	*nextID++
	frags[id] = Fragment{
		Kind:     TextRun,
		Raw:      run[t.ContentStart:t.ContentEnd],
		Before:   run[:t.Start],
		Template: run[t.Start:t.ContentStart] + textPlaceholder + run[t.ContentEnd:t.End],
		After:    run[t.End:],
	}
	sb.WriteString(pairedMarker(id, UnescapeText(run[t.ContentStart:t.ContentEnd])))
}
