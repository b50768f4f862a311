package wordml

import "strings"

// span is a half-open [Start, End) byte range in a document string.
type span struct {
	Start int
	End   int
}

// Segment splits document markup into its ordered paragraph blocks: the
// minimal spans covering each outermost <w:p> container, attributes
// included. Content outside paragraph containers (body and section
// wrappers) is not part of the output. A document without paragraphs
// yields an empty slice.
func Segment(doc string) []string {
	spans := paragraphSpans(doc)
	blocks := make([]string, 0, len(spans))
	for _, s := range spans {
		blocks = append(blocks, doc[s.Start:s.End])
	}
	return blocks
}

// paragraphSpans scans doc once and returns the byte ranges of all
// outermost <w:p> elements in document order. The scanner tracks w:p
// nesting depth explicitly (paragraphs can reappear inside text boxes and
// fallback content), so only top-level paragraph spans are reported.
func paragraphSpans(doc string) []span {
	var spans []span
	depth := 0
	start := 0

	i := 0
	for i < len(doc) {
		lt := strings.IndexByte(doc[i:], '<')
		if lt < 0 {
			break
		}
		i += lt

		switch {
		case strings.HasPrefix(doc[i:], "<!--"):
			end := strings.Index(doc[i:], "-->")
			if end < 0 {
				return spans
			}
			i += end + len("-->")

		case strings.HasPrefix(doc[i:], "<![CDATA["):
			end := strings.Index(doc[i:], "]]>")
			if end < 0 {
				return spans
			}
			i += end + len("]]>")

		case strings.HasPrefix(doc[i:], "<?"):
			end := strings.Index(doc[i:], "?>")
			if end < 0 {
				return spans
			}
			i += end + len("?>")

		case strings.HasPrefix(doc[i:], "</w:p") && isNameEnd(doc, i+len("</w:p")):
			end := tagEnd(doc, i)
			if end < 0 {
				return spans
			}
			if depth > 0 {
				depth--
				if depth == 0 {
					spans = append(spans, span{Start: start, End: end})
				}
			}
			i = end

		case strings.HasPrefix(doc[i:], "<w:p") && isNameEnd(doc, i+len("<w:p")):
			end := tagEnd(doc, i)
			if end < 0 {
				return spans
			}
			if selfClosing(doc, i, end) {
				if depth == 0 {
					spans = append(spans, span{Start: i, End: end})
				}
			} else {
				if depth == 0 {
					start = i
				}
				depth++
			}
			i = end

		default:
			end := tagEnd(doc, i)
			if end < 0 {
				return spans
			}
			i = end
		}
	}
	return spans
}

// isNameEnd reports whether position i terminates an element name: the
// tag close, whitespace before attributes, or a self-closing slash.
// It distinguishes <w:p from <w:pPr, <w:pict and friends.
func isNameEnd(doc string, i int) bool {
	if i >= len(doc) {
		return false
	}
	switch doc[i] {
	case '>', '/', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// tagEnd returns the index one past the '>' closing the tag starting at i,
// skipping over quoted attribute values. Returns -1 on truncated markup.
func tagEnd(doc string, i int) int {
	var quote byte
	for j := i; j < len(doc); j++ {
		c := doc[j]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '>':
			return j + 1
		}
	}
	return -1
}

// selfClosing reports whether the tag spanning [i, end) ends with "/>".
func selfClosing(doc string, i, end int) bool {
	return end-2 >= i && doc[end-2] == '/'
}
