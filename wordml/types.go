// Package wordml implements structure-preserving text extraction from
// WordprocessingML (the word/document.xml part of a DOCX package).
//
// The pipeline splits the document into paragraph blocks, replaces every
// structural markup span with a short ID-bearing marker, hands the
// simplified text to a translation step, and rebuilds byte-exact markup
// from the (possibly translated) simplified text plus an ID→fragment map.
//
// Marker syntax:
//
//	{{7}}Hello{{/7}}   paired marker — wraps translatable run text;
//	                   the ID appears on both sides so a text transform
//	                   cannot silently drop one half.
//	{{8/}}             unpaired marker — stands for an opaque markup span
//	                   reinserted verbatim on reconstruction.
package wordml

import (
	"fmt"
	"strings"
)

// ParagraphUnit is one paragraph block of the source document.
//
// Index is the paragraph's position in document order and is the sole join
// key through the whole pipeline; it is never renumbered. Only Text is
// mutated after extraction (by the translation step).
type ParagraphUnit struct {
	// Index is the stable position of the paragraph in the document.
	Index int
	// Text is the simplified paragraph content: all structural markup
	// replaced by markers. Empty when the paragraph has no translatable text.
	Text string
	// HasText is true iff the paragraph contains at least one non-whitespace
	// translatable text span.
	HasText bool
}

// FragmentKind discriminates the two fragment payload shapes.
type FragmentKind int

const (
	// Opaque fragments hold a raw markup substring reinserted verbatim.
	Opaque FragmentKind = iota
	// TextRun fragments hold a positional template for a run with exactly
	// one text node.
	TextRun
)

// textPlaceholder marks the text node's content position inside a TextRun
// template. NUL cannot occur in well-formed XML, so it never collides with
// document content.
const textPlaceholder = "\x00"

// Fragment is the original markup a marker stands in for.
//
// For Opaque fragments only Raw is set: the raw markup substring. For
// TextRun fragments, Before and After are the run markup surrounding the
// text node (run open tag and run properties, run close tag), Template is
// the text node's own markup with the literal content replaced by
// textPlaceholder, and Raw is the text node's content escaped exactly as
// found in the source. Word's serializer leaves quotes and apostrophes
// unescaped in text nodes, so Raw is the only faithful record of the
// original bytes; re-escaping the unescaped text would diverge. Keeping
// the attributes inside Before/Template positionally — rather than
// locating the text by substring search — matters because the same text
// can also occur inside an attribute value.
type Fragment struct {
	Kind     FragmentKind
	Raw      string
	Before   string
	Template string
	After    string
}

// FragmentMap holds every fragment of a document, keyed by a document-wide
// monotonically increasing ID. IDs are never reused or reassigned.
type FragmentMap map[int]Fragment

// pairedMarker wraps text in a paired marker for fragment id.
func pairedMarker(id int, text string) string {
	return fmt.Sprintf("{{%d}}%s{{/%d}}", id, text, id)
}

// unpairedMarker returns the unpaired marker for fragment id.
func unpairedMarker(id int) string {
	return fmt.Sprintf("{{%d/}}", id)
}

// xmlEscaper escapes the five XML metacharacters. The ampersand rule comes
// first so already-escaped output is never produced.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// xmlUnescaper is the inverse of xmlEscaper for the five named entities.
var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// EscapeText escapes the five XML metacharacters in s for use as element
// content.
func EscapeText(s string) string {
	return xmlEscaper.Replace(s)
}

// UnescapeText decodes the five named XML entities in s.
func UnescapeText(s string) string {
	return xmlUnescaper.Replace(s)
}
