package wordml

import (
	"strings"
	"testing"
)

func TestExtract_TextAndPassThrough(t *testing.T) {
	units, frags := Extract(Segment(sampleDoc))
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}

	if !units[0].HasText {
		t.Error("unit 0 should have text")
	}
	if !strings.Contains(units[0].Text, "Hello") {
		t.Errorf("unit 0 text = %q, want it to contain Hello", units[0].Text)
	}

	// The formatting-only paragraph allocates no IDs and carries no text.
	if units[1].HasText || units[1].Text != "" {
		t.Errorf("unit 1 = %+v, want empty pass-through", units[1])
	}

	if !strings.Contains(units[2].Text, "World ") || !strings.Contains(units[2].Text, "again") {
		t.Errorf("unit 2 text = %q", units[2].Text)
	}

	for id, f := range frags {
		if id <= 0 {
			t.Errorf("fragment ID %d is not positive", id)
		}
		switch f.Kind {
		case TextRun:
			if !strings.Contains(f.Template, textPlaceholder) {
				t.Errorf("template for %d lacks the placeholder: %q", id, f.Template)
			}
		case Opaque:
			if f.Raw == "" {
				t.Errorf("opaque fragment %d is empty", id)
			}
		}
	}
}

func TestExtract_IndicesAreStable(t *testing.T) {
	units, _ := Extract(Segment(sampleDoc))
	for i, u := range units {
		if u.Index != i {
			t.Errorf("units[%d].Index = %d", i, u.Index)
		}
	}
}

func TestExtract_IDsUniqueAcrossDocument(t *testing.T) {
	blocks := []string{
		`<w:p><w:r><w:t>one</w:t></w:r></w:p>`,
		`<w:p><w:r><w:t>two</w:t></w:r></w:p>`,
	}
	units, frags := Extract(blocks)

	seen := make(map[int]bool)
	for _, u := range units {
		i := 0
		for i < len(u.Text) {
			idx := strings.Index(u.Text[i:], "{{")
			if idx < 0 {
				break
			}
			i += idx
			id, kind, next := parseMarker(u.Text, i)
			if kind == markerNone {
				i += 2
				continue
			}
			if kind == markerUnpaired && seen[id] {
				t.Errorf("fragment ID %d referenced by two unpaired markers", id)
			}
			seen[id] = true
			if _, ok := frags[id]; !ok {
				t.Errorf("marker references unknown fragment %d", id)
			}
			i = next
		}
	}
}

func TestExtract_BreakRunBecomesOpaque(t *testing.T) {
	blocks := []string{`<w:p><w:r><w:t>a</w:t></w:r><w:r><w:br/></w:r><w:r><w:t>b</w:t></w:r></w:p>`}
	units, frags := Extract(blocks)

	text := units[0].Text
	// Expected shape: {{1/}} paragraph open, {{2}}a{{/2}}, {{3/}} break run,
	// {{4}}b{{/4}}, {{5/}} paragraph close.
	if text != "{{1/}}{{2}}a{{/2}}{{3/}}{{4}}b{{/4}}{{5/}}" {
		t.Fatalf("simplified text = %q", text)
	}
	if frags[3].Kind != Opaque || frags[3].Raw != "<w:r><w:br/></w:r>" {
		t.Errorf("break run fragment = %+v", frags[3])
	}
}

func TestExtract_PreserveSpaceAttributeStaysInTemplate(t *testing.T) {
	blocks := []string{`<w:p><w:r><w:t xml:space="preserve"> led </w:t></w:r></w:p>`}
	units, frags := Extract(blocks)

	if !strings.Contains(units[0].Text, "{{2}} led {{/2}}") {
		t.Fatalf("simplified text = %q", units[0].Text)
	}
	f := frags[2]
	if f.Kind != TextRun {
		t.Fatalf("fragment kind = %v, want TextRun", f.Kind)
	}
	want := `<w:t xml:space="preserve">` + textPlaceholder + `</w:t>`
	if f.Template != want {
		t.Errorf("template = %q, want %q", f.Template, want)
	}
}

func TestExtract_EntitiesDecodedInSimplifiedText(t *testing.T) {
	blocks := []string{`<w:p><w:r><w:t>A &amp; B</w:t></w:r></w:p>`}
	units, _ := Extract(blocks)
	if !strings.Contains(units[0].Text, "A & B") {
		t.Errorf("entities not decoded: %q", units[0].Text)
	}
	if strings.Contains(units[0].Text, "&amp;") {
		t.Errorf("raw entity leaked into simplified text: %q", units[0].Text)
	}
}

func TestExtract_WhitespaceOnlyParagraph(t *testing.T) {
	blocks := []string{`<w:p><w:r><w:t xml:space="preserve">   </w:t></w:r></w:p>`}
	units, frags := Extract(blocks)
	if units[0].HasText {
		t.Error("whitespace-only paragraph should not count as text")
	}
	if len(frags) != 0 {
		t.Errorf("pass-through paragraph allocated %d fragments", len(frags))
	}
}

func TestExtract_HyperlinkWrapperPreserved(t *testing.T) {
	block := `<w:p><w:hyperlink r:id="rId4"><w:r><w:t>link</w:t></w:r></w:hyperlink></w:p>`
	units, frags := Extract([]string{block})

	// The hyperlink open tag travels with the leading opaque span, the close
	// tag with the trailing one; round trip must reproduce the block.
	if got := Reconstruct(block, units, frags); got != block {
		t.Errorf("round trip = %q, want %q", got, block)
	}
}

func TestMarkerHelpers(t *testing.T) {
	if pairedMarker(7, "hi") != "{{7}}hi{{/7}}" {
		t.Errorf("pairedMarker = %q", pairedMarker(7, "hi"))
	}
	if unpairedMarker(8) != "{{8/}}" {
		t.Errorf("unpairedMarker = %q", unpairedMarker(8))
	}
}
