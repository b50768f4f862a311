package wordml

import (
	"fmt"
	"strings"
)

// CheckBalance verifies that every open tag in doc has a matching close tag
// in proper nesting order. It is the last gate before a rebuilt document is
// written: a mismatch means reconstruction corrupted the markup and the
// output must not be produced.
func CheckBalance(doc string) error {
	var stack []string

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
				return fmt.Errorf("unterminated comment at offset %d", i)
			}
			i += end + len("-->")
			continue

		case strings.HasPrefix(doc[i:], "<![CDATA["):
			end := strings.Index(doc[i:], "]]>")
			if end < 0 {
				return fmt.Errorf("unterminated CDATA section at offset %d", i)
			}
			i += end + len("]]>")
			continue

		case strings.HasPrefix(doc[i:], "<?"):
			end := strings.Index(doc[i:], "?>")
			if end < 0 {
				return fmt.Errorf("unterminated processing instruction at offset %d", i)
			}
			i += end + len("?>")
			continue

		case strings.HasPrefix(doc[i:], "<!"):
			end := tagEnd(doc, i)
			if end < 0 {
				return fmt.Errorf("unterminated declaration at offset %d", i)
			}
			i = end
			continue
		}

		end := tagEnd(doc, i)
		if end < 0 {
			return fmt.Errorf("unterminated tag at offset %d", i)
		}

		if doc[i+1] == '/' {
			name := tagName(doc[i+2 : end-1])
			if len(stack) == 0 {
				return fmt.Errorf("close tag </%s> at offset %d without open tag", name, i)
			}
			top := stack[len(stack)-1]
			if top != name {
				return fmt.Errorf("close tag </%s> at offset %d does not match open tag <%s>", name, i, top)
			}
			stack = stack[:len(stack)-1]
		} else if !selfClosing(doc, i, end) {
			stack = append(stack, tagName(doc[i+1:end-1]))
		}
		i = end
	}

	if len(stack) > 0 {
		return fmt.Errorf("%d unclosed tag(s), innermost <%s>", len(stack), stack[len(stack)-1])
	}
	return nil
}

// tagName extracts the element name from the inside of a tag (everything
// between the angle brackets, already stripped of the leading slash).
func tagName(inner string) string {
	for j := 0; j < len(inner); j++ {
		switch inner[j] {
		case ' ', '\t', '\r', '\n', '/':
			return inner[:j]
		}
	}
	return inner
}
