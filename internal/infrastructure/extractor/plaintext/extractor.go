// Package plaintext decodes markdown, MDX and plain text uploads into the
// text handed to graph extraction.
package plaintext

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(doc domain.RawDocument) (string, error) {
	if !utf8.Valid(doc.Content) {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode document", fmt.Errorf("unsupported binary content: %s", doc.Filename))
	}

	text := strings.TrimPrefix(string(doc.Content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.EqualFold(filepath.Ext(doc.Filename), ".mdx") {
		text = stripMDXModuleLines(text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode document", errors.New("document has no text"))
	}
	return text, nil
}

// stripMDXModuleLines drops top-level import/export statements; fenced code
// blocks are kept verbatim.
func stripMDXModuleLines(text string) string {
	var b strings.Builder
	inFence := false
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence && (strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "export ")) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
