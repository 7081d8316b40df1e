package plaintext

import (
	"strings"
	"testing"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

func TestDecodeNormalizesText(t *testing.T) {
	doc := domain.NewRawDocument([]byte("\ufeff# Title\r\nBob works at Acme.\r\n"), "notes.md")
	text, err := NewDecoder().Decode(doc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if text != "# Title\nBob works at Acme." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestDecodeStripsMDXModules(t *testing.T) {
	src := "import Chart from './chart'\nexport const meta = {}\n\n# Report\n```js\nimport x from 'y'\n```\n<Chart />\n"
	text, err := NewDecoder().Decode(domain.NewRawDocument([]byte(src), "report.mdx"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if strings.Contains(text, "./chart") || strings.Contains(text, "export const") {
		t.Fatalf("module lines not stripped: %q", text)
	}
	if !strings.Contains(text, "import x from 'y'") {
		t.Fatalf("fenced code must be kept: %q", text)
	}
}

func TestDecodeRejectsBinaryAndBlank(t *testing.T) {
	for _, doc := range []domain.RawDocument{
		domain.NewRawDocument([]byte{0xff, 0xfe, 0x00}, "a.txt"),
		domain.NewRawDocument([]byte("  \n\t"), "a.txt"),
	} {
		if _, err := NewDecoder().Decode(doc); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	}
}
