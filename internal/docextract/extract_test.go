package docextract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtract_PlainText(t *testing.T) {
	got, err := Extract("jd.txt", []byte("  Senior   Go engineer \n\n\n Remote  "))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := "Senior Go engineer\nRemote"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_HTML(t *testing.T) {
	src := `<html><head><title>ignored</title><style>p{}</style></head>
<body><h1>Data Engineer</h1><p>Build <b>kafka</b> pipelines</p><script>alert(1)</script></body></html>`
	got, err := Extract("jd.HTML", []byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := "Data Engineer Build kafka pipelines"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract("jd.rtf", []byte("{\\rtf1}"))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestExtract_BadPDF(t *testing.T) {
	if _, err := Extract("jd.pdf", []byte("not a pdf")); err == nil {
		t.Error("expected error for malformed pdf")
	}
}

func TestDocumentXMLText(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Backend</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">Engineer </w:t></w:r></w:p>
<w:p><w:r><w:t>Go &amp; SQL</w:t></w:r></w:p>
</w:body></w:document>`
	got, err := documentXMLText(body)
	if err != nil {
		t.Fatalf("documentXMLText: %v", err)
	}
	if want := "Backend Engineer\nGo & SQL"; normalizeSpace(got) != want {
		t.Errorf("got %q, want %q", normalizeSpace(got), want)
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jd.md")
	if err := os.WriteFile(path, []byte("# Title\nbody"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if got != "# Title\nbody" {
		t.Errorf("got %q", got)
	}
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
