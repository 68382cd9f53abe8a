package formvalue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/protoarbol/catastro/trees"
)

func TestParseHeight(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "12.5", want: 12.5},
		{in: "12,5", want: 12.5},
		{in: " 8 m", want: 8},
		{in: "3 metros", want: 3},
		{in: "", wantErr: true},
		{in: "alto", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseHeight(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseHeight(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseHeight(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if h, err := ParseOptionalHeight("  "); err != nil || h != nil {
		t.Fatalf("expected nil height for blank input, got %v, %v", h, err)
	}
}

func TestParseAge(t *testing.T) {
	if years, ok := ParseAge("40 años").Years(); !ok || years != 40 {
		t.Fatalf("expected 40, got %d %v", years, ok)
	}
	if ParseAge(" ").Present() {
		t.Fatalf("blank age should be absent")
	}
	if !ParseAge("viejo").Equal(trees.ParseAge("viejo")) {
		t.Fatalf("free text should be kept verbatim")
	}
}

func TestParseCoordinate(t *testing.T) {
	if v, err := ParseCoordinate("-36,827", 90); err != nil || v != -36.827 {
		t.Fatalf("got %v, %v", v, err)
	}
	if _, err := ParseCoordinate("120", 90); err == nil {
		t.Fatalf("expected out-of-range latitude to fail")
	}
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	path := filepath.Join(dir, "a.png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatal(err)
	}

	url, err := ReadImage(path, 0)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected data URL %q", url)
	}
	if err := trees.ValidateImage(&url, 100); err != nil {
		t.Fatalf("data URL does not validate: %v", err)
	}

	if _, err := ReadImage(path, 4); err == nil {
		t.Fatalf("expected size limit error")
	}

	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hola"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadImage(text, 0); err == nil {
		t.Fatalf("expected non-image to be rejected")
	}
}
