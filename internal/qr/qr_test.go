package qr

import (
	"image/png"
	"os"
	"strings"
	"testing"
)

func TestGenerateWritesPNG(t *testing.T) {
	g := NewGenerator(t.TempDir(), "@abdifahadi")

	path, err := g.Generate("https://example.com/some/page")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer os.Remove(path)

	if !strings.HasSuffix(path, ".png") {
		t.Errorf("expected .png path, got %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	if img.Bounds().Dx() != outputSize {
		t.Errorf("expected width %d, got %d", outputSize, img.Bounds().Dx())
	}
}

func TestGenerateEmptyInput(t *testing.T) {
	g := NewGenerator(t.TempDir(), "@abdifahadi")

	if _, err := g.Generate(""); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestGenerateWithoutOverlay(t *testing.T) {
	g := NewGenerator(t.TempDir(), "")

	path, err := g.Generate("plain text payload")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer os.Remove(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}

func TestGenerateUniquePaths(t *testing.T) {
	g := NewGenerator(t.TempDir(), "@abdifahadi")

	a, err := g.Generate("first")
	if err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	defer os.Remove(a)

	b, err := g.Generate("second")
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	defer os.Remove(b)

	if a == b {
		t.Errorf("expected distinct output paths, both were %s", a)
	}
}
