package photos

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lumen/internal/services"
)

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestStoreSaveGetDelete(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "photos"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	data := makeJPEG(t, 10, 10)
	path, err := store.Save("session-1", data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != store.Path("session-1") {
		t.Fatalf("path mismatch: %q vs %q", path, store.Path("session-1"))
	}
	if !store.Exists("session-1") {
		t.Fatal("saved photo should exist")
	}

	got, err := store.Get("session-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip changed photo bytes")
	}

	if err := store.Delete("session-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Exists("session-1") {
		t.Fatal("deleted photo should not exist")
	}
	if err := store.Delete("session-1"); err != nil {
		t.Fatalf("deleting a missing photo must be a no-op, got %v", err)
	}
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Save("a", makeJPEG(t, 4, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.jpg" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestPrepareForUploadPassthrough(t *testing.T) {
	data := makeJPEG(t, 100, 80)
	out, err := PrepareForUpload(data, 1536)
	if err != nil {
		t.Fatalf("PrepareForUpload: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("small JPEG should pass through unchanged")
	}
}

func TestPrepareForUploadDownscales(t *testing.T) {
	data := makeJPEG(t, 400, 200)
	out, err := PrepareForUpload(data, 100)
	if err != nil {
		t.Fatalf("PrepareForUpload: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("output format %q, want jpeg", format)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Fatalf("unexpected dimensions %v, want 100x50", img.Bounds())
	}
}

func TestPrepareForUploadReencodesNonJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 30))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	out, err := PrepareForUpload(buf.Bytes(), 1536)
	if err != nil {
		t.Fatalf("PrepareForUpload: %v", err)
	}
	_, format, err := image.Decode(bytes.NewReader(out))
	if err != nil || format != "jpeg" {
		t.Fatalf("expected jpeg output, got %q, %v", format, err)
	}
}

func TestPrepareForUploadRejectsGarbage(t *testing.T) {
	_, err := PrepareForUpload([]byte("not an image"), 1536)
	if !errors.Is(err, services.ErrImageProcessing) {
		t.Fatalf("expected ErrImageProcessing, got %v", err)
	}
	if _, err := PrepareForUpload(nil, 1536); !errors.Is(err, services.ErrImageProcessing) {
		t.Fatalf("expected ErrImageProcessing for empty input, got %v", err)
	}
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		w, h, max, wantW, wantH int
	}{
		{4000, 2000, 1536, 1536, 768},
		{2000, 4000, 1536, 768, 1536},
		{3000, 3000, 1536, 1536, 1536},
		{5000, 2, 100, 100, 1},
	}
	for _, tc := range cases {
		gotW, gotH := fitWithin(tc.w, tc.h, tc.max)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Errorf("fitWithin(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tc.w, tc.h, tc.max, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestBlurhash(t *testing.T) {
	data := makeJPEG(t, 200, 150)
	hash, err := Blurhash(data)
	if err != nil {
		t.Fatalf("Blurhash: %v", err)
	}
	if len(hash) < 6 {
		t.Fatalf("suspiciously short hash %q", hash)
	}

	again, err := Blurhash(data)
	if err != nil {
		t.Fatal(err)
	}
	if hash != again {
		t.Fatal("blurhash must be deterministic")
	}

	if _, err := Blurhash([]byte("garbage")); !errors.Is(err, services.ErrImageProcessing) {
		t.Fatalf("expected ErrImageProcessing, got %v", err)
	}
}
