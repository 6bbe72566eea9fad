package testutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// ErrUpload is returned by stubs configured to fail.
var ErrUpload = errors.New("upload failed")

// MediaStub is a service.MediaIngester that records ingested folders.
type MediaStub struct {
	mu      sync.Mutex
	Folders []string
	// FailFolder makes Ingest fail for that folder.
	FailFolder string
}

func (m *MediaStub) Ingest(_ context.Context, encoded, folder string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if folder == m.FailFolder {
		return "", ErrUpload
	}
	m.Folders = append(m.Folders, folder)
	return fmt.Sprintf("https://cdn.test/%s/%d.jpg", folder, len(m.Folders)), nil
}

// Calls reports how many uploads succeeded.
func (m *MediaStub) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Folders)
}

// BlobStub is an in-memory storage.BlobStore.
type BlobStub struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	// FailSuffix makes Put fail for keys ending with it.
	FailSuffix string
}

func NewBlobStub() *BlobStub {
	return &BlobStub{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (b *BlobStub) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailSuffix != "" && len(key) >= len(b.FailSuffix) && key[len(key)-len(b.FailSuffix):] == b.FailSuffix {
		return "", ErrUpload
	}
	b.Objects[key] = append([]byte(nil), data...)
	b.Types[key] = contentType
	return "https://blob.test/" + key, nil
}

func (b *BlobStub) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.Objects, key)
	delete(b.Types, key)
	return nil
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// PNGDataURL wraps a TinyPNG in a base64 data URL as clients send it.
func PNGDataURL(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(TinyPNG(t, w, h))
}
