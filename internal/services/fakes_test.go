package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/docvision/parseflow/internal/detect"
)

const testBucket = "test-bucket"

// memStore is an in-memory BlobStore with the same first-write-wins
// semantics as the production store.
type memStore struct {
	mu            sync.Mutex
	objects       map[string][]byte
	failGet       map[string]bool
	failPut       map[string]bool
	failPutSuffix string
}

func newMemStore() *memStore {
	return &memStore{
		objects: map[string][]byte{},
		failGet: map[string]bool{},
		failPut: map[string]bool{},
	}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet[key] {
		return nil, fmt.Errorf("injected get failure for %s", key)
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, key string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut[key] || (m.failPutSuffix != "" && strings.HasSuffix(key, m.failPutSuffix)) {
		return fmt.Errorf("injected put failure for %s", key)
	}
	if _, exists := m.objects[key]; exists {
		return nil
	}
	m.objects[key] = content
	return nil
}

func (m *memStore) URI(key string) string {
	return "gs://" + testBucket + "/" + key
}

func (m *memStore) KeyFromURI(uri string) string {
	return strings.TrimPrefix(uri, "gs://"+testBucket+"/")
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type visionCall struct {
	prompt   string
	hasImage bool
}

// scriptedVision answers Generate calls from a fixed script of responses.
type scriptedVision struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []visionCall
}

func (v *scriptedVision) Generate(_ context.Context, prompt string, img []byte, _ string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := len(v.calls)
	v.calls = append(v.calls, visionCall{prompt: prompt, hasImage: len(img) > 0})
	var err error
	if n < len(v.errs) {
		err = v.errs[n]
	}
	if err != nil {
		return "", err
	}
	if n < len(v.responses) {
		return v.responses[n], nil
	}
	return "", nil
}

// stubInferencer returns a fixed inference result.
type stubInferencer struct {
	result *detect.InferenceResult
	err    error
}

func (s *stubInferencer) Infer(context.Context, []byte, string) (*detect.InferenceResult, error) {
	return s.result, s.err
}

// stubRenderer returns fixed pages.
type stubRenderer struct {
	images []image.Image
	texts  []string
	err    error
}

func (s *stubRenderer) RenderPages(context.Context, string, string, float64) ([]image.Image, []string, error) {
	return s.images, s.texts, s.err
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func testPNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
