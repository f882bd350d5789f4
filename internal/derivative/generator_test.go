package derivative

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbnails/internal/raster"
	"thumbnails/internal/types"
)

type published struct {
	bucket      string
	key         string
	body        []byte
	contentType string
}

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	fetchedAs  []string
	published  []published
	publishErr error
	failAfter  int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failAfter: -1}
}

func (m *memStore) Fetch(_ context.Context, bucket, key string, dst io.WriterAt) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := dst.(*os.File); ok {
		m.fetchedAs = append(m.fetchedAs, filepath.Base(f.Name()))
	}
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return 0, types.NewFetchError(bucket, key, true, errors.New("NoSuchKey"))
	}
	n, err := dst.WriteAt(data, 0)
	return int64(n), err
}

func (m *memStore) Publish(_ context.Context, bucket, key string, body io.Reader, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil && len(m.published) >= m.failAfter {
		return m.publishErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.published = append(m.published, published{bucket: bucket, key: key, body: data, contentType: contentType})
	return nil
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig(t *testing.T) Config {
	return Config{
		Bucket:         "thumbs",
		Folder:         "thumbnails",
		FolderTemplate: "thumbnails_{filename}",
		Sizes:          []types.DerivativeSpec{{Width: 75, Height: 75}, {Width: 125, Height: 125}, {Width: 1280, Height: 720}},
		ScratchRoot:    t.TempDir(),
	}
}

func assertScratchEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory must be removed")
}

func TestGenerate(t *testing.T) {
	store := newMemStore()
	store.objects["uploads/2026/10/cat.png"] = pngOf(t, 2000, 1000)
	cfg := testConfig(t)
	gen := NewGenerator(store, cfg)

	keys, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "2026/10/cat.png", CorrelationID: "m1"})
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	assert.Equal(t, []string{"cat.png"}, store.fetchedAs)
	require.Len(t, store.published, 3)

	want := []struct {
		key  string
		size image.Point
	}{
		{"thumbnails/thumbnails_cat.png/75x75.png", image.Pt(75, 37)},
		{"thumbnails/thumbnails_cat.png/125x125.png", image.Pt(125, 62)},
		{"thumbnails/thumbnails_cat.png/1280x720.png", image.Pt(1280, 640)},
	}
	for i, w := range want {
		got := store.published[i]
		assert.Equal(t, "thumbs", got.bucket)
		assert.Equal(t, w.key, got.key)
		assert.Equal(t, "image/png", got.contentType)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(got.body))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, w.size, image.Pt(cfg.Width, cfg.Height))
	}

	assertScratchEmpty(t, cfg.ScratchRoot)
}

func TestGenerateNeverUpscales(t *testing.T) {
	store := newMemStore()
	store.objects["uploads/tiny.png"] = pngOf(t, 50, 40)
	gen := NewGenerator(store, testConfig(t))

	_, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "tiny.png"})
	require.NoError(t, err)

	require.Len(t, store.published, 3)
	for _, p := range store.published {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(p.body))
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Width, p.key)
		assert.Equal(t, 40, cfg.Height, p.key)
	}
}

func TestGenerateKeepsSourceExtension(t *testing.T) {
	store := newMemStore()
	store.objects["uploads/scan.upload"] = pngOf(t, 300, 300)
	gen := NewGenerator(store, testConfig(t))

	_, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "scan.upload"})
	require.NoError(t, err)

	require.Len(t, store.published, 3)
	assert.Equal(t, "thumbnails/thumbnails_scan.upload/75x75.upload", store.published[0].key)
	assert.Equal(t, "image/png", store.published[0].contentType)
}

func TestGenerateReturnsKeysForExtensionlessSource(t *testing.T) {
	store := newMemStore()
	store.objects["uploads/photos/avatar"] = pngOf(t, 300, 200)
	gen := NewGenerator(store, testConfig(t))

	keys, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "photos/avatar"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"thumbnails/thumbnails_avatar/75x75.png",
		"thumbnails/thumbnails_avatar/125x125.png",
		"thumbnails/thumbnails_avatar/1280x720.png",
	}, keys)
	require.Len(t, store.published, 3)
	for i, p := range store.published {
		assert.Equal(t, keys[i], p.key)
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", Extension("cat.jpg", raster.PNG))
	assert.Equal(t, ".upload", Extension("scan.upload", raster.PNG))
	assert.Equal(t, ".webp", Extension("avatar", raster.WEBP))
}

func TestGenerateMissingSource(t *testing.T) {
	store := newMemStore()
	cfg := testConfig(t)
	gen := NewGenerator(store, cfg)

	keys, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "gone.jpg"})
	require.Error(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, types.ErrKindFetch, types.KindOf(err))
	assert.True(t, types.IsNotFound(err))
	assert.Empty(t, store.published)
	assertScratchEmpty(t, cfg.ScratchRoot)
}

func TestGenerateUndecodableSource(t *testing.T) {
	store := newMemStore()
	store.objects["uploads/notes.jpg"] = []byte("this is a text file")
	cfg := testConfig(t)
	gen := NewGenerator(store, cfg)

	_, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "notes.jpg"})
	require.Error(t, err)
	assert.Equal(t, types.ErrKindImageDecode, types.KindOf(err))
	assert.Empty(t, store.published)
	assertScratchEmpty(t, cfg.ScratchRoot)
}

func TestGeneratePublishFailureKeepsEarlierUploads(t *testing.T) {
	store := newMemStore()
	store.objects["uploads/cat.png"] = pngOf(t, 400, 400)
	store.publishErr = errors.New("access denied")
	store.failAfter = 1
	cfg := testConfig(t)
	gen := NewGenerator(store, cfg)

	keys, err := gen.Generate(context.Background(), types.WorkItem{SourceBucket: "uploads", SourceKey: "cat.png"})
	require.Error(t, err)
	assert.Equal(t, []string{"thumbnails/thumbnails_cat.png/75x75.png"}, keys)
	assert.Equal(t, types.ErrKindPublish, types.KindOf(err))
	assert.Len(t, store.published, 1)
	assertScratchEmpty(t, cfg.ScratchRoot)
}

func TestPath(t *testing.T) {
	spec := types.DerivativeSpec{Width: 1280, Height: 720}

	assert.Equal(t,
		"thumbnails/thumbnails_photo.jpg/1280x720.jpg",
		Path("thumbnails", "thumbnails_{filename}", "users/42/photo.jpg", spec, ".jpg"))
	assert.Equal(t,
		Path("thumbnails", "thumbnails_{filename}", "users/42/photo.jpg", spec, ".jpg"),
		Path("thumbnails", "thumbnails_{filename}", "users/42/photo.jpg", spec, ".jpg"),
		"same inputs give the same key")
	assert.Equal(t,
		"out/photo/75x75.JPG",
		Path("out/", "{filename}", "photo", types.DerivativeSpec{Width: 75, Height: 75}, ".JPG"))
}

func TestPaths(t *testing.T) {
	specs := []types.DerivativeSpec{{Width: 75, Height: 75}, {Width: 125, Height: 125}}
	assert.Equal(t, []string{
		"thumbnails/thumbnails_a b.webp/75x75.webp",
		"thumbnails/thumbnails_a b.webp/125x125.webp",
	}, Paths("thumbnails", "thumbnails_{filename}", "dir/a b.webp", specs))
}
