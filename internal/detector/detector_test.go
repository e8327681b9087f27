package detector

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 128, B: 0, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

type stubBackend struct {
	rows [][]float32
	err  error
	got  Tensor
}

func (s *stubBackend) Infer(_ context.Context, t Tensor, _ Options) ([][]float32, error) {
	s.got = t
	return s.rows, s.err
}

func TestPreprocessShapeAndRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 20))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	tensor := Preprocess(img, 8)
	assert.Equal(t, [4]int{1, 3, 8, 8}, tensor.Shape)
	require.Len(t, tensor.Data, 3*8*8)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
	assert.Equal(t, "1,3,8,8", tensor.ShapeHeader())

	raw := tensor.Bytes()
	require.Len(t, raw, 4*len(tensor.Data))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(raw[:4])))
}

func TestSniffFormat(t *testing.T) {
	data, err := os.ReadFile(writePNG(t, 4, 4))
	require.NoError(t, err)

	format, ext, err := SniffFormat(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, "png", ext)

	_, _, err = SniffFormat([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrImageDecode)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w×h truecolor
// pixels with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestOversizedImagesAreRejectedBeforeDecode(t *testing.T) {
	huge := pngHeader(20000, 20000)

	_, _, err := SniffFormat(huge)
	assert.ErrorIs(t, err, ErrImageDecode)

	path := filepath.Join(t.TempDir(), "huge.png")
	require.NoError(t, os.WriteFile(path, huge, 0o600))
	_, err = LoadImage(path)
	assert.ErrorIs(t, err, ErrImageDecode)

	_, err = NewModel(&stubBackend{}, nil).Detect(context.Background(), path, DefaultOptions())
	assert.ErrorIs(t, err, ErrImageDecode)

	format, _, err := SniffFormat(pngHeader(4000, 3000))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestPostprocessFiltersAndSuppresses(t *testing.T) {
	rows := [][]float32{
		// two overlapping boxes of class 0, the weaker one is suppressed
		{320, 320, 100, 100, 0.9, 0.9, 0.1},
		{325, 325, 100, 100, 0.8, 0.9, 0.1},
		// same place but class 1 survives class-aware NMS
		{320, 320, 100, 100, 0.7, 0.1, 0.9},
		// objectness below threshold
		{100, 100, 10, 10, 0.2, 1.0, 0.0},
		// class score obj*cls below threshold
		{500, 500, 10, 10, 0.5, 0.5, 0.5},
	}
	dets, err := Postprocess(rows, []string{"weapon", "nudity"}, 640, 1280, 640, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, "weapon", dets[0].Label)
	assert.InDelta(t, 0.81, dets[0].Confidence, 1e-6)
	assert.Equal(t, "nudity", dets[1].Label)

	// x doubles with a 1280px wide source, y stays
	assert.InDelta(t, 540, dets[0].Box.X1, 1e-3)
	assert.InDelta(t, 740, dets[0].Box.X2, 1e-3)
	assert.InDelta(t, 270, dets[0].Box.Y1, 1e-3)
}

func TestPostprocessClipsAndCaps(t *testing.T) {
	rows := [][]float32{
		{0, 0, 100, 100, 0.9, 0.9},
		{600, 600, 10, 10, 0.9, 0.8},
	}
	opts := DefaultOptions()
	opts.MaxDetections = 1
	dets, err := Postprocess(rows, nil, 640, 640, 640, opts)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "class_0", dets[0].Label)
	assert.Equal(t, 0.0, dets[0].Box.X1)
	assert.Equal(t, 0.0, dets[0].Box.Y1)
}

func TestPostprocessRejectsRaggedRows(t *testing.T) {
	_, err := Postprocess([][]float32{{1, 2, 3, 4, 0.9, 0.9}, {1, 2, 3}}, nil, 640, 10, 10, DefaultOptions())
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}

func TestIoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	assert.InDelta(t, 1.0, iou(a, a), 1e-9)
	assert.InDelta(t, 0.0, iou(a, Box{20, 20, 30, 30}), 1e-9)
	assert.InDelta(t, 25.0/175.0, iou(a, Box{5, 5, 15, 15}), 1e-9)
}

func TestParseLabels(t *testing.T) {
	list, err := ParseLabels([]byte("names: [knife, gun]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"knife", "gun"}, list)

	m, err := ParseLabels([]byte("nc: 3\nnames:\n  0: knife\n  2: gun\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"knife", "", "gun"}, m)
	assert.Equal(t, "class_1", labelFor(m, 1))

	_, err = ParseLabels([]byte("names: knife\n"))
	assert.Error(t, err)

	_, err = ParseLabels([]byte("names:\n  999999999: knife\n"))
	assert.Error(t, err)
}

func TestModelDetectPicksBest(t *testing.T) {
	backend := &stubBackend{rows: [][]float32{
		{100, 100, 50, 50, 0.9, 0.6},
		{400, 400, 50, 50, 0.95, 0.95},
	}}
	m := NewModel(backend, []string{"flagged"})

	res, err := m.Detect(context.Background(), writePNG(t, 32, 16), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, "flagged", res.Label)
	assert.InDelta(t, 0.9025, res.Confidence, 1e-6)
	assert.Equal(t, "90.25%", res.ConfidenceText())
	assert.Equal(t, [4]int{1, 3, DefaultInputSize, DefaultInputSize}, backend.got.Shape)
}

func TestModelDetectNothing(t *testing.T) {
	m := NewModel(&stubBackend{}, nil)
	res, err := m.Detect(context.Background(), writePNG(t, 8, 8), DefaultOptions())
	require.NoError(t, err)
	assert.False(t, res.Flagged)
	assert.Equal(t, "0", res.ConfidenceText())
}

func TestModelDetectBadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o600))
	_, err := NewModel(&stubBackend{}, nil).Detect(context.Background(), path, DefaultOptions())
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestRemoteBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, "1,3,2,2", r.Header.Get("X-Tensor-Shape"))
		assert.Equal(t, "best.pt", r.Header.Get("X-Model-Weights"))
		assert.Equal(t, "cpu", r.Header.Get("X-Device"))
		body, _ := io.ReadAll(r.Body)
		assert.Len(t, body, 4*12)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": [][]float32{{1, 2, 3, 4, 0.5, 0.5}},
		})
	}))
	defer srv.Close()

	b := NewRemoteBackend(srv.URL, time.Second)
	opts := DefaultOptions()
	opts.Weights = "best.pt"
	rows, err := b.Infer(context.Background(), Tensor{Shape: [4]int{1, 3, 2, 2}, Data: make([]float32, 12)}, opts)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3, 4, 0.5, 0.5}}, rows)
}

func TestRemoteBackendFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/garbage" {
			_, _ = w.Write([]byte("{not json"))
			return
		}
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tensor := Tensor{Shape: [4]int{1, 3, 1, 1}, Data: make([]float32, 3)}
	_, err := NewRemoteBackend(srv.URL, time.Second).Infer(context.Background(), tensor, DefaultOptions())
	assert.ErrorIs(t, err, ErrDetectorUnavailable)

	_, err = NewRemoteBackend(srv.URL+"/garbage", time.Second).Infer(context.Background(), tensor, DefaultOptions())
	assert.ErrorIs(t, err, ErrDetectorUnavailable)

	_, err = NewRemoteBackend("http://127.0.0.1:1", time.Second).Infer(context.Background(), tensor, DefaultOptions())
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}
