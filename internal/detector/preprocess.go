package detector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Tensor is a float32 NCHW batch of one.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// Bytes encodes the tensor as little-endian float32.
func (t Tensor) Bytes() []byte {
	out := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func (t Tensor) ShapeHeader() string {
	return fmt.Sprintf("%d,%d,%d,%d", t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3])
}

// MaxImagePixels bounds the declared width×height an image may have before
// it is decoded.
const MaxImagePixels = 40_000_000

func checkBounds(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrImageDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: image %dx%d exceeds %d pixels", ErrImageDecode, cfg.Width, cfg.Height, MaxImagePixels)
	}
	return nil
}

// SniffFormat reports the registered image format of data and the file
// extension it should be stored under.
func SniffFormat(data []byte) (format, ext string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if err := checkBounds(cfg); err != nil {
		return "", "", err
	}
	switch format {
	case "jpeg":
		ext = "jpg"
	default:
		ext = format
	}
	return format, ext, nil
}

func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if err := checkBounds(cfg); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return img, nil
}

// Preprocess stretches img to size×size with bilinear sampling and scales
// RGB channels into [0,1].
func Preprocess(img image.Image, size int) Tensor {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dst.RGBAAt(x, y)
			i := y*size + x
			data[i] = float32(c.R) / 255
			data[plane+i] = float32(c.G) / 255
			data[2*plane+i] = float32(c.B) / 255
		}
	}
	return Tensor{Shape: [4]int{1, 3, size, size}, Data: data}
}
