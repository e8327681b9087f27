package detector

import (
	"context"
	"fmt"
)

// Model implements Detector on top of a Backend.
type Model struct {
	backend   Backend
	labels    []string
	inputSize int
}

func NewModel(backend Backend, labels []string) *Model {
	return &Model{backend: backend, labels: labels, inputSize: DefaultInputSize}
}

func (m *Model) Detect(ctx context.Context, imagePath string, opts Options) (Result, error) {
	dets, err := m.DetectAll(ctx, imagePath, opts)
	if err != nil {
		return Result{}, err
	}
	best, ok := Top(dets)
	if !ok {
		return Result{}, nil
	}
	return Result{Flagged: true, Confidence: best.Confidence, Label: best.Label}, nil
}

// DetectAll returns every detection surviving NMS, boxes in source pixels.
func (m *Model) DetectAll(ctx context.Context, imagePath string, opts Options) ([]Detection, error) {
	if m.backend == nil {
		return nil, fmt.Errorf("%w: no backend configured", ErrDetectorUnavailable)
	}
	opts = opts.withDefaults()

	img, err := LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	rows, err := m.backend.Infer(ctx, Preprocess(img, m.inputSize), opts)
	if err != nil {
		return nil, err
	}
	return Postprocess(rows, m.labels, m.inputSize, b.Dx(), b.Dy(), opts)
}
