// Package detector decides whether a screenshot contains flagged content.
//
// The model itself is opaque: a Backend turns a normalized NCHW tensor into
// raw YOLO-style prediction rows. Everything around it (decoding, resizing,
// normalization, confidence filtering, class-aware non-max suppression and
// rescaling boxes to the source image) happens here, so any backend that
// honours the tensor contract can be swapped in.
package detector

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrImageDecode         = errors.New("detector: image could not be decoded")
	ErrDetectorUnavailable = errors.New("detector: model backend unavailable")
)

const (
	DefaultInputSize     = 640
	DefaultConfThreshold = 0.35
	DefaultIoUThreshold  = 0.45
	DefaultMaxDetections = 1000

	// candidates kept before NMS, as in YOLOv5's max_nms
	maxNMSCandidates = 30000
)

type Options struct {
	Weights       string
	ConfThreshold float64
	IoUThreshold  float64
	MaxDetections int
	Device        string
}

func DefaultOptions() Options {
	return Options{
		ConfThreshold: DefaultConfThreshold,
		IoUThreshold:  DefaultIoUThreshold,
		MaxDetections: DefaultMaxDetections,
		Device:        "cpu",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ConfThreshold <= 0 {
		o.ConfThreshold = d.ConfThreshold
	}
	if o.IoUThreshold <= 0 {
		o.IoUThreshold = d.IoUThreshold
	}
	if o.MaxDetections <= 0 {
		o.MaxDetections = d.MaxDetections
	}
	if o.Device == "" {
		o.Device = d.Device
	}
	return o
}

// Box is in source-image pixels.
type Box struct {
	X1, Y1, X2, Y2 float64
}

func (b Box) area() float64 {
	w, h := b.X2-b.X1, b.Y2-b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

type Detection struct {
	Box        Box
	Confidence float64
	Class      int
	Label      string
}

// Result is what callers see; box coordinates stay inside the package.
type Result struct {
	Flagged    bool
	Confidence float64
	Label      string
}

// ConfidenceText renders the confidence as a percent string, e.g. "87.50%".
func (r Result) ConfidenceText() string {
	if !r.Flagged {
		return "0"
	}
	return fmt.Sprintf("%.2f%%", r.Confidence*100)
}

type Detector interface {
	Detect(ctx context.Context, imagePath string, opts Options) (Result, error)
}

// Top picks the highest-confidence detection; ok is false for an empty slice.
func Top(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}
