package detector

import (
	"fmt"
	"sort"
)

// Postprocess turns raw prediction rows [cx, cy, w, h, obj, cls0, cls1, ...]
// in input-pixel space into detections in source-image pixels.
func Postprocess(rows [][]float32, labels []string, inputSize, srcW, srcH int, opts Options) ([]Detection, error) {
	opts = opts.withDefaults()

	cands := make([]Detection, 0, 64)
	width := -1
	for i, row := range rows {
		if width < 0 {
			width = len(row)
		}
		if len(row) != width || len(row) < 6 {
			return nil, fmt.Errorf("%w: prediction row %d has %d columns", ErrDetectorUnavailable, i, len(row))
		}
		obj := float64(row[4])
		if obj <= opts.ConfThreshold {
			continue
		}
		cls, score := 0, 0.0
		for j, v := range row[5:] {
			if s := float64(v) * obj; s > score {
				cls, score = j, s
			}
		}
		if score <= opts.ConfThreshold {
			continue
		}
		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		cands = append(cands, Detection{
			Box:        Box{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2},
			Confidence: score,
			Class:      cls,
			Label:      labelFor(labels, cls),
		})
	}

	sort.SliceStable(cands, func(a, b int) bool { return cands[a].Confidence > cands[b].Confidence })
	if len(cands) > maxNMSCandidates {
		cands = cands[:maxNMSCandidates]
	}

	kept := nonMaxSuppression(cands, opts.IoUThreshold, opts.MaxDetections)
	for i := range kept {
		kept[i].Box = rescale(kept[i].Box, inputSize, srcW, srcH)
	}
	return kept, nil
}

// nonMaxSuppression expects dets sorted by confidence, highest first. Boxes
// only suppress boxes of the same class.
func nonMaxSuppression(dets []Detection, iouThreshold float64, maxDet int) []Detection {
	suppressed := make([]bool, len(dets))
	out := make([]Detection, 0, len(dets))
	for i := range dets {
		if suppressed[i] {
			continue
		}
		out = append(out, dets[i])
		if len(out) == maxDet {
			break
		}
		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] || dets[j].Class != dets[i].Class {
				continue
			}
			if iou(dets[i].Box, dets[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return out
}

func iou(a, b Box) float64 {
	inter := Box{
		X1: max(a.X1, b.X1),
		Y1: max(a.Y1, b.Y1),
		X2: min(a.X2, b.X2),
		Y2: min(a.Y2, b.Y2),
	}.area()
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// rescale maps a box from the stretched size×size input back onto the
// source image and clips it to the image bounds.
func rescale(b Box, size, srcW, srcH int) Box {
	sx := float64(srcW) / float64(size)
	sy := float64(srcH) / float64(size)
	return Box{
		X1: clamp(b.X1*sx, 0, float64(srcW)),
		Y1: clamp(b.Y1*sy, 0, float64(srcH)),
		X2: clamp(b.X2*sx, 0, float64(srcW)),
		Y2: clamp(b.Y2*sy, 0, float64(srcH)),
	}
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func labelFor(labels []string, cls int) string {
	if cls >= 0 && cls < len(labels) && labels[cls] != "" {
		return labels[cls]
	}
	return fmt.Sprintf("class_%d", cls)
}
