package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guardian/internal/detector"
	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/media"
	"guardian/internal/observability/metrics"
	"guardian/internal/observability/middleware"
	"guardian/internal/store"
)

// Notifier is the fan-out step run inside the capture transaction.
type Notifier interface {
	Fanout(ctx context.Context, tx *store.Store, prof *domain.ChildProfile, fc *domain.FlaggedCapture) (*domain.InboxMessage, error)
}

type ScreeningServiceImpl struct {
	store    *store.Store
	media    *media.Store
	detector detector.Detector
	notifier Notifier
	opts     detector.Options
	now      func() time.Time
}

func NewScreeningServiceImpl(st *store.Store, ms *media.Store, det detector.Detector, n Notifier, opts detector.Options) *ScreeningServiceImpl {
	return &ScreeningServiceImpl{
		store:    st,
		media:    ms,
		detector: det,
		notifier: n,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Analyze screens one screenshot from a child device. The temp copy stays on
// disk whatever the outcome; a flagged image is also stored as a capture and
// the linked parent is notified in the same transaction.
func (s *ScreeningServiceImpl) Analyze(ctx context.Context, childID domain.AccountID, image []byte) (*dto.ScreeningResponse, error) {
	result := "clean"
	defer func() {
		metrics.ScreeningsTotal.WithLabelValues(result).Inc()
	}()

	prof, err := s.store.Children().GetByAccountID(ctx, childID)
	if err != nil {
		result = "error"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUnknownAccount
		}
		return nil, err
	}

	_, ext, err := detector.SniffFormat(image)
	if err != nil {
		result = "decode_error"
		return nil, err
	}
	rel, err := s.media.SaveTemp(childID, ext, image)
	if err != nil {
		result = "error"
		return nil, err
	}
	path, err := s.media.Abs(rel)
	if err != nil {
		result = "error"
		return nil, err
	}

	start := time.Now()
	res, err := s.detector.Detect(ctx, path, s.opts)
	metrics.DetectorDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, detector.ErrImageDecode):
			result = "decode_error"
		default:
			result = "detector_error"
		}
		slog.Error("screening failed", append(middleware.LogAttrs(ctx), "account_id", childID, "temp_image", rel, "error", err)...)
		if !errors.Is(err, detector.ErrImageDecode) && !errors.Is(err, detector.ErrDetectorUnavailable) {
			err = fmt.Errorf("%w: %v", detector.ErrDetectorUnavailable, err)
		}
		return nil, err
	}

	out := &dto.ScreeningResponse{
		Flagged:        res.Flagged,
		Confidence:     res.Confidence,
		ConfidenceText: res.ConfidenceText(),
		Label:          res.Label,
	}
	if !res.Flagged {
		return out, nil
	}
	result = "flagged"

	stored, err := s.media.Save(media.Captures, ext, image)
	if err != nil {
		result = "error"
		return nil, err
	}

	fc := &domain.FlaggedCapture{
		ChildProfileID: prof.ID,
		CapturedOn:     s.today(),
		Image:          stored,
		Label:          res.Label,
		Confidence:     res.Confidence,
		CreatedAt:      s.now(),
	}
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		// re-read so the fan-out sees the current parent link
		cur, err := tx.Children().GetByAccountID(ctx, childID)
		if err != nil {
			return err
		}
		if err := tx.Captures().Create(ctx, fc); err != nil {
			return err
		}
		_, err = s.notifier.Fanout(ctx, tx, cur, fc)
		return err
	})
	if err != nil {
		result = "error"
		if rmErr := s.media.Remove(stored); rmErr != nil {
			slog.Warn("orphaned capture image", append(middleware.LogAttrs(ctx), "image", stored, "error", rmErr)...)
		}
		return nil, err
	}

	out.CaptureID = fc.ID.String()
	slog.Info("capture flagged", append(middleware.LogAttrs(ctx),
		"account_id", childID,
		"capture_id", fc.ID,
		"label", res.Label,
		"confidence", res.ConfidenceText(),
	)...)
	return out, nil
}

func (s *ScreeningServiceImpl) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
