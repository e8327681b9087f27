package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"guardian/internal/detector"
	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/media"
	"guardian/internal/observability/metrics"
	"guardian/internal/observability/middleware"
	"guardian/internal/store"
)

// TopAppsPerChild is how many apps the parent overview shows per child.
const TopAppsPerChild = 5

// ExcludedApps never count towards usage: the launcher, the monitoring app
// itself and its screenshot recorder.
var ExcludedApps = map[string]struct{}{
	"com.flet.child_app":   {},
	"شاشة One UI الرئيسية": {},
	"screenshot_recorder":  {},
}

type UsageServiceImpl struct {
	store *store.Store
	media *media.Store
}

func NewUsageServiceImpl(st *store.Store, ms *media.Store) *UsageServiceImpl {
	return &UsageServiceImpl{store: st, media: ms}
}

// Ingest replaces the stored usage of every app in batch. Percentages are
// shares of this batch only; the denominator is floored at one minute.
func (u *UsageServiceImpl) Ingest(ctx context.Context, childID domain.AccountID, batch dto.UsageBatch) (*dto.UsageReport, error) {
	result := "success"
	defer func() {
		metrics.UsageIngestsTotal.WithLabelValues(result).Inc()
	}()

	kept := batch.Trimmed().Without(ExcludedApps)
	if err := kept.Validate(); err != nil {
		result = "invalid"
		return nil, err
	}

	total := 0
	for _, s := range kept {
		total += s.Minutes
	}
	denom := max(total, 1)

	report := &dto.UsageReport{
		Message:     "usage updated",
		Total:       total,
		Apps:        make([]dto.AppShare, 0, len(kept)),
		Percentages: make(map[string]float64, len(kept)),
	}
	for _, s := range kept {
		pct := 100 * float64(s.Minutes) / float64(denom)
		report.Apps = append(report.Apps, dto.AppShare{
			App:        s.App,
			Minutes:    s.Minutes,
			Percentage: pct,
			Duration:   domain.FormatDuration(s.Minutes),
		})
		report.Percentages[s.App] = pct
	}

	err := u.store.WithTx(ctx, func(tx *store.Store) error {
		prof, err := tx.Children().GetByAccountID(ctx, childID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrUnknownAccount
			}
			return err
		}
		for _, share := range report.Apps {
			rec := &domain.UsageRecord{
				ChildProfileID: prof.ID,
				AppName:        share.App,
				Minutes:        share.Minutes,
				Duration:       share.Duration,
			}
			if err := tx.Usage().Upsert(ctx, rec); err != nil {
				return fmt.Errorf("upsert %q: %w", share.App, err)
			}
		}
		return nil
	})
	if err != nil {
		result = "error"
		return nil, err
	}

	slog.Info("usage ingested", append(middleware.LogAttrs(ctx),
		"account_id", childID,
		"apps", len(report.Apps),
		"dropped", len(batch)-len(kept),
		"total_minutes", total,
	)...)
	return report, nil
}

// ForChild lists a linked child's usage, most used first. A child that is not
// linked to parentID is reported as not found.
func (u *UsageServiceImpl) ForChild(ctx context.Context, parentID, childID domain.AccountID) ([]dto.AppUsage, error) {
	prof, err := u.store.Children().GetByAccountID(ctx, childID)
	if err != nil {
		return nil, notFound(err, "child")
	}
	if !prof.LinkedTo(parentID) {
		return nil, fmt.Errorf("%w: child", domain.ErrNotFound)
	}
	recs, err := u.store.Usage().ListByProfile(ctx, prof.ID, 0)
	if err != nil {
		return nil, err
	}
	return appUsages(recs), nil
}

func (u *UsageServiceImpl) Children(ctx context.Context, parentID domain.AccountID) ([]dto.ChildSummary, error) {
	profiles, err := u.store.Children().ListByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ChildSummary, 0, len(profiles))
	for _, p := range profiles {
		recs, err := u.store.Usage().ListByProfile(ctx, p.ID, TopAppsPerChild)
		if err != nil {
			return nil, err
		}
		s := dto.ChildSummary{AccountID: p.AccountID.String(), TopApps: appUsages(recs)}
		if p.Account != nil {
			s.Username = p.Account.Username
			s.FirstName = p.Account.FirstName
			s.LastName = p.Account.LastName
			s.Gender = string(p.Account.Gender)
			s.ProfileImage = p.Account.ProfileImage
			s.LastConnectAt = p.Account.LastLoginAt
		}
		out = append(out, s)
	}
	return out, nil
}

// SetIcon attaches an icon to an app the child has already reported.
func (u *UsageServiceImpl) SetIcon(ctx context.Context, childID domain.AccountID, app string, image []byte) (*dto.AppUsage, error) {
	app = strings.TrimSpace(app)
	if app == "" {
		return nil, domain.FieldError("app", "app name is required")
	}
	prof, err := u.store.Children().GetByAccountID(ctx, childID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUnknownAccount
		}
		return nil, err
	}
	rec, err := u.store.Usage().Get(ctx, prof.ID, app)
	if err != nil {
		return nil, notFound(err, "app usage")
	}

	_, ext, err := detector.SniffFormat(image)
	if err != nil {
		return nil, domain.FieldError("Image", "unsupported image")
	}
	rel, err := u.media.Save(media.AppIcons, ext, image)
	if err != nil {
		return nil, err
	}
	if _, err := u.store.Usage().SetIcon(ctx, prof.ID, app, rel); err != nil {
		_ = u.media.Remove(rel)
		return nil, err
	}
	if rec.IconImage != nil && *rec.IconImage != "" {
		if err := u.media.Remove(*rec.IconImage); err != nil {
			slog.Warn("old icon not removed", append(middleware.LogAttrs(ctx), "image", *rec.IconImage, "error", err)...)
		}
	}
	rec.IconImage = &rel
	return &appUsages([]domain.UsageRecord{*rec})[0], nil
}

func appUsages(recs []domain.UsageRecord) []dto.AppUsage {
	out := make([]dto.AppUsage, 0, len(recs))
	for _, r := range recs {
		a := dto.AppUsage{App: r.AppName, Minutes: r.Minutes, Duration: r.Duration, UpdatedAt: r.UpdatedAt}
		if r.IconImage != nil {
			a.Icon = *r.IconImage
		}
		out = append(out, a)
	}
	return out
}
