package http

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardian/internal/authz"
	"guardian/internal/domain"
	"guardian/internal/media"
	"guardian/internal/observability/middleware"
	"guardian/internal/service"
)

const defaultMaxUploadBytes = 10 << 20

type Options struct {
	TrustProxy         bool
	CORSOrigins        []string
	RateLimitPerMinute int
	MaxUploadBytes     int64
	RequestTimeout     time.Duration
	// MediaRoot holds profile images and app icons served read-only under
	// /media/ when set. Captures and temp screenshots are never served there.
	MediaRoot string
}

type Services struct {
	Accounts  service.AccountService
	Tokens    service.TokenService
	Pairing   service.PairingService
	Usage     service.UsageService
	Screening service.ScreeningService
	Inbox     service.InboxService
}

type Handler struct {
	svc  Services
	opts Options
}

func NewRouter(svc Services, validator *authz.HMACValidator, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	h := &Handler{svc: svc, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(opts.RequestTimeout))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsIfSet(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if opts.MediaRoot != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(mediaDir(opts.MediaRoot))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", h.signup)
		r.Post("/auth/login", h.login)
		r.Post("/auth/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(validator.Middleware)

			r.Post("/auth/logout", h.logout)

			r.Get("/account", h.getAccount)
			r.Patch("/account", h.updateAccount)
			r.Delete("/account", h.deleteAccount)
			r.Put("/account/image", h.setProfileImage)

			r.Get("/inbox", h.fetchInbox)
			r.Get("/inbox/unread", h.unreadInbox)
			r.Post("/inbox/ack", h.ackInbox)

			r.Group(func(r chi.Router) {
				r.Use(authz.RequireRole(domain.RoleParent))
				r.Post("/children", h.claimChild)
				r.Delete("/children", h.releaseChild)
				r.Get("/children", h.listChildren)
				r.Get("/usage", h.childUsage)
				r.Get("/captures", h.listCaptures)
				r.Get("/captures/{id}/image", h.captureImage)
				r.Delete("/captures/{id}", h.deleteCapture)
			})

			r.Group(func(r chi.Router) {
				r.Use(authz.RequireRole(domain.RoleChild))
				r.Get("/children/me", h.childSelf)
				r.Post("/usage", h.ingestUsage)
				r.Put("/usage/icon", h.setAppIcon)
				r.Put("/screening", h.screen)
			})
		})
	})

	return r
}

func originsIfSet(in []string) []string {
	if len(in) == 0 {
		return []string{"*"}
	}
	return in
}

// publicMedia lists the media categories any client may fetch by path.
var publicMedia = []media.Category{media.ProfileImages, media.AppIcons}

// mediaDir serves files from the public categories only and refuses
// directory listings.
type mediaDir string

func (d mediaDir) Open(name string) (http.File, error) {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	public := false
	for _, cat := range publicMedia {
		if strings.HasPrefix(clean, string(cat)+"/") {
			public = true
			break
		}
	}
	if !public {
		return nil, fs.ErrNotExist
	}
	f, err := http.Dir(d).Open(clean)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
