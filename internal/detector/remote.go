package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Backend runs the model on a preprocessed tensor and returns raw prediction rows.
type Backend interface {
	Infer(ctx context.Context, t Tensor, opts Options) ([][]float32, error)
}

// RemoteBackend posts tensors to an inference server over HTTP.
type RemoteBackend struct {
	url string
	hc  *http.Client
}

func NewRemoteBackend(url string, timeout time.Duration) *RemoteBackend {
	return &RemoteBackend{
		url: url,
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type inferResponse struct {
	Predictions [][]float32 `json:"predictions"`
}

func (b *RemoteBackend) Infer(ctx context.Context, t Tensor, opts Options) ([][]float32, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(t.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tensor-Shape", t.ShapeHeader())
	req.Header.Set("X-Device", opts.Device)
	if opts.Weights != "" {
		req.Header.Set("X-Model-Weights", opts.Weights)
	}

	resp, err := b.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.WarnContext(ctx, "detector backend error",
			"status", resp.StatusCode,
			"body", string(snippet),
			"duration", time.Since(start),
		)
		return nil, fmt.Errorf("%w: backend status %d", ErrDetectorUnavailable, resp.StatusCode)
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode predictions: %v", ErrDetectorUnavailable, err)
	}
	slog.DebugContext(ctx, "detector backend",
		"rows", len(out.Predictions),
		"duration", time.Since(start),
	)
	return out.Predictions, nil
}
