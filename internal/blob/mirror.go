package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/storage"
)

// Mirror serves blobs by id.
type Mirror interface {
	Name() string
	Fetch(ctx context.Context, blobID string) (io.ReadCloser, error)
}

// HTTPMirror is an aggregator exposing GET {base}/v1/blobs/{id}.
type HTTPMirror struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPMirror(baseURL string, client *http.Client) *HTTPMirror {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPMirror{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (m *HTTPMirror) Name() string { return m.BaseURL }

func (m *HTTPMirror) Fetch(ctx context.Context, blobID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+"/v1/blobs/"+blobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Endpoint: m.BaseURL, Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// StorageMirror reads blobs from a storage provider under Prefix.
type StorageMirror struct {
	Provider storage.Provider
	Prefix   string
}

func (m *StorageMirror) Name() string { return m.Provider.Name() }

func (m *StorageMirror) Fetch(ctx context.Context, blobID string) (io.ReadCloser, error) {
	obj, err := m.Provider.Get(ctx, m.Prefix+blobID)
	if err != nil {
		return nil, err
	}
	return obj.Body, nil
}

// Mirrors is an ordered fallback list.
type Mirrors struct {
	list    []Mirror
	timeout time.Duration
}

// NewMirrors keeps the given order. timeout bounds each endpoint attempt, body
// transfer included; zero means no per-endpoint bound.
func NewMirrors(timeout time.Duration, list ...Mirror) *Mirrors {
	return &Mirrors{list: list, timeout: timeout}
}

func (ms *Mirrors) Len() int { return len(ms.list) }

func (ms *Mirrors) Names() []string {
	names := make([]string, len(ms.list))
	for i, m := range ms.list {
		names[i] = m.Name()
	}
	return names
}

// FetchTo copies the blob into w from the first mirror that delivers it in full.
// w is reset through the reset callback before each retry so a mirror failing
// mid-body never leaves partial bytes behind.
func (ms *Mirrors) FetchTo(ctx context.Context, blobID string, w io.Writer, reset func() error) (int64, error) {
	var last error = errors.New("no mirrors configured")

	for i, m := range ms.list {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if i > 0 && reset != nil {
			if err := reset(); err != nil {
				return 0, err
			}
		}

		start := time.Now()
		n, err := ms.fetchOne(ctx, m, blobID, w)
		fetchDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			mirrorAttempts.WithLabelValues(m.Name(), "ok").Inc()
			return n, nil
		}

		mirrorAttempts.WithLabelValues(m.Name(), "error").Inc()
		log.Printf("⚠️ Mirror %s failed for %s: %v", m.Name(), blobID, err)
		last = err
	}

	return 0, &AllMirrorsFailedError{BlobID: blobID, Attempts: len(ms.list), Last: last}
}

func (ms *Mirrors) fetchOne(ctx context.Context, m Mirror, blobID string, w io.Writer) (int64, error) {
	if ms.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ms.timeout)
		defer cancel()
	}

	body, err := m.Fetch(ctx, blobID)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("reading body: %w", err)
	}
	if n == 0 {
		return 0, ErrEmptyBlob
	}
	return n, nil
}
