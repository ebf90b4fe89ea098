package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/storage"
)

// Publisher stores a blob and returns the id the store assigned to it.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, body io.Reader, size int64) (string, error)
}

// HTTPPublisher uploads with PUT {base}/v1/blobs?epochs=N.
type HTTPPublisher struct {
	BaseURL string
	Epochs  int
	Client  *http.Client
}

func NewHTTPPublisher(baseURL string, epochs int, client *http.Client) *HTTPPublisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPublisher{BaseURL: strings.TrimRight(baseURL, "/"), Epochs: epochs, Client: client}
}

func (p *HTTPPublisher) Name() string { return p.BaseURL }

// storeResponse covers both answers of a publisher: a fresh blob or one
// that was already certified.
type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
}

func (p *HTTPPublisher) Publish(ctx context.Context, body io.Reader, size int64) (string, error) {
	url := p.BaseURL + "/v1/blobs"
	if p.Epochs > 0 {
		url = fmt.Sprintf("%s?epochs=%d", url, p.Epochs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Endpoint: p.BaseURL, Status: resp.StatusCode}
	}

	var out storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding publisher answer: %w", err)
	}

	switch {
	case out.NewlyCreated != nil && out.NewlyCreated.BlobObject.BlobID != "":
		return out.NewlyCreated.BlobObject.BlobID, nil
	case out.AlreadyCertified != nil && out.AlreadyCertified.BlobID != "":
		return out.AlreadyCertified.BlobID, nil
	default:
		return "", errors.New("publisher answer carries no blob id")
	}
}

// StoragePublisher writes blobs to a storage provider, named by the base64url
// SHA-256 of their content.
type StoragePublisher struct {
	Provider storage.Provider
	Prefix   string
}

func (p *StoragePublisher) Name() string { return p.Provider.Name() }

func (p *StoragePublisher) Publish(ctx context.Context, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	id := ContentID(data)
	key := p.Prefix + id
	if ok, err := p.Provider.Exists(ctx, key); err == nil && ok {
		return id, nil
	}
	if err := p.Provider.Put(ctx, key, bytes.NewReader(data), "audio/mpeg"); err != nil {
		return "", err
	}
	return id, nil
}

// ContentID derives a blob id from the content itself.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Publishers is an ordered fallback list.
type Publishers struct {
	list    []Publisher
	timeout time.Duration
}

func NewPublishers(timeout time.Duration, list ...Publisher) *Publishers {
	return &Publishers{list: list, timeout: timeout}
}

func (ps *Publishers) Len() int { return len(ps.list) }

func (ps *Publishers) Names() []string {
	names := make([]string, len(ps.list))
	for i, p := range ps.list {
		names[i] = p.Name()
	}
	return names
}

// Publish replays body to each publisher in order until one accepts it.
func (ps *Publishers) Publish(ctx context.Context, body io.ReadSeeker, size int64) (string, string, error) {
	var last error = errors.New("no publishers configured")

	for _, p := range ps.list {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return "", "", err
		}

		id, err := ps.publishOne(ctx, p, body, size)
		if err == nil {
			uploadsTotal.WithLabelValues(p.Name(), "ok").Inc()
			return id, p.Name(), nil
		}

		uploadsTotal.WithLabelValues(p.Name(), "error").Inc()
		log.Printf("⚠️ Publisher %s failed: %v", p.Name(), err)
		last = err
	}

	return "", "", &AllPublishersFailedError{Attempts: len(ps.list), Last: last}
}

func (ps *Publishers) publishOne(ctx context.Context, p Publisher, body io.Reader, size int64) (string, error) {
	if ps.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ps.timeout)
		defer cancel()
	}
	// Hide Seek so transports never rewind behind our back
	return p.Publish(ctx, io.NopCloser(body), size)
}
