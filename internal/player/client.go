package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/contract"
)

// Ledger is the part of the ledger node the sync loop talks to.
type Ledger interface {
	CurrentTrack(ctx context.Context) (string, error)
	ChangeTrack(ctx context.Context, title string, payment uint64) (contract.Receipt, error)
}

// APIError is an error answer from the ledger or the proxy. It unwraps to the
// matching contract sentinel when the code names one.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Details
	}
	if msg == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
	}
	return e.Code + ": " + msg
}

func (e *APIError) Unwrap() error {
	return contract.FromCode(e.Code)
}

// LedgerClient calls the ledger node's HTTP API as the token's subject.
type LedgerClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewLedgerClient(baseURL, token string, timeout time.Duration) *LedgerClient {
	return &LedgerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (l *LedgerClient) CurrentTrack(ctx context.Context) (string, error) {
	var out struct {
		CurrentTrack string `json:"current_track"`
	}
	if err := l.do(ctx, http.MethodGet, "/api/v1/state/current", nil, &out); err != nil {
		return "", err
	}
	return out.CurrentTrack, nil
}

func (l *LedgerClient) State(ctx context.Context) (contract.State, error) {
	var out contract.State
	err := l.do(ctx, http.MethodGet, "/api/v1/state", nil, &out)
	return out, err
}

func (l *LedgerClient) ChangeTrack(ctx context.Context, title string, payment uint64) (contract.Receipt, error) {
	var out contract.Receipt
	err := l.do(ctx, http.MethodPost, "/api/v1/play", map[string]any{"title": title, "payment": payment}, &out)
	return out, err
}

func (l *LedgerClient) RegisterTrack(ctx context.Context, title, artist string) (contract.Receipt, error) {
	var out contract.Receipt
	err := l.do(ctx, http.MethodPost, "/api/v1/tracks", map[string]any{"title": title, "artist": artist}, &out)
	return out, err
}

func (l *LedgerClient) Balance(ctx context.Context, address string) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	err := l.do(ctx, http.MethodGet, "/api/v1/accounts/"+address, nil, &out)
	return out.Balance, err
}

func (l *LedgerClient) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// UploadResult is the proxy's answer to an upload.
type UploadResult struct {
	Success  bool   `json:"success"`
	BlobID   string `json:"blobId"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

// ProxyClient uploads local files through the blob proxy.
type ProxyClient struct {
	baseURL string
	client  *http.Client
}

func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	return &ProxyClient{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

func (p *ProxyClient) Upload(ctx context.Context, path, title string) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil && title != "" {
			err = mw.WriteField("title", title)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/upload", pr)
	if err != nil {
		pr.CloseWithError(err)
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	var out UploadResult
	if err := decodeResponse(resp, &out); err != nil {
		return UploadResult{}, fmt.Errorf("upload failed: %w", err)
	}
	return out, nil
}
