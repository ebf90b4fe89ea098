package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/blob"
	"github.com/MrBlinki/sui-hackaton25/internal/cache"
	"github.com/MrBlinki/sui-hackaton25/internal/config"
)

type fakeEndpoint struct {
	srv  *httptest.Server
	hits int32
}

func (f *fakeEndpoint) Hits() int32 { return atomic.LoadInt32(&f.hits) }

func newEndpoint(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) *fakeEndpoint {
	t.Helper()
	f := &fakeEndpoint{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.hits, 1)
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func failing(status int) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }
}

func serving(body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, body) }
}

type fixture struct {
	handler  http.Handler
	cacheDir string
}

func setup(t *testing.T, mirrors []*fakeEndpoint, publishers []*fakeEndpoint) fixture {
	t.Helper()

	var ms []blob.Mirror
	for _, m := range mirrors {
		ms = append(ms, blob.NewHTTPMirror(m.srv.URL, nil))
	}
	var ps []blob.Publisher
	for _, p := range publishers {
		ps = append(ps, blob.NewHTTPPublisher(p.srv.URL, 1, nil))
	}

	mirrorList := blob.NewMirrors(time.Second, ms...)
	dir := t.TempDir()
	c, err := cache.NewManager(mirrorList, dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Proxy.MaxUploadMB = 1
	return fixture{
		handler:  New(cfg, c, mirrorList, blob.NewPublishers(time.Second, ps...)).Handler(),
		cacheDir: dir,
	}
}

func get(h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAudioFallsBackAndCaches(t *testing.T) {
	m1 := newEndpoint(t, failing(http.StatusInternalServerError))
	m2 := newEndpoint(t, failing(http.StatusServiceUnavailable))
	m3 := newEndpoint(t, serving("ID3-fake-mp3-bytes"))
	f := setup(t, []*fakeEndpoint{m1, m2, m3}, nil)

	w := get(f.handler, http.MethodGet, "/api/audio/blob123", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "ID3-fake-mp3-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if w.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("missing Accept-Ranges")
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "immutable") {
		t.Errorf("cache control = %q", w.Header().Get("Cache-Control"))
	}
	if _, err := os.Stat(filepath.Join(f.cacheDir, "blob123")); err != nil {
		t.Errorf("cache file missing: %v", err)
	}

	before := m1.Hits() + m2.Hits() + m3.Hits()
	if before != 3 {
		t.Errorf("mirror hits = %d, want 3", before)
	}

	w = get(f.handler, http.MethodGet, "/api/audio/blob123", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ID3-fake-mp3-bytes" {
		t.Fatalf("second request: %d %q", w.Code, w.Body.String())
	}
	if after := m1.Hits() + m2.Hits() + m3.Hits(); after != before {
		t.Errorf("cache hit reached the mirrors: %d calls", after-before)
	}
}

func TestAudioRangeAndHead(t *testing.T) {
	m := newEndpoint(t, serving("0123456789"))
	f := setup(t, []*fakeEndpoint{m}, nil)

	w := get(f.handler, http.MethodGet, "/api/audio/ranged", map[string]string{"Range": "bytes=2-5"})
	if w.Code != http.StatusPartialContent || w.Body.String() != "2345" {
		t.Fatalf("range: %d %q", w.Code, w.Body.String())
	}
	if cr := w.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Errorf("content range = %q", cr)
	}

	w = get(f.handler, http.MethodHead, "/api/audio/ranged", nil)
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("head: %d with %d body bytes", w.Code, w.Body.Len())
	}
	if w.Header().Get("Content-Length") != "10" {
		t.Errorf("head content length = %q", w.Header().Get("Content-Length"))
	}
	if m.Hits() != 1 {
		t.Errorf("mirror hits = %d, want 1", m.Hits())
	}
}

func TestAudioErrors(t *testing.T) {
	m1 := newEndpoint(t, failing(http.StatusInternalServerError))
	m2 := newEndpoint(t, failing(http.StatusNotFound))
	f := setup(t, []*fakeEndpoint{m1, m2}, nil)

	w := get(f.handler, http.MethodGet, "/api/audio/bad.id", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", w.Code)
	}
	if m1.Hits() != 0 {
		t.Error("invalid id reached a mirror")
	}

	w = get(f.handler, http.MethodGet, "/api/audio/missing", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("exhausted status = %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "AllMirrorsFailed" {
		t.Errorf("body = %v", body)
	}
	entries, _ := os.ReadDir(f.cacheDir)
	if len(entries) != 0 {
		t.Errorf("failed fetch left %d cache entries", len(entries))
	}
}

func TestOptionsAndCORS(t *testing.T) {
	f := setup(t, nil, nil)

	for _, path := range []string{"/api/audio/x", "/api/upload", "/anything"} {
		w := get(f.handler, http.MethodOptions, path, map[string]string{
			"Origin":                        "http://player.local",
			"Access-Control-Request-Method": "GET",
		})
		if w.Code != http.StatusOK || w.Body.Len() != 0 {
			t.Errorf("OPTIONS %s = %d with %q", path, w.Code, w.Body.String())
		}
	}

	w := get(f.handler, http.MethodGet, "/api/health", map[string]string{"Origin": "http://player.local"})
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHealthAndDescriptor(t *testing.T) {
	m := newEndpoint(t, serving("x"))
	f := setup(t, []*fakeEndpoint{m}, nil)

	w := get(f.handler, http.MethodGet, "/api/health", nil)
	var health struct {
		Status      string `json:"status"`
		Aggregators int    `json:"aggregators"`
		CachedFiles int    `json:"cached_files"`
	}
	json.Unmarshal(w.Body.Bytes(), &health)
	if health.Status != "ok" || health.Aggregators != 1 || health.CachedFiles != 0 {
		t.Errorf("health = %+v", health)
	}

	w = get(f.handler, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), m.srv.URL) {
		t.Errorf("descriptor = %d %s", w.Code, w.Body.String())
	}
}

func multipartUpload(t *testing.T, filename string, content []byte, title string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	if title != "" {
		mw.WriteField("title", title)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadFallsBackAndSeedsCache(t *testing.T) {
	var received []byte
	p1 := newEndpoint(t, failing(http.StatusInternalServerError))
	p2 := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{"newlyCreated":{"blobObject":{"blobId":"fresh-blob"}}}`)
	})
	m := newEndpoint(t, failing(http.StatusNotFound))
	f := setup(t, []*fakeEndpoint{m}, []*fakeEndpoint{p1, p2})

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, multipartUpload(t, "night.mp3", []byte("mpeg-frames"), "Night Drive"))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		BlobID  string `json:"blobId"`
		Title   string `json:"title"`
		Size    int64  `json:"size"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.BlobID != "fresh-blob" || resp.Title != "Night Drive" {
		t.Errorf("resp = %+v", resp)
	}
	if p1.Hits() != 1 || int64(len(received)) != resp.Size {
		t.Errorf("publisher 1 hits %d, publisher 2 got %d bytes of %d", p1.Hits(), len(received), resp.Size)
	}

	// The title was stamped into the published bytes
	mw := get(f.handler, http.MethodGet, "/api/metadata/fresh-blob", nil)
	var meta struct {
		HasTags  bool `json:"has_tags"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	}
	json.Unmarshal(mw.Body.Bytes(), &meta)
	if !meta.HasTags || meta.Metadata.Title != "Night Drive" {
		t.Errorf("metadata = %s", mw.Body.String())
	}

	aw := get(f.handler, http.MethodGet, "/api/audio/fresh-blob", nil)
	if aw.Code != http.StatusOK || !bytes.Equal(aw.Body.Bytes(), received) {
		t.Errorf("audio after upload = %d", aw.Code)
	}
	if m.Hits() != 0 {
		t.Errorf("uploaded blob was fetched from mirrors %d times", m.Hits())
	}

	art := get(f.handler, http.MethodGet, "/api/art/fresh-blob", nil)
	if art.Code != http.StatusNotFound {
		t.Errorf("art status = %d", art.Code)
	}
}

func TestUploadErrors(t *testing.T) {
	p := newEndpoint(t, failing(http.StatusInternalServerError))
	f := setup(t, nil, []*fakeEndpoint{p})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("no multipart"))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, multipartUpload(t, "a.wav", []byte("RIFF"), ""))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("exhausted status = %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["success"] != false || body["error"] != "AllPublishersFailed" {
		t.Errorf("body = %v", body)
	}
}

func TestUploadTooLarge(t *testing.T) {
	p := newEndpoint(t, serving(`{"newlyCreated":{"blobObject":{"blobId":"big"}}}`))
	f := setup(t, nil, []*fakeEndpoint{p})

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, multipartUpload(t, "big.mp3", bytes.Repeat([]byte{0x42}, 2<<20), ""))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "FileTooLarge" || body["success"] != false {
		t.Errorf("body = %v", body)
	}
	if p.Hits() != 0 {
		t.Error("oversized upload reached a publisher")
	}
}

func TestUploadTinyMP3GetsTitle(t *testing.T) {
	p := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `{"alreadyCertified":{"blobId":"tiny-blob"}}`)
	})
	f := setup(t, nil, []*fakeEndpoint{p})

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, multipartUpload(t, "tiny.mp3", []byte{0xff, 0xfb, 0x90, 0x00}, "Short One"))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}

	mw := get(f.handler, http.MethodGet, "/api/metadata/tiny-blob", nil)
	var meta struct {
		HasTags  bool `json:"has_tags"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	}
	json.Unmarshal(mw.Body.Bytes(), &meta)
	if !meta.HasTags || meta.Metadata.Title != "Short One" {
		t.Errorf("metadata = %s", mw.Body.String())
	}
}

func TestAudioSkipsEmptyMirror(t *testing.T) {
	m1 := newEndpoint(t, serving(""))
	m2 := newEndpoint(t, serving("good-bytes"))
	f := setup(t, []*fakeEndpoint{m1, m2}, nil)

	w := get(f.handler, http.MethodGet, "/api/audio/blobE", nil)
	if w.Code != http.StatusOK || w.Body.String() != "good-bytes" {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	if m2.Hits() != 1 {
		t.Errorf("second mirror hits = %d, want 1", m2.Hits())
	}

	only := setup(t, []*fakeEndpoint{m1}, nil)
	w = get(only.handler, http.MethodGet, "/api/audio/blobF", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("empty-only status = %d, want 502", w.Code)
	}
}
