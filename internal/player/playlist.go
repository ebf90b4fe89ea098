package player

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entry is a playable track resolved from the local playlist.
type Entry struct {
	Title   string
	BlobID  string
	Path    string
	Locator string
}

type BlobTrack struct {
	Title  string `yaml:"title"`
	BlobID string `yaml:"blob_id"`
}

type StaticTrack struct {
	Title string `yaml:"title"`
	Path  string `yaml:"path"`
}

type playlistFile struct {
	BlobTracks   []BlobTrack   `yaml:"blob_tracks"`
	StaticTracks []StaticTrack `yaml:"static_tracks"`
}

// Playlist maps ledger titles to local locators: blob entries first, then
// static files.
type Playlist struct {
	mu       sync.RWMutex
	data     playlistFile
	path     string
	proxyURL string
}

// LoadPlaylist reads path. A missing file yields an empty playlist that Save creates.
func LoadPlaylist(path, proxyURL string) (*Playlist, error) {
	p := &Playlist{path: path, proxyURL: strings.TrimRight(proxyURL, "/")}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("parsing playlist %s: %w", path, err)
	}
	return p, nil
}

// NewPlaylist builds an in-memory playlist.
func NewPlaylist(proxyURL string, blobs []BlobTrack, static []StaticTrack) *Playlist {
	return &Playlist{
		proxyURL: strings.TrimRight(proxyURL, "/"),
		data:     playlistFile{BlobTracks: blobs, StaticTracks: static},
	}
}

func (p *Playlist) Resolve(title string) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, b := range p.data.BlobTracks {
		if b.Title == title && b.BlobID != "" {
			return Entry{
				Title:   title,
				BlobID:  b.BlobID,
				Locator: p.proxyURL + "/api/audio/" + b.BlobID,
			}, true
		}
	}
	for _, s := range p.data.StaticTracks {
		if s.Title == title && s.Path != "" {
			return Entry{Title: title, Path: s.Path, Locator: s.Path}, true
		}
	}
	return Entry{}, false
}

// AddBlob records an uploaded blob, replacing an older blob for the same title.
func (p *Playlist) AddBlob(title, blobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, b := range p.data.BlobTracks {
		if b.Title == title {
			p.data.BlobTracks[i].BlobID = blobID
			return
		}
	}
	p.data.BlobTracks = append(p.data.BlobTracks, BlobTrack{Title: title, BlobID: blobID})
}

func (p *Playlist) Titles() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []string
	for _, b := range p.data.BlobTracks {
		out = append(out, b.Title)
	}
	for _, s := range p.data.StaticTracks {
		out = append(out, s.Title)
	}
	return out
}

func (p *Playlist) Save() error {
	if p.path == "" {
		return errors.New("playlist has no file")
	}

	p.mu.RLock()
	raw, err := yaml.Marshal(&p.data)
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}
