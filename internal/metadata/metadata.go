// Package metadata reads and writes the tags embedded in uploaded audio.
package metadata

import (
	"io"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// Info is the tag summary the proxy reports for a blob.
type Info struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	Year     string `json:"year"`
	Format   string `json:"format"`
	FileType string `json:"file_type"`
	HasArt   bool   `json:"has_art"`

	Art *Picture `json:"-"`
}

// Picture is embedded album art.
type Picture struct {
	MIMEType string
	Data     []byte
}

// Read extracts tags from r. It returns tag.ErrNoTagsFound for untagged audio.
func Read(r io.ReadSeeker) (Info, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Title:    strings.TrimSpace(m.Title()),
		Artist:   strings.TrimSpace(m.Artist()),
		Album:    strings.TrimSpace(m.Album()),
		Genre:    strings.TrimSpace(m.Genre()),
		Format:   string(m.Format()),
		FileType: string(m.FileType()),
	}
	if info.Artist == "" {
		info.Artist = strings.TrimSpace(m.AlbumArtist())
	}
	if m.Year() != 0 {
		info.Year = strconv.Itoa(m.Year())
	}
	if p := m.Picture(); p != nil && len(p.Data) > 0 {
		mime := p.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		info.Art = &Picture{MIMEType: mime, Data: p.Data}
		info.HasArt = true
	}
	return info, nil
}
