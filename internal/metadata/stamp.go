package metadata

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// id3v2 refuses to open files shorter than a tag header.
const id3HeaderSize = 10

// Tags are the uploader supplied values written before publishing. Empty
// fields leave the file's existing values alone.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

func (t Tags) empty() bool {
	return t.Title == "" && t.Artist == "" && t.Album == ""
}

// Stamp writes tags into path according to its extension. Formats other than
// MP3 and FLAC are left untouched.
func Stamp(path string, t Tags) error {
	if t.empty() {
		return nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return StampMP3(path, t)
	case ".flac":
		return StampFLAC(path, t)
	}
	return nil
}

func StampMP3(path string, t Tags) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.Size() < id3HeaderSize {
		return prependID3(path, stat.Mode(), t)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if tag != nil {
			tag.Close()
		}
		return err
	}
	defer tag.Close()

	setID3(tag, t)
	return tag.Save()
}

func setID3(tag *id3v2.Tag, t Tags) {
	if t.Title != "" {
		tag.SetTitle(t.Title)
	}
	if t.Artist != "" {
		tag.SetArtist(t.Artist)
	}
	if t.Album != "" {
		tag.SetAlbum(t.Album)
	}
}

// prependID3 writes a fresh tag in front of a file too short to carry one.
func prependID3(path string, mode os.FileMode, t Tags) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tag := id3v2.NewEmptyTag()
	setID3(tag, t)

	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return err
	}
	buf.Write(body)

	tmp := path + ".stamp"
	if err := os.WriteFile(tmp, buf.Bytes(), mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// StampFLAC rewrites the Vorbis comment block, keeping comments we do not set.
func StampFLAC(path string, t Tags) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return err
	}

	var cmts *flacvorbis.MetaDataBlockVorbisComment
	idx := -1
	for i, m := range f.Meta {
		if m.Type == flac.VorbisComment {
			cmts, err = flacvorbis.ParseFromMetaDataBlock(*m)
			if err != nil {
				return err
			}
			idx = i
			break
		}
	}
	if cmts == nil {
		cmts = flacvorbis.New()
	}

	fields := []struct{ key, val string }{
		{flacvorbis.FIELD_TITLE, t.Title},
		{flacvorbis.FIELD_ARTIST, t.Artist},
		{flacvorbis.FIELD_ALBUM, t.Album},
	}
	for _, field := range fields {
		if field.val == "" {
			continue
		}
		if err := setComment(cmts, field.key, field.val); err != nil {
			return err
		}
	}

	block := cmts.Marshal()
	if idx < 0 {
		// Must follow STREAMINFO, which stays first
		f.Meta = append(f.Meta, &block)
	} else {
		f.Meta[idx] = &block
	}
	return f.Save(path)
}

// setComment replaces every value of key, case-insensitively, with val.
func setComment(c *flacvorbis.MetaDataBlockVorbisComment, key, val string) error {
	kept := c.Comments[:0]
	for _, cmt := range c.Comments {
		if k, _, _ := strings.Cut(cmt, "="); !strings.EqualFold(k, key) {
			kept = append(kept, cmt)
		}
	}
	c.Comments = kept
	return c.Add(key, val)
}
