package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/gin-gonic/gin"

	"github.com/MrBlinki/sui-hackaton25/internal/blob"
	"github.com/MrBlinki/sui-hackaton25/internal/cache"
	"github.com/MrBlinki/sui-hackaton25/internal/metadata"
)

func (s *Server) describe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name": "jukebox-blob-proxy",
		"endpoints": gin.H{
			"health":   "GET /api/health",
			"audio":    "GET|HEAD /api/audio/:blobId",
			"upload":   "POST /api/upload (multipart: file, title)",
			"metadata": "GET /api/metadata/:blobId",
			"art":      "GET /api/art/:blobId",
		},
		"aggregators": s.mirrors.Names(),
		"publishers":  s.publishers.Names(),
	})
}

func (s *Server) health(c *gin.Context) {
	stats := s.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"aggregators":  s.mirrors.Len(),
		"publishers":   s.publishers.Len(),
		"cached_files": stats.Files,
		"cache_bytes":  stats.Bytes,
		"timestamp":    time.Now().UTC(),
	})
}

// cachedBlob validates the id and makes sure the blob is on local disk.
// It writes the error response itself and returns ok=false on failure.
func (s *Server) cachedBlob(c *gin.Context) (string, string, bool) {
	id := c.Param("blobId")
	if !blob.ValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidBlobId", "details": "blob id must match [A-Za-z0-9_-]{1,128}"})
		return "", "", false
	}

	path, err := s.cache.Get(c.Request.Context(), id)
	if err != nil {
		var all *blob.AllMirrorsFailedError
		switch {
		case errors.As(err, &all):
			c.JSON(http.StatusBadGateway, gin.H{"error": "AllMirrorsFailed", "details": err.Error()})
		case errors.Is(err, cache.ErrInvalidID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidBlobId"})
		default:
			slog.Error("cache lookup failed", "blob", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "CacheError", "details": err.Error()})
		}
		return "", "", false
	}
	return id, path, true
}

// serveAudio answers GET and HEAD, with byte range support.
func (s *Server) serveAudio(c *gin.Context) {
	id, path, ok := s.cachedBlob(c)
	if !ok {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		// Evicted between lookup and open
		slog.Error("cached blob vanished", "blob", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CacheError"})
		return
	}
	defer f.Close()

	h := c.Writer.Header()
	h.Set("Content-Type", "audio/mpeg")
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("ETag", `"`+id+`"`)

	// Blobs are immutable, so the ETag replaces Last-Modified
	http.ServeContent(c.Writer, c.Request, id, time.Time{}, f)
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes())

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "FileTooLarge", "details": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "NoFile", "details": "multipart field 'file' is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "File open error"})
		return
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	tmp, err := os.CreateTemp("", "jukebox-upload-*"+ext)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server storage error"})
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server storage error"})
		return
	}
	tmp.Close()

	title := strings.TrimSpace(c.PostForm("title"))
	if err := metadata.Stamp(tmp.Name(), metadata.Tags{Title: title}); err != nil {
		// An unparsable tag block is not fatal: publish the bytes as received
		slog.Warn("failed to stamp title", "file", fileHeader.Filename, "error", err)
	}

	final, err := os.Open(tmp.Name())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read processed file"})
		return
	}
	defer final.Close()

	info, err := metadata.Read(final)
	if err != nil && !errors.Is(err, tag.ErrNoTagsFound) {
		slog.Debug("no readable tags in upload", "file", fileHeader.Filename, "error", err)
	}
	if title == "" {
		title = info.Title
	}
	if title == "" {
		title = metadata.TitleFromFilename(fileHeader.Filename)
	}

	stat, err := final.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read processed file"})
		return
	}

	blobID, publisher, err := s.publishers.Publish(c.Request.Context(), final, stat.Size())
	if err != nil {
		var all *blob.AllPublishersFailedError
		if errors.As(err, &all) {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "AllPublishersFailed", "details": err.Error()})
			return
		}
		slog.Error("upload failed", "file", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "UploadFailed", "details": err.Error()})
		return
	}

	// Seed the cache so the first play does not go back to the mirrors
	if blob.ValidID(blobID) {
		if _, err := final.Seek(0, io.SeekStart); err == nil {
			if _, err := s.cache.Put(blobID, final); err != nil {
				slog.Warn("failed to cache upload", "blob", blobID, "error", err)
			}
		}
	}

	slog.Info("blob published", "blob", blobID, "publisher", publisher, "size", stat.Size(), "title", title)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"blobId":    blobID,
		"filename":  fileHeader.Filename,
		"size":      stat.Size(),
		"title":     title,
		"artist":    info.Artist,
		"album":     info.Album,
		"has_art":   info.HasArt,
		"publisher": publisher,
	})
}

// readTags opens a cached blob and reads its tags. has is false for untagged audio.
func (s *Server) readTags(c *gin.Context) (id string, info metadata.Info, has bool, ok bool) {
	id, path, ok := s.cachedBlob(c)
	if !ok {
		return "", metadata.Info{}, false, false
	}

	f, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CacheError"})
		return "", metadata.Info{}, false, false
	}
	defer f.Close()

	info, err = metadata.Read(f)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			slog.Debug("tag read failed", "blob", id, "error", err)
		}
		return id, metadata.Info{}, false, true
	}
	return id, info, true, true
}

func (s *Server) blobMetadata(c *gin.Context) {
	id, info, has, ok := s.readTags(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"blobId":   id,
		"has_tags": has,
		"metadata": info,
	})
}

func (s *Server) albumArt(c *gin.Context) {
	_, info, _, ok := s.readTags(c)
	if !ok {
		return
	}
	if info.Art == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "NoAlbumArt"})
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, info.Art.MIMEType, info.Art.Data)
}
