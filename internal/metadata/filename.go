package metadata

import (
	"path/filepath"
	"strings"
)

// TitleFromFilename turns "night_drive-final.mp3" into "night drive final".
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	clean := strings.TrimSuffix(base, filepath.Ext(base))
	clean = strings.NewReplacer("_", " ", "-", " ").Replace(clean)
	return strings.Join(strings.Fields(clean), " ")
}
