package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions are the audio container formats accepted for analysis.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
}

// IsSupportedAudio reports whether the path has a supported audio extension.
func IsSupportedAudio(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions returns the accepted extensions, sorted, for error
// messages.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ScanDir lists the supported audio files directly inside dir, sorted by
// name so batch runs are deterministic.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedAudio(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// TurnReportName is the per-file turn table filename for an audio file.
func TurnReportName(audioFile string) string {
	base := filepath.Base(audioFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_turns.csv"
}
