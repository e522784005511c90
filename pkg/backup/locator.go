package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// filenameDate extracts a YYYY-MM-DD timestamp embedded in a backup filename,
// e.g. kgay_backup_2025-03-15.sql.
var filenameDate = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

type (
	// Artifact describes a single backup file found on disk.
	Artifact struct {
		Path      string
		CreatedAt time.Time
		Size      int64
	}

	// NoBackupError indicates no file in the directory matched the pattern.
	NoBackupError struct {
		Dir     string
		Pattern string
	}
)

func (e *NoBackupError) Error() string {
	return fmt.Sprintf("no backup matching %s found in %s", e.Pattern, e.Dir)
}

// FindLatest returns the most recent backup in dir matching the glob pattern.
// Recency comes from the date embedded in the filename when present, falling
// back to the file's modification time.
func FindLatest(dir, pattern string) (*Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backup pattern: %s", pattern)
	}

	artifacts := make([]*Artifact, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat backup: %s", path)
		}
		if info.IsDir() {
			continue
		}

		artifacts = append(artifacts, &Artifact{
			Path:      path,
			CreatedAt: artifactTime(path, info),
			Size:      info.Size(),
		})
	}

	if len(artifacts) == 0 {
		return nil, &NoBackupError{Dir: dir, Pattern: pattern}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
		}
		return artifacts[i].Path > artifacts[j].Path
	})

	return artifacts[0], nil
}

func artifactTime(path string, info os.FileInfo) time.Time {
	if m := filenameDate.FindString(filepath.Base(path)); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}
	return info.ModTime()
}
