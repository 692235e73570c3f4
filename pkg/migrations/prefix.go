package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dd0wney/cluso-starter/pkg/validation"
)

// dateLayout is the YYYYMMDD part of a migration prefix.
const dateLayout = "20060102"

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Prefix returns the next free "YYYYMMDD_NNN_" prefix for now in dir.
// NNN is one more than the number of entries in dir that already start with
// today's date. A missing dir yields sequence 001.
func Prefix(dir string, now time.Time) (string, error) {
	date := now.Format(dateLayout)

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read migrations dir: %w", err)
	}

	seq := 1
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), date) {
			seq++
		}
	}

	return fmt.Sprintf("%s_%03d_", date, seq), nil
}

// Slug lowercases name and collapses anything outside [a-z0-9] to "_".
func Slug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// Create writes an empty migration file for name and returns its path.
// The directory is created if needed.
func Create(dir, name string, now time.Time) (string, error) {
	slug := Slug(name)
	if err := validation.ValidateMigrationName(slug); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	prefix, err := Prefix(dir, now)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, prefix+slug+".sql")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	return path, f.Close()
}
