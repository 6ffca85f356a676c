package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// bulletRe matches a list item: -, *, + or an ordered marker like "1." / "1)".
var bulletRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.*)$`)

// documentExts are the file extensions scanned for acceptance criteria.
var documentExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// IsDocument reports whether path has a requirements document extension.
func IsDocument(path string) bool {
	return documentExts[strings.ToLower(filepath.Ext(path))]
}

// ExtractACs returns the acceptance criteria found in content, in document
// order. A bullet line starts a new criterion and every following non-blank,
// non-bullet line is joined onto it with a single space, so a criterion runs
// until the next bullet or the end of content. Blank lines are skipped.
// Lines before the first bullet are ignored.
func ExtractACs(content string) []string {
	var (
		acs     []string
		current []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if ac := strings.TrimSpace(strings.Join(current, " ")); ac != "" {
			acs = append(acs, ac)
		}
		current = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case bulletRe.MatchString(line):
			flush()
			current = append(current, strings.TrimSpace(bulletRe.FindStringSubmatch(line)[1]))
		case len(current) > 0:
			current = append(current, trimmed)
		}
	}
	flush()
	return acs
}

// ScanDocuments returns the requirements documents directly inside dir,
// sorted by name. Subdirectories are not descended into.
func ScanDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
