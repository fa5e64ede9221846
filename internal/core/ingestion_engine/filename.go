package ingestion_engine

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var issuePattern = regexp.MustCompile(`(?i)Nappi[_\s-]?(\d+)[_\s-]?(\d{4})`)

// ParseFilename pulls the issue number and year out of names like "Nappi_3_2021.pdf".
// Names that do not follow the pattern yield nil for both.
func ParseFilename(name string) (issue, year *int) {
	m := issuePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return nil, nil
	}
	i, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, nil
	}
	y, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, nil
	}
	return &i, &y
}

// TitleFromFilename is the base name without its extension.
func TitleFromFilename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
