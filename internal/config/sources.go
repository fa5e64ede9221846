package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/klvl/alynappi/internal/models"
)

// FolderCategory maps one ingestion subdirectory to the category its documents get.
type FolderCategory struct {
	Folder   string `yaml:"folder"`
	Category string `yaml:"category"`
}

// WebSources configures the curated web crawl.
type WebSources struct {
	Category        string   `yaml:"category"`
	Sitemaps        []string `yaml:"sitemaps"`
	AllowedPaths    []string `yaml:"allowed_paths"`
	Excluded        []string `yaml:"excluded"`
	MinContentChars int      `yaml:"min_content_chars"`
	MinChunkChars   int      `yaml:"min_chunk_chars"`
}

// Sources is the ingestion table: where documents live and which category each gets.
type Sources struct {
	BaseDir string           `yaml:"base_dir"`
	Folders []FolderCategory `yaml:"folders"`
	Web     WebSources       `yaml:"web"`
}

// LoadSources reads the sources table from path. If the file does not exist, returns defaults.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSources(), nil
		}
		return nil, err
	}
	var src Sources
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applySourceDefaults(&src)
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &src, nil
}

// Validate checks that every folder row names a category.
func (s *Sources) Validate() error {
	seen := make(map[string]struct{}, len(s.Folders))
	for _, f := range s.Folders {
		if strings.TrimSpace(f.Folder) == "" || strings.TrimSpace(f.Category) == "" {
			return fmt.Errorf("folder row needs both folder and category: %+v", f)
		}
		if _, dup := seen[f.Folder]; dup {
			return fmt.Errorf("folder %q listed twice", f.Folder)
		}
		seen[f.Folder] = struct{}{}
	}
	return nil
}

// FolderPath returns the absolute-or-relative directory of a folder row.
func (s *Sources) FolderPath(f FolderCategory) string {
	return filepath.Join(s.BaseDir, f.Folder)
}

// CategoryFor looks up the category of a folder; ok is false for unknown folders.
func (s *Sources) CategoryFor(folder string) (string, bool) {
	for _, f := range s.Folders {
		if f.Folder == folder {
			return f.Category, true
		}
	}
	return "", false
}

// HasCategory reports whether category is assigned to any folder.
func (s *Sources) HasCategory(category string) bool {
	for _, f := range s.Folders {
		if f.Category == category {
			return true
		}
	}
	return false
}

func DefaultSources() *Sources {
	src := &Sources{
		BaseDir: "tietolahteet",
		Folders: []FolderCategory{
			{Folder: "lehti-pdf", Category: models.CategoryMagazine},
			{Folder: "oppaat-pdf", Category: models.CategoryGuide},
			{Folder: "tutkimukset-pdf", Category: models.CategoryStudy},
		},
		Web: WebSources{
			Sitemaps: []string{
				"https://klvl.fi/page-sitemap.xml",
				"https://kuuloavain.fi/page-sitemap.xml",
			},
			AllowedPaths: []string{
				"kuuloavain.fi/support",
				"kuuloavain.fi/info",
				"kuuloavain.fi/vertaistukea",
				"kuuloavain.fi/tietoa",
				"klvl.fi/uusille-perheille",
				"klvl.fi/vertaistoiminta",
				"klvl.fi/edunvalvonta",
				"klvl.fi/jasenille",
				"klvl.fi/vaikuta-kanssamme",
			},
			Excluded: []string{"/sv/", "/en/", ".pdf", ".xml"},
		},
	}
	applySourceDefaults(src)
	return src
}

func applySourceDefaults(src *Sources) {
	if src.BaseDir == "" {
		src.BaseDir = "tietolahteet"
	}
	if src.Web.Category == "" {
		src.Web.Category = models.CategoryWebsite
	}
	if src.Web.MinContentChars == 0 {
		src.Web.MinContentChars = 300
	}
	if src.Web.MinChunkChars == 0 {
		src.Web.MinChunkChars = 150
	}
}
