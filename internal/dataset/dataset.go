// Package dataset reads the site directory that drives icon downloads. The
// directory is a list of categories, each holding named sites. It may be
// stored as a JS module exporting the object, as plain JSON, or as YAML.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/belingud/mao-nav/internal/favicon"
)

// DefaultVariable is the exported constant name in JS datasets.
const DefaultVariable = "mockData"

// ErrNoExport is returned when a JS dataset lacks the expected export.
var ErrNoExport = errors.New("dataset export not found")

// Document is the top-level site directory.
type Document struct {
	Categories []Category `json:"categories" yaml:"categories"`
}

// Category groups sites under a heading.
type Category struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Sites []Site `json:"sites" yaml:"sites"`
}

// Site is one directory entry. Only Name and URL matter here.
type Site struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Entries flattens the document into (name, url) pairs in document order.
func (d Document) Entries() []favicon.SiteEntry {
	var entries []favicon.SiteEntry
	for _, c := range d.Categories {
		for _, s := range c.Sites {
			entries = append(entries, favicon.SiteEntry{Name: s.Name, URL: s.URL})
		}
	}
	return entries
}

// Load reads path and decodes it by extension. variable names the JS export
// and defaults to DefaultVariable.
func Load(path, variable string) (Document, error) {
	// #nosec G304 -- the dataset path comes from operator configuration.
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read dataset: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(content)
	case ".json":
		return decodeJSON(content)
	default:
		return ParseModule(content, variable)
	}
}

// ParseModule extracts `export const <variable> = {...}` from a JS module and
// decodes the object literal as JSON. The object runs from the first brace
// after the export to the last closing brace in the file.
func ParseModule(content []byte, variable string) (Document, error) {
	if variable == "" {
		variable = DefaultVariable
	}
	re, err := regexp.Compile(`(?s)export\s+const\s+` + regexp.QuoteMeta(variable) + `\s*=\s*(\{.*\})`)
	if err != nil {
		return Document{}, fmt.Errorf("compile export pattern: %w", err)
	}
	match := re.FindSubmatch(content)
	if match == nil {
		return Document{}, fmt.Errorf("%w: export const %s", ErrNoExport, variable)
	}
	return decodeJSON(match[1])
}

func decodeJSON(content []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return Document{}, fmt.Errorf("decode dataset json: %w", err)
	}
	return doc, nil
}

func decodeYAML(content []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return Document{}, fmt.Errorf("decode dataset yaml: %w", err)
	}
	return doc, nil
}
