package action

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/youruser/quill/internal/logging"
)

var log = logging.Get()

const frontmatterDelimiter = "---"

// Template is a user-defined action loaded from the actions directory.
// The Markdown body is the instruction prompt; YAML frontmatter carries
// the metadata.
type Template struct {
	Name              string `yaml:"name"`
	Label             string `yaml:"label"`
	RequiresSelection bool   `yaml:"requires_selection"`
	Prompt            string `yaml:"-"`
}

// LoadTemplates reads *.md templates from dir, sorted by name. A
// missing directory yields none; malformed files are skipped with a
// debug log so one bad template never hides the rest.
func LoadTemplates(dir string) []Template {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var templates []Template
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Debug("Skipping action template %s: %v", path, err)
			continue
		}
		t, err := parseTemplate(string(data))
		if err != nil {
			log.Debug("Skipping action template %s: %v", path, err)
			continue
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(e.Name(), ".md")
		}
		if t.Label == "" {
			t.Label = t.Name
		}
		templates = append(templates, t)
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates
}

// parseTemplate splits optional YAML frontmatter from the prompt body.
// A file without frontmatter is all prompt.
func parseTemplate(content string) (Template, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")

	if !strings.HasPrefix(normalized, frontmatterDelimiter+"\n") {
		body := strings.TrimSpace(normalized)
		if body == "" {
			return Template{}, errors.New("empty template")
		}
		return Template{Prompt: body}, nil
	}

	rest := normalized[len(frontmatterDelimiter)+1:]
	head, body, ok := strings.Cut(rest, "\n"+frontmatterDelimiter)
	if !ok {
		return Template{}, errors.New("unterminated frontmatter: missing closing ---")
	}

	var t Template
	if err := yaml.Unmarshal([]byte(head), &t); err != nil {
		return Template{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	t.Prompt = strings.TrimSpace(strings.TrimPrefix(body, "\n"))
	if t.Prompt == "" {
		return Template{}, errors.New("template has no prompt body")
	}
	return t, nil
}
