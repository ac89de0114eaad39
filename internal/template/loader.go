package template

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk YAML schema: a document with a top-level
// "templates" list.
type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadStore reads a template store from the YAML file at path.
func LoadStore(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("template: open %s: %w", path, err)
	}
	defer f.Close()

	s, err := LoadStoreFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("template: load %s: %w", path, err)
	}
	return s, nil
}

// LoadStoreFromReader decodes a template store from YAML. Unknown fields are
// rejected so typos in template files surface as load errors.
func LoadStoreFromReader(r io.Reader) (*Store, error) {
	var file templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("template: decode: %w", err)
	}

	for i, tpl := range file.Templates {
		if err := validateTemplate(tpl); err != nil {
			return nil, fmt.Errorf("template: templates[%d] (%s): %w", i, tpl.ID, err)
		}
	}
	return NewStore(file.Templates)
}

func validateTemplate(tpl Template) error {
	if len(tpl.Sections) == 0 {
		return fmt.Errorf("has no sections")
	}
	for i, sec := range tpl.Sections {
		if sec.Title == "" {
			return fmt.Errorf("sections[%d] has no title", i)
		}
		if sec.Context == "" {
			return fmt.Errorf("sections[%d] (%s) has no context", i, sec.Title)
		}
	}
	return nil
}
