package template

import (
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Loader reads template layer files from a filesystem. Meta files live at
// the root as <id>.yaml; shared and sections files are referenced by the
// meta layer with paths relative to the same root.
type Loader struct {
	fsys fs.FS
}

// NewLoader wraps the filesystem holding template definitions.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// LoadMeta reads and validates the meta layer for a template id.
func (l *Loader) LoadMeta(templateID string) (Meta, error) {
	raw, err := fs.ReadFile(l.fsys, templateID+".yaml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return Meta{}, fmt.Errorf("read meta %s: %w", templateID, err)
	}

	var meta Meta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode meta %s: %w", templateID, err)
	}
	if meta.ID == "" {
		meta.ID = templateID
	}
	if err := meta.Validate(); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// LoadShared reads one shared-definition file declared by a meta layer.
// A missing file is an integrity error of the declaring template, not a
// not-found condition.
func (l *Loader) LoadShared(templateID, name string) (Shared, error) {
	raw, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Shared{}, integrityErr(templateID, "missing shared dependency %q", name)
		}
		return Shared{}, fmt.Errorf("read shared %s: %w", name, err)
	}

	var shared Shared
	if err := yaml.Unmarshal(raw, &shared); err != nil {
		return Shared{}, integrityErr(templateID, "decode shared %q: %v", name, err)
	}
	for _, ph := range shared.Placeholders {
		if ph.Name == "" {
			return Shared{}, integrityErr(templateID, "shared %q declares a placeholder without a name", name)
		}
	}
	for _, c := range shared.Constraints {
		if c.Name == "" {
			return Shared{}, integrityErr(templateID, "shared %q declares a constraint without a name", name)
		}
	}
	return shared, nil
}

// LoadSections reads the sections layer referenced by a meta layer.
func (l *Loader) LoadSections(templateID, name string) (Sections, error) {
	raw, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Sections{}, integrityErr(templateID, "sections file %q does not exist", name)
		}
		return Sections{}, fmt.Errorf("read sections %s: %w", name, err)
	}

	var sections Sections
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return Sections{}, integrityErr(templateID, "decode sections %q: %v", name, err)
	}
	for _, s := range sections.Sections {
		if s.Name == "" {
			return Sections{}, integrityErr(templateID, "sections %q declares a section without a name", name)
		}
	}
	return sections, nil
}
