package template

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"ArticleForge/internal/domain"
)

// Resolver merges the three template layers into one Merged structure.
// Resolution either succeeds completely or fails with ErrTemplateNotFound
// or an IntegrityError; partial results are never returned.
type Resolver struct {
	loader *Loader
}

// NewResolver builds a resolver over the template filesystem.
func NewResolver(fsys fs.FS) *Resolver {
	return &Resolver{loader: NewLoader(fsys)}
}

// Resolve loads the meta layer for templateID, merges its declared shared
// files, assembles and condition-resolves the sections, and produces the
// final prompt text.
func (r *Resolver) Resolve(templateID string, opts domain.GenerationOptions) (Merged, error) {
	meta, err := r.loader.LoadMeta(templateID)
	if err != nil {
		return Merged{}, err
	}

	merged := Merged{
		ID:          meta.ID,
		Version:     meta.Version,
		Required:    map[string]Placeholder{},
		Optional:    map[string]Placeholder{},
		Constraints: map[string]Constraint{},
	}

	for _, name := range meta.Shared {
		shared, err := r.loader.LoadShared(meta.ID, name)
		if err != nil {
			return Merged{}, err
		}
		if err := mergeShared(&merged, meta.ID, name, shared); err != nil {
			return Merged{}, err
		}
	}

	for _, step := range meta.Pipeline.Order {
		merged.Steps = append(merged.Steps, StepPrompt{
			Name:   step,
			Prompt: meta.Pipeline.Steps[step].Prompt,
		})
	}

	if meta.SectionsFile != "" {
		sections, err := r.loader.LoadSections(meta.ID, meta.SectionsFile)
		if err != nil {
			return Merged{}, err
		}
		resolved, err := assembleSections(meta, sections, opts)
		if err != nil {
			return Merged{}, err
		}
		merged.Sections = resolved
	}

	merged.Prompt = renderPrompt(merged, opts.Debug)
	return merged, nil
}

func mergeShared(merged *Merged, templateID, file string, shared Shared) error {
	for _, ph := range shared.Placeholders {
		if _, dup := merged.Required[ph.Name]; dup {
			return integrityErr(templateID, "placeholder %q redefined by shared file %q", ph.Name, file)
		}
		if _, dup := merged.Optional[ph.Name]; dup {
			return integrityErr(templateID, "placeholder %q redefined by shared file %q", ph.Name, file)
		}
		if ph.Required {
			merged.Required[ph.Name] = ph
		} else {
			merged.Optional[ph.Name] = ph
		}
	}
	for _, c := range shared.Constraints {
		if _, dup := merged.Constraints[c.Name]; dup {
			return integrityErr(templateID, "constraint %q redefined by shared file %q", c.Name, file)
		}
		merged.Constraints[c.Name] = c
	}
	return nil
}

func assembleSections(meta Meta, sections Sections, opts domain.GenerationOptions) ([]ResolvedSection, error) {
	byName := make(map[string]Section, len(sections.Sections))
	for _, s := range sections.Sections {
		if _, dup := byName[s.Name]; dup {
			return nil, integrityErr(meta.ID, "duplicate section name %q", s.Name)
		}
		byName[s.Name] = s
	}

	var ordered []Section
	if meta.Assembly.Order == AssemblyExplicit {
		for _, name := range meta.Assembly.Sections {
			s, ok := byName[name]
			if !ok {
				return nil, integrityErr(meta.ID, "assembly references unknown section %q", name)
			}
			ordered = append(ordered, s)
		}
	} else {
		seenOrder := map[int]string{}
		for _, s := range sections.Sections {
			if prev, clash := seenOrder[s.Order]; clash {
				return nil, integrityErr(meta.ID, "sections %q and %q share order %d", prev, s.Name, s.Order)
			}
			seenOrder[s.Order] = s.Name
		}
		ordered = append(ordered, sections.Sections...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	}

	vars := optionVars(opts)
	resolved := make([]ResolvedSection, 0, len(ordered))
	for _, section := range ordered {
		text, include, err := resolveVariant(meta.ID, section, vars)
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}
		resolved = append(resolved, ResolvedSection{
			Name:     section.Name,
			Text:     text,
			Required: section.Required,
			Optional: section.Optional,
		})
	}
	return resolved, nil
}

// resolveVariant picks the first variant whose condition is true, falling
// back to the section's default template. A section with no applicable
// text is omitted only when marked skippable.
func resolveVariant(templateID string, section Section, vars map[string]any) (string, bool, error) {
	for _, variant := range section.Variants {
		ok, err := EvalCondition(variant.When, vars)
		if err != nil {
			return "", false, integrityErr(templateID, "section %q condition %q: %v", section.Name, variant.When, err)
		}
		if ok {
			return variant.Template, true, nil
		}
	}
	if section.Template != "" {
		return section.Template, true, nil
	}
	if section.Skippable {
		return "", false, nil
	}
	return "", false, integrityErr(templateID, "section %q has no applicable variant and no default", section.Name)
}

// renderPrompt concatenates step prompts and section texts. Debug mode
// inserts visible boundary markers between sections; generation semantics
// are unchanged.
func renderPrompt(merged Merged, debug bool) string {
	var b strings.Builder
	for _, step := range merged.Steps {
		if step.Prompt == "" {
			continue
		}
		b.WriteString(step.Prompt)
		b.WriteString("\n\n")
	}
	for _, section := range merged.Sections {
		if debug {
			fmt.Fprintf(&b, "<<<--- section: %s --->>>\n", section.Name)
		}
		b.WriteString(section.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func optionVars(opts domain.GenerationOptions) map[string]any {
	return map[string]any{
		"length":   opts.TargetLength,
		"tone":     opts.Tone,
		"language": opts.Language,
		"debug":    opts.Debug,
	}
}
