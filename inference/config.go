package inference

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// Document is an ordered collection of INI sections. Section and key order
// is the insertion order, so emitted files are deterministic.
type Document struct {
	sections []*docSection
}

type docSection struct {
	name string
	keys []string
	vals map[string]string
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Section returns the named section, creating it on first use.
func (d *Document) Section(name string) *SectionBuilder {
	for _, s := range d.sections {
		if s.name == name {
			return &SectionBuilder{s: s}
		}
	}
	s := &docSection{name: name, vals: make(map[string]string)}
	d.sections = append(d.sections, s)
	return &SectionBuilder{s: s}
}

// SectionBuilder sets keys on one section.
type SectionBuilder struct {
	s *docSection
}

// Set stores a key/value pair, keeping first-set order on overwrite.
func (b *SectionBuilder) Set(key, value string) *SectionBuilder {
	if _, seen := b.s.vals[key]; !seen {
		b.s.keys = append(b.s.keys, key)
	}
	b.s.vals[key] = value
	return b
}

// Setf stores a formatted value.
func (b *SectionBuilder) Setf(key, format string, args ...any) *SectionBuilder {
	return b.Set(key, fmt.Sprintf(format, args...))
}

// Render returns the document as INI text.
func (d *Document) Render() (string, error) {
	f := ini.Empty()
	for _, s := range d.sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return "", fmt.Errorf("inference: render section %q: %w", s.name, err)
		}
		for _, k := range s.keys {
			if _, err := sec.NewKey(k, s.vals[k]); err != nil {
				return "", fmt.Errorf("inference: render key %q in %q: %w", k, s.name, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("inference: render document: %w", err)
	}
	return buf.String(), nil
}

// WriteFile renders the document to path.
func (d *Document) WriteFile(path string) error {
	text, err := d.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("inference: write config %q: %w", path, err)
	}
	return nil
}

// Parse loads INI text back into section -> key -> value maps. Emitted and
// re-parsed documents are equal, which the tests rely on.
func Parse(text string) (map[string]map[string]string, error) {
	f, err := ini.Load([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("inference: parse config: %w", err)
	}

	out := make(map[string]map[string]string)
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		m := make(map[string]string, len(sec.Keys()))
		for _, k := range sec.Keys() {
			m[k.Name()] = k.Value()
		}
		out[sec.Name()] = m
	}
	return out, nil
}
