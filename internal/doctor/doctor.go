// Package doctor assembles the diagnostic sections behind
// `autobuild doctor`.
package doctor

import "io"

// Section is one titled block of diagnostic output. Sections are
// independent; a failing one must not keep the rest from printing.
type Section interface {
	// Name returns the section title (e.g., "Provider Keys").
	Name() string

	// Print writes the section body to w.
	Print(w io.Writer) error
}

// Registry holds sections in display order.
type Registry struct {
	sections []Section
}

// NewRegistry creates a registry seeded with the given sections.
func NewRegistry(sections ...Section) *Registry {
	return &Registry{sections: sections}
}

// Register appends a section.
func (r *Registry) Register(s Section) {
	r.sections = append(r.sections, s)
}

// Sections returns the registered sections in registration order.
func (r *Registry) Sections() []Section {
	return r.sections
}
