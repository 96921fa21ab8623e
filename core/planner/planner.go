package planner

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/unitrack/unitrack/core"
	"github.com/unitrack/unitrack/core/catalog"
)

var (
	ErrNoPlanCourses = errors.New("no course of the recommended plan exists in the catalog")
)

// Planner owns the enrollment selection over a course catalog.
// Courses are shared by pointer with the catalog, so a section change is
// visible on both sides by construction.
type Planner struct {
	catalog  *catalog.Catalog
	selected []*catalog.Course
}

func New(cat *catalog.Catalog) *Planner {
	return &Planner{catalog: cat}
}

func (p *Planner) Catalog() *catalog.Catalog { return p.catalog }

// Selected returns the selection in insertion order.
func (p *Planner) Selected() []*catalog.Course {
	out := make([]*catalog.Course, len(p.selected))
	copy(out, p.selected)
	return out
}

func (p *Planner) IsSelected(code string) bool {
	return p.indexOf(code) >= 0
}

func (p *Planner) indexOf(code string) int {
	for i, c := range p.selected {
		if c.Code == code {
			return i
		}
	}
	return -1
}

// TotalCredits sums the credits of the current selection.
func (p *Planner) TotalCredits() int {
	var total int
	for _, c := range p.selected {
		total += c.Credits
	}
	return total
}

// SelectedCodes returns the selected course codes in insertion order.
func (p *Planner) SelectedCodes() []string {
	codes := make([]string, 0, len(p.selected))
	for _, c := range p.selected {
		codes = append(codes, c.Code)
	}
	return codes
}

// ToggleResult reports what Toggle did. When Conflicts is non-empty the
// course was NOT added; the caller must surface the conflicts and call
// AddConfirmed after explicit confirmation.
type ToggleResult struct {
	Added     bool
	Removed   bool
	Conflicts []Conflict
}

// Toggle removes the course if it is selected (no conflict check on
// removal). Otherwise it runs conflict detection and either appends the
// course or returns the advisory conflict list.
func (p *Planner) Toggle(code string) (ToggleResult, error) {
	if i := p.indexOf(code); i >= 0 {
		p.selected = append(p.selected[:i], p.selected[i+1:]...)
		return ToggleResult{Removed: true}, nil
	}

	course, ok := p.catalog.Get(code)
	if !ok {
		return ToggleResult{}, errors.Wrap(catalog.ErrNotFound, code)
	}
	if conflicts := FindConflicts(course, p.selected); len(conflicts) > 0 {
		return ToggleResult{Conflicts: conflicts}, nil
	}
	p.selected = append(p.selected, course)
	return ToggleResult{Added: true}, nil
}

// AddConfirmed appends the course unconditionally (post-confirmation path;
// conflicts are not re-checked).
func (p *Planner) AddConfirmed(code string) error {
	if p.indexOf(code) >= 0 {
		return nil
	}
	course, ok := p.catalog.Get(code)
	if !ok {
		return errors.Wrap(catalog.ErrNotFound, code)
	}
	p.selected = append(p.selected, course)
	return nil
}

// ChangeSection points the course at another of its sections. The course
// record is shared with the catalog, so catalog and selection stay
// consistent. Conflicts are not re-validated on a section change.
func (p *Planner) ChangeSection(code string, sectionIndex int) error {
	course, ok := p.catalog.Get(code)
	if !ok {
		return errors.Wrap(catalog.ErrNotFound, code)
	}
	if sectionIndex < 0 || sectionIndex >= len(course.Sections) {
		return errors.Errorf("%s: no section at index %d", code, sectionIndex)
	}
	course.SelectedSection = sectionIndex
	return nil
}

// Clear empties the selection.
func (p *Planner) Clear() {
	p.selected = nil
}

// ApplyCourses replaces the selection with the given course codes (legacy
// plan payloads carry a bare code list). Codes missing from the catalog are
// skipped; if none resolve the selection is left untouched.
func (p *Planner) ApplyCourses(codes []string) error {
	return p.apply(codes, nil)
}

// ApplyPlan replaces the selection with the plan's courses, binding each to
// the section resolved from cursos_secciones.
func (p *Planner) ApplyPlan(plan *core.RecommendedPlan) error {
	targets := make(map[string]string, len(plan.CursosSecciones))
	for _, b := range plan.CursosSecciones {
		targets[b.CodCurso] = b.Seccion
	}
	return p.apply(plan.Cursos, targets)
}

func (p *Planner) apply(codes []string, targets map[string]string) error {
	var resolved []*catalog.Course
	for _, code := range codes {
		course, ok := p.catalog.Get(code)
		if !ok {
			continue
		}
		course.SelectedSection = resolveSection(course, targets[code])
		resolved = append(resolved, course)
	}
	if len(resolved) == 0 {
		return ErrNoPlanCourses
	}
	p.selected = resolved
	return nil
}

// resolveSection maps a target section identifier to a section index:
// exact id match, then name containment in either direction (both
// case-insensitive), then the course's current selection.
func resolveSection(c *catalog.Course, target string) int {
	if target == "" {
		return c.SelectedSection
	}
	for i := range c.Sections {
		if strings.EqualFold(c.Sections[i].ID, target) {
			return i
		}
	}
	lt := strings.ToLower(target)
	for i := range c.Sections {
		ln := strings.ToLower(c.Sections[i].Name)
		if ln == "" {
			continue
		}
		if strings.Contains(ln, lt) || strings.Contains(lt, ln) {
			return i
		}
	}
	return c.SelectedSection
}
