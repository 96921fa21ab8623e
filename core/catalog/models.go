package catalog

import "github.com/pkg/errors"

var ErrNotFound = errors.New("course not found")

// Day is a lowercase weekday key as rendered by the calendar.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
)

// dayAbbrevs maps the backend's schedule-string day tokens to Day keys.
var dayAbbrevs = map[string]Day{
	"Lun": Monday,
	"Mar": Tuesday,
	"Mie": Wednesday,
	"Jue": Thursday,
	"Vie": Friday,
	"Sab": Saturday,
}

// Risk categories assigned by the prediction backend.
const (
	RiskRiesgo   = "Riesgo"
	RiskNormal   = "Normal"
	RiskFactible = "Factible"
)

type (
	// Session is a single weekly meeting of a section. Immutable once parsed.
	Session struct {
		Day      Day    `json:"day"`
		Start    string `json:"start"` // "HH:MM"
		End      string `json:"end"`   // "HH:MM"
		Location string `json:"location"`
		Teacher  string `json:"teacher,omitempty"`
	}

	// Section is a specific offering of a course with its own weekly schedule.
	Section struct {
		ID       string    `json:"section_id"`
		Name     string    `json:"section_name"`
		Sessions []Session `json:"sessions"`
	}

	// Course is a catalog entry. Identity is Code; EstimatedGrade and Risk
	// are filled in once a prediction resolves.
	Course struct {
		Code            string    `json:"code"`
		Name            string    `json:"name"`
		Credits         int       `json:"credits"`
		Prerequisites   []string  `json:"prerequisites"`
		Sections        []Section `json:"sections"`
		SelectedSection int       `json:"selected_section_index"`
		Slots           int       `json:"slots"`
		EstimatedGrade  *float64  `json:"estimated_grade,omitempty"`
		Risk            string    `json:"risk_category,omitempty"`
	}
)

// CurrentSection returns the currently selected section, or nil if the
// course has none.
func (c *Course) CurrentSection() *Section {
	if len(c.Sections) == 0 {
		return nil
	}
	idx := c.SelectedSection
	if idx < 0 || idx >= len(c.Sections) {
		idx = 0
	}
	return &c.Sections[idx]
}

// Catalog is the ordered set of courses available for enrollment.
// Courses are shared by pointer so that section changes made through the
// planner stay visible here.
type Catalog struct {
	Courses []*Course
	byCode  map[string]*Course
}

func newCatalog(capacity int) *Catalog {
	return &Catalog{
		Courses: make([]*Course, 0, capacity),
		byCode:  make(map[string]*Course, capacity),
	}
}

func (cat *Catalog) add(c *Course) {
	cat.Courses = append(cat.Courses, c)
	cat.byCode[c.Code] = c
}

func (cat *Catalog) Get(code string) (*Course, bool) {
	c, ok := cat.byCode[code]
	return c, ok
}

func (cat *Catalog) Len() int { return len(cat.Courses) }

// Codes returns all course codes in catalog order.
func (cat *Catalog) Codes() []string {
	codes := make([]string, 0, len(cat.Courses))
	for _, c := range cat.Courses {
		codes = append(codes, c.Code)
	}
	return codes
}
