package planner

import (
	"fmt"

	"github.com/unitrack/unitrack/core/catalog"
)

// Weekly grid geometry (7am-10pm, 60px per hour).
const (
	HourHeight = 60
	StartHour  = 7
	EndHour    = 22
)

// eventPalette is cycled by catalog position so a course keeps its color
// across re-renders.
var eventPalette = []string{
	"#2563EB", "#D81E05", "#0EA5E9", "#7C3AED", "#EA580C",
	"#1D4ED8", "#DB2777", "#14B8A6", "#10B981", "#F59E0B",
}

const defaultEventColor = "#2563EB"

// CalendarEvent is a renderable calendar block; derived, never stored.
type CalendarEvent struct {
	Day         catalog.Day `json:"day"`
	Start       string      `json:"start"`
	End         string      `json:"end"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Color       string      `json:"color"`
	Grade       *float64    `json:"grade,omitempty"`
	SectionName string      `json:"section_name"`
	Location    string      `json:"location,omitempty"`
}

// CalendarEvents derives one event per session of the selected section of
// each selected course.
func (p *Planner) CalendarEvents() []CalendarEvent {
	var events []CalendarEvent
	for _, course := range p.selected {
		sec := course.CurrentSection()
		if sec == nil {
			continue
		}
		color := p.courseColor(course.Code)
		for _, s := range sec.Sessions {
			events = append(events, CalendarEvent{
				Day:         s.Day,
				Start:       s.Start,
				End:         s.End,
				Code:        course.Code,
				Name:        course.Name,
				Color:       color,
				Grade:       course.EstimatedGrade,
				SectionName: sec.Name,
				Location:    s.Location,
			})
		}
	}
	return events
}

// EventsByDay groups the derived events per weekday column.
func (p *Planner) EventsByDay() map[catalog.Day][]CalendarEvent {
	byDay := make(map[catalog.Day][]CalendarEvent)
	for _, ev := range p.CalendarEvents() {
		byDay[ev.Day] = append(byDay[ev.Day], ev)
	}
	return byDay
}

func (p *Planner) courseColor(code string) string {
	for i, c := range p.catalog.Courses {
		if c.Code == code {
			return eventPalette[i%len(eventPalette)]
		}
	}
	return defaultEventColor
}

func parseTimeToMinutes(t string) int {
	var h, m int
	if _, err := fmt.Sscanf(t, "%d:%d", &h, &m); err != nil {
		return 0
	}
	return h*60 + m
}

// EventPosition computes the pixel offset and height of an event block
// inside its day column. Events shorter than 30 minutes still get a
// readable block (min height 44px).
func EventPosition(start, end string) (top, height float64) {
	startMin := parseTimeToMinutes(start)
	endMin := parseTimeToMinutes(end)

	startOffset := startMin - StartHour*60
	if startOffset < 0 {
		startOffset = 0
	}
	duration := endMin - startMin
	if duration < 30 {
		duration = 30
	}

	top = float64(startOffset) / 60 * HourHeight
	height = float64(duration)/60*HourHeight - 6
	if height < 44 {
		height = 44
	}
	return top, height
}

// FormatHourLabel renders a grid hour as a 12-hour label ("9:00 am").
func FormatHourLabel(hour int) string {
	suffix := "am"
	if hour >= 12 {
		suffix = "pm"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:00 %s", display, suffix)
}

// FormatEventRange renders "09:00"-"11:30" as "9:00 am - 11:30 am".
func FormatEventRange(start, end string) string {
	return formatReadable(start) + " - " + formatReadable(end)
}

func formatReadable(t string) string {
	var h, m int
	if _, err := fmt.Sscanf(t, "%d:%d", &h, &m); err != nil {
		return t
	}
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	display := h % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, m, suffix)
}

// FormatGrade renders a predicted grade for display; whole numbers drop the
// decimal, missing grades render as "-".
func FormatGrade(grade *float64) string {
	if grade == nil {
		return "-"
	}
	if *grade == float64(int64(*grade)) {
		return fmt.Sprintf("%d", int64(*grade))
	}
	return fmt.Sprintf("%.1f", *grade)
}
