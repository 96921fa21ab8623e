package catalog

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/unitrack/unitrack/core"
)

// scheduleRow is one raw schedule line of a section as shipped in the
// login payload.
type scheduleRow struct {
	Horario      string `json:"horario"` // "Lun. 09:00 - 11:00"
	Aula         string `json:"aula"`
	Docente      string `json:"docente"`
	Seccion      string `json:"seccion"`
	Vacantes     *int   `json:"vacantes"`
	Matriculados *int   `json:"matriculados"`
}

// secciones_info historical shapes:
//   - grouped: {"horarios": {"A1": [rows...], ...}}
//   - legacy:  {"A1": {"grupos": [rows...]}, ...}
// Both normalize to map[sectionID][]scheduleRow at this boundary so nothing
// downstream ever branches on shape again.
type (
	horarioGroupedFormat struct {
		Horarios map[string][]scheduleRow `json:"horarios"`
	}

	legacySectionEntry struct {
		Grupos []scheduleRow `json:"grupos"`
	}
)

func decodeSections(raw json.RawMessage) (map[string][]scheduleRow, error) {
	var grouped horarioGroupedFormat
	if err := json.Unmarshal(raw, &grouped); err == nil && grouped.Horarios != nil {
		return grouped.Horarios, nil
	}

	var legacy map[string]legacySectionEntry
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}
	sections := make(map[string][]scheduleRow, len(legacy))
	for id, entry := range legacy {
		sections[id] = entry.Grupos
	}
	return sections, nil
}

var scheduleRe = regexp.MustCompile(`^([A-Za-z]+)\.\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})$`)

// parseSession parses a raw schedule string of the form "Lun. 09:00 - 11:00".
func parseSession(raw string) (Session, bool) {
	m := scheduleRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Session{}, false
	}
	day, ok := dayAbbrevs[m[1]]
	if !ok {
		return Session{}, false
	}
	return Session{Day: day, Start: m[2], End: m[3]}, true
}

// Build transforms a login payload into the normalized course catalog.
// Pure transform: unknown course codes are skipped, unparseable schedule
// strings drop that single session with a warning, sections without parsed
// sessions and courses without valid sections are excluded.
func Build(login *core.LoginData, log core.Logger) *Catalog {
	info := make(map[string]core.CourseInfo, len(login.CursosInfo))
	for _, ci := range login.CursosInfo {
		info[ci.CodCurso] = ci
	}

	cat := newCatalog(len(login.CursosDisponibles))
	for _, code := range login.CursosDisponibles {
		ci, ok := info[code]
		if !ok {
			continue
		}

		course := &Course{
			Code:          code,
			Name:          ci.Nombre,
			Credits:       ci.Creditos,
			Prerequisites: ci.Prerequisitos,
			Slots:         core.Conf.GetInt("defaultSlots"),
		}

		rawSections, ok := login.SeccionesInfo[code]
		if ok {
			sections, err := decodeSections(rawSections)
			if err != nil {
				log.Warn("catalog: undecodable secciones_info entry", code, err)
				sections = nil
			}
			bestSlots, haveSlots := 0, false
			for _, id := range sortedSectionIDs(sections) {
				rows := sections[id]
				sec := Section{ID: id, Name: id}
				for _, row := range rows {
					if row.Seccion != "" {
						sec.Name = row.Seccion
					}
					s, ok := parseSession(row.Horario)
					if !ok {
						log.Warn("catalog: dropping unparseable schedule", code, id, row.Horario)
						continue
					}
					s.Location = row.Aula
					s.Teacher = row.Docente
					sec.Sessions = append(sec.Sessions, s)

					if row.Vacantes != nil && row.Matriculados != nil {
						avail := *row.Vacantes - *row.Matriculados
						if avail < 0 {
							avail = 0
						}
						if !haveSlots || avail > bestSlots {
							bestSlots, haveSlots = avail, true
						}
					}
				}
				if len(sec.Sessions) == 0 {
					continue
				}
				course.Sections = append(course.Sections, sec)
			}
			if haveSlots {
				course.Slots = bestSlots
			}
		}

		if len(course.Sections) == 0 {
			continue
		}
		cat.add(course)
	}
	return cat
}

// sortedSectionIDs keeps section order deterministic; the wire format is a
// JSON object so map iteration order would leak into section indices.
func sortedSectionIDs(sections map[string][]scheduleRow) []string {
	ids := make([]string, 0, len(sections))
	for id := range sections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
