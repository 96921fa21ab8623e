package testutil

import (
	"encoding/json"
	"testing"

	"github.com/unitrack/unitrack/core"
)

type tLogger struct {
	t *testing.T
}

func (l tLogger) Enable(bool) {}
func (l tLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG: %s %v", msg, args) }
func (l tLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO: %s %v", msg, args) }
func (l tLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN: %s %v", msg, args) }
func (l tLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l tLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

// NewLogger returns a core.Logger writing through t.
func NewLogger(t *testing.T) core.Logger {
	return tLogger{t: t}
}

// RawSections marshals v into the raw secciones_info entry of a login payload.
func RawSections(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("RawSections() failed: %v", err)
	}
	return data
}

// LoginFixture builds a login payload with two conflicting monday courses
// (CS350 09:00-11:00 and CS355 10:00-12:00) and one friday course MAT320.
func LoginFixture(t *testing.T) *core.LoginData {
	t.Helper()
	return &core.LoginData{
		Success:    true,
		CodPersona: "20201234",
		AlumnoInfo: map[string]interface{}{"nombre": "Test Student", "email": "t@test.test"},
		AcademicInfo: map[string]interface{}{
			"per_matricula": "2026-1",
		},
		CursosInfo: []core.CourseInfo{
			{CodCurso: "CS350", Nombre: "Sistemas Inteligentes", Creditos: 4, Prerequisitos: []string{"CS220"}},
			{CodCurso: "CS355", Nombre: "Compiladores", Creditos: 3},
			{CodCurso: "MAT320", Nombre: "Probabilidad y Estadistica", Creditos: 3},
		},
		CursosDisponibles: []string{"CS350", "CS355", "MAT320"},
		SeccionesInfo: map[string]json.RawMessage{
			"CS350": RawSections(t, map[string]interface{}{
				"horarios": map[string]interface{}{
					"A1": []map[string]interface{}{
						{"horario": "Lun. 09:00 - 11:00", "aula": "Lab 204", "docente": "R. Paredes", "vacantes": 30, "matriculados": 22},
					},
				},
			}),
			"CS355": RawSections(t, map[string]interface{}{
				"horarios": map[string]interface{}{
					"B1": []map[string]interface{}{
						{"horario": "Lun. 10:00 - 12:00", "aula": "Aula 301"},
					},
				},
			}),
			"MAT320": RawSections(t, map[string]interface{}{
				"horarios": map[string]interface{}{
					"C1": []map[string]interface{}{
						{"horario": "Vie. 08:00 - 10:00", "aula": "Aula 105"},
					},
					"C2": []map[string]interface{}{
						{"horario": "Vie. 10:00 - 12:00", "aula": "Aula 105"},
					},
				},
			}),
		},
	}
}
