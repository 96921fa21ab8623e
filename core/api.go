package core

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Backend payload shapes. Field names follow the portal backend's JSON wire format.

type Credentials struct {
	CodPersona string `json:"cod_persona" validate:"required,studentcode"`
	Password   string `json:"password" validate:"required"`
}

// CourseInfo is the per-course metadata block of the login payload.
type CourseInfo struct {
	CodCurso      string   `json:"cod_curso"`
	Nombre        string   `json:"nombre"`
	Creditos      int      `json:"creditos"`
	Prerequisitos []string `json:"prerequisitos"`
}

// LoginData is the full login payload. secciones_info is kept raw here;
// its two historical shapes are decoded at the catalog boundary.
type LoginData struct {
	Success           bool                       `json:"success"`
	Message           string                     `json:"message"`
	CodPersona        string                     `json:"cod_persona"`
	AlumnoInfo        map[string]interface{}     `json:"alumno_info"`
	CursosInfo        []CourseInfo               `json:"cursos_info"`
	MatriculaInfo     json.RawMessage            `json:"matricula_info"`
	AcademicInfo      map[string]interface{}     `json:"academic_info"`
	CursosDisponibles []string                   `json:"cursos_disponibles"`
	SeccionesInfo     map[string]json.RawMessage `json:"secciones_info"`
	ResourcesInfo     json.RawMessage            `json:"resources_info"`
}

// Student returns the logged-in student's identity for logging/reporting.
func (ld *LoginData) Student() Student {
	st := Student{Code: ld.CodPersona}
	if v, ok := ld.AlumnoInfo["nombre"].(string); ok {
		st.Name = v
	}
	if v, ok := ld.AlumnoInfo["email"].(string); ok {
		st.Email = v
	}
	return st
}

// Prediction is a single-course grade prediction.
type Prediction struct {
	Nota      float64 `json:"nota"`
	Categoria string  `json:"categoria"`
}

// DefaultPrediction is the stand-in used when the prediction backend fails for a course.
func DefaultPrediction() Prediction {
	return Prediction{Nota: 14.0, Categoria: "Normal"}
}

// SectionBinding is a (course code, section id) pair; the backend encodes it
// as a 2-element JSON array.
type SectionBinding struct {
	CodCurso string
	Seccion  string
}

func (b *SectionBinding) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Errorf("section binding: want 2 elements, got %d", len(pair))
	}
	b.CodCurso, b.Seccion = pair[0], pair[1]
	return nil
}

func (b SectionBinding) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{b.CodCurso, b.Seccion})
}

type TimeBlock struct {
	Inicio string `json:"inicio"`
	Fin    string `json:"fin"`
}

// RecommendedPlan is one candidate schedule returned by the recommendation
// backend. Consumed as an opaque payload; only cursos/cursos_secciones drive
// section resolution.
type RecommendedPlan struct {
	ID              string                 `json:"id"`
	Rank            int                    `json:"rank"`
	Score           float64                `json:"score"`
	Cursos          []string               `json:"cursos"`
	CursosSecciones []SectionBinding       `json:"cursos_secciones,omitempty"`
	TotalHoras      float64                `json:"total_horas"`
	Horario         map[string][]TimeBlock `json:"horario,omitempty"`
}

type ScheduleResult struct {
	Meta               map[string]interface{} `json:"meta"`
	MejorRecomendacion *RecommendedPlan       `json:"mejor_recomendacion"`
	TodosLosResultados []RecommendedPlan      `json:"todos_los_resultados"`
}

type CourseRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Resource struct {
	Nombre      string `json:"nombre"`
	Tipo        string `json:"tipo"`
	URL         string `json:"url"`
	Descripcion string `json:"descripcion"`
}

type CourseResources struct {
	Recursos    []Resource `json:"recursos"`
	Descripcion string     `json:"descripcion"`
}

// BackendAPI is the portal's prediction/recommendation/resource backend.
// Every method but Login converts transport failures into a documented
// fallback value alongside the error; Login is the only call whose error
// must be surfaced to the user as-is.
type BackendAPI interface {
	Login(ctx context.Context, creds Credentials) (*LoginData, error)

	// PredictCourse returns DefaultPrediction alongside the error on failure.
	PredictCourse(ctx context.Context, codPersona, codCurso, perMatricula string) (Prediction, error)
	// PredictMatricula returns a per-course default map (nota 14.0) alongside the error on failure.
	PredictMatricula(ctx context.Context, codPersona string, codigosCursos []string, perMatricula string) (map[string]float64, error)
	// BestSchedule returns nil on failure.
	BestSchedule(ctx context.Context, codPersona, perMatricula string, bundles []string, maxTime int) (*ScheduleResult, error)

	// CourseResources returns nil on failure.
	CourseResources(ctx context.Context, nombre string) (*CourseResources, error)
	// AllResources returns an empty list on failure.
	AllResources(ctx context.Context) ([]Resource, error)
	// EnrolledResources returns nil on failure.
	EnrolledResources(ctx context.Context, cursos []CourseRef) (map[string]CourseResources, error)
}
