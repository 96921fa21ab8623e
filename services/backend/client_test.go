package backendapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unitrack/unitrack/core"
	testutil "github.com/unitrack/unitrack/tests"
)

func newTestClient(t *testing.T, handler http.Handler) (core.BackendAPI, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	core.Conf.Set("apiBaseURL", server.URL)
	return NewClient(testutil.NewLogger(t)), server
}

func TestLogin(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var creds core.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		assert.Equal(t, "20201234", creds.CodPersona)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":            true,
			"cod_persona":        "20201234",
			"cursos_disponibles": []string{"CS350"},
		})
	}))

	login, err := api.Login(context.Background(), core.Credentials{CodPersona: " 20201234 ", Password: "pwd"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	assert.Equal(t, "20201234", login.CodPersona)
	assert.Equal(t, []string{"CS350"}, login.CursosDisponibles)
}

func TestLogin_httpErrorPropagates(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"student not found"}`, http.StatusNotFound)
	}))

	_, err := api.Login(context.Background(), core.Credentials{CodPersona: "20201234", Password: "pwd"})
	if err == nil {
		t.Fatal("Login() must propagate HTTP failures")
	}
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "student not found")
}

func TestLogin_invalidInput(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid credentials must not reach the network")
	}))

	tests := []struct {
		name  string
		creds core.Credentials
		field string
	}{
		{name: "missing password", creds: core.Credentials{CodPersona: "20201234"}, field: "password"},
		{name: "non-numeric code", creds: core.Credentials{CodPersona: "abc", Password: "x"}, field: "cod_persona"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.Login(context.Background(), tt.creds)
			vErr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("Login() error = %T, want *core.ValidationError", err)
			}
			if assert.Len(t, vErr.Fields, 1) {
				assert.Equal(t, tt.field, vErr.Fields[0].Field)
			}
		})
	}
}

func TestPredictCourse(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prediccion/predecir", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"nota_estimada":    16.4,
			"categoria_riesgo": "Factible",
		})
	}))

	p, err := api.PredictCourse(context.Background(), "20201234", "CS350", "2026-1")
	if err != nil {
		t.Fatalf("PredictCourse() error = %v", err)
	}
	assert.Equal(t, core.Prediction{Nota: 16.4, Categoria: "Factible"}, p)
}

func TestPredictCourse_failureReturnsDefault(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	p, err := api.PredictCourse(context.Background(), "20201234", "CS350", "2026-1")
	if err == nil {
		t.Fatal("PredictCourse() must report the failure")
	}
	assert.Equal(t, core.DefaultPrediction(), p)
}

func TestPredictMatricula(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prediccion/predecir-por-matricula", r.URL.Path)

		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "2026-1", req["per_matricula"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"predicciones": []map[string]interface{}{
				{"cod_curso": "CS350", "nota_predicha": 15.2},
				{"cod_curso": "MAT320", "nota_predicha": 13.8},
			},
		})
	}))

	notas, err := api.PredictMatricula(context.Background(), "20201234", []string{"CS350", "MAT320"}, "2026-1")
	if err != nil {
		t.Fatalf("PredictMatricula() error = %v", err)
	}
	assert.Equal(t, map[string]float64{"CS350": 15.2, "MAT320": 13.8}, notas)
}

func TestPredictMatricula_failureReturnsPerCourseDefaults(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	notas, err := api.PredictMatricula(context.Background(), "20201234", []string{"CS350", "MAT320"}, "2026-1")
	if err == nil {
		t.Fatal("PredictMatricula() must report the failure")
	}
	assert.Equal(t, map[string]float64{"CS350": 14.0, "MAT320": 14.0}, notas)
}

func TestBestSchedule(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recomendacion/mejor-horario", r.URL.Path)

		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, float64(30), req["max_time"]) // advisory budget passed through

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"meta": map[string]interface{}{"total_evaluados": 12},
			"mejor_recomendacion": map[string]interface{}{
				"rank":             1,
				"cursos":           []string{"CS350", "MAT320"},
				"cursos_secciones": [][]string{{"CS350", "A1"}, {"MAT320", "C2"}},
				"total_horas":      6.0,
				"horario": map[string]interface{}{
					"Lun": []map[string]string{{"inicio": "09:00", "fin": "11:00"}},
				},
			},
			"todos_los_resultados": []map[string]interface{}{},
		})
	}))

	res, err := api.BestSchedule(context.Background(), "20201234", "2026-1", []string{"CS350", "MAT320"}, 30)
	if err != nil {
		t.Fatalf("BestSchedule() error = %v", err)
	}
	best := res.MejorRecomendacion
	if best == nil {
		t.Fatal("BestSchedule() returned no mejor_recomendacion")
	}
	assert.Equal(t, []string{"CS350", "MAT320"}, best.Cursos)
	assert.Equal(t, core.SectionBinding{CodCurso: "CS350", Seccion: "A1"}, best.CursosSecciones[0])
	assert.Equal(t, 6.0, best.TotalHoras)
	assert.Equal(t, "09:00", best.Horario["Lun"][0].Inicio)
}

func TestBestSchedule_failureReturnsNil(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	res, err := api.BestSchedule(context.Background(), "20201234", "2026-1", []string{"CS350"}, 30)
	assert.Nil(t, res)
	if err == nil {
		t.Fatal("BestSchedule() must report the failure")
	}
}

func TestResources(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/recursos/todos":
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"nombre": "Slides", "tipo": "pdf", "url": "https://e.test/slides"},
			})
		case "/recursos/curso/Sistemas%20Inteligentes", "/recursos/curso/Sistemas Inteligentes":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"descripcion": "Curso de IA",
				"recursos":    []map[string]string{{"nombre": "Lab guide", "tipo": "doc", "url": "https://e.test/lab"}},
			})
		case "/recursos/matriculados":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"cursos": map[string]interface{}{
					"CS350": map[string]interface{}{"descripcion": "IA", "recursos": []map[string]string{}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	all, err := api.AllResources(ctx)
	if err != nil {
		t.Fatalf("AllResources() error = %v", err)
	}
	if assert.Len(t, all, 1) {
		assert.Equal(t, "Slides", all[0].Nombre)
	}

	course, err := api.CourseResources(ctx, "Sistemas Inteligentes")
	if err != nil {
		t.Fatalf("CourseResources() error = %v", err)
	}
	assert.Equal(t, "Curso de IA", course.Descripcion)

	enrolled, err := api.EnrolledResources(ctx, []core.CourseRef{{Code: "CS350", Name: "Sistemas Inteligentes"}})
	if err != nil {
		t.Fatalf("EnrolledResources() error = %v", err)
	}
	assert.Contains(t, enrolled, "CS350")
}

func TestResources_fallbacks(t *testing.T) {
	api, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	ctx := context.Background()

	all, err := api.AllResources(ctx)
	assert.NotNil(t, all)
	assert.Empty(t, all)
	assert.Error(t, err)

	course, err := api.CourseResources(ctx, "whatever")
	assert.Nil(t, course)
	assert.Error(t, err)

	enrolled, err := api.EnrolledResources(ctx, nil)
	assert.Nil(t, enrolled)
	assert.Error(t, err)
}
