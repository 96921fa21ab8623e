package backendapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/unitrack/unitrack/core"
)

type client struct {
	baseURL string
	rest    rest.Client
	log     core.Logger
}

var _ core.BackendAPI = (*client)(nil)

// NewClient builds the HTTP JSON client for the prediction/recommendation
// backend. Base URL and request timeout come from config.
func NewClient(log core.Logger) core.BackendAPI {
	return &client{
		baseURL: strings.TrimRight(core.Conf.GetString("apiBaseURL"), "/"),
		rest: rest.Client{
			HTTPClient: &http.Client{Timeout: core.Conf.GetDuration("requestTimeout")},
		},
		log: log,
	}
}

func (c *client) do(ctx context.Context, method rest.Method, path string, body, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-ID": uuid.NewString(),
		},
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		req.Body = data
	}

	resp, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(resp.Body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errors.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(resp.Body), out); err != nil {
			return errors.Wrapf(err, "%s %s: decoding response", method, path)
		}
	}
	return nil
}

// Login authenticates the student. This is the only call whose failure is
// propagated to the caller; the message carries the HTTP status.
func (c *client) Login(ctx context.Context, creds core.Credentials) (*core.LoginData, error) {
	creds.CodPersona = core.CleanString(creds.CodPersona)
	if err := core.ValidateStruct(creds); err != nil {
		return nil, err
	}

	var login core.LoginData
	if err := c.do(ctx, rest.Post, "/auth/login", creds, &login); err != nil {
		return nil, err
	}
	return &login, nil
}

type prediccionRequest struct {
	CodPersona   string `json:"cod_persona"`
	CodCurso     string `json:"cod_curso"`
	PerMatricula string `json:"per_matricula,omitempty"`
}

type prediccionResponse struct {
	NotaEstimada    float64 `json:"nota_estimada"`
	CategoriaRiesgo string  `json:"categoria_riesgo"`
}

func (c *client) PredictCourse(ctx context.Context, codPersona, codCurso, perMatricula string) (core.Prediction, error) {
	req := prediccionRequest{CodPersona: codPersona, CodCurso: codCurso, PerMatricula: perMatricula}
	var resp prediccionResponse
	if err := c.do(ctx, rest.Post, "/prediccion/predecir", req, &resp); err != nil {
		return core.DefaultPrediction(), err
	}
	return core.Prediction{Nota: resp.NotaEstimada, Categoria: resp.CategoriaRiesgo}, nil
}

type matriculaPrediccionRequest struct {
	CodPersona    string   `json:"cod_persona"`
	CodigosCursos []string `json:"codigos_cursos"`
	PerMatricula  string   `json:"per_matricula"`
}

type matriculaPrediccionResponse struct {
	Predicciones []struct {
		CodCurso     string  `json:"cod_curso"`
		NotaPredicha float64 `json:"nota_predicha"`
	} `json:"predicciones"`
}

func (c *client) PredictMatricula(ctx context.Context, codPersona string, codigosCursos []string, perMatricula string) (map[string]float64, error) {
	req := matriculaPrediccionRequest{CodPersona: codPersona, CodigosCursos: codigosCursos, PerMatricula: perMatricula}
	var resp matriculaPrediccionResponse
	if err := c.do(ctx, rest.Post, "/prediccion/predecir-por-matricula", req, &resp); err != nil {
		// per-course default so callers can still render something
		fallback := make(map[string]float64, len(codigosCursos))
		for _, code := range codigosCursos {
			fallback[code] = core.DefaultPrediction().Nota
		}
		return fallback, err
	}

	notas := make(map[string]float64, len(resp.Predicciones))
	for _, p := range resp.Predicciones {
		notas[p.CodCurso] = p.NotaPredicha
	}
	return notas, nil
}

type recomendacionRequest struct {
	CodPersona   string   `json:"cod_persona"`
	PerMatricula string   `json:"per_matricula"`
	Bundles      []string `json:"bundles"`
	MaxTime      int      `json:"max_time"` // advisory budget for the backend search
}

func (c *client) BestSchedule(ctx context.Context, codPersona, perMatricula string, bundles []string, maxTime int) (*core.ScheduleResult, error) {
	if maxTime <= 0 {
		maxTime = core.Conf.GetInt("maxRecommendationTime")
	}
	req := recomendacionRequest{CodPersona: codPersona, PerMatricula: perMatricula, Bundles: bundles, MaxTime: maxTime}
	var resp core.ScheduleResult
	if err := c.do(ctx, rest.Post, "/recomendacion/mejor-horario", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) CourseResources(ctx context.Context, nombre string) (*core.CourseResources, error) {
	var resp core.CourseResources
	if err := c.do(ctx, rest.Get, "/recursos/curso/"+url.PathEscape(nombre), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) AllResources(ctx context.Context) ([]core.Resource, error) {
	var resp []core.Resource
	if err := c.do(ctx, rest.Get, "/recursos/todos", nil, &resp); err != nil {
		return []core.Resource{}, err
	}
	return resp, nil
}

type matriculadosRequest struct {
	Cursos []core.CourseRef `json:"cursos"`
}

type matriculadosResponse struct {
	Cursos map[string]core.CourseResources `json:"cursos"`
}

func (c *client) EnrolledResources(ctx context.Context, cursos []core.CourseRef) (map[string]core.CourseResources, error) {
	var resp matriculadosResponse
	if err := c.do(ctx, rest.Post, "/recursos/matriculados", matriculadosRequest{Cursos: cursos}, &resp); err != nil {
		return nil, err
	}
	return resp.Cursos, nil
}
