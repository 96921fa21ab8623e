package prediction_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/unitrack/unitrack/core"
	"github.com/unitrack/unitrack/core/catalog"
	"github.com/unitrack/unitrack/core/prediction"
	"github.com/unitrack/unitrack/core/session"
	inmemkv "github.com/unitrack/unitrack/storage/kv/inmem"
	testutil "github.com/unitrack/unitrack/tests"
)

// fakeAPI implements core.BackendAPI with programmable behavior.
type fakeAPI struct {
	mu             sync.Mutex
	predictCalls   int
	failCourses    map[string]bool
	notes          map[string]float64
	matriculaFn    func(ctx context.Context, codes []string) (map[string]float64, error)
	scheduleResult *core.ScheduleResult
	scheduleErr    error
}

func (f *fakeAPI) Login(context.Context, core.Credentials) (*core.LoginData, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) PredictCourse(_ context.Context, _, codCurso, _ string) (core.Prediction, error) {
	f.mu.Lock()
	f.predictCalls++
	f.mu.Unlock()
	if f.failCourses[codCurso] {
		return core.DefaultPrediction(), errors.New("backend down")
	}
	nota := 16.0
	if n, ok := f.notes[codCurso]; ok {
		nota = n
	}
	return core.Prediction{Nota: nota, Categoria: "Factible"}, nil
}

func (f *fakeAPI) PredictMatricula(ctx context.Context, _ string, codes []string, _ string) (map[string]float64, error) {
	if f.matriculaFn != nil {
		return f.matriculaFn(ctx, codes)
	}
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) BestSchedule(context.Context, string, string, []string, int) (*core.ScheduleResult, error) {
	return f.scheduleResult, f.scheduleErr
}

func (f *fakeAPI) CourseResources(context.Context, string) (*core.CourseResources, error) {
	return nil, nil
}
func (f *fakeAPI) AllResources(context.Context) ([]core.Resource, error) { return nil, nil }
func (f *fakeAPI) EnrolledResources(context.Context, []core.CourseRef) (map[string]core.CourseResources, error) {
	return nil, nil
}

func setup(t *testing.T, api core.BackendAPI) (*prediction.Service, *session.Store, *catalog.Catalog) {
	store := session.NewStore(inmemkv.NewStore(), testutil.NewLogger(t))
	cat := catalog.Build(testutil.LoginFixture(t), testutil.NewLogger(t))
	return prediction.NewService(api, store, testutil.NewLogger(t)), store, cat
}

func TestLoadPredictions_fanOutAndPersist(t *testing.T) {
	api := &fakeAPI{notes: map[string]float64{"CS350": 17.5}}
	svc, store, cat := setup(t, api)
	ctx := context.Background()

	if err := svc.LoadPredictions(ctx, "20201234", "2026-1", cat); err != nil {
		t.Fatalf("LoadPredictions() error = %v", err)
	}
	assert.Equal(t, 3, api.predictCalls) // one per catalog course

	cs350, _ := cat.Get("CS350")
	if assert.NotNil(t, cs350.EstimatedGrade) {
		assert.Equal(t, 17.5, *cs350.EstimatedGrade)
	}
	assert.Equal(t, "Factible", cs350.Risk)

	// assembled map was persisted
	cache, err := store.Predictions(ctx, "20201234")
	if err != nil || cache == nil {
		t.Fatalf("Predictions() = %v, %v", cache, err)
	}
	assert.Len(t, cache.Predictions, 3)
}

func TestLoadPredictions_cacheHitSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	svc, store, cat := setup(t, api)
	ctx := context.Background()

	preds := make(map[string]core.Prediction, cat.Len())
	for _, code := range cat.Codes() {
		preds[code] = core.Prediction{Nota: 13.0, Categoria: "Normal"}
	}
	_ = store.SavePredictions(ctx, "20201234", preds)

	if err := svc.LoadPredictions(ctx, "20201234", "2026-1", cat); err != nil {
		t.Fatalf("LoadPredictions() error = %v", err)
	}
	assert.Equal(t, 0, api.predictCalls)

	mat320, _ := cat.Get("MAT320")
	if assert.NotNil(t, mat320.EstimatedGrade) {
		assert.Equal(t, 13.0, *mat320.EstimatedGrade)
	}
}

func TestLoadPredictions_partialCacheRefetchesAll(t *testing.T) {
	api := &fakeAPI{}
	svc, store, cat := setup(t, api)
	ctx := context.Background()

	_ = store.SavePredictions(ctx, "20201234", map[string]core.Prediction{
		"CS350": {Nota: 13.0, Categoria: "Normal"},
	})

	if err := svc.LoadPredictions(ctx, "20201234", "2026-1", cat); err != nil {
		t.Fatalf("LoadPredictions() error = %v", err)
	}
	assert.Equal(t, 3, api.predictCalls)
}

func TestLoadPredictions_singleFailureFallsBackToDefault(t *testing.T) {
	api := &fakeAPI{failCourses: map[string]bool{"CS355": true}}
	svc, _, cat := setup(t, api)

	if err := svc.LoadPredictions(context.Background(), "20201234", "2026-1", cat); err != nil {
		t.Fatalf("LoadPredictions() error = %v", err)
	}

	// the failing course gets the default; the others are untouched by it
	cs355, _ := cat.Get("CS355")
	if assert.NotNil(t, cs355.EstimatedGrade) {
		assert.Equal(t, 14.0, *cs355.EstimatedGrade)
	}
	assert.Equal(t, "Normal", cs355.Risk)

	cs350, _ := cat.Get("CS350")
	if assert.NotNil(t, cs350.EstimatedGrade) {
		assert.Equal(t, 16.0, *cs350.EstimatedGrade)
	}
}

func TestRefreshMatricula(t *testing.T) {
	api := &fakeAPI{
		matriculaFn: func(_ context.Context, codes []string) (map[string]float64, error) {
			out := make(map[string]float64, len(codes))
			for _, c := range codes {
				out[c] = 15.5
			}
			return out, nil
		},
	}
	svc, _, _ := setup(t, api)

	if err := svc.RefreshMatricula(context.Background(), "20201234", []string{"CS350", "MAT320"}, "2026-1"); err != nil {
		t.Fatalf("RefreshMatricula() error = %v", err)
	}
	assert.Equal(t, map[string]float64{"CS350": 15.5, "MAT320": 15.5}, svc.Matricula())
}

func TestRefreshMatricula_failureKeepsPriorMap(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		matriculaFn: func(_ context.Context, codes []string) (map[string]float64, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("backend down")
			}
			return map[string]float64{"CS350": 15.5}, nil
		},
	}
	svc, _, _ := setup(t, api)
	ctx := context.Background()

	_ = svc.RefreshMatricula(ctx, "20201234", []string{"CS350"}, "2026-1")
	err := svc.RefreshMatricula(ctx, "20201234", []string{"CS350", "MAT320"}, "2026-1")
	if err == nil {
		t.Fatal("RefreshMatricula() must report the failure")
	}
	// stale-but-present beats blanking
	assert.Equal(t, map[string]float64{"CS350": 15.5}, svc.Matricula())
}

func TestRefreshMatricula_lateResponseDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	api := &fakeAPI{
		matriculaFn: func(ctx context.Context, codes []string) (map[string]float64, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				// first request resolves only after the second one finished
				close(started)
				<-release
				return map[string]float64{"OLD": 1}, nil
			}
			return map[string]float64{"NEW": 2}, nil
		},
	}
	svc, _, _ := setup(t, api)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = svc.RefreshMatricula(ctx, "20201234", []string{"CS350"}, "2026-1")
	}()
	<-started

	// second generation wins
	if err := svc.RefreshMatricula(ctx, "20201234", []string{"CS350"}, "2026-1"); err != nil {
		t.Fatalf("RefreshMatricula() error = %v", err)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, map[string]float64{"NEW": 2}, svc.Matricula())
}

func TestBestSchedule_persistsOnSuccess(t *testing.T) {
	want := &core.ScheduleResult{
		MejorRecomendacion: &core.RecommendedPlan{Cursos: []string{"CS350"}},
	}
	api := &fakeAPI{scheduleResult: want}
	svc, store, _ := setup(t, api)
	ctx := context.Background()

	got, err := svc.BestSchedule(ctx, "20201234", "2026-1", []string{"CS350"}, 30)
	if err != nil {
		t.Fatalf("BestSchedule() error = %v", err)
	}
	assert.Equal(t, want, got)

	cached, err := store.Schedules(ctx, "20201234")
	if err != nil || cached == nil {
		t.Fatalf("Schedules() = %v, %v", cached, err)
	}
	assert.Equal(t, []string{"CS350"}, cached.Schedules.MejorRecomendacion.Cursos)
}

func TestBestSchedule_failureSurfacesCache(t *testing.T) {
	api := &fakeAPI{scheduleErr: errors.New("backend down")}
	svc, store, _ := setup(t, api)
	ctx := context.Background()

	// no cache: plain failure
	res, err := svc.BestSchedule(ctx, "20201234", "2026-1", []string{"CS350"}, 30)
	assert.Nil(t, res)
	if err == nil {
		t.Fatal("BestSchedule() without cache must fail")
	}

	// cached value: surfaced together with the stale notice
	_ = store.SaveSchedules(ctx, "20201234", &core.ScheduleResult{
		MejorRecomendacion: &core.RecommendedPlan{Cursos: []string{"MAT320"}},
	})
	res, err = svc.BestSchedule(ctx, "20201234", "2026-1", []string{"CS350"}, 30)
	if res == nil {
		t.Fatal("BestSchedule() must surface the cached result")
	}
	assert.Equal(t, []string{"MAT320"}, res.MejorRecomendacion.Cursos)
	assert.Equal(t, prediction.ErrStaleSchedules, errors.Cause(err))
}
