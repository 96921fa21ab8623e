package prediction

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/unitrack/unitrack/core"
	"github.com/unitrack/unitrack/core/catalog"
	"github.com/unitrack/unitrack/core/session"
)

// ErrStaleSchedules signals that a fresh recommendation fetch failed and the
// returned result comes from the cache; the user must be notified.
var ErrStaleSchedules = errors.New("recommendation fetch failed; showing last cached result")

// Service coordinates prediction and recommendation fetches with their
// per-student caches.
type Service struct {
	api   core.BackendAPI
	store *session.Store
	log   core.Logger

	// matricula-level predictions are in-memory only. A generation counter
	// guards against an out-of-order late response overwriting a newer one;
	// the previous in-flight request is cancelled when a new one starts.
	mu        sync.Mutex
	matGen    uint64
	matCancel context.CancelFunc
	matricula map[string]float64
}

func NewService(api core.BackendAPI, store *session.Store, log core.Logger) *Service {
	return &Service{api: api, store: store, log: log}
}

// LoadPredictions fills EstimatedGrade/Risk on every catalog course.
// Cache-first: when the student's cache covers the whole catalog no request
// is made. Otherwise every course is fetched concurrently; a failing course
// falls back to the default prediction without blocking the others, and the
// assembled map is persisted before being applied.
func (svc *Service) LoadPredictions(ctx context.Context, codPersona, perMatricula string, cat *catalog.Catalog) error {
	cached, err := svc.store.Predictions(ctx, codPersona)
	if err != nil {
		return err
	}
	if cached != nil && covers(cached.Predictions, cat) {
		apply(cat, cached.Predictions)
		return nil
	}

	var mu sync.Mutex
	preds := make(map[string]core.Prediction, cat.Len())

	g, gctx := errgroup.WithContext(ctx)
	for _, course := range cat.Courses {
		code := course.Code
		g.Go(func() error {
			p, err := svc.api.PredictCourse(gctx, codPersona, code, perMatricula)
			if err != nil {
				// single-course failure must not block the others
				svc.log.Warn("prediction: falling back to default", code, err)
				p = core.DefaultPrediction()
			}
			mu.Lock()
			preds[code] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := svc.store.SavePredictions(ctx, codPersona, preds); err != nil {
		svc.log.Error("prediction: persisting cache failed", err)
	}
	apply(cat, preds)
	return nil
}

func covers(preds map[string]core.Prediction, cat *catalog.Catalog) bool {
	for _, course := range cat.Courses {
		if _, ok := preds[course.Code]; !ok {
			return false
		}
	}
	return true
}

func apply(cat *catalog.Catalog, preds map[string]core.Prediction) {
	for _, course := range cat.Courses {
		if p, ok := preds[course.Code]; ok {
			nota := p.Nota
			course.EstimatedGrade = &nota
			course.Risk = p.Categoria
		}
	}
}

// RefreshMatricula issues one batched matricula-level prediction request for
// the given selection and overwrites the in-memory map. A newer call
// cancels the previous in-flight request, and a response that lost the race
// is discarded. On failure the prior map is kept.
func (svc *Service) RefreshMatricula(ctx context.Context, codPersona string, codes []string, perMatricula string) error {
	svc.mu.Lock()
	svc.matGen++
	gen := svc.matGen
	if svc.matCancel != nil {
		svc.matCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	svc.matCancel = cancel
	svc.mu.Unlock()
	defer cancel()

	res, err := svc.api.PredictMatricula(ctx, codPersona, codes, perMatricula)
	if err != nil {
		return errors.Wrap(err, "matricula prediction")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if gen != svc.matGen {
		return nil // superseded; drop
	}
	svc.matricula = res
	return nil
}

// Matricula returns a copy of the current matricula-level prediction map.
func (svc *Service) Matricula() map[string]float64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make(map[string]float64, len(svc.matricula))
	for k, v := range svc.matricula {
		out[k] = v
	}
	return out
}

// BestSchedule asks the backend for its best schedule over the given course
// bundles and persists the result. On failure the last cached result (if
// any) is returned together with ErrStaleSchedules.
func (svc *Service) BestSchedule(ctx context.Context, codPersona, perMatricula string, bundles []string, maxTime int) (*core.ScheduleResult, error) {
	res, err := svc.api.BestSchedule(ctx, codPersona, perMatricula, bundles, maxTime)
	if err != nil || res == nil {
		if err == nil {
			err = errors.New("empty recommendation result")
		}
		cached, cacheErr := svc.store.Schedules(ctx, codPersona)
		if cacheErr == nil && cached != nil && cached.Schedules != nil {
			return cached.Schedules, errors.Wrap(ErrStaleSchedules, err.Error())
		}
		return nil, errors.Wrap(err, "schedule recommendation")
	}

	if err := svc.store.SaveSchedules(ctx, codPersona, res); err != nil {
		svc.log.Error("prediction: persisting schedule cache failed", err)
	}
	return res, nil
}
