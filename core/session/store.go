package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/unitrack/unitrack/core"
)

// Storage keys. Per-student keys get the student code appended.
const (
	keyLogin          = "unitrack.loginResponse"
	keyPredictions    = "unitrack.predictions."
	keySchedules      = "unitrack.schedules."
	keyEnrollment     = "unitrack.enrollmentConfirmation."
	keyOnboardingSeen = "unitrack.onboardingSeen."
)

var nowFunc = time.Now // mockable

type (
	// PredictionCache holds every individual grade prediction fetched for a
	// student, keyed by course code.
	PredictionCache struct {
		UpdatedAt   time.Time                  `json:"updatedAt"`
		Predictions map[string]core.Prediction `json:"predictions"`
	}

	// ScheduleCache holds the last recommendation result fetched for a student.
	ScheduleCache struct {
		UpdatedAt time.Time            `json:"updatedAt"`
		Schedules *core.ScheduleResult `json:"schedules"`
	}

	// EnrollmentSnapshot captures the selection the student confirmed.
	EnrollmentSnapshot struct {
		ConfirmedAt  time.Time             `json:"confirmedAt"`
		Courses      []core.SectionBinding `json:"courses"`
		TotalCredits int                   `json:"totalCredits"`
	}

	// Store persists session state in an injected key-value store.
	// Values are JSON; a value that no longer parses is treated as absent
	// and its key is removed.
	Store struct {
		kv  core.KVStore
		log core.Logger
	}
)

func NewStore(kv core.KVStore, log core.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// getJSON loads and decodes key into v. ok is false on a miss; malformed
// payloads count as a miss and delete the offending key.
func (s *Store) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Cause(err) == core.ErrKeyNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "session: reading "+key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("session: removing malformed entry", key, err)
		_ = s.kv.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "session: encoding "+key)
	}
	return errors.Wrap(s.kv.Set(ctx, key, data), "session: writing "+key)
}

// SaveLogin persists the last login response.
func (s *Store) SaveLogin(ctx context.Context, login *core.LoginData) error {
	return s.setJSON(ctx, keyLogin, login)
}

// Login returns the stored login response, or nil if absent.
func (s *Store) Login(ctx context.Context) (*core.LoginData, error) {
	var login core.LoginData
	ok, err := s.getJSON(ctx, keyLogin, &login)
	if err != nil || !ok {
		return nil, err
	}
	return &login, nil
}

// SavePredictions overwrites the student's prediction cache.
func (s *Store) SavePredictions(ctx context.Context, codPersona string, preds map[string]core.Prediction) error {
	cache := PredictionCache{UpdatedAt: nowFunc().UTC(), Predictions: preds}
	return s.setJSON(ctx, keyPredictions+codPersona, cache)
}

// Predictions returns the student's prediction cache, or nil if absent.
func (s *Store) Predictions(ctx context.Context, codPersona string) (*PredictionCache, error) {
	var cache PredictionCache
	ok, err := s.getJSON(ctx, keyPredictions+codPersona, &cache)
	if err != nil || !ok {
		return nil, err
	}
	return &cache, nil
}

// SaveSchedules overwrites the student's schedule recommendation cache.
func (s *Store) SaveSchedules(ctx context.Context, codPersona string, result *core.ScheduleResult) error {
	cache := ScheduleCache{UpdatedAt: nowFunc().UTC(), Schedules: result}
	return s.setJSON(ctx, keySchedules+codPersona, cache)
}

// Schedules returns the student's cached recommendation result, or nil if absent.
func (s *Store) Schedules(ctx context.Context, codPersona string) (*ScheduleCache, error) {
	var cache ScheduleCache
	ok, err := s.getJSON(ctx, keySchedules+codPersona, &cache)
	if err != nil || !ok {
		return nil, err
	}
	return &cache, nil
}

// SaveEnrollment persists the confirmed enrollment snapshot.
func (s *Store) SaveEnrollment(ctx context.Context, codPersona string, snap EnrollmentSnapshot) error {
	if snap.ConfirmedAt.IsZero() {
		snap.ConfirmedAt = nowFunc().UTC()
	}
	return s.setJSON(ctx, keyEnrollment+codPersona, snap)
}

// Enrollment returns the student's confirmed enrollment snapshot, or nil if absent.
func (s *Store) Enrollment(ctx context.Context, codPersona string) (*EnrollmentSnapshot, error) {
	var snap EnrollmentSnapshot
	ok, err := s.getJSON(ctx, keyEnrollment+codPersona, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// MarkOnboardingSeen records that the student dismissed the onboarding modal.
func (s *Store) MarkOnboardingSeen(ctx context.Context, codPersona string) error {
	return s.setJSON(ctx, keyOnboardingSeen+codPersona, true)
}

func (s *Store) OnboardingSeen(ctx context.Context, codPersona string) (bool, error) {
	var seen bool
	ok, err := s.getJSON(ctx, keyOnboardingSeen+codPersona, &seen)
	if err != nil || !ok {
		return false, err
	}
	return seen, nil
}

// Logout removes the stored login and invalidates the student's
// prediction/recommendation caches. The onboarding flag and the confirmed
// enrollment snapshot survive logout.
func (s *Store) Logout(ctx context.Context, codPersona string) error {
	for _, key := range []string{
		keyLogin,
		keyPredictions + codPersona,
		keySchedules + codPersona,
	} {
		if err := s.kv.Delete(ctx, key); err != nil && errors.Cause(err) != core.ErrKeyNotFound {
			return errors.Wrap(err, "session: deleting "+key)
		}
	}
	return nil
}
