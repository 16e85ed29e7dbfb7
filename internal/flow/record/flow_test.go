package record

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-console/internal/inflight"
	"clinic-console/internal/model"
	"clinic-console/internal/rest"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

// fakeBackend is a stateful stand-in for the patient service: one
// record per patient, interventions keyed by record id.
type fakeBackend struct {
	mu            sync.Mutex
	records       map[string]model.MedicalRecord // patientID -> record
	interventions map[string][]model.Intervention
	nextID        int
	calls         []string

	failCreateRecord      bool
	failListInterventions bool
	recordError           int // non-zero forces this status on record GET
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		records:       map[string]model.MedicalRecord{},
		interventions: map[string][]model.Intervention{},
	}
}

func (b *fakeBackend) callCount(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, call := range b.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /records/patient/{patientID}", func(w http.ResponseWriter, r *http.Request) {
		b.track(r)
		if b.recordError != 0 {
			w.WriteHeader(b.recordError)
			w.Write([]byte(`{"message":"backend unavailable"}`))
			return
		}
		b.mu.Lock()
		rec, ok := b.records[r.PathValue("patientID")]
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(rec)
	})

	mux.HandleFunc("POST /records", func(w http.ResponseWriter, r *http.Request) {
		b.track(r)
		if b.failCreateRecord {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"record store down"}`))
			return
		}
		var upsert model.RecordUpsert
		json.NewDecoder(r.Body).Decode(&upsert)

		b.mu.Lock()
		b.nextID++
		now := time.Now().UTC()
		rec := model.MedicalRecord{
			ID:         fmt.Sprintf("rec-%d", b.nextID),
			Diagnosis:  upsert.Diagnosis,
			Allergies:  upsert.Allergies,
			Treatments: upsert.Treatments,
			Notes:      upsert.Notes,
			UpdatedAt:  &now,
		}
		b.records[upsert.Patient.ID] = rec
		b.mu.Unlock()
		json.NewEncoder(w).Encode(rec)
	})

	mux.HandleFunc("PUT /records/{recordID}", func(w http.ResponseWriter, r *http.Request) {
		b.track(r)
		var upsert model.RecordUpsert
		json.NewDecoder(r.Body).Decode(&upsert)

		b.mu.Lock()
		now := time.Now().UTC()
		rec := model.MedicalRecord{
			ID:         r.PathValue("recordID"),
			Diagnosis:  upsert.Diagnosis,
			Allergies:  upsert.Allergies,
			Treatments: upsert.Treatments,
			Notes:      upsert.Notes,
			UpdatedAt:  &now,
		}
		b.records[upsert.Patient.ID] = rec
		b.mu.Unlock()
		json.NewEncoder(w).Encode(rec)
	})

	mux.HandleFunc("GET /interventions/record/{recordID}", func(w http.ResponseWriter, r *http.Request) {
		b.track(r)
		if b.failListInterventions {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		b.mu.Lock()
		list := b.interventions[r.PathValue("recordID")]
		b.mu.Unlock()
		if list == nil {
			list = []model.Intervention{}
		}
		json.NewEncoder(w).Encode(list)
	})

	mux.HandleFunc("POST /interventions", func(w http.ResponseWriter, r *http.Request) {
		b.track(r)
		var create model.InterventionCreate
		json.NewDecoder(r.Body).Decode(&create)
		if create.MedicalRecord.ID == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"medicalRecord.id is required"}`))
			return
		}

		b.mu.Lock()
		b.nextID++
		now := time.Now().UTC()
		iv := model.Intervention{
			ID:          fmt.Sprintf("iv-%d", b.nextID),
			Type:        create.Type,
			DoctorNotes: create.DoctorNotes,
			CreatedAt:   &now,
		}
		recordID := create.MedicalRecord.ID
		b.interventions[recordID] = append(b.interventions[recordID], iv)
		b.mu.Unlock()
		json.NewEncoder(w).Encode(iv)
	})

	mux.HandleFunc("DELETE /interventions/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.track(r)
		id := r.PathValue("id")
		b.mu.Lock()
		for recordID, list := range b.interventions {
			kept := list[:0]
			for _, iv := range list {
				if iv.ID != id {
					kept = append(kept, iv)
				}
			}
			b.interventions[recordID] = kept
		}
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (b *fakeBackend) track(r *http.Request) {
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.mu.Unlock()
}

func newTestFlow(t *testing.T, backend *fakeBackend, opts Options) *Flow {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	client := rest.NewClient(rest.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, nil, testLogger())
	return NewFlow(client, inflight.New(time.Minute), opts, nil, testLogger())
}

func TestLoadLazyMissingRecordYieldsNoRecord(t *testing.T) {
	backend := newFakeBackend()
	flow := newTestFlow(t, backend, Options{AutoCreateOnMissing: false})

	snap, err := flow.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, StateNoRecord, snap.State)
	assert.Empty(t, snap.Record.ID)
	assert.Empty(t, snap.Record.Diagnosis)
	assert.Empty(t, snap.Record.Allergies)
	assert.Empty(t, snap.Record.Treatments)
	assert.Empty(t, snap.Record.Notes)
	assert.Empty(t, snap.Interventions)

	// nothing was created behind the caller's back
	assert.Zero(t, backend.callCount("POST /records"))
}

func TestLoadEagerMissingRecordCreatesDefaults(t *testing.T) {
	backend := newFakeBackend()
	flow := newTestFlow(t, backend, Options{AutoCreateOnMissing: true})

	snap, err := flow.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, StateLoaded, snap.State)
	assert.NotEmpty(t, snap.Record.ID)
	assert.Equal(t, "Initial Patient Evaluation", snap.Record.Diagnosis)
	assert.Equal(t, "None reported", snap.Record.Allergies)
	assert.Equal(t, "N/A", snap.Record.Treatments)
	assert.Empty(t, snap.Record.Notes)
	assert.Empty(t, snap.Interventions)
}

func TestLoadEagerCreateFailureFailsTheLoad(t *testing.T) {
	backend := newFakeBackend()
	backend.failCreateRecord = true
	flow := newTestFlow(t, backend, Options{AutoCreateOnMissing: true})

	_, err := flow.Load(context.Background(), "p1")
	require.Error(t, err)
}

func TestLoadExistingRecordCascadesToInterventions(t *testing.T) {
	backend := newFakeBackend()
	now := time.Now().UTC()
	backend.records["p1"] = model.MedicalRecord{ID: "rec-9", Diagnosis: "Flu", UpdatedAt: &now}
	backend.interventions["rec-9"] = []model.Intervention{
		{ID: "iv-1", Type: "Checkup", DoctorNotes: "ok", CreatedAt: &now},
	}
	flow := newTestFlow(t, backend, Options{})

	snap, err := flow.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "rec-9", snap.Record.ID)
	require.Len(t, snap.Interventions, 1)
	assert.Equal(t, "Checkup", snap.Interventions[0].Type)
}

func TestLoadInterventionsFailureDegradesToEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.records["p1"] = model.MedicalRecord{ID: "rec-9", Diagnosis: "Flu"}
	backend.failListInterventions = true
	flow := newTestFlow(t, backend, Options{})

	snap, err := flow.Load(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "rec-9", snap.Record.ID)
	assert.Empty(t, snap.Interventions)
}

func TestLoadServerErrorIsNotNoRecord(t *testing.T) {
	backend := newFakeBackend()
	backend.recordError = http.StatusInternalServerError
	flow := newTestFlow(t, backend, Options{})

	snap, err := flow.Load(context.Background(), "p1")
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	backend := newFakeBackend()
	flow := newTestFlow(t, backend, Options{})
	ctx := context.Background()

	rec := model.MedicalRecord{Diagnosis: "Flu"}
	require.NoError(t, flow.Save(ctx, &rec, "p1"))
	require.NotEmpty(t, rec.ID)
	require.NotNil(t, rec.UpdatedAt)
	firstID := rec.ID

	rec.Notes = "follow-up in two weeks"
	require.NoError(t, flow.Save(ctx, &rec, "p1"))
	assert.Equal(t, firstID, rec.ID)

	// exactly one create; the second save took the update path
	assert.Equal(t, 1, backend.callCount("POST /records"))
	assert.Equal(t, 1, backend.callCount("PUT /records/"+firstID))
}

func TestSaveAlwaysAttachesPatientReference(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	var bodies []model.RecordUpsert
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			var upsert model.RecordUpsert
			json.NewDecoder(r.Body).Decode(&upsert)
			bodies = append(bodies, upsert)
			payload, _ := json.Marshal(upsert)
			req, _ := http.NewRequest(r.Method, srv.URL+r.URL.Path, strings.NewReader(string(payload)))
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			w.WriteHeader(resp.StatusCode)
			io.Copy(w, resp.Body)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(proxy.Close)

	client := rest.NewClient(rest.Config{BaseURL: proxy.URL, Timeout: 5 * time.Second}, nil, nil, testLogger())
	flow := NewFlow(client, inflight.New(time.Minute), Options{}, nil, testLogger())

	ctx := context.Background()
	rec := model.MedicalRecord{Diagnosis: "Flu"}
	require.NoError(t, flow.Save(ctx, &rec, "p1"))
	require.NoError(t, flow.Save(ctx, &rec, "p1"))

	require.Len(t, bodies, 2)
	for _, body := range bodies {
		assert.Equal(t, "p1", body.Patient.ID)
	}
}

func TestSaveFailureLeavesRecordAsEdited(t *testing.T) {
	backend := newFakeBackend()
	backend.failCreateRecord = true
	flow := newTestFlow(t, backend, Options{})

	rec := model.MedicalRecord{Diagnosis: "Flu", Notes: "edited"}
	err := flow.Save(context.Background(), &rec, "p1")
	require.Error(t, err)

	assert.Empty(t, rec.ID)
	assert.Equal(t, "Flu", rec.Diagnosis)
	assert.Equal(t, "edited", rec.Notes)
}

func TestAddInterventionRequiresPersistedRecord(t *testing.T) {
	backend := newFakeBackend()
	backend.failCreateRecord = true
	flow := newTestFlow(t, backend, Options{})

	rec := model.MedicalRecord{}
	_, err := flow.AddIntervention(context.Background(), model.NewIntervention{Type: "Checkup"}, &rec, "p1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrPrecondition))

	// no intervention was submitted without a parent record
	assert.Zero(t, backend.callCount("POST /interventions"))
}

func TestAddInterventionImplicitlyCreatesRecordWithFallbackDiagnosis(t *testing.T) {
	backend := newFakeBackend()
	flow := newTestFlow(t, backend, Options{})

	rec := model.MedicalRecord{}
	list, err := flow.AddIntervention(context.Background(), model.NewIntervention{Type: "Checkup", DoctorNotes: "ok"}, &rec, "p1")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Initial Evaluation", rec.Diagnosis)
	require.Len(t, list, 1)
	assert.Equal(t, "Checkup", list[0].Type)
}

func TestAddInterventionKeepsUserDiagnosisOnImplicitCreate(t *testing.T) {
	backend := newFakeBackend()
	flow := newTestFlow(t, backend, Options{})

	rec := model.MedicalRecord{Diagnosis: "Sprained ankle"}
	_, err := flow.AddIntervention(context.Background(), model.NewIntervention{Type: "X-ray"}, &rec, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Sprained ankle", rec.Diagnosis)
}

func TestAddInterventionRefreshesListFromServer(t *testing.T) {
	backend := newFakeBackend()
	now := time.Now().UTC()
	backend.records["p1"] = model.MedicalRecord{ID: "rec-1", Diagnosis: "Flu"}
	backend.interventions["rec-1"] = []model.Intervention{
		{ID: "iv-0", Type: "Consultation", CreatedAt: &now},
	}
	flow := newTestFlow(t, backend, Options{})

	rec := model.MedicalRecord{ID: "rec-1", Diagnosis: "Flu"}
	list, err := flow.AddIntervention(context.Background(), model.NewIntervention{Type: "Labwork"}, &rec, "p1")
	require.NoError(t, err)

	// full reload: the pre-existing entry is present too
	require.Len(t, list, 2)
	assert.Equal(t, "Consultation", list[0].Type)
	assert.Equal(t, "Labwork", list[1].Type)
}

func TestDeleteInterventionRequiresConfirmation(t *testing.T) {
	backend := newFakeBackend()
	backend.interventions["rec-1"] = []model.Intervention{{ID: "iv-1", Type: "Checkup"}}
	flow := newTestFlow(t, backend, Options{})

	_, err := flow.DeleteIntervention(context.Background(), "iv-1", "rec-1", false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConfirmationRequired))

	// denial means no network call at all
	assert.Empty(t, backend.calls)
}

func TestDeleteInterventionRefreshesList(t *testing.T) {
	backend := newFakeBackend()
	backend.interventions["rec-1"] = []model.Intervention{
		{ID: "iv-1", Type: "Checkup"},
		{ID: "iv-2", Type: "Labwork"},
	}
	flow := newTestFlow(t, backend, Options{})

	list, err := flow.DeleteIntervention(context.Background(), "iv-1", "rec-1", true)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, "iv-2", list[0].ID)
}

func TestAddInterventionRefreshFailureIsReported(t *testing.T) {
	backend := newFakeBackend()
	backend.records["p1"] = model.MedicalRecord{ID: "rec-1", Diagnosis: "Flu"}
	backend.failListInterventions = true
	flow := newTestFlow(t, backend, Options{})

	rec := backend.records["p1"]
	list, err := flow.AddIntervention(context.Background(), model.NewIntervention{Type: "Consultation"}, &rec, "p1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUpstream))
	assert.Contains(t, err.Error(), "recorded")
	assert.Nil(t, list)

	// the intervention itself went through
	assert.Equal(t, 1, backend.callCount("POST /interventions"))
}

func TestDeleteInterventionRefreshFailureIsReported(t *testing.T) {
	backend := newFakeBackend()
	backend.records["p1"] = model.MedicalRecord{ID: "rec-1", Diagnosis: "Flu"}
	backend.interventions["rec-1"] = []model.Intervention{{ID: "iv-1", Type: "Consultation"}}
	backend.failListInterventions = true
	flow := newTestFlow(t, backend, Options{})

	list, err := flow.DeleteIntervention(context.Background(), "iv-1", "rec-1", true)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUpstream))
	assert.Contains(t, err.Error(), "deleted")
	assert.Nil(t, list)

	assert.Equal(t, 1, backend.callCount("DELETE /interventions/iv-1"))
	assert.Empty(t, backend.interventions["rec-1"])
}

func TestSaveRejectsConcurrentDuplicate(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	client := rest.NewClient(rest.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, nil, testLogger())

	guard := inflight.New(time.Minute)
	flow := NewFlow(client, guard, Options{}, nil, testLogger())

	// simulate a first save still in flight
	require.NoError(t, guard.Begin("record:save:p1"))

	rec := model.MedicalRecord{Diagnosis: "Flu"}
	err := flow.Save(context.Background(), &rec, "p1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrOperationPending))
	assert.Empty(t, backend.calls)
}

func TestDeleteInterventionRejectsConcurrentDuplicate(t *testing.T) {
	backend := newFakeBackend()
	backend.interventions["rec-1"] = []model.Intervention{{ID: "iv-1", Type: "Consultation"}}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	client := rest.NewClient(rest.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, nil, testLogger())

	guard := inflight.New(time.Minute)
	flow := NewFlow(client, guard, Options{}, nil, testLogger())

	// simulate a first delete of the same intervention still in flight
	require.NoError(t, guard.Begin("record:delete-intervention:iv-1"))

	_, err := flow.DeleteIntervention(context.Background(), "iv-1", "rec-1", true)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrOperationPending))
	assert.Empty(t, backend.calls)

	// once the first delete finishes the same key is usable again
	guard.End("record:delete-intervention:iv-1")
	list, err := flow.DeleteIntervention(context.Background(), "iv-1", "rec-1", true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// Full walkthrough: a patient without a record gets one saved, then
// an intervention appended.
func TestNewPatientRecordWalkthrough(t *testing.T) {
	backend := newFakeBackend()
	flow := newTestFlow(t, backend, Options{AutoCreateOnMissing: false})
	ctx := context.Background()

	snap, err := flow.Load(ctx, "ana-lee")
	require.NoError(t, err)
	require.Equal(t, StateNoRecord, snap.State)
	require.Empty(t, snap.Record.Diagnosis)

	rec := snap.Record
	rec.Diagnosis = "Flu"
	require.NoError(t, flow.Save(ctx, &rec, "ana-lee"))
	require.NotEmpty(t, rec.ID)

	list, err := flow.AddIntervention(ctx, model.NewIntervention{Type: "Checkup", DoctorNotes: "ok"}, &rec, "ana-lee")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Checkup", list[0].Type)
	assert.Equal(t, "ok", list[0].DoctorNotes)

	// reloading agrees with the mutation history
	snap, err = flow.Load(ctx, "ana-lee")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, rec.ID, snap.Record.ID)
	assert.Len(t, snap.Interventions, 1)
}
