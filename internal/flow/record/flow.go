// Package record implements the clinical record reconciliation flow:
// fetch-or-initialize a patient's medical record, cascade to its
// interventions, and keep the record/intervention pair consistent
// with the backend after every mutation.
package record

import (
	"context"
	"fmt"

	"clinic-console/internal/inflight"
	"clinic-console/internal/model"
	"clinic-console/internal/rest"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/logger"
	"clinic-console/pkg/metrics"
)

// State of a patient's record after a Load.
type State string

const (
	// StateNoRecord means the backend has no record for the patient.
	// This is a valid state, not an error.
	StateNoRecord State = "no_record"
	// StateLoaded means a persisted record was retrieved or created.
	StateLoaded State = "loaded"
)

// Defaults used when a record is materialized without user input.
const (
	defaultDiagnosis  = "Initial Patient Evaluation"
	defaultAllergies  = "None reported"
	defaultTreatments = "N/A"
	// fallbackDiagnosis fills an empty diagnosis on the implicit save
	// that precedes a first intervention.
	fallbackDiagnosis = "Initial Evaluation"
)

// Options selects the reconciliation mode. The detail screen loads
// lazily and leaves a missing record unsaved; the quick-edit dialog
// eagerly materializes a default record on first open.
type Options struct {
	AutoCreateOnMissing bool
}

// Snapshot is the result of one Load: the record state plus the
// interventions known for it.
type Snapshot struct {
	State         State
	Record        model.MedicalRecord
	Interventions []model.Intervention
}

// Flow drives record reconciliation for one presentation context.
type Flow struct {
	client  *rest.Client
	guard   *inflight.Guard
	opts    Options
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewFlow(client *rest.Client, guard *inflight.Guard, opts Options, m *metrics.Metrics, log *logger.Logger) *Flow {
	return &Flow{
		client:  client,
		guard:   guard,
		opts:    opts,
		metrics: m,
		log:     log,
	}
}

// Load resolves the record for patientID. A backend 404 is not an
// error: in lazy mode it yields StateNoRecord with empty fields, in
// eager mode a default record is created on the spot. Any other
// failure aborts the load. The interventions fetch is issued only
// after the record has resolved, since it is keyed by record id; its
// failure degrades to an empty list rather than failing the load.
func (f *Flow) Load(ctx context.Context, patientID string) (*Snapshot, error) {
	var rec model.MedicalRecord
	err := f.client.Get(ctx, "/records/patient/"+patientID, &rec)

	switch {
	case err == nil:
		snap := &Snapshot{State: StateLoaded, Record: rec, Interventions: []model.Intervention{}}
		if rec.Persisted() {
			interventions, ierr := f.fetchInterventions(ctx, rec.ID)
			if ierr != nil {
				// the record itself loaded fine, keep the screen usable
				f.log.Error(ierr, "interventions unavailable", "record_id", rec.ID)
			} else {
				snap.Interventions = interventions
			}
		}
		return snap, nil

	case rest.IsNotFound(err):
		if !f.opts.AutoCreateOnMissing {
			f.log.Debug("no record for patient, leaving initial state", "patient_id", patientID)
			return &Snapshot{State: StateNoRecord, Interventions: []model.Intervention{}}, nil
		}
		created, cerr := f.create(ctx, model.MedicalRecord{
			Diagnosis:  defaultDiagnosis,
			Allergies:  defaultAllergies,
			Treatments: defaultTreatments,
		}, patientID)
		if cerr != nil {
			f.metrics.CountFlowError("record", "load")
			return nil, fmt.Errorf("create initial record for patient %s: %w", patientID, cerr)
		}
		return &Snapshot{State: StateLoaded, Record: *created, Interventions: []model.Intervention{}}, nil

	default:
		f.metrics.CountFlowError("record", "load")
		return nil, fmt.Errorf("load record for patient %s: %w", patientID, err)
	}
}

// Save persists rec for patientID: a create when the record has no id
// yet, an update addressed by id otherwise. On a create the returned
// id and timestamp are adopted into rec, so the next Save always
// updates. On failure rec is left exactly as the caller edited it.
func (f *Flow) Save(ctx context.Context, rec *model.MedicalRecord, patientID string) error {
	key := "record:save:" + patientID
	if err := f.guard.Begin(key); err != nil {
		return err
	}
	defer f.guard.End(key)

	if !rec.Persisted() {
		created, err := f.create(ctx, *rec, patientID)
		if err != nil {
			f.metrics.CountFlowError("record", "save")
			return fmt.Errorf("save record: %w", err)
		}
		rec.ID = created.ID
		rec.UpdatedAt = created.UpdatedAt
		return nil
	}

	var updated model.MedicalRecord
	if err := f.client.Put(ctx, "/records/"+rec.ID, upsertPayload(*rec, patientID), &updated); err != nil {
		f.metrics.CountFlowError("record", "save")
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	if updated.UpdatedAt != nil {
		rec.UpdatedAt = updated.UpdatedAt
	}
	return nil
}

// AddIntervention appends an intervention to rec. A record that was
// never saved is implicitly created first, with a fallback diagnosis
// when the user left it empty; if that implicit create fails the
// whole operation fails and nothing is submitted. On success the full
// intervention list is re-fetched so the caller always sees server
// truth.
func (f *Flow) AddIntervention(ctx context.Context, input model.NewIntervention, rec *model.MedicalRecord, patientID string) ([]model.Intervention, error) {
	key := "record:add-intervention:" + patientID
	if err := f.guard.Begin(key); err != nil {
		return nil, err
	}
	defer f.guard.End(key)

	if !rec.Persisted() {
		draft := *rec
		if draft.Diagnosis == "" {
			draft.Diagnosis = fallbackDiagnosis
		}
		created, err := f.create(ctx, draft, patientID)
		if err != nil {
			f.metrics.CountFlowError("record", "add_intervention")
			return nil, apperrors.Precondition("save the medical record before adding interventions", err)
		}
		*rec = *created
	}

	payload := model.InterventionCreate{
		Type:          input.Type,
		DoctorNotes:   input.DoctorNotes,
		MedicalRecord: model.EntityRef{ID: rec.ID},
	}
	if err := f.client.Post(ctx, "/interventions", payload, nil); err != nil {
		f.metrics.CountFlowError("record", "add_intervention")
		return nil, fmt.Errorf("add intervention: %w", err)
	}

	interventions, err := f.fetchInterventions(ctx, rec.ID)
	if err != nil {
		return nil, apperrors.Upstream("intervention recorded but the list could not be refreshed, reload the record", err)
	}
	return interventions, nil
}

// DeleteIntervention removes one intervention. The caller must have
// obtained confirmation; without it no request is issued. On success
// the list is re-fetched so the caller sees server truth; if that
// re-fetch fails the error says so explicitly rather than handing
// back a list the delete just invalidated.
func (f *Flow) DeleteIntervention(ctx context.Context, interventionID, recordID string, confirmed bool) ([]model.Intervention, error) {
	if !confirmed {
		return nil, apperrors.ConfirmationRequired("delete the intervention")
	}
	if interventionID == "" {
		return nil, apperrors.Validation("intervention id is required")
	}

	key := "record:delete-intervention:" + interventionID
	if err := f.guard.Begin(key); err != nil {
		return nil, err
	}
	defer f.guard.End(key)

	if err := f.client.Delete(ctx, "/interventions/"+interventionID); err != nil {
		f.metrics.CountFlowError("record", "delete_intervention")
		return nil, fmt.Errorf("delete intervention %s: %w", interventionID, err)
	}

	interventions, err := f.fetchInterventions(ctx, recordID)
	if err != nil {
		return nil, apperrors.Upstream("intervention deleted but the list could not be refreshed, reload the record", err)
	}
	return interventions, nil
}

func (f *Flow) create(ctx context.Context, rec model.MedicalRecord, patientID string) (*model.MedicalRecord, error) {
	var created model.MedicalRecord
	if err := f.client.Post(ctx, "/records", upsertPayload(rec, patientID), &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (f *Flow) fetchInterventions(ctx context.Context, recordID string) ([]model.Intervention, error) {
	var interventions []model.Intervention
	if err := f.client.Get(ctx, "/interventions/record/"+recordID, &interventions); err != nil {
		return nil, fmt.Errorf("fetch interventions for record %s: %w", recordID, err)
	}
	if interventions == nil {
		interventions = []model.Intervention{}
	}
	return interventions, nil
}

func upsertPayload(rec model.MedicalRecord, patientID string) model.RecordUpsert {
	return model.RecordUpsert{
		Diagnosis:  rec.Diagnosis,
		Allergies:  rec.Allergies,
		Treatments: rec.Treatments,
		Notes:      rec.Notes,
		Patient:    model.EntityRef{ID: patientID},
	}
}
