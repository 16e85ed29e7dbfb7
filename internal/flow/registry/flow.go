// Package registry implements the patient registry flow: profile
// CRUD plus the two-step account-then-profile creation.
package registry

import (
	"context"
	"fmt"
	"strings"

	"clinic-console/internal/inflight"
	"clinic-console/internal/model"
	"clinic-console/internal/rest"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/logger"
	"clinic-console/pkg/metrics"
)

// RolePatient is the fixed role assigned to accounts provisioned for
// patient profiles.
const RolePatient = "PATIENT"

type Flow struct {
	client  *rest.Client
	guard   *inflight.Guard
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewFlow(client *rest.Client, guard *inflight.Guard, m *metrics.Metrics, log *logger.Logger) *Flow {
	return &Flow{client: client, guard: guard, metrics: m, log: log}
}

// List fetches all patient profiles.
func (f *Flow) List(ctx context.Context) ([]model.Patient, error) {
	var patients []model.Patient
	if err := f.client.Get(ctx, "/patients", &patients); err != nil {
		f.metrics.CountFlowError("registry", "list")
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if patients == nil {
		patients = []model.Patient{}
	}
	return patients, nil
}

// Get fetches one patient profile.
func (f *Flow) Get(ctx context.Context, id string) (*model.Patient, error) {
	var patient model.Patient
	if err := f.client.Get(ctx, "/patients/"+id, &patient); err != nil {
		if rest.IsNotFound(err) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return &patient, nil
}

// Search filters patients whose "First Last" name contains term,
// case-insensitively. An empty term returns the full list. The filter
// is purely client-side, recomputed over the already-fetched list.
func Search(patients []model.Patient, term string) []model.Patient {
	if term == "" {
		return patients
	}
	needle := strings.ToLower(term)
	matched := make([]model.Patient, 0, len(patients))
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.FullName()), needle) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Create provisions a backend account for the email and then creates
// the profile linked to it. The two steps are not transactional: when
// the profile creation fails the account already exists with no
// linked profile, and no compensation is attempted. The error names
// the orphaned account so an operator can clean it up.
func (f *Flow) Create(ctx context.Context, firstName, lastName, email string) (*model.Patient, error) {
	key := "registry:create:" + email
	if err := f.guard.Begin(key); err != nil {
		return nil, err
	}
	defer f.guard.End(key)

	var account model.RegisterResponse
	reg := model.RegisterRequest{
		Email:        email,
		PasswordHash: "", // backend assigns its default password
		Role:         RolePatient,
	}
	if err := f.client.Post(ctx, "/auth/register", reg, &account); err != nil {
		f.metrics.CountFlowError("registry", "create")
		return nil, fmt.Errorf("provision account for %s: %w", email, err)
	}

	var created model.Patient
	profile := model.Patient{FirstName: firstName, LastName: lastName, UserID: account.ID}
	if err := f.client.Post(ctx, "/patients", profile, &created); err != nil {
		f.metrics.CountFlowError("registry", "create")
		f.log.Error(err, "patient profile creation failed after account provisioning",
			"account_id", account.ID, "email", email)
		return nil, fmt.Errorf("create patient profile (account %s is now orphaned): %w", account.ID, err)
	}

	return &created, nil
}

// Update changes the mutable profile fields. Email is immutable after
// creation and is not sent.
func (f *Flow) Update(ctx context.Context, id, firstName, lastName string) (*model.Patient, error) {
	var updated model.Patient
	req := model.UpdatePatientRequest{FirstName: firstName, LastName: lastName}
	if err := f.client.Put(ctx, "/patients/"+id, req, &updated); err != nil {
		f.metrics.CountFlowError("registry", "update")
		return nil, fmt.Errorf("update patient %s: %w", id, err)
	}
	return &updated, nil
}

// Delete removes a patient profile. The caller must have obtained
// confirmation; without it no request is issued. Related records and
// appointments are the backend's concern.
func (f *Flow) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.ConfirmationRequired("delete the patient")
	}
	if err := f.client.Delete(ctx, "/patients/"+id); err != nil {
		f.metrics.CountFlowError("registry", "delete")
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	return nil
}
