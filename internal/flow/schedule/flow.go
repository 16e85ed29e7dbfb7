// Package schedule implements the appointment scheduling flow.
package schedule

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

const slotConflictMessage = "this time slot is already booked, please choose another time"

type Flow struct {
	client  *rest.Client
	guard   *inflight.Guard
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewFlow(client *rest.Client, guard *inflight.Guard, m *metrics.Metrics, log *logger.Logger) *Flow {
	return &Flow{client: client, guard: guard, metrics: m, log: log}
}

// Create schedules an appointment. Date and time must both be present
// before any request is issued; they are combined into the backend's
// local date-time format. A backend 409 means the doctor's slot is
// taken and maps to a dedicated conflict message; every other failure
// gets a generic message with the server detail appended when there
// is one.
func (f *Flow) Create(ctx context.Context, date, timeOfDay, patientID, doctorID string) (*model.Appointment, error) {
	if date == "" || timeOfDay == "" {
		return nil, apperrors.Validation("please select both date and time")
	}

	key := "schedule:create:" + doctorID + ":" + date + "T" + timeOfDay
	if err := f.guard.Begin(key); err != nil {
		return nil, err
	}
	defer f.guard.End(key)

	appointment := model.Appointment{
		DateTime:  date + "T" + timeOfDay,
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    model.AppointmentStatusPlanned,
	}

	var created model.Appointment
	if err := f.client.Post(ctx, "/rendezvous", appointment, &created); err != nil {
		f.metrics.CountFlowError("schedule", "create")
		if rest.IsConflict(err) {
			return nil, apperrors.Conflict(slotConflictMessage, err)
		}
		if detail := rest.Detail(err); detail != "" {
			return nil, apperrors.Upstream("failed to schedule appointment: "+detail, err)
		}
		return nil, fmt.Errorf("schedule appointment: %w", err)
	}
	return &created, nil
}

// List fetches the full schedule.
func (f *Flow) List(ctx context.Context) ([]model.Appointment, error) {
	var appointments []model.Appointment
	if err := f.client.Get(ctx, "/rendezvous", &appointments); err != nil {
		f.metrics.CountFlowError("schedule", "list")
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if appointments == nil {
		appointments = []model.Appointment{}
	}
	return appointments, nil
}

// ListUpcomingForDoctor fetches the future appointments of one
// doctor, for summary display.
func (f *Flow) ListUpcomingForDoctor(ctx context.Context, doctorID string) ([]model.Appointment, error) {
	var appointments []model.Appointment
	if err := f.client.Get(ctx, "/rendezvous/doctor/"+doctorID+"/upcoming", &appointments); err != nil {
		f.metrics.CountFlowError("schedule", "upcoming")
		return nil, fmt.Errorf("list upcoming appointments for doctor %s: %w", doctorID, err)
	}
	if appointments == nil {
		appointments = []model.Appointment{}
	}
	return appointments, nil
}

// Delete cancels an appointment. The caller must have obtained
// confirmation; without it no request is issued. There is no undo.
func (f *Flow) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.ConfirmationRequired("cancel the appointment")
	}
	if err := f.client.Delete(ctx, "/rendezvous/"+id); err != nil {
		f.metrics.CountFlowError("schedule", "delete")
		return fmt.Errorf("cancel appointment %s: %w", id, err)
	}
	return nil
}
