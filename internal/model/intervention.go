package model

import "time"

// Intervention is a medical act recorded against a clinical record.
// Interventions are append-only: created, listed, deleted, never
// updated in place.
type Intervention struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	DoctorNotes string     `json:"doctorNotes"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// NewIntervention is the user input for appending an intervention.
type NewIntervention struct {
	Type        string `json:"type" binding:"required"`
	DoctorNotes string `json:"doctorNotes"`
}

// InterventionCreate is the wire shape for intervention creation,
// tied to its parent record by reference.
type InterventionCreate struct {
	Type          string    `json:"type"`
	DoctorNotes   string    `json:"doctorNotes"`
	MedicalRecord EntityRef `json:"medicalRecord"`
}
