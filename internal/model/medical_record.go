package model

import "time"

// MedicalRecord is a patient's clinical record. A zero-value record
// with no ID is the valid "no record yet" state, distinct from a
// persisted record whose text fields happen to be empty.
type MedicalRecord struct {
	ID         string     `json:"id,omitempty"`
	Diagnosis  string     `json:"diagnosis"`
	Allergies  string     `json:"allergies"`
	Treatments string     `json:"treatments"`
	Notes      string     `json:"notes"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// Persisted reports whether the record has been stored by the backend.
func (r MedicalRecord) Persisted() bool {
	return r.ID != ""
}

// RecordUpsert is the wire shape for record creation and update. The
// patient reference is attached on every write so a save can never
// detach a record from its patient.
type RecordUpsert struct {
	Diagnosis  string    `json:"diagnosis"`
	Allergies  string    `json:"allergies"`
	Treatments string    `json:"treatments"`
	Notes      string    `json:"notes"`
	Patient    EntityRef `json:"patient"`
}

type SaveRecordRequest struct {
	ID         string `json:"id"`
	Diagnosis  string `json:"diagnosis"`
	Allergies  string `json:"allergies"`
	Treatments string `json:"treatments"`
	Notes      string `json:"notes"`
}
