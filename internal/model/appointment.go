package model

// AppointmentStatusPlanned is the only status the console assigns;
// any other value is an opaque pass-through from the backend.
const AppointmentStatusPlanned = "PLANNED"

// Appointment pairs a patient and a doctor at a point in time.
// DateTime is the backend's local date-time string (YYYY-MM-DDTHH:MM).
type Appointment struct {
	ID        string `json:"id,omitempty"`
	DateTime  string `json:"dateTime"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`
	Status    string `json:"status"`
}

type CreateAppointmentRequest struct {
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	PatientID string `json:"patientId" binding:"required"`
	DoctorID  string `json:"doctorId"`
}
