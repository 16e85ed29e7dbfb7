package model

// Patient is a patient profile as served by the backend. IDs are
// server-assigned; the console never fabricates them.
type Patient struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// FullName is the display name patients are searched by.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// EntityRef carries a bare id reference to another entity, the shape
// the backend expects for foreign references on writes.
type EntityRef struct {
	ID string `json:"id"`
}

type CreatePatientRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

// UpdatePatientRequest carries the mutable patient fields. Email is
// immutable after creation.
type UpdatePatientRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}
