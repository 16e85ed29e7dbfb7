package appointment

import (
	"github.com/gin-gonic/gin"

	"clinic-console/internal/flow/schedule"
	"clinic-console/internal/model"
	"clinic-console/internal/session"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/httputil"
)

type Handler struct {
	flow     *schedule.Flow
	sessions *session.Store
}

func NewHandler(flow *schedule.Flow, sessions *session.Store) *Handler {
	return &Handler{flow: flow, sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.DELETE("/:id", h.CancelAppointment)
		appointments.GET("/doctor/:doctorId/upcoming", h.ListUpcoming)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	appointments, err := h.flow.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

// CreateAppointment books a slot. The acting doctor defaults to the
// signed-in user when the request names none.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("please select both date and time"))
		return
	}

	doctorID := req.DoctorID
	if doctorID == "" {
		doctorID = h.sessions.Current().User.ID
	}

	created, err := h.flow.Create(c.Request.Context(), req.Date, req.Time, req.PatientID, doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, created)
}

func (h *Handler) ListUpcoming(c *gin.Context) {
	appointments, err := h.flow.ListUpcomingForDoctor(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"
	if err := h.flow.Delete(c.Request.Context(), c.Param("id"), confirmed); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"cancelled": true})
}
