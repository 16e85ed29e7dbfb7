package patient

import (
	"github.com/gin-gonic/gin"

	"clinic-console/internal/flow/registry"
	"clinic-console/internal/model"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/httputil"
)

type Handler struct {
	flow *registry.Flow
}

func NewHandler(flow *registry.Flow) *Handler {
	return &Handler{flow: flow}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
	}
}

// ListPatients returns all patients, optionally narrowed by the
// "search" query. The filter runs client-side over the fetched list.
func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.flow.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, registry.Search(patients, c.Query("search")))
}

func (h *Handler) GetPatient(c *gin.Context) {
	patient, err := h.flow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("first name, last name and a valid email are required"))
		return
	}

	created, err := h.flow.Create(c.Request.Context(), req.FirstName, req.LastName, req.Email)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, created)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("first name and last name are required"))
		return
	}

	updated, err := h.flow.Update(c.Request.Context(), c.Param("id"), req.FirstName, req.LastName)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

// DeletePatient removes a profile. The confirm query parameter is the
// caller's confirmation grant; without it no backend call happens.
func (h *Handler) DeletePatient(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"
	if err := h.flow.Delete(c.Request.Context(), c.Param("id"), confirmed); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": true})
}
