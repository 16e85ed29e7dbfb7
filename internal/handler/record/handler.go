package record

import (
	"github.com/gin-gonic/gin"

	"clinic-console/internal/flow/record"
	"clinic-console/internal/model"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/httputil"
)

// Handler exposes the record reconciliation flow. Both reconciliation
// modes are carried: the detail screen loads lazily, the quick-edit
// dialog eagerly creates a default record, and the mode query lets a
// caller pick either explicitly.
type Handler struct {
	lazy  *record.Flow
	eager *record.Flow
	// defaultEager selects the flow used when no mode is given.
	defaultEager bool
}

func NewHandler(lazy, eager *record.Flow, defaultEager bool) *Handler {
	return &Handler{lazy: lazy, eager: eager, defaultEager: defaultEager}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	records := r.Group("/patients/:id/record")
	{
		records.GET("", h.LoadRecord)
		records.PUT("", h.SaveRecord)
		records.POST("/interventions", h.AddIntervention)
		records.DELETE("/interventions/:interventionId", h.DeleteIntervention)
	}
}

func (h *Handler) flowFor(c *gin.Context) *record.Flow {
	switch c.Query("mode") {
	case "eager":
		return h.eager
	case "lazy":
		return h.lazy
	}
	if h.defaultEager {
		return h.eager
	}
	return h.lazy
}

func (h *Handler) LoadRecord(c *gin.Context) {
	snap, err := h.flowFor(c).Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"state":         snap.State,
		"record":        snap.Record,
		"interventions": snap.Interventions,
	})
}

func (h *Handler) SaveRecord(c *gin.Context) {
	var req model.SaveRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("malformed record payload"))
		return
	}

	rec := model.MedicalRecord{
		ID:         req.ID,
		Diagnosis:  req.Diagnosis,
		Allergies:  req.Allergies,
		Treatments: req.Treatments,
		Notes:      req.Notes,
	}
	if err := h.flowFor(c).Save(c.Request.Context(), &rec, c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

type addInterventionRequest struct {
	RecordID     string                `json:"recordId"`
	Record       model.MedicalRecord   `json:"record"`
	Intervention model.NewIntervention `json:"intervention" binding:"required"`
}

// AddIntervention appends an intervention to the patient's record.
// The client sends its current view of the record so an unsaved one
// can be implicitly created, mirroring the detail screen behavior.
func (h *Handler) AddIntervention(c *gin.Context) {
	var req addInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("intervention type is required"))
		return
	}

	rec := req.Record
	if rec.ID == "" {
		rec.ID = req.RecordID
	}
	interventions, err := h.flowFor(c).AddIntervention(c.Request.Context(), req.Intervention, &rec, c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"record":        rec,
		"interventions": interventions,
	})
}

func (h *Handler) DeleteIntervention(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"
	interventions, err := h.flowFor(c).DeleteIntervention(
		c.Request.Context(),
		c.Param("interventionId"),
		c.Query("recordId"),
		confirmed,
	)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"interventions": interventions})
}
