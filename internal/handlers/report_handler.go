package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/services"
)

// reportParams resolves the shared report inputs: the effective hospital and
// the day-bounded date range. On failure the response is already written.
func (h *Handler) reportParams(c *gin.Context) (hospital primitive.ObjectID, start, end time.Time, ok bool) {
	p, ok := h.principal(c)
	if !ok {
		return primitive.NilObjectID, time.Time{}, time.Time{}, false
	}

	hospital, err := services.ResolveReportHospital(p, c.Query("hospital"))
	if err != nil {
		if errors.Is(err, authz.ErrNoHospital) || errors.Is(err, authz.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return primitive.NilObjectID, time.Time{}, time.Time{}, false
	}

	start, end, err = services.DayBounds(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return primitive.NilObjectID, time.Time{}, time.Time{}, false
	}

	return hospital, start, end, true
}

// FinanceReport returns payment totals grouped by status, type, day and
// doctor, plus a paid-only grand total.
func (h *Handler) FinanceReport(c *gin.Context) {
	hospital, start, end, ok := h.reportParams(c)
	if !ok {
		return
	}

	report, err := services.RunFinanceReport(c.Request.Context(), h.DB, hospital, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run finance report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// PatientVisitsReport counts completed appointments as visits, grouped by
// day, doctor and status.
func (h *Handler) PatientVisitsReport(c *gin.Context) {
	hospital, start, end, ok := h.reportParams(c)
	if !ok {
		return
	}

	report, err := services.RunVisitsReport(c.Request.Context(), h.DB, hospital, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run patient visits report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// PatientVisitsDebug exposes pre- and post-filter samples for diagnosing
// report discrepancies.
func (h *Handler) PatientVisitsDebug(c *gin.Context) {
	hospital, start, end, ok := h.reportParams(c)
	if !ok {
		return
	}

	debug, err := services.VisitsDebug(c.Request.Context(), h.DB, hospital, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run visits debug"})
		return
	}
	c.JSON(http.StatusOK, debug)
}
