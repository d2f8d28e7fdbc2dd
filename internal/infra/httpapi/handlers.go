package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"water_billing_service/internal/app"
	"water_billing_service/internal/domain/licence"
	idb "water_billing_service/internal/infra/database"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type importLicenceBody struct {
	ExpiredDate *string `json:"expiredDate"`
	LapsedDate  *string `json:"lapsedDate"`
	RevokedDate *string `json:"revokedDate"`
}

func (s *Server) handleImportLicence(c *gin.Context) {
	licenceID := c.Param("id")
	if _, err := uuid.Parse(licenceID); err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "licence not found"})
		return
	}

	var body importLicenceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request body must be JSON"})
		return
	}

	ve := app.NewValidationError()
	imported := licence.ImportedEndDates{
		ExpiredDate: parseOptionalDate(body.ExpiredDate, "expiredDate", ve),
		LapsedDate:  parseOptionalDate(body.LapsedDate, "lapsedDate", ve),
		RevokedDate: parseOptionalDate(body.RevokedDate, "revokedDate", ve),
	}
	if len(ve.Errors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, ve)
		return
	}

	if err := s.importer.ImportLicence(c.Request.Context(), licenceID, imported); err != nil {
		if errors.Is(err, idb.ErrLicenceNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "licence not found"})
			return
		}
		s.logger.WithError(err).WithField("licence_id", licenceID).Error("Licence import failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "licence import failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"licenceId": licenceID, "status": "imported"})
}

type noticeBody struct {
	Journey         string `json:"journey"`
	Issuer          string `json:"issuer"`
	PeriodStartDate string `json:"periodStartDate"`
	PeriodEndDate   string `json:"periodEndDate"`
	DueDate         string `json:"dueDate"`
}

type noticeResponse struct {
	EventID       string `json:"eventId"`
	ReferenceCode string `json:"referenceCode"`
	Recipients    int    `json:"recipients"`
	Sent          int    `json:"sent"`
	Error         int    `json:"error"`
}

func (s *Server) handleSendNotice(c *gin.Context) {
	var body noticeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request body must be JSON"})
		return
	}

	// Unparseable dates stay zero and are reported by the notice validation.
	req := app.NoticeRequest{
		Journey:         body.Journey,
		Issuer:          body.Issuer,
		PeriodStartDate: parseDate(body.PeriodStartDate),
		PeriodEndDate:   parseDate(body.PeriodEndDate),
		DueDate:         parseDate(body.DueDate),
	}

	event, totals, err := s.notices.Send(c.Request.Context(), req)
	if err != nil {
		var ve *app.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusUnprocessableEntity, ve)
			return
		}
		s.logger.WithError(err).Error("Returns notice failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "notice could not be sent"})
		return
	}

	c.JSON(http.StatusCreated, noticeResponse{
		EventID:       event.ID,
		ReferenceCode: event.ReferenceCode,
		Recipients:    event.RecipientCount,
		Sent:          totals.Sent,
		Error:         totals.Error,
	})
}

func (s *Server) handleNotificationStatus(c *gin.Context) {
	summary, err := s.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Notification status job failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "notification status check failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events":  summary.Events,
		"checked": summary.Checked,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
	})
}

func parseDate(v string) time.Time {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseOptionalDate reads a nullable date. A null or absent value is a
// cleared date, not an error.
func parseOptionalDate(v *string, field string, ve *app.ValidationError) *time.Time {
	if v == nil || *v == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		ve.Add(field, "Enter a real date in the format YYYY-MM-DD")
		return nil
	}
	return &t
}
