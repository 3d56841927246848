package handler

import (
	"io"
	"net/http"

	"roomies/backend/internal/report"

	"github.com/gin-gonic/gin"
)

const maxReportBytes = 16 << 10

func (h *Handler) FileReport(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxReportBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	sub, err := report.DecodeSubmission(body)
	if err != nil {
		respondError(c, err)
		return
	}
	r, err := h.Reports.File(c.Request.Context(), identityOf(c), sub)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}
