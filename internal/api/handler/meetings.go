package handler

import (
	"context"
	"io"
	"net/http"

	"roomies/backend/internal/meeting"
	"roomies/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const maxProposalBytes = 16 << 10

func (h *Handler) ScheduleMeeting(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProposalBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	proposal, err := meeting.DecodeProposal(body)
	if err != nil {
		respondError(c, err)
		return
	}
	m, err := h.Meetings.Schedule(c.Request.Context(), identityOf(c), c.Param("id"), proposal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMeetings(c *gin.Context) {
	list, err := h.Meetings.ListForMatch(c.Request.Context(), identityOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": list})
}

func (h *Handler) CompleteMeeting(c *gin.Context) {
	h.settleMeeting(c, h.Meetings.Complete)
}

func (h *Handler) CancelMeeting(c *gin.Context) {
	h.settleMeeting(c, h.Meetings.CancelMeeting)
}

func (h *Handler) settleMeeting(c *gin.Context, fn func(ctx context.Context, identity, meetingID string) (*models.Meeting, error)) {
	m, err := fn(c.Request.Context(), identityOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
