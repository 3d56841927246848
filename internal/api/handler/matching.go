package handler

import (
	"context"
	"net/http"
	"strings"

	"roomies/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.Matching.GetProfile(c.Request.Context(), identityOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) PutProfile(c *gin.Context) {
	var p models.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.Matching.UpsertProfile(c.Request.Context(), identityOf(c), &p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) DeactivateProfile(c *gin.Context) {
	if err := h.Matching.DeactivateProfile(c.Request.Context(), identityOf(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Candidates(c *gin.Context) {
	ranked, err := h.Matching.RankedCandidates(c.Request.Context(), identityOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": ranked})
}

func (h *Handler) Compatibility(c *gin.Context) {
	res, err := h.Matching.Compatibility(c.Request.Context(), identityOf(c), c.Param("target"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": res.Score, "breakdown": res.Breakdown})
}

func (h *Handler) ExpressInterest(c *gin.Context) {
	h.pairAction(c, h.Matching.ExpressInterest)
}

func (h *Handler) ConfirmMatch(c *gin.Context) {
	h.pairAction(c, h.Matching.Confirm)
}

func (h *Handler) DeclineMatch(c *gin.Context) {
	h.pairAction(c, h.Matching.Decline)
}

func (h *Handler) CancelMatch(c *gin.Context) {
	h.pairAction(c, h.Matching.Cancel)
}

type pairFunc func(ctx context.Context, identity, target string) (*models.MatchRecord, error)

func (h *Handler) pairAction(c *gin.Context, fn pairFunc) {
	rec, err := fn(c.Request.Context(), identityOf(c), c.Param("target"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListMatches(c *gin.Context) {
	var statuses []models.MatchStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, models.MatchStatus(strings.TrimSpace(s)))
		}
	}
	list, err := h.Matching.ListForIdentity(c.Request.Context(), identityOf(c), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": list})
}

func (h *Handler) GetMatch(c *gin.Context) {
	rec, err := h.Matching.Get(c.Request.Context(), identityOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListBlocks(c *gin.Context) {
	list, err := h.Blocks.ListByBlocker(c.Request.Context(), identityOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": list})
}

func (h *Handler) Block(c *gin.Context) {
	rel, err := h.Blocks.Create(c.Request.Context(), identityOf(c), c.Param("target"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (h *Handler) Unblock(c *gin.Context) {
	if err := h.Blocks.Remove(c.Request.Context(), identityOf(c), c.Param("target")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
