package handler

import (
	"net/http"
	"strconv"
	"time"

	"roomies/backend/internal/chathub"
	"roomies/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// threadView adds the caller's unread counter to a thread.
type threadView struct {
	*models.Thread
	Unread int `json:"unread"`
}

type sendBody struct {
	RecipientID string `json:"recipient_id"`
	ContextID   string `json:"context_id"`
	Content     string `json:"content"`
}

func (h *Handler) ListThreads(c *gin.Context) {
	identity := identityOf(c)
	ctx, cancel := h.Hub.OpContext(c.Request.Context())
	defer cancel()

	threads, err := h.Hub.ListThreads(ctx, identity)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]threadView, 0, len(threads))
	for _, t := range threads {
		views = append(views, threadView{Thread: t, Unread: t.UnreadFor(identity)})
	}
	c.JSON(http.StatusOK, gin.H{"threads": views})
}

// ListMessages pages backwards through a thread: ?before=<RFC3339>&limit=<n>.
func (h *Handler) ListMessages(c *gin.Context) {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		before = t
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		limit = n
	}

	ctx, cancel := h.Hub.OpContext(c.Request.Context())
	defer cancel()
	msgs, err := h.Hub.History(ctx, identityOf(c), c.Param("id"), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) PostThreadMessage(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	h.send(c, chathub.SendRequest{ThreadID: c.Param("id"), Content: body.Content})
}

// PostMessage sends to a recipient, creating the thread on first use.
func (h *Handler) PostMessage(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	h.send(c, chathub.SendRequest{RecipientID: body.RecipientID, ContextID: body.ContextID, Content: body.Content})
}

func (h *Handler) send(c *gin.Context, req chathub.SendRequest) {
	ctx, cancel := h.Hub.OpContext(c.Request.Context())
	defer cancel()

	msg, err := h.Hub.SendMessage(ctx, identityOf(c), req)
	if err != nil {
		respondError(c, chathub.AsTimeout(ctx, err))
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) MarkThreadRead(c *gin.Context) {
	ctx, cancel := h.Hub.OpContext(c.Request.Context())
	defer cancel()

	changed, err := h.Hub.MarkRead(ctx, identityOf(c), c.Param("id"))
	if err != nil {
		respondError(c, chathub.AsTimeout(ctx, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": changed})
}
