package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legalestate/services"
)

// InvitationHandler records what happens to an invitation link after it is mailed.
// The invitation code is the only credential, so these endpoints are public.
type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

func (h *InvitationHandler) Opened(c *gin.Context) {
	if err := h.invitations.MarkOpened(c.Request.Context(), c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation marked as opened"})
}

func (h *InvitationHandler) Downloaded(c *gin.Context) {
	if err := h.invitations.MarkDownloaded(c.Request.Context(), c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation marked as downloaded"})
}
