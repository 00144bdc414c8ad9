package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legalestate/middleware"
	"legalestate/services"
)

// SessionHandler serves endpoints shared by both roles.
type SessionHandler struct {
	auth *services.AuthService
}

func NewSessionHandler(auth *services.AuthService) *SessionHandler {
	return &SessionHandler{auth: auth}
}

func (h *SessionHandler) VerifyToken(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":        session.SubjectID(),
			"email":     session.Claims.Email,
			"type":      session.Role(),
			"expiresAt": session.Claims.ExpiresAt.Time,
		},
	})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	if err := h.auth.Logout(c.Request.Context(), session.Claims); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
