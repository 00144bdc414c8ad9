package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legalestate/events"
	"legalestate/middleware"
	"legalestate/models"
	"legalestate/services"
)

type LawyerHandler struct {
	auth        *services.AuthService
	invitations *services.InvitationService
	dashboard   *services.DashboardService
}

func NewLawyerHandler(auth *services.AuthService, invitations *services.InvitationService, dashboard *services.DashboardService) *LawyerHandler {
	return &LawyerHandler{
		auth:        auth,
		invitations: invitations,
		dashboard:   dashboard,
	}
}

type RegisterLawyerRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=8"`
	FirstName string  `json:"firstName" binding:"required,max=100"`
	LastName  string  `json:"lastName" binding:"required,max=100"`
	BarNumber *string `json:"barNumber" binding:"omitempty,max=50"`
}

type LoginLawyerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type InviteClientRequest struct {
	ClientName  string `json:"clientName" binding:"required,max=200"`
	ClientEmail string `json:"clientEmail" binding:"required,email"`
}

type LawyerResponse struct {
	ID        uint    `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	BarNumber *string `json:"barNumber,omitempty"`
}

type DashboardClient struct {
	ID               uint       `json:"id"`
	Email            string     `json:"email"`
	AccessCode       string     `json:"access_code"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	ProfileCompleted bool       `json:"profile_completed"`
	InvitationSentAt *time.Time `json:"invitation_sent_at"`
	CreatedAt        time.Time  `json:"created_at"`
	EstateCompleted  *time.Time `json:"estate_completed"`
}

type DashboardStatistics struct {
	TotalInvitations int64 `json:"total_invitations"`
	Downloads        int64 `json:"downloads"`
}

func (h *LawyerHandler) Register(c *gin.Context) {
	var req RegisterLawyerRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.auth.RegisterLawyer(c.Request.Context(), services.RegisterLawyerInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BarNumber: req.BarNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Lawyer registered successfully",
		"token":   session.Token,
		"lawyer":  toLawyerResponse(session.Lawyer),
	})
}

func (h *LawyerHandler) Login(c *gin.Context) {
	var req LoginLawyerRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.auth.LoginLawyer(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   session.Token,
		"lawyer":  toLawyerResponse(session.Lawyer),
	})
}

func (h *LawyerHandler) InviteClient(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	var req InviteClientRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.invitations.Invite(c.Request.Context(), session.SubjectID(), req.ClientName, req.ClientEmail)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Client invitation sent successfully",
		"clientId":   inv.ClientID,
		"accessCode": inv.AccessCode,
	})
}

func (h *LawyerHandler) ResendInvitation(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	clientID, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID format"})
		return
	}

	inv, err := h.invitations.ResendInvitation(c.Request.Context(), session.SubjectID(), clientID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Client invitation resent successfully",
		"clientId": inv.ClientID,
	})
}

func (h *LawyerHandler) Dashboard(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	dash, err := h.dashboard.Dashboard(c.Request.Context(), session.SubjectID())
	if err != nil {
		writeError(c, err)
		return
	}

	clients := make([]DashboardClient, 0, len(dash.Clients))
	for _, row := range dash.Clients {
		clients = append(clients, toDashboardClient(row))
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"statistics": DashboardStatistics{
			TotalInvitations: dash.Statistics.TotalInvitations,
			Downloads:        dash.Statistics.Downloads,
		},
	})
}

func (h *LawyerHandler) SearchClients(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	docs, err := h.dashboard.SearchClients(c.Request.Context(), session.SubjectID(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	if docs == nil {
		docs = []events.ClientDocument{}
	}

	c.JSON(http.StatusOK, gin.H{"clients": docs})
}

func toLawyerResponse(l *models.Lawyer) LawyerResponse {
	return LawyerResponse{
		ID:        l.ID,
		Email:     l.Email,
		FirstName: l.FirstName,
		LastName:  l.LastName,
		BarNumber: l.BarNumber,
	}
}

func toDashboardClient(row models.ClientSummary) DashboardClient {
	return DashboardClient{
		ID:               row.ID,
		Email:            row.Email,
		AccessCode:       row.AccessCode,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		Phone:            row.Phone,
		Address:          row.Address,
		ProfileCompleted: row.ProfileCompleted,
		InvitationSentAt: row.InvitationSentAt,
		CreatedAt:        row.CreatedAt,
		EstateCompleted:  row.EstateCompleted,
	}
}
