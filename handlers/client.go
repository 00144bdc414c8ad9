package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legalestate/middleware"
	"legalestate/models"
	"legalestate/services"
)

type ClientHandler struct {
	auth   *services.AuthService
	estate *services.EstateService
}

func NewClientHandler(auth *services.AuthService, estate *services.EstateService) *ClientHandler {
	return &ClientHandler{
		auth:   auth,
		estate: estate,
	}
}

type ClientLoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	AccessCode string `json:"accessCode" binding:"required,max=64"`
}

type ClientResponse struct {
	ID               uint   `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	ProfileCompleted bool   `json:"profileCompleted"`
}

type EstateDataRequest struct {
	MaritalStatus         string          `json:"maritalStatus" binding:"max=50"`
	SpouseName            string          `json:"spouseName" binding:"max=200"`
	Children              json.RawMessage `json:"children"`
	Assets                json.RawMessage `json:"assets"`
	Beneficiaries         json.RawMessage `json:"beneficiaries"`
	HealthcarePreferences string          `json:"healthcarePreferences"`
	ExecutorPreferences   string          `json:"executorPreferences"`
	SpecialInstructions   string          `json:"specialInstructions"`

	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=50"`
	Address   *string `json:"address" binding:"omitempty,max=500"`
}

type EstateDataResponse struct {
	ID                    uint       `json:"id,omitempty"`
	ClientID              uint       `json:"client_id"`
	MaritalStatus         string     `json:"marital_status"`
	SpouseName            string     `json:"spouse_name"`
	Children              string     `json:"children"`
	Assets                string     `json:"assets"`
	Beneficiaries         string     `json:"beneficiaries"`
	HealthcarePreferences string     `json:"healthcare_preferences"`
	ExecutorPreferences   string     `json:"executor_preferences"`
	SpecialInstructions   string     `json:"special_instructions"`
	CompletedAt           *time.Time `json:"completed_at"`
	UpdatedAt             *time.Time `json:"updated_at"`
}

func (h *ClientHandler) Login(c *gin.Context) {
	var req ClientLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.auth.LoginClient(c.Request.Context(), req.Email, req.AccessCode)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or access code"})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Client login successful",
		"token":   session.Token,
		"client":  toClientResponse(session.Client),
	})
}

func (h *ClientHandler) GetEstateData(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	record, err := h.estate.Get(c.Request.Context(), session.SubjectID())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"estateData": toEstateDataResponse(record)})
}

func (h *ClientHandler) SaveEstateData(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	var req EstateDataRequest
	if !bindJSON(c, &req) {
		return
	}

	_, created, err := h.estate.Save(c.Request.Context(), session.SubjectID(), services.EstateInput{
		MaritalStatus:         req.MaritalStatus,
		SpouseName:            req.SpouseName,
		Children:              req.Children,
		Assets:                req.Assets,
		Beneficiaries:         req.Beneficiaries,
		HealthcarePreferences: req.HealthcarePreferences,
		ExecutorPreferences:   req.ExecutorPreferences,
		SpecialInstructions:   req.SpecialInstructions,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		Phone:                 req.Phone,
		Address:               req.Address,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	message := "Estate data updated successfully"
	if created {
		message = "Estate data saved successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func toClientResponse(client *models.Client) ClientResponse {
	return ClientResponse{
		ID:               client.ID,
		Email:            client.Email,
		FirstName:        client.FirstName,
		LastName:         client.LastName,
		ProfileCompleted: client.ProfileCompleted,
	}
}

func toEstateDataResponse(r *models.EstateRecord) EstateDataResponse {
	resp := EstateDataResponse{
		ID:                    r.ID,
		ClientID:              r.ClientID,
		MaritalStatus:         r.MaritalStatus,
		SpouseName:            r.SpouseName,
		Children:              r.Children,
		Assets:                r.Assets,
		Beneficiaries:         r.Beneficiaries,
		HealthcarePreferences: r.HealthcarePreferences,
		ExecutorPreferences:   r.ExecutorPreferences,
		SpecialInstructions:   r.SpecialInstructions,
		CompletedAt:           r.CompletedAt,
	}
	if !r.UpdatedAt.IsZero() {
		updated := r.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
