package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"lifelink/internal/domain"
	"lifelink/internal/service"
	"lifelink/pkg/logger"
)

type AuthHandler struct {
	authService service.AuthService
	directory   service.Directory
	log         logger.Logger
}

func NewAuthHandler(authService service.AuthService, directory service.Directory, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		directory:   directory,
		log:         log,
	}
}

type RegisterRequest struct {
	Type      string `json:"type" binding:"required"`
	Name      string `json:"name" binding:"required,max=120"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Phone     string `json:"phone"`
	BloodType string `json:"blood_type"`
	City      string `json:"city"`
}

type TokenRequest struct {
	Type     string `json:"type" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	kind, err := domain.ParseParticipantKind(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.directory.Register(c.Request.Context(), &domain.Participant{
		Identity:    domain.Identity{Kind: kind},
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		BloodType:   req.BloodType,
		City:        req.City,
		IsAvailable: kind == domain.KindDonor,
	}, req.Password)
	if err != nil {
		h.log.Warn("Registration failed", "error", err, "type", req.Type)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, participant)
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid token request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Type, req.Email, req.Password)
	if err != nil {
		h.log.Warn("Login failed", "error", err, "type", req.Type)
		_ = c.Error(err)
		return
	}

	h.log.Info("Participant logged in", "participant", response.Participant.Identity.String())
	c.JSON(http.StatusOK, response)
}
