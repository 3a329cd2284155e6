package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/banking-api/internal/domain/entity"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
	"github.com/yourusername/banking-api/internal/service"
)

// ChallengeHandler exposes the two challenge endpoints. Responses carry a
// single status field so internals never leak: issuance is always "accepted",
// verification is "verified" or "rejected" with no further detail.
type ChallengeHandler struct {
	issuer    *service.ChallengeIssuer
	verifier  *service.ChallengeVerifier
	directory *service.AccountDirectory
}

func NewChallengeHandler(issuer *service.ChallengeIssuer, verifier *service.ChallengeVerifier, directory *service.AccountDirectory) *ChallengeHandler {
	return &ChallengeHandler{
		issuer:    issuer,
		verifier:  verifier,
		directory: directory,
	}
}

// RequestChallengeRequest is the issuance input.
type RequestChallengeRequest struct {
	Identifier string `json:"identifier" binding:"required,email"`
	Purpose    string `json:"purpose" binding:"required"`
}

// SubmitChallengeRequest is the verification input. NewPassword is only
// meaningful for the password_reset purpose.
type SubmitChallengeRequest struct {
	Purpose     string `json:"purpose" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
	NewPassword string `json:"new_password" binding:"omitempty,min=6,max=50"`
}

// RequestChallenge handles POST /api/challenges/request. For any well-formed
// request the answer is 202 accepted, whether or not the identifier resolved
// and whatever happened internally.
func (h *ChallengeHandler) RequestChallenge(c *gin.Context) {
	var req RequestChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	purpose := entity.ChallengePurpose(req.Purpose)
	if !purpose.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	if err := h.issuer.RequestChallenge(c.Request.Context(), req.Identifier, purpose); err != nil {
		// The issuer only errors on malformed purposes, which are caught
		// above. Log and fall through to the generic response anyway.
		log.Printf("[ChallengeHandler] issuance error purpose=%s: %v", purpose, err)
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// SubmitChallenge handles POST /api/challenges/submit. Verification consumes
// the challenge and applies the purpose effect; every failure mode after
// request validation maps to the same rejected body.
func (h *ChallengeHandler) SubmitChallenge(c *gin.Context) {
	var req SubmitChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	purpose := entity.ChallengePurpose(req.Purpose)
	if !purpose.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	if purpose == entity.PurposePasswordReset && req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	subjectID, err := h.verifier.Verify(c.Request.Context(), req.Secret, purpose)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidOrExpired) || errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "rejected"})
			return
		}
		log.Printf("[ChallengeHandler] verification failed purpose=%s: %v", purpose, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "rejected"})
		return
	}

	if err := h.directory.ApplyEffect(c.Request.Context(), subjectID, purpose, req.NewPassword); err != nil {
		log.Printf("[ChallengeHandler] effect failed subject=%d purpose=%s: %v", subjectID, purpose, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "rejected"})
		return
	}

	log.Printf("[ChallengeHandler] challenge verified subject=%d purpose=%s", subjectID, purpose)
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}
