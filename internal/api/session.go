package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"transmito/internal/session"
)

type SessionHandler struct {
	machine *session.Machine
}

func NewSessionHandler(machine *session.Machine) *SessionHandler {
	return &SessionHandler{machine: machine}
}

func (h *SessionHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.machine.Snapshot())
}

// CheckSession queries the external service for the current link state.
func (h *SessionHandler) CheckSession(c *gin.Context) {
	snap := h.machine.Check(c.Request.Context())
	c.JSON(http.StatusOK, snap)
}

type PairRequest struct {
	Number string `json:"number" binding:"required"`
}

// Pair submits the operator's phone number and requests a pairing code.
func (h *SessionHandler) Pair(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.machine.SubmitNumber(c.Request.Context(), req.Number)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrMismatch) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error(), "session": snap})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ResendCode requests a fresh pairing code after the cooldown.
func (h *SessionHandler) ResendCode(c *gin.Context) {
	snap, err := h.machine.ResendCode(c.Request.Context())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrCooldown) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": err.Error(), "session": snap})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RequestQR creates an instance and returns its QR payload for scanning.
func (h *SessionHandler) RequestQR(c *gin.Context) {
	snap, err := h.machine.RequestQR(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": snap})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Restart recovers the machine from an error state.
func (h *SessionHandler) Restart(c *gin.Context) {
	c.JSON(http.StatusOK, h.machine.Restart(c.Request.Context()))
}
