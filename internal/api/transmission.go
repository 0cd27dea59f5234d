package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transmito/internal/database"
	"transmito/internal/models"
	"transmito/internal/transmission"
	"transmito/internal/ws"
)

// SessionGate answers whether the messaging session is active. Transmission
// is refused while the gate is closed.
type SessionGate interface {
	Active() bool
}

type TransmissionHandler struct {
	sender transmission.Sender
	policy transmission.Policy
	gate   SessionGate
	hub    *ws.Hub

	mu   sync.Mutex
	runs map[string]transmission.Status
}

func NewTransmissionHandler(sender transmission.Sender, policy transmission.Policy, gate SessionGate, hub *ws.Hub) *TransmissionHandler {
	return &TransmissionHandler{
		sender: sender,
		policy: policy,
		gate:   gate,
		hub:    hub,
		runs:   make(map[string]transmission.Status),
	}
}

type StartTransmissionRequest struct {
	Template   string   `json:"template"`
	ContactIDs []string `json:"contact_ids"`
}

// StartTransmission validates the request, loads the recipients and launches
// a run in the background. Progress reaches the UI through the websocket hub
// and the per-run status endpoint.
func (h *TransmissionHandler) StartTransmission(c *gin.Context) {
	var req StartTransmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Template) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message template must not be empty"})
		return
	}
	if h.gate != nil && !h.gate.Active() {
		c.JSON(http.StatusConflict, gin.H{"error": "Messaging session is not active"})
		return
	}

	query := database.DB.Order("created_at ASC")
	if len(req.ContactIDs) > 0 {
		query = query.Where("id IN ?", req.ContactIDs)
	}
	var rows []models.Contact
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contact list is empty"})
		return
	}

	contacts := make([]transmission.Contact, len(rows))
	for i, row := range rows {
		contacts[i] = transmission.Contact{ID: row.ID, Name: row.Name, Phone: row.Phone}
	}

	runID := uuid.NewString()
	engine := transmission.NewEngine(h.recordingSender(runID), h.policy)
	engine.Subscribe(func(status transmission.Status) {
		h.mu.Lock()
		h.runs[runID] = status
		h.mu.Unlock()
		if h.hub != nil {
			h.hub.NotifyProgress(runID, status)
		}
	})

	go func() {
		start := time.Now()
		final := engine.Transmit(context.Background(), contacts, req.Template)

		record := models.TransmissionRecord{
			ID:         runID,
			Total:      final.Total,
			Sent:       final.Sent,
			Errors:     final.Errors,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err := database.DB.Create(&record).Error; err != nil {
			log.Printf("Failed to persist transmission record %s: %v", runID, err)
		}
		log.Printf("Transmission %s finished: %d sent, %d errors of %d", runID, final.Sent, final.Errors, final.Total)
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "total": len(contacts)})
}

// recordingSender wraps the gateway sender with a fire-and-forget message
// log row per attempt, the way outgoing messages are audited elsewhere.
func (h *TransmissionHandler) recordingSender(runID string) transmission.Sender {
	return transmission.SendFunc(func(ctx context.Context, phone, text string) bool {
		ok := h.sender.Send(ctx, phone, text)
		go func() {
			status := "sent"
			if !ok {
				status = "failed"
			}
			entry := models.MessageLog{RunID: runID, Phone: phone, Content: text, Status: status}
			if err := database.DB.Create(&entry).Error; err != nil {
				log.Printf("Failed to log message for run %s: %v", runID, err)
			}
		}()
		return ok
	})
}

// GetRunStatus returns the latest snapshot of an in-flight or finished run.
func (h *TransmissionHandler) GetRunStatus(c *gin.Context) {
	runID := c.Param("id")
	h.mu.Lock()
	status, ok := h.runs[runID]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetHistory lists persisted transmission summaries, newest first.
func (h *TransmissionHandler) GetHistory(c *gin.Context) {
	var records []models.TransmissionRecord
	if err := database.DB.Order("created_at DESC").Limit(100).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []models.TransmissionRecord{}
	}
	c.JSON(http.StatusOK, records)
}
