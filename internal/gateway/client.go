package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"transmito/internal/config"
)

// Client talks to the external messaging service. When the config carries no
// credential it runs in simulated mode: sends succeed after a short fixed
// latency and nothing leaves the process.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	simLatency time.Duration
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		simLatency: 150 * time.Millisecond,
	}
	if cfg.SendRatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), cfg.SendRatePerSec)
	}
	return c
}

type textMessage struct {
	Number string `json:"number"`
	Type   string `json:"type"`
	Text   string `json:"text"`
}

// Send delivers one text message to one phone number. Every failure mode
// collapses to false; callers never see an error or a panic from this
// boundary. There is no retry here. Retry policy belongs to the caller.
func (c *Client) Send(ctx context.Context, phone, text string) bool {
	if c.cfg.Simulated() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.simLatency):
			return true
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.cfg.GatewayURL, c.cfg.InstanceName)
	msg := textMessage{Number: phone, Type: "text", Text: text}

	_, err := c.sendRequest(ctx, http.MethodPost, url, msg)
	if err != nil {
		log.Printf("Gateway send to %s failed: %v", phone, err)
		return false
	}
	return true
}

func (c *Client) sendRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.GatewayToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, &APIError{Status: resp.StatusCode, Message: apiMessage(respBody)}
	}

	return respBody, nil
}

// APIError is a non-success response from the external service. Message
// carries the service's own text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway returned status %d", e.Status)
}

func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
