package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// InstanceStatus is the narrowed shape of the session service's
// connection-state response.
type InstanceStatus struct {
	State string `json:"state"`
	Owner string `json:"owner"`
}

// Connected reports whether the instance has an active device link.
func (s InstanceStatus) Connected() bool {
	return s.State == "open"
}

// OwnerNumber extracts the phone number from the connected device identity.
// The service reports it as a JID-like string, "<digits>@<suffix>".
func (s InstanceStatus) OwnerNumber() string {
	return NumberFromJID(s.Owner)
}

// NumberFromJID returns the leading digit run of a JID, or "" when the
// string does not start with digits.
func NumberFromJID(jid string) string {
	for i := 0; i < len(jid); i++ {
		if jid[i] < '0' || jid[i] > '9' {
			return jid[:i]
		}
	}
	return jid
}

// InstanceCredential is the result of creating (or resuming) an instance:
// a persistent token, a QR image payload, or both.
type InstanceCredential struct {
	Token    string
	QRBase64 string
}

type connectionStateResponse struct {
	Instance InstanceStatus `json:"instance"`
}

type pairingCodeResponse struct {
	PairingCode string `json:"pairingCode"`
	Code        string `json:"code"`
}

type createInstanceResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		Token        string `json:"token"`
	} `json:"instance"`
	QRCode struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
	} `json:"qrcode"`
}

// ConnectionState queries the current session status of the instance. In
// simulated mode the instance always reports connected with no owner, so the
// rest of the system can be exercised without a live account.
func (c *Client) ConnectionState(ctx context.Context) (*InstanceStatus, error) {
	if c.cfg.Simulated() {
		return &InstanceStatus{State: "open"}, nil
	}
	url := fmt.Sprintf("%s/instance/connectionState/%s", c.cfg.GatewayURL, c.cfg.InstanceName)
	body, err := c.sendRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var resp connectionStateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid connection state payload: %w", err)
	}
	return &resp.Instance, nil
}

// RequestPairingCode asks the service to issue a phone-number pairing code
// for the given number (digits only).
func (c *Client) RequestPairingCode(ctx context.Context, number string) (string, error) {
	if c.cfg.Simulated() {
		return "", fmt.Errorf("gateway credentials not configured")
	}
	url := fmt.Sprintf("%s/instance/connect/%s", c.cfg.GatewayURL, c.cfg.InstanceName)
	body, err := c.sendRequest(ctx, http.MethodPost, url, map[string]string{"number": number})
	if err != nil {
		return "", err
	}

	var resp pairingCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid pairing code payload: %w", err)
	}
	code := resp.PairingCode
	if code == "" {
		code = resp.Code
	}
	if code == "" {
		return "", fmt.Errorf("service returned no pairing code")
	}
	return code, nil
}

// CreateInstance starts (or resumes) an instance and returns its credential.
// When the service sends only a raw QR string instead of an inline image,
// the PNG is rendered locally so the UI always gets a base64 payload.
func (c *Client) CreateInstance(ctx context.Context) (*InstanceCredential, error) {
	if c.cfg.Simulated() {
		return nil, fmt.Errorf("gateway credentials not configured")
	}
	url := fmt.Sprintf("%s/instance/create", c.cfg.GatewayURL)
	payload := map[string]interface{}{
		"instanceName": c.cfg.InstanceName,
		"qrcode":       true,
	}
	body, err := c.sendRequest(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	var resp createInstanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid instance payload: %w", err)
	}

	cred := &InstanceCredential{
		Token:    resp.Instance.Token,
		QRBase64: strings.TrimPrefix(resp.QRCode.Base64, "data:image/png;base64,"),
	}
	if cred.QRBase64 == "" && resp.QRCode.Code != "" {
		png, err := qrcode.Encode(resp.QRCode.Code, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("render QR image: %w", err)
		}
		cred.QRBase64 = base64.StdEncoding.EncodeToString(png)
	}
	if cred.Token == "" && cred.QRBase64 == "" {
		return nil, fmt.Errorf("service returned neither token nor QR payload")
	}
	return cred, nil
}
