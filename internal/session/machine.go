package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"transmito/internal/gateway"
)

// State names the linking lifecycle phases. "Session active" is not a state
// of the machine; it is a signal delivered through Hooks.OnSessionActive.
type State string

const (
	StateIdle             State = "IDLE"
	StateChecking         State = "CHECKING"
	StateRequestingCode   State = "REQUESTING_CODE"
	StateCreatingInstance State = "CREATING_INSTANCE"
	StateWaitingAuth      State = "WAITING_AUTH"
	StateWaitingQR        State = "WAITING_QR"
	StateError            State = "ERROR"
)

// ErrMismatch rejects a submitted number that differs from the one already
// registered on the account.
var ErrMismatch = errors.New("submitted number differs from the registered account number")

// ErrCooldown rejects a pairing-code resend before the cooldown elapses.
var ErrCooldown = errors.New("resend not available yet")

const mismatchMessage = "Connected device number does not match the registered account number. Disconnect the unknown device before sending."

// Service is the session side of the external messaging API.
type Service interface {
	ConnectionState(ctx context.Context) (*gateway.InstanceStatus, error)
	RequestPairingCode(ctx context.Context, number string) (string, error)
	CreateInstance(ctx context.Context) (*gateway.InstanceCredential, error)
}

// Hooks are the collaborator callbacks the machine drives. All are optional.
type Hooks struct {
	// OnUpdateNumber persists the linked phone number and, when non-empty,
	// the instance credential to the account record.
	OnUpdateNumber func(number, credential string) error
	// OnSessionActive unlocks transmission. Fired at most once per activation.
	OnSessionActive func()
	// OnStateChange receives a snapshot after every transition.
	OnStateChange func(Snapshot)
}

type Options struct {
	PollInterval   time.Duration
	ResendCooldown time.Duration
	Now            func() time.Time
}

// Snapshot is the externally visible machine state.
type Snapshot struct {
	State             State  `json:"state"`
	RegisteredNumber  string `json:"registered_number,omitempty"`
	PairingCode       string `json:"pairing_code,omitempty"`
	QRBase64          string `json:"qr_base64,omitempty"`
	Error             string `json:"error,omitempty"`
	CooldownRemaining int    `json:"cooldown_remaining"`
	Active            bool   `json:"active"`
}

// Machine manages the device-linking lifecycle: status checks, pairing
// credential requests, confirmation polling and identity-mismatch detection.
// At most one polling timer runs at a time; Close cancels everything.
type Machine struct {
	svc   Service
	hooks Hooks

	pollInterval   time.Duration
	resendCooldown time.Duration
	now            func() time.Time

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu               sync.Mutex
	state            State
	registeredNumber string
	pairingCode      string
	qrBase64         string
	errMsg           string
	cooldownUntil    time.Time
	active           bool
	pollCancel       context.CancelFunc
	pollWG           sync.WaitGroup
}

func NewMachine(svc Service, registeredNumber string, hooks Hooks, opts Options) *Machine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ResendCooldown <= 0 {
		opts.ResendCooldown = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		svc:              svc,
		hooks:            hooks,
		pollInterval:     opts.PollInterval,
		resendCooldown:   opts.ResendCooldown,
		now:              opts.Now,
		rootCtx:          ctx,
		rootCancel:       cancel,
		state:            StateIdle,
		registeredNumber: registeredNumber,
	}
}

// Close cancels outstanding timers. The machine must not be used afterwards.
func (m *Machine) Close() {
	m.rootCancel()
	m.mu.Lock()
	m.stopPollingLocked()
	m.mu.Unlock()
	m.pollWG.Wait()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Active reports whether the session gate is open for transmission.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Check queries the current session status once. Connected and matching
// activates the session; connected but mismatching is a hard error.
func (m *Machine) Check(ctx context.Context) Snapshot {
	m.mu.Lock()
	m.setStateLocked(StateChecking)
	m.mu.Unlock()

	status, err := m.svc.ConnectionState(ctx)
	if err != nil {
		return m.fail(err)
	}
	m.evaluateStatus(status, true)
	return m.Snapshot()
}

// SubmitNumber validates and registers the operator's phone number, then
// requests a pairing code. A number already registered on the account must
// match the submitted one; otherwise the request is rejected locally.
func (m *Machine) SubmitNumber(ctx context.Context, raw string) (Snapshot, error) {
	clean := digits(raw)
	if len(clean) < 10 {
		return m.Snapshot(), fmt.Errorf("phone number must have at least 10 digits")
	}

	m.mu.Lock()
	if m.registeredNumber != "" && m.registeredNumber != clean {
		m.mu.Unlock()
		return m.Snapshot(), ErrMismatch
	}
	if m.registeredNumber == "" {
		m.registeredNumber = clean
		if m.hooks.OnUpdateNumber != nil {
			if err := m.hooks.OnUpdateNumber(clean, ""); err != nil {
				log.Printf("Session: failed to persist number: %v", err)
			}
		}
	}
	m.setStateLocked(StateRequestingCode)
	m.mu.Unlock()

	return m.requestCode(ctx, clean)
}

// ResendCode requests a fresh pairing code once the cooldown has elapsed.
func (m *Machine) ResendCode(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if remaining := m.cooldownUntil.Sub(m.now()); remaining > 0 {
		m.mu.Unlock()
		return m.Snapshot(), fmt.Errorf("%w: %ds remaining", ErrCooldown, int(remaining.Seconds()+0.999))
	}
	number := m.registeredNumber
	if number == "" {
		m.mu.Unlock()
		return m.Snapshot(), fmt.Errorf("no registered number to pair")
	}
	m.setStateLocked(StateRequestingCode)
	m.mu.Unlock()

	return m.requestCode(ctx, number)
}

func (m *Machine) requestCode(ctx context.Context, number string) (Snapshot, error) {
	code, err := m.svc.RequestPairingCode(ctx, number)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			// Upstream rejection: back to idle with the service's own
			// message so the operator can correct and retry.
			m.mu.Lock()
			m.errMsg = apiErr.Error()
			m.setStateLocked(StateIdle)
			snap := m.snapshotLocked()
			m.mu.Unlock()
			return snap, err
		}
		return m.fail(err), err
	}

	m.mu.Lock()
	m.pairingCode = code
	m.qrBase64 = ""
	m.errMsg = ""
	m.cooldownUntil = m.now().Add(m.resendCooldown)
	m.setStateLocked(StateWaitingAuth)
	m.startPollingLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	return snap, nil
}

// RequestQR creates (or resumes) an instance and exposes its QR payload for
// scanning, then polls for confirmation.
func (m *Machine) RequestQR(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	m.setStateLocked(StateCreatingInstance)
	m.mu.Unlock()

	cred, err := m.svc.CreateInstance(ctx)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			m.mu.Lock()
			m.errMsg = apiErr.Error()
			m.setStateLocked(StateIdle)
			snap := m.snapshotLocked()
			m.mu.Unlock()
			return snap, err
		}
		return m.fail(err), err
	}

	m.mu.Lock()
	if cred.Token != "" && m.hooks.OnUpdateNumber != nil {
		if err := m.hooks.OnUpdateNumber(m.registeredNumber, cred.Token); err != nil {
			log.Printf("Session: failed to persist instance credential: %v", err)
		}
	}
	m.qrBase64 = cred.QRBase64
	m.pairingCode = ""
	m.errMsg = ""
	m.setStateLocked(StateWaitingQR)
	m.startPollingLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	return snap, nil
}

// Restart recovers from the error state by re-checking session status.
func (m *Machine) Restart(ctx context.Context) Snapshot {
	m.mu.Lock()
	m.errMsg = ""
	m.mu.Unlock()
	return m.Check(ctx)
}

// evaluateStatus applies one status-query result. fromCheck distinguishes an
// explicit check (not-connected drops to idle) from a confirmation poll
// (not-connected keeps waiting).
func (m *Machine) evaluateStatus(status *gateway.InstanceStatus, fromCheck bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !status.Connected() {
		if fromCheck && m.state == StateChecking {
			m.setStateLocked(StateIdle)
		}
		return
	}

	owner := status.OwnerNumber()
	if m.registeredNumber != "" && owner != "" && owner != m.registeredNumber {
		// Security stop: another identity is linked to the instance.
		// Never silently accepted and never auto-resolved.
		m.errMsg = mismatchMessage
		m.stopPollingLocked()
		m.setStateLocked(StateError)
		return
	}

	// First successful connection with no registered number adopts the
	// connected device's number as the account number.
	if m.registeredNumber == "" && owner != "" {
		m.registeredNumber = owner
		if m.hooks.OnUpdateNumber != nil {
			if err := m.hooks.OnUpdateNumber(owner, ""); err != nil {
				log.Printf("Session: failed to persist number: %v", err)
			}
		}
	}

	wasActive := m.active
	m.active = true
	m.pairingCode = ""
	m.qrBase64 = ""
	m.errMsg = ""
	m.stopPollingLocked()
	m.setStateLocked(StateIdle)
	if !wasActive && m.hooks.OnSessionActive != nil {
		m.hooks.OnSessionActive()
	}
}

func (m *Machine) fail(err error) Snapshot {
	log.Printf("Session: service error: %v", err)
	m.mu.Lock()
	m.errMsg = err.Error()
	m.stopPollingLocked()
	m.setStateLocked(StateError)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	return snap
}

// startPollingLocked begins confirmation polling, replacing any previous
// poller so exactly one interval timer is active at a time.
func (m *Machine) startPollingLocked() {
	m.stopPollingLocked()
	ctx, cancel := context.WithCancel(m.rootCtx)
	m.pollCancel = cancel
	m.pollWG.Add(1)
	go m.poll(ctx)
}

func (m *Machine) stopPollingLocked() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
}

func (m *Machine) poll(ctx context.Context) {
	defer m.pollWG.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := m.svc.ConnectionState(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.fail(err)
				return
			}
			m.evaluateStatus(status, false)
		}
	}
}

func (m *Machine) setStateLocked(s State) {
	m.state = s
	if m.hooks.OnStateChange != nil {
		m.hooks.OnStateChange(m.snapshotLocked())
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	remaining := int(m.cooldownUntil.Sub(m.now()).Seconds() + 0.999)
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		State:             m.state,
		RegisteredNumber:  m.registeredNumber,
		PairingCode:       m.pairingCode,
		QRBase64:          m.qrBase64,
		Error:             m.errMsg,
		CooldownRemaining: remaining,
		Active:            m.active,
	}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
