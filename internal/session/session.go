// Package session implements the multi-phase order intake state machine:
// login, input, confirm, complete. Each session owns one order draft and
// serializes user actions behind a mutex; a phase only advances when the
// action that drives the transition fully succeeds.
package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiseto/order-intake/internal/domain/catalog"
	"github.com/kiseto/order-intake/internal/domain/order"
)

// Phase is the session's current stage.
type Phase string

const (
	PhaseLogin    Phase = "login"
	PhaseInput    Phase = "input"
	PhaseConfirm  Phase = "confirm"
	PhaseComplete Phase = "complete"
)

// Sentinel errors for session operations.
var (
	ErrBadCredentials = errors.New("invalid user id or password")
	ErrCommitInFlight = errors.New("a commit is already in progress")
)

// WrongPhaseError indicates an operation invoked outside its valid phase.
// The session state is untouched.
type WrongPhaseError struct {
	Current Phase
	Want    Phase
}

func (e *WrongPhaseError) Error() string {
	return fmt.Sprintf("operation requires phase %s, session is in %s", e.Want, e.Current)
}

// Credentials is the fixed credential pair gating access to the input phase.
type Credentials struct {
	UserID   string
	Password string
}

// Session holds one user's in-progress order. All exported methods are safe
// for concurrent use; user actions are serialized by the session mutex.
type Session struct {
	id      string
	catalog *catalog.Catalog
	creds   Credentials

	mu         sync.Mutex
	phase      Phase
	form       InputForm    // editable input-phase state
	draft      *order.Draft // frozen draft, set at input→confirm
	idemKey    string       // idempotency key for the current confirm cycle
	orderID    int64        // assigned by the store, set at confirm→complete
	committing bool         // in-flight guard for Commit
	lastSeen   time.Time
}

// newSession creates a session in the login phase with a blank form.
func newSession(id string, c *catalog.Catalog, creds Credentials) *Session {
	return &Session{
		id:       id,
		catalog:  c,
		creds:    creds,
		phase:    PhaseLogin,
		form:     BlankForm(c),
		lastSeen: time.Now(),
	}
}

// ID returns the session token.
func (s *Session) ID() string { return s.id }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) touch() { s.lastSeen = time.Now() }

// Login advances login→input when the credentials match the configured pair.
func (s *Session) Login(userID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseLogin {
		return &WrongPhaseError{Current: s.phase, Want: PhaseLogin}
	}

	userOK := subtle.ConstantTimeCompare([]byte(userID), []byte(s.creds.UserID)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.Password)) == 1
	if !userOK || !passOK {
		return ErrBadCredentials
	}

	s.phase = PhaseInput
	return nil
}

// Form returns the current input-phase form state.
func (s *Session) Form() (InputForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseInput {
		return InputForm{}, &WrongPhaseError{Current: s.phase, Want: PhaseInput}
	}
	return s.form, nil
}

// ApplyLookup stores a resolved address as advisory pre-fill for the input
// form. The user remains free to edit the address before submitting.
func (s *Session) ApplyLookup(code, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseInput {
		return &WrongPhaseError{Current: s.phase, Want: PhaseInput}
	}

	s.form.PostalCode = code
	if address != "" {
		s.form.Address = address
	}
	return nil
}

// Submit validates the form and advances input→confirm. On validation
// failure the session stays in input, keeps the submitted edits, and the
// returned ValidationError lists every violated rule. A fresh idempotency
// key is generated for the new confirm cycle.
func (s *Session) Submit(form InputForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseInput {
		return &WrongPhaseError{Current: s.phase, Want: PhaseInput}
	}

	d, err := buildDraft(form, s.catalog)
	if err != nil {
		return err
	}

	// Keep the edits visible even when validation rejects them.
	s.form = form

	if failures := order.Validate(d, s.catalog); len(failures) > 0 {
		return &order.ValidationError{Failures: failures}
	}

	d.PostalCode = order.NormalizePostalCode(d.PostalCode)
	s.draft = d
	s.idemKey = uuid.New().String()
	s.phase = PhaseConfirm
	return nil
}

// Edit returns confirm→input. The frozen draft is copied back into the form,
// including the postal-code and address pre-fill, so the input phase shows
// exactly what was confirmed.
func (s *Session) Edit() (InputForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseConfirm {
		return InputForm{}, &WrongPhaseError{Current: s.phase, Want: PhaseConfirm}
	}
	if s.committing {
		return InputForm{}, ErrCommitInFlight
	}

	s.form = Restore(s.draft)
	s.phase = PhaseInput
	return s.form, nil
}

// Commit advances confirm→complete by persisting the frozen draft exactly
// once. Overlapping commits are rejected while the insert is outstanding,
// and the idempotency key makes a retried insert return the identifier
// assigned by the first attempt. On store failure the session stays in
// confirm with the draft intact.
func (s *Session) Commit(ctx context.Context, repo order.Repository) (int64, error) {
	s.mu.Lock()
	if s.phase != PhaseConfirm {
		current := s.phase
		s.mu.Unlock()
		return 0, &WrongPhaseError{Current: current, Want: PhaseConfirm}
	}
	if s.committing {
		s.mu.Unlock()
		return 0, ErrCommitInFlight
	}
	s.committing = true
	s.touch()
	rec := order.Flatten(s.draft, s.catalog, s.idemKey)
	s.mu.Unlock()

	// The insert runs outside the lock so a second click fails fast with
	// ErrCommitInFlight instead of queueing a duplicate attempt.
	id, err := repo.Insert(ctx, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}

	s.orderID = id
	s.phase = PhaseComplete
	return id, nil
}

// NewOrder resets complete→input: the draft, assigned identifier, and
// pre-fill state are discarded and a blank form takes their place.
func (s *Session) NewOrder() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseComplete {
		return &WrongPhaseError{Current: s.phase, Want: PhaseComplete}
	}

	s.form = BlankForm(s.catalog)
	s.draft = nil
	s.idemKey = ""
	s.orderID = 0
	s.phase = PhaseInput
	return nil
}

// ConfirmLine is one non-zero line item of the confirm view.
type ConfirmLine struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
	Waist    int    `json:"waist,omitempty"`
	Length   string `json:"length,omitempty"`
	Memo     string `json:"memo,omitempty"`
}

// ConfirmView is the read-only summary shown in the confirm phase.
type ConfirmView struct {
	Name       string          `json:"name"`
	PostalCode string          `json:"postalCode"`
	Address    string          `json:"address"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Lines      []ConfirmLine   `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// Confirmation returns the confirm-phase summary: customer fields, the lines
// with quantity above zero in catalog order, and the recomputed total.
func (s *Session) Confirmation() (*ConfirmView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseConfirm {
		return nil, &WrongPhaseError{Current: s.phase, Want: PhaseConfirm}
	}

	v := &ConfirmView{
		Name:       s.draft.Name,
		PostalCode: s.draft.PostalCode,
		Address:    s.draft.Address,
		Phone:      s.draft.Phone,
		Email:      s.draft.Email,
		Total:      s.draft.Total(s.catalog),
	}

	for _, p := range s.catalog.Products() {
		item := s.draft.Item(p.Key)
		if item.Quantity == 0 {
			continue
		}
		line := ConfirmLine{
			Key:      p.Key,
			Label:    p.Label,
			Quantity: item.Quantity,
			Memo:     item.Memo,
		}
		switch a := item.Attrs.(type) {
		case order.TrousersAttrs:
			line.Waist = a.Waist
			line.Length = a.Length
		case order.SimpleAttrs:
			line.Size = a.Size
		}
		v.Lines = append(v.Lines, line)
	}

	return v, nil
}

// OrderID returns the assigned receipt identifier once the session is
// complete.
func (s *Session) OrderID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseComplete {
		return 0, &WrongPhaseError{Current: s.phase, Want: PhaseComplete}
	}
	return s.orderID, nil
}
