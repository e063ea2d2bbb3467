package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
)

// DefaultResetDelay keeps the closed dialog's content around long enough for an exit animation.
const DefaultResetDelay = 300 * time.Millisecond

// DefaultEndpoint is the collection path feedback is created under.
const DefaultEndpoint = "/feedback"

// Transport is the slice of the HTTP helper the machine needs. *apiclient.Client satisfies it.
type Transport interface {
	Request(ctx context.Context, path string, opts apiclient.RequestOptions) (json.RawMessage, error)
}

// Config selects the machine's policy variant.
type Config struct {
	// StrictComment rejects submissions with an empty comment.
	StrictComment bool
	// EditAfterSubmit enables StartEdit and update-by-id on the next submit.
	EditAfterSubmit bool
	// LegacyFieldAliases adds feedbackType/type/category/message to the payload
	// for backends that predate feedback_type.
	LegacyFieldAliases bool
	// ResetDelay is how long after Close the draft and options are cleared. Zero clears immediately.
	ResetDelay time.Duration
	Endpoint   string
	Identity   IdentityFunc
	Logger     *zap.Logger
}

// DefaultConfig is the edit-capable variant with an optional comment.
func DefaultConfig() Config {
	return Config{
		EditAfterSubmit: true,
		ResetDelay:      DefaultResetDelay,
		Endpoint:        DefaultEndpoint,
	}
}

// Snapshot is an immutable view of the machine at one instant.
type Snapshot struct {
	State   State
	Options Options
	Draft   Draft
	// Error is the inline message for the last failed submit, empty otherwise.
	Error string
	// Updating is true when the next submit updates LastSubmittedID instead of creating.
	Updating bool
	// CanEdit is true on the success screen when StartEdit is available.
	CanEdit bool

	LastSubmittedID string
	LastSubmitted   *Draft
}

// Machine is the feedback dialog state machine. One Machine backs one dialog;
// it is safe to call from the UI goroutine and from timer callbacks concurrently.
type Machine struct {
	cfg       Config
	transport Transport
	log       *zap.Logger

	mu        sync.Mutex
	state     State
	opts      Options
	draft     Draft
	errMsg    string
	editing   bool
	lastID    string
	lastDraft *Draft

	// gen changes on Open, Close and StartEdit; timers and in-flight submits
	// started under an older generation are ignored.
	gen        uint64
	autoClose  *time.Timer
	resetTimer *time.Timer

	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns a closed machine submitting through transport.
func New(transport Transport, cfg Config) *Machine {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = "/" + strings.Trim(cfg.Endpoint, "/")
	if cfg.Identity == nil {
		cfg.Identity = func() (Identity, bool) { return Identity{}, false }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		cfg:       cfg,
		transport: transport,
		log:       logger.Named("feedback"),
		draft:     newDraft(DefaultType),
		subs:      make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that caused the change and must not block.
func (m *Machine) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Open shows the dialog. Unless an edit of the last submission is in progress,
// the draft starts fresh with the type hinted by opts.Meta, if any.
func (m *Machine) Open(opts Options) {
	m.mu.Lock()
	m.stopAutoCloseLocked()
	if m.resetTimer != nil {
		// Reopened before the exit reset ran: apply it now.
		m.resetTimer.Stop()
		m.resetTimer = nil
		m.resetLocked()
	}
	m.gen++

	if !m.editing {
		t := DefaultType
		if hint, ok := opts.typeHint(); ok {
			t = hint
		}
		m.draft = newDraft(t)
		m.errMsg = ""
	}
	m.opts = opts
	m.state = StateEditing
	m.log.Debug("dialog opened", zap.String("type", string(m.draft.Type)), zap.Bool("editing", m.editing))
	m.commitLocked()
}

// Close hides the dialog and calls OnClosed. The draft and options are cleared
// after Config.ResetDelay. Closing a closed dialog is harmless.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closeLocked()
}

// closeLocked expects m.mu held and releases it.
func (m *Machine) closeLocked() {
	onClosed := m.opts.OnClosed
	m.stopAutoCloseLocked()
	m.gen++
	m.state = StateClosed

	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}
	if m.cfg.ResetDelay <= 0 {
		m.resetLocked()
	} else {
		gen := m.gen
		m.resetTimer = time.AfterFunc(m.cfg.ResetDelay, func() { m.delayedReset(gen) })
	}
	m.commitLocked()

	if onClosed != nil {
		onClosed()
	}
}

func (m *Machine) delayedReset(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	m.resetTimer = nil
	m.resetLocked()
	m.commitLocked()
}

func (m *Machine) resetLocked() {
	m.opts = Options{}
	m.draft = newDraft(DefaultType)
	m.errMsg = ""
	m.editing = false
}

// SetRating sets the rating; 0 clears it.
func (m *Machine) SetRating(n int) error {
	if n < 0 || n > MaxRating {
		return ErrInvalidRating
	}
	return m.mutate(func(d *Draft) { d.Rating = n })
}

// SetComment sets the comment, truncated to MaxCommentLength characters.
func (m *Machine) SetComment(s string) error {
	if utf8.RuneCountInString(s) > MaxCommentLength {
		s = string([]rune(s)[:MaxCommentLength])
	}
	return m.mutate(func(d *Draft) { d.Comment = s })
}

// SetType selects the feedback type.
func (m *Machine) SetType(t Type) error {
	parsed, ok := ParseType(string(t))
	if !ok {
		return ErrInvalidType
	}
	return m.mutate(func(d *Draft) { d.Type = parsed })
}

func (m *Machine) mutate(fn func(*Draft)) error {
	m.mu.Lock()
	if m.state != StateEditing {
		m.mu.Unlock()
		return ErrNotEditing
	}
	fn(&m.draft)
	m.commitLocked()
	return nil
}

// Submit validates the draft and sends it. It blocks until the backend answers.
//
// Client-side failures return ErrRatingRequired or ErrCommentRequired without any
// network call. Backend failures return the wrapped error. In both cases the
// dialog goes back to editing with Snapshot.Error set.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateSubmitting:
		m.mu.Unlock()
		return ErrSubmitInFlight
	case StateEditing:
	default:
		m.mu.Unlock()
		return ErrNotEditing
	}

	if err := m.validateLocked(); err != nil {
		m.errMsg = UserMessage(err)
		m.commitLocked()
		return err
	}

	m.state = StateSubmitting
	m.errMsg = ""
	gen := m.gen
	draft := m.draft
	opts := m.opts
	method, path := http.MethodPost, m.cfg.Endpoint
	if m.editing && m.lastID != "" {
		method, path = http.MethodPut, m.cfg.Endpoint+"/"+url.PathEscape(m.lastID)
	}
	m.commitLocked()

	who, known := m.cfg.Identity()
	payload := BuildPayload(draft, opts.Meta, who, known, m.cfg.LegacyFieldAliases)

	raw, err := m.transport.Request(ctx, path, apiclient.RequestOptions{Method: method, Body: payload})
	if err != nil {
		return m.fail(gen, "submit feedback", err)
	}

	m.mu.Lock()
	if m.gen != gen || m.state != StateSubmitting {
		m.mu.Unlock()
		m.log.Debug("ignoring response for a dialog that was closed or reopened")
		return nil
	}
	if id := responseID(raw); id != "" {
		m.lastID = id
	}
	m.mu.Unlock()

	if opts.OnSubmitted != nil {
		if err := opts.OnSubmitted(draft); err != nil {
			return m.fail(gen, "on submitted", err)
		}
	}

	m.mu.Lock()
	if m.gen != gen || m.state != StateSubmitting {
		m.mu.Unlock()
		return nil
	}
	m.state = StateSuccess
	m.lastDraft = &draft
	m.editing = false
	if d := opts.AutoCloseDelay; d != nil {
		m.autoClose = time.AfterFunc(max(*d, 0), func() { m.autoCloseFired(gen) })
	}
	m.log.Info("feedback submitted",
		zap.String("method", method),
		zap.String("id", m.lastID),
		zap.Int("rating", draft.Rating),
		zap.String("type", draft.Type.Wire()))
	m.commitLocked()
	return nil
}

func (m *Machine) validateLocked() error {
	if m.draft.Rating == 0 {
		return ErrRatingRequired
	}
	if m.cfg.StrictComment && strings.TrimSpace(m.draft.Comment) == "" {
		return ErrCommentRequired
	}
	return nil
}

// fail records err for the submit started under gen and returns it wrapped with op.
func (m *Machine) fail(gen uint64, op string, cause error) error {
	err := fmt.Errorf("%s: %w", op, cause)
	m.mu.Lock()
	if m.gen != gen || m.state != StateSubmitting {
		m.mu.Unlock()
		return err
	}
	m.errMsg = UserMessage(cause)
	m.state = StateEditing
	m.log.Warn("feedback submission failed",
		zap.Int("status", apiclient.StatusOf(err)),
		zap.String("shown", m.errMsg),
		zap.Error(err))
	m.commitLocked()
	return err
}

func (m *Machine) autoCloseFired(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateSuccess {
		m.mu.Unlock()
		return
	}
	m.autoClose = nil
	m.closeLocked()
}

// StartEdit goes back from the success screen to the form, pre-filled with the
// last submitted draft. The next Submit updates that record.
func (m *Machine) StartEdit() error {
	m.mu.Lock()
	if !m.cfg.EditAfterSubmit {
		m.mu.Unlock()
		return ErrEditDisabled
	}
	if m.state != StateSuccess || m.lastDraft == nil {
		m.mu.Unlock()
		return ErrNothingToEdit
	}
	m.stopAutoCloseLocked()
	m.gen++
	m.draft = *m.lastDraft
	m.errMsg = ""
	m.editing = true
	m.state = StateEditing
	m.commitLocked()
	return nil
}

func (m *Machine) stopAutoCloseLocked() {
	if m.autoClose != nil {
		m.autoClose.Stop()
		m.autoClose = nil
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		State:           m.state,
		Options:         m.opts,
		Draft:           m.draft,
		Error:           m.errMsg,
		Updating:        m.editing && m.lastID != "",
		CanEdit:         m.cfg.EditAfterSubmit && m.state == StateSuccess && m.lastDraft != nil,
		LastSubmittedID: m.lastID,
	}
	if m.lastDraft != nil {
		d := *m.lastDraft
		s.LastSubmitted = &d
	}
	return s
}

// commitLocked snapshots, releases m.mu and notifies subscribers.
func (m *Machine) commitLocked() {
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func responseID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return ""
	}
	return recordID(body)
}
