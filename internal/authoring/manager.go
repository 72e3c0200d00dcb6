// Package authoring implements the per-user state machine that
// assembles capsules and drives existing-capsule actions.
package authoring

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/lunaris/capsuled/internal/cerror"
	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/model"
	"github.com/lunaris/capsuled/pkg/capsule"
	"github.com/sirupsen/logrus"
)

// A Deliverer runs an immediate delivery. Implemented by the delivery
// executor.
type Deliverer interface {
	Deliver(ctx context.Context, capsuleID string) error
}

// A Scheduler registers a delivery trigger for a capsule.
type Scheduler interface {
	Schedule(capsuleID string, at time.Time) error
}

// scheduleOffsets are the fixed delays offered in the schedule menu.
var scheduleOffsets = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
	"year":  365 * 24 * time.Hour,
}

// A Manager holds one Session per user and routes inbound turns
// through the authoring machine. A single user's turns are sequential,
// the lock only guards the session map itself.
type Manager struct {
	db        database.Client
	codec     *capsule.Codec
	scheduler Scheduler
	deliverer Deliverer
	loc       *time.Location
	logger    logrus.FieldLogger

	// Now is the clock used for schedule validation. Overridden in tests.
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a session manager.
func NewManager(db database.Client, codec *capsule.Codec, sched Scheduler, deliverer Deliverer, loc *time.Location, logger logrus.FieldLogger) *Manager {
	return &Manager{
		db:        db,
		codec:     codec,
		scheduler: sched,
		deliverer: deliverer,
		loc:       loc,
		logger:    logger,
		Now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the session bound to the given transport handle.
// Exposed for tests.
func (m *Manager) Session(handle string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[handle]
}

// Handle processes one inbound turn and returns the replies to render.
// Failures mid-flow never leak internal detail: they are logged and
// surfaced as catalog messages, and except for retryable validation
// errors they reset the session to idle. A store failure before any
// session work is returned as a persistence error so the gateway can
// refuse the turn and let the transport retry it.
func (m *Manager) Handle(ctx context.Context, in Input) ([]Reply, error) {
	user, err := m.register(in.Sender)
	if err != nil {
		m.logger.WithError(err).Error("could not register user")
		return nil, cerror.NewPersistence("could not register user")
	}

	s := m.session(user, in.Sender)

	switch in.Command {
	case CmdStart:
		s.reset()
		return []Reply{reply(T(s.lang, "start"), m.menu(s.lang)...)}, nil
	case CmdHelp:
		s.reset()
		return []Reply{reply(T(s.lang, "help"), m.menu(s.lang)...)}, nil
	case CmdLanguage:
		return m.switchLanguage(s, in.Arg), nil
	case CmdCreate:
		s.reset()
		s.state = StateTitle
		return []Reply{reply(T(s.lang, "enter_title"))}, nil
	case CmdList:
		s.reset()
		return m.listCapsules(s), nil
	case CmdSend:
		return m.selectFor(s, ActionSend), nil
	case CmdDelete:
		return m.selectFor(s, ActionDelete), nil
	case CmdEdit:
		return m.selectFor(s, ActionEdit), nil
	case CmdRecipients:
		return m.selectFor(s, ActionRecipients), nil
	case CmdSchedule:
		return m.selectFor(s, ActionSchedule), nil
	case CmdAddRecipients:
		return m.selectFor(s, ActionAddRecipients), nil
	}

	switch s.state {
	case StateTitle:
		return m.handleTitle(s, in), nil
	case StateContent:
		return m.handleContent(s, in), nil
	case StateRecipients:
		return m.handleRecipients(s, in), nil
	case StateSchedule:
		return m.handleSchedule(s, in), nil
	case StateCustomSchedule:
		return m.handleCustomSchedule(s, in), nil
	case StateSelect:
		return m.handleSelect(s, in), nil
	case StateConfirmDelete:
		return m.handleConfirmDelete(s, in), nil
	case StateConfirmSend:
		return m.handleConfirmSend(ctx, s, in), nil
	case StateEditField:
		return m.handleEditField(s, in), nil
	case StateEditTitle:
		return m.handleEditTitle(s, in), nil
	case StateEditContent:
		return m.handleEditContent(s, in), nil
	}

	return []Reply{reply(T(s.lang, "help"), m.menu(s.lang)...)}, nil
}

// register makes sure a User row exists for the sender. Registering an
// already known handle is a no-op.
func (m *Manager) register(sender Sender) (*model.User, error) {
	user, err := m.db.FindUserByHandle(sender.Handle)
	if err == nil {
		return user, nil
	}
	if !m.db.IsNotFound(err) {
		return nil, err
	}

	user = &model.User{
		Handle:   sender.Handle,
		Username: sender.Username,
		Address:  sender.Address,
	}
	if err := m.db.Save(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *Manager) session(user *model.User, sender Sender) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sender.Handle]
	if !ok {
		s = &Session{lang: language(sender.Language)}
		m.sessions[sender.Handle] = s
	}
	s.user = user
	return s
}

func language(hint string) string {
	if hint == LangRU {
		return LangRU
	}
	return LangEN
}

func (m *Manager) menu(lang string) []Choice {
	return []Choice{
		choice(lang, CmdCreate, ""),
		choice(lang, CmdList, ""),
		choice(lang, CmdSend, ""),
		choice(lang, CmdDelete, ""),
		choice(lang, CmdEdit, ""),
		choice(lang, CmdRecipients, ""),
		choice(lang, CmdSchedule, ""),
		choice(lang, CmdAddRecipients, ""),
		choice(lang, CmdHelp, ""),
		choice(lang, CmdLanguage, ""),
	}
}

func (m *Manager) switchLanguage(s *Session, arg string) []Reply {
	if arg == "" {
		return []Reply{reply(T(s.lang, "choose_language"),
			choice(s.lang, CmdLanguage, LangEN),
			choice(s.lang, CmdLanguage, LangRU),
		)}
	}
	s.lang = language(arg)
	return []Reply{reply(T(s.lang, "language_changed"), m.menu(s.lang)...)}
}

// garbage reports input that does not match the current state's
// grammar. The session resets so it can never get stuck mid-flow.
func (m *Manager) garbage(s *Session) []Reply {
	lang := s.lang
	s.reset()
	return []Reply{reply(T(lang, "unexpected_input"), m.menu(lang)...)}
}

func (m *Manager) failure(s *Session, err error, msg string) []Reply {
	m.logger.WithError(err).Error(msg)
	lang := s.lang
	s.reset()
	return []Reply{reply(T(lang, "service_unavailable"))}
}

//
// Creation flow
//

func (m *Manager) handleTitle(s *Session, in Input) []Reply {
	title := strings.TrimSpace(in.Text)
	if title == "" || in.Media != nil {
		return []Reply{reply(T(s.lang, "enter_title"))}
	}

	s.title = title
	s.draft = capsule.NewBundle()
	s.state = StateContent
	return []Reply{reply(T(s.lang, "enter_content", title), choice(s.lang, CmdFinish, ""))}
}

func (m *Manager) handleContent(s *Session, in Input) []Reply {
	switch {
	case in.Command == CmdFinish:
		if s.draft.Empty() {
			return []Reply{reply(T(s.lang, "content_empty"), choice(s.lang, CmdFinish, ""))}
		}
		return m.createCapsule(s)
	case in.Command == CmdContinue:
		return []Reply{reply(T(s.lang, "enter_content", s.title), choice(s.lang, CmdFinish, ""))}
	case in.Media != nil:
		if err := s.draft.Append(in.Media.Kind, in.Media.Ref); err != nil {
			return []Reply{reply(T(s.lang, "unexpected_input"))}
		}
		return []Reply{reply(T(s.lang, "added_"+string(in.Media.Kind)),
			choice(s.lang, CmdContinue, ""), choice(s.lang, CmdFinish, ""))}
	case strings.TrimSpace(in.Text) != "":
		_ = s.draft.Append(capsule.Text, in.Text)
		return []Reply{reply(T(s.lang, "added_text"),
			choice(s.lang, CmdContinue, ""), choice(s.lang, CmdFinish, ""))}
	}
	return m.garbage(s)
}

// createCapsule seals the draft and writes the capsule row. Recipients
// and the schedule attach to the stored id in the following states.
func (m *Manager) createCapsule(s *Session) []Reply {
	sealed, err := m.codec.Seal(s.draft)
	if err != nil {
		return m.failure(s, err, "could not seal draft")
	}

	number, err := m.db.NextCapsuleNumber(s.user.ID)
	if err != nil {
		return m.failure(s, err, "could not number capsule")
	}

	c := &model.Capsule{
		CreatorID:     s.user.ID,
		Title:         s.title,
		SealedContent: sealed,
		Number:        number,
	}
	if err := m.db.Save(c); err != nil {
		return m.failure(s, err, "could not save capsule")
	}

	s.targetID = c.ID
	s.targetNumber = c.Number
	s.state = StateRecipients
	return []Reply{reply(T(s.lang, "enter_recipients"))}
}

func (m *Manager) handleRecipients(s *Session, in Input) []Reply {
	if in.Text == "" || in.Media != nil {
		return m.garbage(s)
	}

	usernames := parseRecipients(in.Text)
	if len(usernames) == 0 {
		return []Reply{reply(T(s.lang, "recipients_empty"))}
	}

	for _, username := range usernames {
		r := &model.Recipient{CapsuleID: s.targetID, Username: username}
		if err := m.db.Save(r); err != nil {
			return m.failure(s, err, "could not save recipient")
		}
	}

	added := T(s.lang, "recipients_added", "@"+strings.Join(usernames, " @"))
	if s.action == ActionAddRecipients {
		s.reset()
		return []Reply{reply(added)}
	}

	s.state = StateSchedule
	return []Reply{reply(added), m.scheduleMenu(s)}
}

// parseRecipients splits a whitespace-separated list of handles,
// stripping the leading @ and dropping duplicates while keeping order.
func parseRecipients(text string) []string {
	seen := make(map[string]bool)
	usernames := make([]string, 0)
	for _, f := range strings.Fields(text) {
		username := strings.TrimPrefix(f, "@")
		if username == "" || seen[username] {
			continue
		}
		seen[username] = true
		usernames = append(usernames, username)
	}
	return usernames
}

//
// Scheduling
//

func (m *Manager) scheduleMenu(s *Session) Reply {
	return reply(T(s.lang, "choose_date"),
		choice(s.lang, CmdOffset, "day"),
		choice(s.lang, CmdOffset, "week"),
		choice(s.lang, CmdOffset, "month"),
		choice(s.lang, CmdOffset, "year"),
		choice(s.lang, CmdCustom, ""),
		choice(s.lang, CmdDraft, ""),
	)
}

func (m *Manager) handleSchedule(s *Session, in Input) []Reply {
	switch in.Command {
	case CmdOffset:
		offset, ok := scheduleOffsets[in.Arg]
		if !ok {
			return m.garbage(s)
		}
		return m.finalizeSchedule(s, m.Now().UTC().Add(offset))
	case CmdCustom:
		s.state = StateCustomSchedule
		return []Reply{reply(T(s.lang, "enter_custom_date"))}
	case CmdDraft:
		lang := s.lang
		s.reset()
		return []Reply{reply(T(lang, "draft_saved"))}
	}
	return m.garbage(s)
}

func (m *Manager) handleCustomSchedule(s *Session, in Input) []Reply {
	if in.Text == "" {
		return m.garbage(s)
	}

	at, err := dateparse.ParseIn(strings.TrimSpace(in.Text), m.loc)
	if err != nil {
		return []Reply{reply(T(s.lang, "invalid_date"))}
	}

	at = at.UTC()
	if !at.After(m.Now().UTC()) {
		return []Reply{reply(T(s.lang, "date_in_past"))}
	}
	return m.finalizeSchedule(s, at)
}

// finalizeSchedule persists the delivery time and registers the
// trigger. Rescheduling supersedes any pending trigger for the id.
func (m *Manager) finalizeSchedule(s *Session, at time.Time) []Reply {
	c, err := m.db.FindCapsule(s.targetID)
	if err != nil {
		return m.failure(s, err, "could not load capsule")
	}

	c.ScheduledAt = &at
	if err := m.db.Save(c); err != nil {
		return m.failure(s, err, "could not save schedule")
	}

	if err := m.scheduler.Schedule(c.ID, at); err != nil {
		return m.failure(s, err, "could not register trigger")
	}

	lang := s.lang
	s.reset()
	return []Reply{reply(T(lang, "date_set", at.In(m.loc).Format("02.01.2006 15:04")))}
}

//
// Existing-capsule actions
//

func (m *Manager) selectFor(s *Session, action Action) []Reply {
	s.reset()
	s.action = action
	s.state = StateSelect
	return []Reply{reply(T(s.lang, "enter_number"))}
}

func (m *Manager) handleSelect(s *Session, in Input) []Reply {
	if in.Text == "" || in.Media != nil {
		return m.garbage(s)
	}

	number, err := strconv.Atoi(strings.TrimSpace(in.Text))
	if err != nil {
		return []Reply{reply(T(s.lang, "invalid_number"))}
	}

	// Selection is scoped to the acting user's own capsules: a number
	// that resolves to someone else's capsule simply does not exist
	// here, so no mutation can ever precede the ownership check.
	c, err := m.db.FindCapsuleByNumber(s.user.ID, number)
	if err != nil {
		if m.db.IsNotFound(err) {
			m.logger.WithError(cerror.NewOwnership("capsule not owned")).
				WithField("number", number).Info("capsule selection rejected")
			lang := s.lang
			s.reset()
			return []Reply{reply(T(lang, "not_your_capsule"))}
		}
		return m.failure(s, err, "could not load capsule")
	}

	s.targetID = c.ID
	s.targetNumber = c.Number

	switch s.action {
	case ActionRecipients:
		return m.listRecipients(s, c)
	case ActionDelete:
		s.state = StateConfirmDelete
		return []Reply{reply(T(s.lang, "confirm_delete", c.Number, c.Title),
			choice(s.lang, CmdYes, ""), choice(s.lang, CmdNo, ""))}
	case ActionSend:
		// Show the author what leaves before the irreversible send.
		bundle, err := m.codec.Unseal(c.SealedContent)
		if err != nil {
			m.logger.WithError(err).WithField("capsule", c.ID).Error("could not unseal capsule")
			lang := s.lang
			s.reset()
			return []Reply{reply(T(lang, "capsule_corrupt"))}
		}

		s.state = StateConfirmSend
		text := T(s.lang, "confirm_send", c.Number, c.Title)
		if !bundle.Empty() {
			text += "\n\n" + preview(s.lang, bundle)
		}
		return []Reply{reply(text,
			choice(s.lang, CmdYes, ""), choice(s.lang, CmdNo, ""))}
	case ActionEdit:
		s.state = StateEditField
		return []Reply{reply(T(s.lang, "choose_edit_field"),
			choice(s.lang, CmdTitle, ""), choice(s.lang, CmdContent, ""))}
	case ActionSchedule:
		s.state = StateSchedule
		return []Reply{m.scheduleMenu(s)}
	case ActionAddRecipients:
		s.state = StateRecipients
		return []Reply{reply(T(s.lang, "enter_recipients"))}
	}
	return m.garbage(s)
}

// preview renders the unsealed content for the author: text items
// verbatim, the other kinds as counts.
func preview(lang string, b *capsule.Bundle) string {
	lines := make([]string, 0, len(b.Items(capsule.Text))+len(capsule.SendOrder))
	lines = append(lines, b.Items(capsule.Text)...)
	for _, kind := range capsule.SendOrder {
		if kind == capsule.Text {
			continue
		}
		if n := len(b.Items(kind)); n > 0 {
			lines = append(lines, T(lang, "preview."+string(kind), n))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Manager) listRecipients(s *Session, c *model.Capsule) []Reply {
	recipients, err := m.db.FindRecipientsByCapsule(c.ID)
	if err != nil {
		return m.failure(s, err, "could not list recipients")
	}

	lang := s.lang
	number := c.Number
	s.reset()

	if len(recipients) == 0 {
		return []Reply{reply(T(lang, "no_recipients"))}
	}

	lines := make([]string, 0, len(recipients))
	for _, r := range recipients {
		lines = append(lines, "@"+r.Username)
	}
	return []Reply{reply(T(lang, "recipients_list", number, strings.Join(lines, "\n")))}
}

func (m *Manager) listCapsules(s *Session) []Reply {
	capsules, err := m.db.FindCapsulesByCreator(s.user.ID)
	if err != nil {
		return m.failure(s, err, "could not list capsules")
	}

	if len(capsules) == 0 {
		return []Reply{reply(T(s.lang, "no_capsules"))}
	}

	lines := []string{T(s.lang, "your_capsules")}
	for _, c := range capsules {
		status := T(s.lang, "status_draft")
		if !c.Draft() {
			status = T(s.lang, "status_scheduled", c.ScheduledAt.In(m.loc).Format("02.01.2006 15:04"))
		}
		lines = append(lines, T(s.lang, "capsule_line", c.Number, c.Title, status))
	}
	return []Reply{reply(strings.Join(lines, "\n"))}
}

func (m *Manager) handleConfirmDelete(s *Session, in Input) []Reply {
	switch in.Command {
	case CmdYes:
		// The pending trigger, if any, is left in the broker: firing
		// against the now absent id is the documented no-op path.
		if err := m.db.DeleteCapsule(s.targetID); err != nil {
			return m.failure(s, err, "could not delete capsule")
		}
		lang := s.lang
		s.reset()
		return []Reply{reply(T(lang, "capsule_deleted"))}
	case CmdNo:
		lang := s.lang
		s.reset()
		return []Reply{reply(T(lang, "cancelled"))}
	}
	return m.garbage(s)
}

func (m *Manager) handleConfirmSend(ctx context.Context, s *Session, in Input) []Reply {
	switch in.Command {
	case CmdYes:
		lang := s.lang
		target := s.targetID
		s.reset()

		err := m.deliverer.Deliver(ctx, target)
		switch {
		case err == nil:
			return []Reply{reply(T(lang, "capsule_sent"))}
		case cerror.Tag(err) == cerror.TagValidation:
			return []Reply{reply(T(lang, "no_recipients"))}
		case capsule.IsDecodeError(err):
			return []Reply{reply(T(lang, "capsule_corrupt"))}
		default:
			m.logger.WithError(err).Error("immediate delivery failed")
			return []Reply{reply(T(lang, "service_unavailable"))}
		}
	case CmdNo:
		lang := s.lang
		s.reset()
		return []Reply{reply(T(lang, "cancelled"))}
	}
	return m.garbage(s)
}

//
// Editing
//

func (m *Manager) handleEditField(s *Session, in Input) []Reply {
	switch in.Command {
	case CmdTitle:
		s.state = StateEditTitle
		return []Reply{reply(T(s.lang, "enter_new_title"))}
	case CmdContent:
		s.state = StateEditContent
		return []Reply{reply(T(s.lang, "enter_new_content"))}
	}
	return m.garbage(s)
}

func (m *Manager) handleEditTitle(s *Session, in Input) []Reply {
	title := strings.TrimSpace(in.Text)
	if title == "" || in.Media != nil {
		return []Reply{reply(T(s.lang, "enter_new_title"))}
	}

	c, err := m.db.FindCapsule(s.targetID)
	if err != nil {
		return m.failure(s, err, "could not load capsule")
	}

	c.Title = title
	if err := m.db.Save(c); err != nil {
		return m.failure(s, err, "could not save capsule")
	}

	lang := s.lang
	s.reset()
	return []Reply{reply(T(lang, "capsule_updated"))}
}

func (m *Manager) handleEditContent(s *Session, in Input) []Reply {
	var kind capsule.Kind
	var ref string
	switch {
	case in.Media != nil:
		kind, ref = in.Media.Kind, in.Media.Ref
	case strings.TrimSpace(in.Text) != "":
		kind, ref = capsule.Text, in.Text
	default:
		return m.garbage(s)
	}

	c, err := m.db.FindCapsule(s.targetID)
	if err != nil {
		return m.failure(s, err, "could not load capsule")
	}

	bundle, err := m.codec.Unseal(c.SealedContent)
	if err != nil {
		m.logger.WithError(err).WithField("capsule", c.ID).Error("could not unseal capsule")
		lang := s.lang
		s.reset()
		return []Reply{reply(T(lang, "capsule_corrupt"))}
	}

	if err := bundle.Append(kind, ref); err != nil {
		return m.garbage(s)
	}

	sealed, err := m.codec.Seal(bundle)
	if err != nil {
		return m.failure(s, err, "could not seal capsule")
	}

	c.SealedContent = sealed
	if err := m.db.Save(c); err != nil {
		return m.failure(s, err, "could not save capsule")
	}

	lang := s.lang
	s.reset()
	return []Reply{reply(T(lang, "capsule_updated"))}
}
