package client

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

// State is the session lifecycle state.
type State string

const (
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateLoadingMore State = "loading_more"
	StateSending     State = "sending"
	StateError       State = "error"
	StateClosed      State = "closed"
)

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrNotReady      = errors.New("session is not ready")
	ErrNoMoreHistory = errors.New("no more history")
)

// Config tunes a session.
type Config struct {
	PageSize       int
	TypingIdle     time.Duration // debounce window before stop_typing
	MaxReconnects  int
	ReconnectDelay time.Duration // grows linearly per attempt
}

// DefaultConfig returns the standard session tuning.
func DefaultConfig() Config {
	return Config{
		PageSize:       20,
		TypingIdle:     time.Second,
		MaxReconnects:  3,
		ReconnectDelay: time.Second,
	}
}

// Handlers receive session callbacks. All callbacks run outside the
// session lock; nil handlers are skipped.
type Handlers struct {
	OnMessage func(domain.MessageView)
	OnTyping  func(userID string, typing bool)
	OnState   func(State)
}

// Session is the client-side reconciliation state machine for one room:
// it merges paginated history with live pushes, keeps messages in
// creation-time order, deduplicates by message ID, sends optimistically
// and survives transport drops with bounded reconnects.
type Session struct {
	roomID    string
	api       API
	transport Transport
	cfg       Config
	handlers  Handlers

	mu           sync.Mutex
	state        State
	messages     []domain.MessageView
	index        map[string]int // message ID -> position
	hasMore      bool
	cursor       *PageCursor // oldest loaded, nil until first page
	typingUsers  map[string]bool
	typingActive bool
	typingTimer  *time.Timer
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session for one room. Call Start to go live.
func NewSession(roomID string, api API, transport Transport, cfg Config, handlers Handlers) *Session {
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = DefaultConfig().TypingIdle
	}
	if cfg.MaxReconnects < 0 {
		cfg.MaxReconnects = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}

	return &Session{
		roomID:      roomID,
		api:         api,
		transport:   transport,
		cfg:         cfg,
		handlers:    handlers,
		state:       StateLoading,
		index:       make(map[string]int),
		typingUsers: make(map[string]bool),
	}
}

// Start connects the live channel, joins the room and loads the newest
// page. The room is marked read since starting a session is viewing it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	sctx := s.ctx
	s.mu.Unlock()

	s.setState(StateLoading)

	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateError)
		return err
	}
	if err := s.joinRoom(); err != nil {
		s.setState(StateError)
		return err
	}

	if err := s.fetchLatest(ctx); err != nil {
		s.setState(StateError)
		return err
	}

	if err := s.api.MarkRoomRead(ctx, s.roomID); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoomID, s.roomID).Msg("mark room read failed")
	}

	go s.receiveLoop(sctx)

	s.setState(StateReady)
	return nil
}

// LoadOlder fetches the page before the oldest loaded message and
// prepends it. Only valid while Ready with more history available.
func (s *Session) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	if !s.hasMore {
		s.mu.Unlock()
		return ErrNoMoreHistory
	}
	cursor := s.cursor
	s.mu.Unlock()

	s.setState(StateLoadingMore)

	views, hasMore, err := s.api.ListMessages(ctx, s.roomID, 1, s.cfg.PageSize, cursor)
	if err != nil {
		s.setState(StateReady)
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	for i := range views {
		s.insertLocked(views[i])
	}
	s.hasMore = hasMore
	s.updateCursorLocked()
	s.mu.Unlock()

	s.setState(StateReady)
	return nil
}

// SendMessage creates the message synchronously and appends it
// optimistically from the response, then publishes it to the hub for
// the other members. A rejection leaves local state untouched.
func (s *Session) SendMessage(ctx context.Context, text string, replyToID *string) (*domain.MessageView, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	s.mu.Unlock()

	s.setState(StateSending)
	s.endTyping()

	view, err := s.api.CreateMessage(ctx, s.roomID, text, replyToID)
	if err != nil {
		s.setState(StateReady)
		return nil, err
	}

	if added := s.ingest(*view); added && s.handlers.OnMessage != nil {
		s.handlers.OnMessage(*view)
	}

	// Broadcast is best-effort: the message is durable, and members
	// that miss the push will see it on their next page fetch.
	if err := s.transport.Send(&domain.SendMessageEvent{
		Type:    domain.EvtSendMessage,
		RoomID:  s.roomID,
		Message: *view,
	}); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoomID, s.roomID).Msg("publish to hub failed")
	}

	s.setState(StateReady)
	return view, nil
}

// TypingKeystroke debounces keystrokes into one typing emission and a
// stop_typing after the idle window.
func (s *Session) TypingKeystroke() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.typingActive {
		s.typingTimer.Reset(s.cfg.TypingIdle)
		s.mu.Unlock()
		return
	}

	s.typingActive = true
	s.typingTimer = time.AfterFunc(s.cfg.TypingIdle, s.endTyping)
	s.mu.Unlock()

	s.transport.Send(&domain.TypingEvent{Type: domain.EvtTyping, RoomID: s.roomID})
}

// Retry recovers from the Error state: reconnect, rejoin and refetch
// the newest page, merging anything missed while offline.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateError {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	sctx := s.ctx
	s.mu.Unlock()

	s.setState(StateLoading)

	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateError)
		return err
	}
	if err := s.joinRoom(); err != nil {
		s.setState(StateError)
		return err
	}
	if err := s.fetchLatest(ctx); err != nil {
		s.setState(StateError)
		return err
	}

	go s.receiveLoop(sctx)

	s.setState(StateReady)
	return nil
}

// Close leaves the room and tears the session down. It is safe on
// every exit path and idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	wasTyping := s.typingActive
	s.typingActive = false
	cancel := s.cancel
	s.mu.Unlock()

	if wasTyping {
		s.transport.Send(&domain.TypingEvent{Type: domain.EvtStopTyping, RoomID: s.roomID})
	}
	s.transport.Send(&domain.LeaveRoomEvent{Type: domain.EvtLeaveRoom, RoomID: s.roomID})

	if cancel != nil {
		cancel()
	}
	err := s.transport.Close()

	s.setState(StateClosed)
	return err
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns the loaded messages in chronological order.
func (s *Session) Messages() []domain.MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MessageView, len(s.messages))
	copy(out, s.messages)
	return out
}

// HasMore reports whether older history is available.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// TypingUsers returns the users currently typing, sorted for stable
// rendering.
func (s *Session) TypingUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.typingUsers))
	for id := range s.typingUsers {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (s *Session) joinRoom() error {
	return s.transport.Send(&domain.JoinRoomEvent{Type: domain.EvtJoinRoom, RoomID: s.roomID})
}

// fetchLatest loads the newest page and merges it into local state.
func (s *Session) fetchLatest(ctx context.Context) error {
	views, hasMore, err := s.api.ListMessages(ctx, s.roomID, 1, s.cfg.PageSize, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	for i := range views {
		s.insertLocked(views[i])
	}
	s.hasMore = hasMore
	s.updateCursorLocked()
	s.mu.Unlock()
	return nil
}

// receiveLoop consumes live frames and reconnects with a bounded number
// of attempts when the transport drops.
func (s *Session) receiveLoop(ctx context.Context) {
	for {
		events := s.transport.Events()
		for data := range events {
			s.handleFrame(data)
		}

		// Transport dropped. Stop silently when the session is closing.
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !s.reconnect(ctx) {
			s.setState(StateError)
			return
		}
	}
}

// reconnect tries up to MaxReconnects times with increasing delay,
// rejoining the room and refetching the newest page on success.
func (s *Session) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * s.cfg.ReconnectDelay):
		}

		if err := s.transport.Connect(ctx); err != nil {
			l := log.L()
			l.Warn().Err(err).Int("attempt", attempt).Str(log.FieldRoomID, s.roomID).Msg("reconnect failed")
			continue
		}
		if err := s.joinRoom(); err != nil {
			continue
		}
		// Catch up on anything missed while offline.
		if err := s.fetchLatest(ctx); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoomID, s.roomID).Msg("post-reconnect catch-up failed")
		}
		return true
	}
	return false
}

func (s *Session) handleFrame(data []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return
	}

	switch base.Type {
	case domain.EvtNewMessage:
		var evt domain.NewMessageEvent
		if err := json.Unmarshal(data, &evt); err != nil || evt.RoomID != s.roomID {
			return
		}
		if added := s.ingest(evt.Message); added && s.handlers.OnMessage != nil {
			s.handlers.OnMessage(evt.Message)
		}

	case domain.EvtUserTyping:
		var evt domain.UserTypingEvent
		if err := json.Unmarshal(data, &evt); err != nil || evt.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		s.typingUsers[evt.UserID] = true
		s.mu.Unlock()
		if s.handlers.OnTyping != nil {
			s.handlers.OnTyping(evt.UserID, true)
		}

	case domain.EvtUserStopTyping:
		var evt domain.UserTypingEvent
		if err := json.Unmarshal(data, &evt); err != nil || evt.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		delete(s.typingUsers, evt.UserID)
		s.mu.Unlock()
		if s.handlers.OnTyping != nil {
			s.handlers.OnTyping(evt.UserID, false)
		}
	}
}

// ingest merges one message into local state, reporting whether it was
// new. Duplicates (e.g. a broadcast echo of an optimistic append) are
// dropped by ID.
func (s *Session) ingest(view domain.MessageView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.insertLocked(view)
}

// insertLocked inserts in creation-time order. History and live pushes
// arrive with independent delivery order, so this is an insert-in-place
// rather than an append.
func (s *Session) insertLocked(view domain.MessageView) bool {
	if _, ok := s.index[view.ID]; ok {
		return false
	}

	pos := len(s.messages)
	for pos > 0 && newer(&s.messages[pos-1], &view) {
		pos--
	}

	s.messages = append(s.messages, domain.MessageView{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = view

	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
	return true
}

// newer reports whether a was created after b, with the ID as a
// deterministic tie-break.
func newer(a, b *domain.MessageView) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// updateCursorLocked points the cursor at the oldest loaded message.
func (s *Session) updateCursorLocked() {
	if len(s.messages) == 0 {
		s.cursor = nil
		return
	}
	oldest := s.messages[0]
	s.cursor = &PageCursor{At: oldest.CreatedAt, ID: oldest.ID}
}

// endTyping emits stop_typing if a typing emission is outstanding.
func (s *Session) endTyping() {
	s.mu.Lock()
	if !s.typingActive {
		s.mu.Unlock()
		return
	}
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.mu.Unlock()

	s.transport.Send(&domain.TypingEvent{Type: domain.EvtStopTyping, RoomID: s.roomID})
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.closed && next != StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = next
	handler := s.handlers.OnState
	s.mu.Unlock()

	if handler != nil {
		handler(next)
	}
}
