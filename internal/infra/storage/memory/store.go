// Package memory implements the record store over plain maps. It mirrors the
// mongo implementation closely enough that the services and tests never care
// which one is wired: keyed documents, all-or-nothing units of work, and
// collection watchers feeding the realtime layer.
package memory

import (
	"sync"
	"time"

	"bchat/internal/app/errbus"
	"bchat/internal/app/realtime"
	domainchat "bchat/internal/domain/chat"
	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

type state struct {
	users         map[domainuser.ID]*domainuser.User
	emails        map[string]domainuser.ID
	conversations map[domainchat.ConversationID]*domainchat.Conversation
	messages      map[domainchat.ConversationID][]*domainchat.Message
	requests      map[domainfriends.RequestID]*domainfriends.Request
	outbox        []*eventDocument
}

func newState() state {
	return state{
		users:         make(map[domainuser.ID]*domainuser.User),
		emails:        make(map[string]domainuser.ID),
		conversations: make(map[domainchat.ConversationID]*domainchat.Conversation),
		messages:      make(map[domainchat.ConversationID][]*domainchat.Message),
		requests:      make(map[domainfriends.RequestID]*domainfriends.Request),
	}
}

// clone copies map structure and message slice headers. Values themselves are
// never mutated in place by apply funcs, so shallow entry copies are enough
// for commit rollback.
func (s *state) clone() state {
	out := state{
		users:         make(map[domainuser.ID]*domainuser.User, len(s.users)),
		emails:        make(map[string]domainuser.ID, len(s.emails)),
		conversations: make(map[domainchat.ConversationID]*domainchat.Conversation, len(s.conversations)),
		messages:      make(map[domainchat.ConversationID][]*domainchat.Message, len(s.messages)),
		requests:      make(map[domainfriends.RequestID]*domainfriends.Request, len(s.requests)),
		outbox:        append([]*eventDocument(nil), s.outbox...),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.emails {
		out.emails[k] = v
	}
	for k, v := range s.conversations {
		out.conversations[k] = v
	}
	for k, v := range s.messages {
		out.messages[k] = append([]*domainchat.Message(nil), v...)
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	return out
}

// op is one staged mutation. Path and operation feed both the permission
// rule and the PermissionError reported on denial.
type op struct {
	collection string
	path       string
	operation  string
	payload    any
	apply      func(st *state) error
}

// Store holds all collections behind one lock, so a unit commit is a single
// critical section and watcher notifications always describe a fully
// committed state.
type Store struct {
	mu sync.RWMutex
	st state

	watchMu   sync.Mutex
	watchers  map[string]map[int]chan struct{}
	nextWatch int

	deny func(path, operation string) bool
}

func NewStore() *Store {
	return &Store{
		st:       newState(),
		watchers: make(map[string]map[int]chan struct{}),
	}
}

// DenyFunc installs an authorization rule; matching operations fail with a
// PermissionError exactly like a refused write on the real backend. Tests use
// it to exercise the error channel and transaction rollback.
func (s *Store) DenyFunc(fn func(path, operation string) bool) {
	s.mu.Lock()
	s.deny = fn
	s.mu.Unlock()
}

// Watch registers a coalescing change signal for one collection.
func (s *Store) Watch(collection string) (<-chan struct{}, func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	ch := make(chan struct{}, 1)
	id := s.nextWatch
	s.nextWatch++
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[int]chan struct{})
	}
	s.watchers[collection][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers[collection], id)
			s.watchMu.Unlock()
		})
	}
	return ch, cancel
}

var _ realtime.Notifier = (*Store)(nil)

func (s *Store) notify(collections map[string]struct{}) {
	s.watchMu.Lock()
	var pending []chan struct{}
	for collection := range collections {
		for _, ch := range s.watchers[collection] {
			pending = append(pending, ch)
		}
	}
	s.watchMu.Unlock()
	for _, ch := range pending {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// run executes one mutation outside a unit of work.
func (s *Store) run(o op) error {
	s.mu.Lock()
	if s.deny != nil && s.deny(o.path, o.operation) {
		s.mu.Unlock()
		return &errbus.PermissionError{Path: o.path, Operation: o.operation, Payload: o.payload}
	}
	err := o.apply(&s.st)
	s.mu.Unlock()
	if err == nil {
		s.notify(map[string]struct{}{o.collection: {}})
	}
	return err
}

// read executes a guarded read under the shared lock.
func (s *Store) read(path, operation string, fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deny != nil && s.deny(path, operation) {
		return &errbus.PermissionError{Path: path, Operation: operation}
	}
	return fn(&s.st)
}

func cloneUser(u *domainuser.User) *domainuser.User {
	if u == nil {
		return nil
	}
	out := *u
	out.Friends = append([]domainuser.ID(nil), u.Friends...)
	return &out
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = append([]domainuser.ID(nil), c.Participants...)
	out.ParticipantDetails = make(map[domainuser.ID]domainuser.Snapshot, len(c.ParticipantDetails))
	for k, v := range c.ParticipantDetails {
		out.ParticipantDetails[k] = v
	}
	if c.LastMessage != nil {
		last := *c.LastMessage
		out.LastMessage = &last
	}
	return &out
}

func cloneMessage(m *domainchat.Message) *domainchat.Message {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

func cloneRequest(r *domainfriends.Request) *domainfriends.Request {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
