package hub

import (
	"sync"
	"time"
)

// room holds the connections and ephemeral typing presence of one chat
// room. Each room has its own lock so rooms never contend with each
// other.
type room struct {
	id      string
	mu      sync.RWMutex
	clients map[string]*Client
	typing  map[string]*time.Timer // userID -> expiry timer
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		clients: make(map[string]*Client),
		typing:  make(map[string]*time.Timer),
	}
}

func (r *room) addClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// removeClient drops a connection and reports whether the room is now
// empty and can be deleted.
func (r *room) removeClient(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
	if len(r.clients) > 0 {
		return false
	}
	for userID, timer := range r.typing {
		timer.Stop()
		delete(r.typing, userID)
	}
	return true
}

func (r *room) clientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// snapshot copies the client set so delivery never holds the lock.
func (r *room) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// startTyping marks the user as typing with a TTL. It reports true when
// the user was not already marked, i.e. a user_typing event should be
// emitted. An existing mark just has its expiry pushed out.
func (r *room) startTyping(userID string, ttl time.Duration, onExpire func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.typing[userID]; ok {
		timer.Reset(ttl)
		return false
	}

	r.typing[userID] = time.AfterFunc(ttl, func() {
		if r.clearTyping(userID) {
			onExpire()
		}
	})
	return true
}

// stopTyping clears the mark and reports whether it existed.
func (r *room) stopTyping(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer, ok := r.typing[userID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(r.typing, userID)
	return true
}

// clearTyping removes the mark without stopping the timer, used from
// the timer's own expiry callback.
func (r *room) clearTyping(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.typing[userID]; !ok {
		return false
	}
	delete(r.typing, userID)
	return true
}

func (r *room) typingUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.typing))
	for userID := range r.typing {
		users = append(users, userID)
	}
	return users
}
