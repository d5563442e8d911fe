package membership

import (
	"context"
	"sync"

	"github.com/sportsmeet/listing-chat/internal/domain"
)

// StaticProvider is an in-memory Provider for tests and local
// development.
type StaticProvider struct {
	mu      sync.RWMutex
	owners  map[string]string                             // roomID -> ownerID
	members map[string]map[string]domain.MembershipStatus // roomID -> userID -> status
	users   map[string]domain.User
}

// NewStaticProvider creates an empty in-memory provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		owners:  make(map[string]string),
		members: make(map[string]map[string]domain.MembershipStatus),
		users:   make(map[string]domain.User),
	}
}

// AddRoom registers a room with its owner.
func (p *StaticProvider) AddRoom(roomID, ownerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owners[roomID] = ownerID
}

// AddMember registers a member with the given approval status.
func (p *StaticProvider) AddMember(roomID, userID string, status domain.MembershipStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[roomID] == nil {
		p.members[roomID] = make(map[string]domain.MembershipStatus)
	}
	p.members[roomID][userID] = status
}

// AddUser registers a user identity.
func (p *StaticProvider) AddUser(user domain.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[user.ID] = user
}

func (p *StaticProvider) GetRoomMembership(ctx context.Context, roomID, userID string) (domain.Membership, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	owner, ok := p.owners[roomID]
	if !ok {
		return domain.Membership{}, ErrRoomNotFound
	}
	if owner == userID {
		return domain.Membership{IsOwner: true, Status: domain.MembershipApproved}, nil
	}
	if status, ok := p.members[roomID][userID]; ok {
		return domain.Membership{Status: status}, nil
	}
	return domain.Membership{}, nil
}

func (p *StaticProvider) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (p *StaticProvider) ListRoomParticipants(ctx context.Context, roomID string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	owner, ok := p.owners[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	participants := []string{owner}
	for userID, status := range p.members[roomID] {
		if userID != owner && status == domain.MembershipApproved {
			participants = append(participants, userID)
		}
	}
	return participants, nil
}

func (p *StaticProvider) IsAdministrator(ctx context.Context, userID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.users[userID]
	if !ok {
		return false, nil
	}
	return user.IsAdmin, nil
}
