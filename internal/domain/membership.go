package domain

// MembershipStatus is the approval state of a user on a listing.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipApproved MembershipStatus = "APPROVED"
	MembershipRefused  MembershipStatus = "REFUSED"
	MembershipRemoved  MembershipStatus = "REMOVED"
)

// Membership is the authorization input for a (room, user) pair,
// supplied by the marketplace's membership collaborator.
type Membership struct {
	IsOwner bool
	Status  MembershipStatus
}

// CanParticipate reports whether the membership grants read/write
// access to the room: the owner or any approved member.
func (m Membership) CanParticipate() bool {
	return m.IsOwner || m.Status == MembershipApproved
}

// User is the identity attached to every chat operation.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
}
