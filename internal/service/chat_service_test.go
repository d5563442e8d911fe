package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/internal/moderation"
	"github.com/sportsmeet/listing-chat/internal/repository"
	"github.com/sportsmeet/listing-chat/pkg/database"
)

type fixture struct {
	chat    ChatService
	inbox   InboxService
	members *membership.StaticProvider

	owner    *domain.User
	approved *domain.User
	refused  *domain.User
	admin    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     "file::memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.MessageModel{}, &domain.UnreadMarkModel{}))

	members := membership.NewStaticProvider()
	owner := &domain.User{ID: "owner", DisplayName: "Olive Owner"}
	approved := &domain.User{ID: "anna", DisplayName: "Anna Approved"}
	refused := &domain.User{ID: "rudy", DisplayName: "Rudy Refused"}
	admin := &domain.User{ID: "admin", DisplayName: "Site Admin", IsAdmin: true}

	for _, u := range []*domain.User{owner, approved, refused, admin} {
		members.AddUser(*u)
	}
	members.AddRoom("room-1", owner.ID)
	members.AddMember("room-1", approved.ID, domain.MembershipApproved)
	members.AddMember("room-1", refused.ID, domain.MembershipRefused)

	messages := repository.NewGormMessageRepository(db)
	unread := repository.NewGormUnreadRepository(db)

	return &fixture{
		chat:     NewChatService(messages, members, moderation.NewPipeline(0, nil)),
		inbox:    NewInboxService(unread, members),
		members:  members,
		owner:    owner,
		approved: approved,
		refused:  refused,
		admin:    admin,
	}
}

func TestCreateMessageHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "on se retrouve au parc ?", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "room-1", view.RoomID)
	assert.Equal(t, "Anna Approved", view.AuthorName)
	assert.Equal(t, "on se retrouve au parc ?", view.Text)
	assert.False(t, view.CreatedAt.IsZero())
}

func TestCreateMessageWhitespaceOnlyRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "   ", nil)
	assert.ErrorIs(t, err, moderation.ErrEmptyMessage)

	// Nothing persisted.
	views, err := f.chat.ListMessages(ctx, "room-1", f.owner, 1, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCreateMessageBannedWordRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "tu es merde toi", nil)
	assert.ErrorIs(t, err, moderation.ErrBannedWord)

	// Whole-word matching: the same letters inside a longer word pass.
	view, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "je vends ma mercedes", nil)
	require.NoError(t, err)
	assert.Equal(t, "je vends ma mercedes", view.Text)
}

func TestCreateMessageRefusedMemberDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chat.CreateMessage(ctx, "room-1", f.refused, "laissez-moi entrer", nil)
	assert.ErrorIs(t, err, ErrNotRoomMember)

	views, err := f.chat.ListMessages(ctx, "room-1", f.owner, 1, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCreateMessageUnknownRoom(t *testing.T) {
	f := newFixture(t)

	_, err := f.chat.CreateMessage(context.Background(), "no-such-room", f.approved, "hello", nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateMessageAdminOverride(t *testing.T) {
	f := newFixture(t)

	view, err := f.chat.CreateMessage(context.Background(), "room-1", f.admin, "rappel des règles", nil)
	require.NoError(t, err)
	assert.Equal(t, "Site Admin", view.AuthorName)
}

func TestCreateMessageResolvesReplyPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.chat.CreateMessage(ctx, "room-1", f.owner, "qui vient samedi ?", nil)
	require.NoError(t, err)

	reply, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "moi !", &first.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, first.ID, reply.ReplyTo.MessageID)
	assert.Equal(t, "qui vient samedi ?", reply.ReplyTo.Text)
	assert.Equal(t, "Olive Owner", reply.ReplyTo.AuthorName)
	assert.False(t, reply.ReplyTo.Removed)
}

func TestCreateMessageDropsInvalidReplyTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bogus := "does-not-exist"
	view, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "réponse orpheline", &bogus)
	require.NoError(t, err)
	assert.Nil(t, view.ReplyTo)
}

func TestDeletedReplyTargetRendersAsRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target, err := f.chat.CreateMessage(ctx, "room-1", f.owner, "message regrettable", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	_, err = f.chat.CreateMessage(ctx, "room-1", f.approved, "je cite", &target.ID)
	require.NoError(t, err)

	require.NoError(t, f.chat.DeleteMessage(ctx, target.ID, f.owner))

	views, err := f.chat.ListMessages(ctx, "room-1", f.owner, 1, 20, nil)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// The tombstone itself renders empty.
	assert.True(t, views[0].IsDeleted)
	assert.Empty(t, views[0].Text)

	// The reply's preview stays resolvable, marked removed.
	require.NotNil(t, views[1].ReplyTo)
	assert.Equal(t, target.ID, views[1].ReplyTo.MessageID)
	assert.True(t, views[1].ReplyTo.Removed)
	assert.Empty(t, views[1].ReplyTo.Text)
}

func TestDeleteMessageAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "à supprimer", nil)
	require.NoError(t, err)

	// Another plain member may not delete.
	other := &domain.User{ID: "benoit", DisplayName: "Benoit"}
	f.members.AddUser(*other)
	f.members.AddMember("room-1", other.ID, domain.MembershipApproved)
	assert.ErrorIs(t, f.chat.DeleteMessage(ctx, msg.ID, other), ErrDeleteForbidden)

	// The author may.
	require.NoError(t, f.chat.DeleteMessage(ctx, msg.ID, f.approved))
}

func TestDeleteMessageByRoomOwnerAndAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "un", nil)
	require.NoError(t, err)
	m2, err := f.chat.CreateMessage(ctx, "room-1", f.approved, "deux", nil)
	require.NoError(t, err)

	require.NoError(t, f.chat.DeleteMessage(ctx, m1.ID, f.owner))
	require.NoError(t, f.chat.DeleteMessage(ctx, m2.ID, f.admin))
}

func TestDeleteMessageNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.chat.DeleteMessage(context.Background(), "ghost", f.owner)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestListMessagesPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.chat.CreateMessage(ctx, "room-1", f.owner, fmt.Sprintf("msg-%d", i), nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct creation times
	}

	page1, err := f.chat.ListMessages(ctx, "room-1", f.approved, 1, 2, nil)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	// Chronological within the page, newest page first.
	assert.Equal(t, "msg-3", page1[0].Text)
	assert.Equal(t, "msg-4", page1[1].Text)

	cursor := &repository.Cursor{CreatedAt: page1[0].CreatedAt, ID: page1[0].ID}
	page2, err := f.chat.ListMessages(ctx, "room-1", f.approved, 2, 2, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "msg-1", page2[0].Text)
	assert.Equal(t, "msg-2", page2[1].Text)
}

func TestListMessagesRequiresMembership(t *testing.T) {
	f := newFixture(t)

	_, err := f.chat.ListMessages(context.Background(), "room-1", f.refused, 1, 20, nil)
	assert.ErrorIs(t, err, ErrNotRoomMember)
}

func TestUnreadLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Owner sends N messages; the approved member accumulates marks,
	// the refused member and the sender get none.
	const n = 3
	for i := 0; i < n; i++ {
		_, err := f.chat.CreateMessage(ctx, "room-1", f.owner, fmt.Sprintf("annonce %d", i), nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	summaries, err := f.inbox.UnreadSummary(ctx, f.approved.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "room-1", summaries[0].RoomID)
	assert.Equal(t, n, summaries[0].Count)
	assert.Equal(t, "annonce 2", summaries[0].LatestText)
	assert.Equal(t, "Olive Owner", summaries[0].LatestSender)

	none, err := f.inbox.UnreadSummary(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = f.inbox.UnreadSummary(ctx, f.refused.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	// One call empties the room.
	require.NoError(t, f.inbox.MarkRoomRead(ctx, "room-1", f.approved.ID))
	summaries, err = f.inbox.UnreadSummary(ctx, f.approved.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestMarkMessagesReadSubset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1, err := f.chat.CreateMessage(ctx, "room-1", f.owner, "premier", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = f.chat.CreateMessage(ctx, "room-1", f.owner, "second", nil)
	require.NoError(t, err)

	require.NoError(t, f.inbox.MarkMessagesRead(ctx, f.approved.ID, []string{m1.ID}))

	summaries, err := f.inbox.UnreadSummary(ctx, f.approved.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)
	assert.Equal(t, "second", summaries[0].LatestText)
}

func TestUnreadMarksSurviveTombstone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.chat.CreateMessage(ctx, "room-1", f.owner, "éphémère", nil)
	require.NoError(t, err)

	// Tombstoning does not cascade into unread marks.
	require.NoError(t, f.chat.DeleteMessage(ctx, msg.ID, f.owner))

	summaries, err := f.inbox.UnreadSummary(ctx, f.approved.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)
	assert.Empty(t, summaries[0].LatestText)
}
