package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/database"
)

func openTestDB(t *testing.T) *GormMessageRepository {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     "file::memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.MessageModel{}, &domain.UnreadMarkModel{}))
	return NewGormMessageRepository(db)
}

func seedMessage(t *testing.T, repo *GormMessageRepository, roomID, authorID, text string, at time.Time, recipients ...string) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		RoomID:    roomID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: at,
	}
	require.NoError(t, repo.Create(context.Background(), msg, recipients))
	return msg
}

func TestCreatePersistsMessageAndUnreadMarks(t *testing.T) {
	repo := openTestDB(t)
	unread := NewGormUnreadRepository(repo.db)
	ctx := context.Background()

	msg := seedMessage(t, repo, "room-1", "alice", "salut", time.Now(), "bob", "carol")

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "salut", got.Text)
	assert.False(t, got.IsDeleted)

	for _, userID := range []string{"bob", "carol"} {
		marks, err := unread.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, marks, 1)
		assert.Equal(t, msg.ID, marks[0].MessageID)
	}

	marks, err := unread.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := openTestDB(t)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestListPageNewestFirstWithOffset(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedMessage(t, repo, "room-1", "alice", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	page, err := repo.ListPage(ctx, "room-1", nil, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "msg-4", page[0].Text)
	assert.Equal(t, "msg-3", page[1].Text)

	page, err = repo.ListPage(ctx, "room-1", nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "msg-2", page[0].Text)
	assert.Equal(t, "msg-1", page[1].Text)
}

func TestListPageKeysetStableUnderConcurrentInserts(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		seedMessage(t, repo, "room-1", "alice", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	page1, err := repo.ListPage(ctx, "room-1", nil, 0, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)

	// A message lands after the first fetch. Keyset pagination must not
	// let it shift older pages.
	seedMessage(t, repo, "room-1", "bob", "late-arrival", base.Add(time.Hour))

	oldest := page1[len(page1)-1]
	page2, err := repo.ListPage(ctx, "room-1", &Cursor{CreatedAt: oldest.CreatedAt, ID: oldest.ID}, 0, 3)
	require.NoError(t, err)
	require.Len(t, page2, 3)

	seen := map[string]bool{}
	for _, m := range append(append([]domain.Message{}, page1...), page2...) {
		assert.False(t, seen[m.ID], "message %s delivered twice", m.Text)
		seen[m.ID] = true
	}
	assert.Equal(t, "msg-2", page2[0].Text)
	assert.Equal(t, "msg-0", page2[2].Text)
}

func TestMarkDeletedSetsTombstoneOnly(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	msg := seedMessage(t, repo, "room-1", "alice", "oops", time.Now())

	require.NoError(t, repo.MarkDeleted(ctx, msg.ID))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func TestMarkDeletedNotFound(t *testing.T) {
	repo := openTestDB(t)

	err := repo.MarkDeleted(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDeleteByRoomClearsOnlyThatRoom(t *testing.T) {
	repo := openTestDB(t)
	unread := NewGormUnreadRepository(repo.db)
	ctx := context.Background()

	seedMessage(t, repo, "room-1", "alice", "a", time.Now(), "bob")
	seedMessage(t, repo, "room-1", "alice", "b", time.Now(), "bob")
	other := seedMessage(t, repo, "room-2", "alice", "c", time.Now(), "bob")

	require.NoError(t, unread.DeleteByRoom(ctx, "room-1", "bob"))

	marks, err := unread.ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, other.ID, marks[0].MessageID)
}

func TestDeleteByMessages(t *testing.T) {
	repo := openTestDB(t)
	unread := NewGormUnreadRepository(repo.db)
	ctx := context.Background()

	m1 := seedMessage(t, repo, "room-1", "alice", "a", time.Now(), "bob")
	m2 := seedMessage(t, repo, "room-1", "alice", "b", time.Now(), "bob")

	require.NoError(t, unread.DeleteByMessages(ctx, "bob", []string{m1.ID}))

	marks, err := unread.ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, m2.ID, marks[0].MessageID)
}

func TestAggregateByUserGroupsByRoom(t *testing.T) {
	repo := openTestDB(t)
	unread := NewGormUnreadRepository(repo.db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedMessage(t, repo, "room-1", "alice", "first", base, "bob")
	seedMessage(t, repo, "room-1", "alice", "second", base.Add(time.Minute), "bob")
	seedMessage(t, repo, "room-2", "carol", "hello", base.Add(2*time.Minute), "bob")

	aggregates, err := unread.AggregateByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, aggregates, 2)

	// Rooms ordered by latest unread message, newest first.
	assert.Equal(t, "room-2", aggregates[0].RoomID)
	assert.Equal(t, 1, aggregates[0].Count)
	assert.Equal(t, "hello", aggregates[0].LatestText)

	assert.Equal(t, "room-1", aggregates[1].RoomID)
	assert.Equal(t, 2, aggregates[1].Count)
	assert.Equal(t, "second", aggregates[1].LatestText)
	assert.Equal(t, "alice", aggregates[1].LatestAuthorID)
}
