package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/store"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botID = "8613812345678@c.us"

func newManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(t.TempDir(), nil, nil)
	require.NoError(t, m.Init(context.Background(), botID))
	t.Cleanup(func() { _ = m.Release() })
	return m
}

func TestInitCreatesNamespaceFiles(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil, nil)
	require.NoError(t, m.Init(context.Background(), botID))
	defer func() { _ = m.Release() }()

	for _, ns := range []string{
		NamespaceMessage, NamespaceContactOrRoom, NamespaceRoomMember,
		NamespaceRoomInvitation, NamespaceLatestMessageTimestamp,
	} {
		_, err := os.Stat(filepath.Join(root, botID, ns+".db"))
		assert.NoError(t, err, ns)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.SetMessage(ctx, "m1", &wa.Message{Body: "hi"}))
	before := m.messages

	require.NoError(t, m.Init(ctx, botID))
	require.NoError(t, m.Init(ctx, "other@c.us"))

	assert.Equal(t, botID, m.UserID())
	assert.Same(t, before, m.messages)
	msg, err := m.Message(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "hi", msg.Body)
}

func TestAccessBeforeInitFails(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir(), nil, nil)

	_, err := m.Message(ctx, "m1")
	assert.True(t, errors.Is(err, errs.ErrNoCache))
	_, err = m.ContactIDList(ctx)
	assert.True(t, errors.Is(err, errs.ErrNoCache))
	err = m.AddRoomMemberToList(ctx, "r@g.us", "a@c.us")
	assert.True(t, errors.Is(err, errs.ErrNoCache))
	_, _, err = m.LatestMessageTimestamp(ctx, "r@g.us")
	assert.True(t, errors.Is(err, errs.ErrNoCache))
}

func TestReleaseThenAccessFails(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir(), nil, nil)
	require.NoError(t, m.Init(ctx, botID))
	require.NoError(t, m.Release())
	require.NoError(t, m.Release())

	_, err := m.RoomInvitation(ctx, "code")
	assert.True(t, errors.Is(err, errs.ErrNoCache))
	assert.Empty(t, m.UserID())
}

func TestReleaseAllowsReinitForAnotherUser(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir(), nil, nil)
	require.NoError(t, m.Init(ctx, botID))
	require.NoError(t, m.Release())

	require.NoError(t, m.Init(ctx, "8618710175700@c.us"))
	defer func() { _ = m.Release() }()
	assert.Equal(t, "8618710175700@c.us", m.UserID())
}

func TestSetMessageOverwritesAndStripsSource(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	msg := &wa.Message{ID: wa.MessageKey{ID: "m1"}, Ack: wa.AckServer, Source: struct{}{}}
	require.NoError(t, m.SetMessage(ctx, "m1", msg))
	msg.Ack = wa.AckRead
	require.NoError(t, m.SetMessage(ctx, "m1", msg))

	got, err := m.Message(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, wa.AckRead, got.Ack)
	assert.Nil(t, got.Source)
	assert.NotNil(t, msg.Source, "caller's payload must not be mutated")

	missing, err := m.Message(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestContactAndRoomIDLists(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	for _, c := range []*wa.Contact{
		{ID: "1@c.us", IsUser: true},
		{ID: "2@c.us", IsUser: true},
		{ID: "9@g.us", IsGroup: true},
	} {
		require.NoError(t, m.SetContactOrRoom(ctx, c.ID, c))
	}

	contacts, err := m.ContactIDList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1@c.us", "2@c.us"}, contacts)

	rooms, err := m.RoomIDList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"9@g.us"}, rooms)

	require.NoError(t, m.DeleteContactOrRoom(ctx, "9@g.us"))
	rooms, err = m.RoomIDList(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestAddRoomMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	room := "120363039010379837@g.us"

	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddRoomMemberToList(ctx, room, "a@c.us"))
	}
	require.NoError(t, m.AddRoomMemberToList(ctx, room, "b@c.us", "a@c.us", "c@c.us"))

	ids, err := m.RoomMemberList(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@c.us", "b@c.us", "c@c.us"}, ids)
}

func TestRemoveRoomMember(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	room := "r@g.us"

	require.NoError(t, m.SetRoomMemberList(ctx, room, []string{"a@c.us", "b@c.us", "a@c.us"}))
	ids, err := m.RoomMemberList(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@c.us", "b@c.us"}, ids)

	require.NoError(t, m.RemoveRoomMemberFromList(ctx, room, "a@c.us", "absent@c.us"))
	require.NoError(t, m.RemoveRoomMemberFromList(ctx, room, "a@c.us"))
	ids, err = m.RoomMemberList(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@c.us"}, ids)

	require.NoError(t, m.DeleteRoomMemberList(ctx, room))
	ids, err = m.RoomMemberList(ctx, room)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestLatestMessageTimestampIsMonotonic(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, ok, err := m.LatestMessageTimestamp(ctx, "c@c.us")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetLatestMessageTimestamp(ctx, "c@c.us", 200))
	require.NoError(t, m.SetLatestMessageTimestamp(ctx, "c@c.us", 100))

	ts, ok, err := m.LatestMessageTimestamp(ctx, "c@c.us")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(200), ts)
}

func TestRoomInvitationRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	inv := &wa.RoomInvitation{ID: "AbCd", InviteCode: "AbCd", InviterID: "a@c.us"}
	require.NoError(t, m.SetRoomInvitation(ctx, inv.ID, inv))

	got, err := m.RoomInvitation(ctx, "AbCd")
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	require.NoError(t, m.DeleteRoomInvitation(ctx, "AbCd"))
	got, err = m.RoomInvitation(ctx, "AbCd")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInitFailureReleasesLock(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	calls := 0
	failing := func(ctx context.Context, loc store.Location) (store.Backend, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("disk full")
		}
		return store.OpenSQLite(ctx, loc)
	}

	m := NewManager(root, failing, nil)
	require.Error(t, m.Init(ctx, botID))
	assert.Empty(t, m.UserID())

	// The directory lock must be free again.
	m2 := NewManager(root, nil, nil)
	require.NoError(t, m2.Init(ctx, botID))
	_ = m2.Release()
}
