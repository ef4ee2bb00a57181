// Package cache owns the per-user persistent namespaces the adapter answers
// queries from: messages, contacts-or-rooms, room members, room invitations
// and the latest processed message timestamp per chat.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/lock"
	"github.com/matheus3301/wpp-puppet/internal/store"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

// Namespace names, also used as file names by the SQLite backend.
const (
	NamespaceMessage                = "message"
	NamespaceContactOrRoom          = "contact-or-room"
	NamespaceRoomMember             = "room-member"
	NamespaceRoomInvitation         = "room-invitation"
	NamespaceLatestMessageTimestamp = "latest-message-timestamp"
)

// Manager is the sole mutator of the five namespaces. It is usable only
// between Init and Release; every accessor fails with errs.ErrNoCache
// outside that window.
type Manager struct {
	root   string
	open   store.Opener
	logger *zap.Logger

	mu          sync.RWMutex
	userID      string
	dirLock     *lock.Lock
	messages    *store.Namespace[*wa.Message]
	contacts    *store.Namespace[*wa.Contact]
	members     *store.Namespace[[]string]
	invitations *store.Namespace[*wa.RoomInvitation]
	latest      *store.Namespace[int64]

	// rmwMu serializes read-modify-write updates.
	rmwMu sync.Mutex
}

// NewManager creates a manager rooted at root. A nil opener selects SQLite.
func NewManager(root string, open store.Opener, logger *zap.Logger) *Manager {
	if open == nil {
		open = store.OpenSQLite
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{root: root, open: open, logger: logger}
}

// Init opens the namespaces of userID under <root>/<userID>. Calling Init on
// an initialized manager is a no-op, whatever the user id.
func (m *Manager) Init(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.userID != "" {
		m.logger.Debug("cache already initialized",
			zap.String("user", m.userID), zap.String("requested", userID))
		return nil
	}
	if userID == "" {
		return errs.New(errs.CodeInvalidIdentifier, "empty user id")
	}

	dir := filepath.Join(m.root, userID)
	dirLock, err := lock.Acquire(dir, userID)
	if err != nil {
		return fmt.Errorf("lock cache dir: %w", err)
	}

	var opened []store.Backend
	openNS := func(name string) (store.Backend, error) {
		b, err := m.open(ctx, store.Location{UserID: userID, Dir: dir, Namespace: name})
		if err != nil {
			return nil, fmt.Errorf("open %s namespace: %w", name, err)
		}
		opened = append(opened, b)
		return b, nil
	}
	fail := func(err error) error {
		for _, b := range opened {
			_ = b.Close()
		}
		_ = dirLock.Release()
		return err
	}

	msgB, err := openNS(NamespaceMessage)
	if err != nil {
		return fail(err)
	}
	contactB, err := openNS(NamespaceContactOrRoom)
	if err != nil {
		return fail(err)
	}
	memberB, err := openNS(NamespaceRoomMember)
	if err != nil {
		return fail(err)
	}
	invitationB, err := openNS(NamespaceRoomInvitation)
	if err != nil {
		return fail(err)
	}
	latestB, err := openNS(NamespaceLatestMessageTimestamp)
	if err != nil {
		return fail(err)
	}

	m.userID = userID
	m.dirLock = dirLock
	m.messages = store.NewNamespace[*wa.Message](NamespaceMessage, msgB)
	m.contacts = store.NewNamespace[*wa.Contact](NamespaceContactOrRoom, contactB)
	m.members = store.NewNamespace[[]string](NamespaceRoomMember, memberB)
	m.invitations = store.NewNamespace[*wa.RoomInvitation](NamespaceRoomInvitation, invitationB)
	m.latest = store.NewNamespace[int64](NamespaceLatestMessageTimestamp, latestB)

	m.logger.Info("cache initialized", zap.String("user", userID), zap.String("dir", dir))
	return nil
}

// Release closes all namespaces and unlocks the user directory. No-op when
// not initialized.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.userID == "" {
		return nil
	}

	var closeErrs []error
	for _, c := range []interface{ Close() error }{m.messages, m.contacts, m.members, m.invitations, m.latest} {
		if err := c.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	if err := m.dirLock.Release(); err != nil {
		closeErrs = append(closeErrs, err)
	}

	m.logger.Info("cache released", zap.String("user", m.userID))
	m.userID = ""
	m.dirLock = nil
	m.messages, m.contacts, m.members, m.invitations, m.latest = nil, nil, nil, nil, nil
	return errors.Join(closeErrs...)
}

// UserID returns the user the cache is initialized for, or "".
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

func noCache(namespace string) error {
	return &errs.Error{Code: errs.CodeInit, Message: "no cache", Detail: namespace}
}

// Message returns the cached message or nil.
func (m *Manager) Message(ctx context.Context, id string) (*wa.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.messages == nil {
		return nil, noCache(NamespaceMessage)
	}
	msg, _, err := m.messages.Get(ctx, id)
	return msg, err
}

// SetMessage stores a serializable snapshot of msg under id.
func (m *Manager) SetMessage(ctx context.Context, id string, msg *wa.Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.messages == nil {
		return noCache(NamespaceMessage)
	}
	return m.messages.Set(ctx, id, msg.Snapshot())
}

func (m *Manager) DeleteMessage(ctx context.Context, id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.messages == nil {
		return noCache(NamespaceMessage)
	}
	return m.messages.Delete(ctx, id)
}

// ContactOrRoom returns the cached contact or room payload, or nil.
func (m *Manager) ContactOrRoom(ctx context.Context, id string) (*wa.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.contacts == nil {
		return nil, noCache(NamespaceContactOrRoom)
	}
	c, _, err := m.contacts.Get(ctx, id)
	return c, err
}

func (m *Manager) SetContactOrRoom(ctx context.Context, id string, c *wa.Contact) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.contacts == nil {
		return noCache(NamespaceContactOrRoom)
	}
	return m.contacts.Set(ctx, id, c)
}

func (m *Manager) DeleteContactOrRoom(ctx context.Context, id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.contacts == nil {
		return noCache(NamespaceContactOrRoom)
	}
	return m.contacts.Delete(ctx, id)
}

// ContactIDList scans the contact-or-room namespace for individual ids.
// The list is rebuilt on every call.
func (m *Manager) ContactIDList(ctx context.Context) ([]string, error) {
	return m.filterIDs(ctx, wa.IsContactID)
}

// RoomIDList scans the contact-or-room namespace for room ids.
func (m *Manager) RoomIDList(ctx context.Context) ([]string, error) {
	return m.filterIDs(ctx, wa.IsRoomID)
}

func (m *Manager) filterIDs(ctx context.Context, keep func(string) bool) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.contacts == nil {
		return nil, noCache(NamespaceContactOrRoom)
	}
	keys, err := m.contacts.Keys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if keep(k) {
			ids = append(ids, k)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RoomMemberList returns the cached member ids of roomID, or nil.
func (m *Manager) RoomMemberList(ctx context.Context, roomID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.members == nil {
		return nil, noCache(NamespaceRoomMember)
	}
	ids, _, err := m.members.Get(ctx, roomID)
	return ids, err
}

// SetRoomMemberList replaces the member list of roomID, dropping duplicates.
func (m *Manager) SetRoomMemberList(ctx context.Context, roomID string, ids []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.members == nil {
		return noCache(NamespaceRoomMember)
	}
	m.rmwMu.Lock()
	defer m.rmwMu.Unlock()
	return m.members.Set(ctx, roomID, union(nil, ids))
}

func (m *Manager) DeleteRoomMemberList(ctx context.Context, roomID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.members == nil {
		return noCache(NamespaceRoomMember)
	}
	m.rmwMu.Lock()
	defer m.rmwMu.Unlock()
	return m.members.Delete(ctx, roomID)
}

// AddRoomMemberToList adds ids to the member list of roomID. Ids already
// present are skipped.
func (m *Manager) AddRoomMemberToList(ctx context.Context, roomID string, ids ...string) error {
	return m.updateMembers(ctx, roomID, func(cur []string) []string {
		return union(cur, ids)
	})
}

// RemoveRoomMemberFromList removes ids from the member list of roomID. Ids
// not present are ignored.
func (m *Manager) RemoveRoomMemberFromList(ctx context.Context, roomID string, ids ...string) error {
	return m.updateMembers(ctx, roomID, func(cur []string) []string {
		drop := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			drop[id] = struct{}{}
		}
		out := cur[:0:0]
		for _, id := range cur {
			if _, ok := drop[id]; !ok {
				out = append(out, id)
			}
		}
		return out
	})
}

func (m *Manager) updateMembers(ctx context.Context, roomID string, fn func([]string) []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.members == nil {
		return noCache(NamespaceRoomMember)
	}
	m.rmwMu.Lock()
	defer m.rmwMu.Unlock()

	cur, _, err := m.members.Get(ctx, roomID)
	if err != nil {
		return err
	}
	return m.members.Set(ctx, roomID, fn(cur))
}

func union(cur, add []string) []string {
	seen := make(map[string]struct{}, len(cur)+len(add))
	out := make([]string, 0, len(cur)+len(add))
	for _, list := range [][]string{cur, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// RoomInvitation returns the cached invitation or nil.
func (m *Manager) RoomInvitation(ctx context.Context, id string) (*wa.RoomInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.invitations == nil {
		return nil, noCache(NamespaceRoomInvitation)
	}
	inv, _, err := m.invitations.Get(ctx, id)
	return inv, err
}

func (m *Manager) SetRoomInvitation(ctx context.Context, id string, inv *wa.RoomInvitation) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.invitations == nil {
		return noCache(NamespaceRoomInvitation)
	}
	return m.invitations.Set(ctx, id, inv)
}

func (m *Manager) DeleteRoomInvitation(ctx context.Context, id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.invitations == nil {
		return noCache(NamespaceRoomInvitation)
	}
	return m.invitations.Delete(ctx, id)
}

// LatestMessageTimestamp returns the checkpoint of chatID. ok is false when
// the chat has never been backfilled.
func (m *Manager) LatestMessageTimestamp(ctx context.Context, chatID string) (ts int64, ok bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return 0, false, noCache(NamespaceLatestMessageTimestamp)
	}
	return m.latest.Get(ctx, chatID)
}

// SetLatestMessageTimestamp raises the checkpoint of chatID to ts. A lower
// or equal ts leaves the stored value untouched.
func (m *Manager) SetLatestMessageTimestamp(ctx context.Context, chatID string, ts int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return noCache(NamespaceLatestMessageTimestamp)
	}
	m.rmwMu.Lock()
	defer m.rmwMu.Unlock()

	cur, ok, err := m.latest.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if ok && cur >= ts {
		return nil
	}
	return m.latest.Set(ctx, chatID, ts)
}
