package wa

import (
	"slices"
	"sync"
)

// history keeps the most recent messages of each chat seen on the wire, so
// missed messages can be replayed after a reconnect.
type history struct {
	mu    sync.Mutex
	limit int
	chats map[string][]*Message
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = 200
	}
	return &history{limit: limit, chats: make(map[string][]*Message)}
}

// add records msgs, ignoring ids already present. Each chat stays ordered
// by timestamp and keeps at most limit messages.
func (h *history) add(msgs ...*Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		chat := m.ID.Remote()
		buf := h.chats[chat]
		if slices.ContainsFunc(buf, func(o *Message) bool { return o.ID.ID == m.ID.ID }) {
			continue
		}
		i, _ := slices.BinarySearchFunc(buf, m.Timestamp, func(o *Message, ts int64) int {
			switch {
			case o.Timestamp < ts:
				return -1
			case o.Timestamp > ts:
				return 1
			}
			return 0
		})
		// Equal timestamps keep arrival order.
		for i < len(buf) && buf[i].Timestamp == m.Timestamp {
			i++
		}
		buf = slices.Insert(buf, i, m.Snapshot())
		if len(buf) > h.limit {
			buf = slices.Delete(buf, 0, len(buf)-h.limit)
		}
		h.chats[chat] = buf
	}
}

// since returns copies of the messages of chat newer than ts.
func (h *history) since(chat string, ts int64) []*Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*Message
	for _, m := range h.chats[chat] {
		if m.Timestamp > ts {
			out = append(out, m.Snapshot())
		}
	}
	return out
}

func (h *history) find(chat, id string) *Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.chats[chat] {
		if m.ID.ID == id {
			return m.Snapshot()
		}
	}
	return nil
}

func (h *history) reset() {
	h.mu.Lock()
	h.chats = make(map[string][]*Message)
	h.mu.Unlock()
}
