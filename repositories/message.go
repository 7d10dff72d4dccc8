package repositories

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"courier/domain"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	StoreMessage(senderID, receiverID, content string) (DiskMessage, error)
	GetConversation(a, b string, since *uint64) ([]DiskMessage, error)
	GetRecentForUser(userID string, upTo uint64, limit int) ([]DiskMessage, error)
	LastMessageID() (uint64, error)
}

// DiskMessage is the repository-level representation of a persisted
// private message, stored as JSON under the conversation key.
type DiskMessage struct {
	ID         uint64    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	At         time.Time `json:"at"`
}

// Key layout in BadgerDB:
//
//	dm:{convKey}:{id padded to 20 digits}    -> JSON DiskMessage
//	inbox:{userID}:{id padded to 20 digits}  -> primary key bytes
//	seq:message                              -> big-endian uint64, last assigned id
//
// The 20-digit zero padding makes lexicographic key order equal to id
// order, so conversation range scans and inbox scans come back in
// chronological order for free.
const seqKey = "seq:message"

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	// Serializes writes so ids are assigned in persistence order and
	// the seq key never hits a transaction conflict.
	mu sync.Mutex
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

func primaryKey(convKey string, id uint64) []byte {
	return []byte(fmt.Sprintf("dm:%s:%020d", convKey, id))
}

func inboxKey(userID string, id uint64) []byte {
	return []byte(fmt.Sprintf("inbox:%s:%020d", userID, id))
}

// StoreMessage durably persists a message, assigning the next id and
// the storage timestamp inside a single transaction. The id counter,
// the primary record and the per-participant inbox index entries are
// all written atomically: either the message is fully retrievable or
// it was never persisted.
func (m *MessageRepository) StoreMessage(senderID, receiverID, content string) (DiskMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored DiskMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		id, err := nextID(txn)
		if err != nil {
			return err
		}

		stored = DiskMessage{
			ID:         id,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			At:         time.Now().UTC(),
		}
		payload, err := json.Marshal(stored)
		if err != nil {
			return err
		}

		convKey := domain.ConversationKey(senderID, receiverID)
		pk := primaryKey(convKey, id)
		if err := txn.Set(pk, payload); err != nil {
			return err
		}
		if err := txn.Set(inboxKey(senderID, id), pk); err != nil {
			return err
		}
		if senderID != receiverID {
			if err := txn.Set(inboxKey(receiverID, id), pk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return stored, nil
}

// nextID reads, increments and rewrites the sequence key within the
// caller's transaction.
func nextID(txn *badger.Txn) (uint64, error) {
	var last uint64
	item, err := txn.Get([]byte(seqKey))
	switch err {
	case nil:
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence value of %d bytes", len(val))
			}
			last = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	case badger.ErrKeyNotFound:
		last = 0
	default:
		return 0, err
	}

	next := last + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return next, txn.Set([]byte(seqKey), buf)
}

// LastMessageID returns the highest id assigned so far, or zero when
// the store is empty. It is the snapshot boundary used by history
// replay to keep replayed and live-delivered messages disjoint.
func (m *MessageRepository) LastMessageID() (uint64, error) {
	var last uint64
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(seqKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			last = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return last, err
}

// GetConversation retrieves every message of the conversation between
// a and b in chronological order, using a prefix scan over the
// conversation keyspace. A non-nil since bound makes the scan start
// strictly after that message id.
func (m *MessageRepository) GetConversation(a, b string, since *uint64) ([]DiskMessage, error) {
	prefix := []byte(fmt.Sprintf("dm:%s:", domain.ConversationKey(a, b)))

	var messages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := prefix
		if since != nil {
			seek = primaryKey(domain.ConversationKey(a, b), *since+1)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			msg, err := decodeMessage(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

// GetRecentForUser returns the most recent messages involving userID
// with id <= upTo, at most limit of them, oldest first. The reverse
// inbox scan finds the newest entries, then the slice is flipped so
// callers always see chronological order.
func (m *MessageRepository) GetRecentForUser(userID string, upTo uint64, limit int) ([]DiskMessage, error) {
	if limit <= 0 || upTo == 0 {
		return nil, nil
	}

	prefix := []byte(fmt.Sprintf("inbox:%s:", userID))

	var messages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var primaryKeys [][]byte
		for it.Seek(inboxKey(userID, upTo)); it.ValidForPrefix(prefix); it.Next() {
			if len(primaryKeys) == limit {
				m.log.Debug(fmt.Sprintf("Replay limit of %d messages reached", limit))
				break
			}
			pk, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			primaryKeys = append(primaryKeys, pk)
		}

		// Newest-first from the reverse scan; resolve and flip.
		for i := len(primaryKeys) - 1; i >= 0; i-- {
			item, err := txn.Get(primaryKeys[i])
			if err != nil {
				return err
			}
			msg, err := decodeMessage(item)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

func decodeMessage(item *badger.Item) (DiskMessage, error) {
	var msg DiskMessage
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	return msg, err
}

// ToPrivateMessage converts the storage representation to the domain one.
func ToPrivateMessage(m DiskMessage) domain.PrivateMessage {
	return domain.PrivateMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.At,
	}
}
