//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"agrilink/domain/messaging"
	apperrors "agrilink/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Store(message messaging.Message) (messaging.Message, error)
	GetByID(id uuid.UUID) (messaging.Message, error)
	GetConversationPage(viewerID, peerID string, offset, limit int) ([]messaging.Message, int, error)
	MarkConversationRead(viewerID, peerID string, at time.Time) (int, error)
	SoftDelete(id uuid.UUID, at time.Time) (messaging.Message, error)
	CountUnread(viewerID string) (int, error)
	ListByParticipant(userID string) ([]messaging.Message, error)
	Close() error
}

// MessageRepository persists messages in BadgerDB.
//
// Keyspace:
//   - "msg:{id}" holds the authoritative record and is never removed,
//     so soft-deleted messages stay fetchable by id.
//   - "conv:{conversationID}:{ts}:{seq}" orders a two-party thread.
//   - "inbox:{userID}:{ts}:{seq}" orders everything a user took part in,
//     one entry per participant.
//   - "unread:{receiverID}:{id}" tracks pending reads, value = sender id.
//
// Index entries are removed on soft delete, which keeps every view query a
// plain prefix scan with no deleted-flag filtering. Timestamps use 19-digit
// zero padding so lexicographic order is chronological; the sequence number
// breaks ties between messages created at the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 128)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unused part of the sequence lease.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

func msgKey(id uuid.UUID) []byte {
	return []byte("msg:" + id.String())
}

func convPrefix(a, b string) string {
	return fmt.Sprintf("conv:%s:", messaging.ConversationID(a, b))
}

func convKey(msg messaging.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d",
		convPrefix(msg.SenderID, msg.ReceiverID), msg.CreatedAt.UnixNano(), msg.Seq))
}

func inboxKey(userID string, msg messaging.Message) []byte {
	return []byte(fmt.Sprintf("inbox:%s:%019d:%019d", userID, msg.CreatedAt.UnixNano(), msg.Seq))
}

func unreadKey(receiverID string, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("unread:%s:%s", receiverID, id))
}

// Store persists a new message and its index entries in one transaction.
// The insertion sequence is assigned here; everything else on the record is
// taken as-is from the caller.
func (m *MessageRepository) Store(message messaging.Message) (messaging.Message, error) {
	seq, err := m.seq.Next()
	if err != nil {
		return messaging.Message{}, fmt.Errorf("next sequence: %w", err)
	}
	message.Seq = seq

	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return messaging.Message{}, err
	}

	idBytes := []byte(message.ID.String())
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(message.ID), data); err != nil {
			return err
		}
		if err := txn.Set(convKey(message), idBytes); err != nil {
			return err
		}
		if err := txn.Set(inboxKey(message.SenderID, message), idBytes); err != nil {
			return err
		}
		if err := txn.Set(inboxKey(message.ReceiverID, message), idBytes); err != nil {
			return err
		}
		if !message.IsRead {
			return txn.Set(unreadKey(message.ReceiverID, message.ID), []byte(message.SenderID))
		}
		return nil
	})
	if err != nil {
		return messaging.Message{}, err
	}
	return message, nil
}

// GetByID returns the record whether or not it has been soft-deleted.
func (m *MessageRepository) GetByID(id uuid.UUID) (messaging.Message, error) {
	var message messaging.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = readMessage(txn, id.String())
		return err
	})
	return message, err
}

// GetConversationPage returns one window of the thread between two users,
// newest first, plus the total number of live messages in the thread.
// Offset and limit are applied on the descending order, which is how page
// boundaries are defined for this API.
func (m *MessageRepository) GetConversationPage(viewerID, peerID string, offset, limit int) ([]messaging.Message, int, error) {
	var messages []messaging.Message
	total := 0

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := convPrefix(viewerID, peerID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards.
		seekKey := append([]byte(prefixStr), []byte("9999999999999999999")...)
		var ids []string
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if total >= offset && len(ids) < limit {
				if err := it.Item().Value(func(value []byte) error {
					ids = append(ids, string(value))
					return nil
				}); err != nil {
					return err
				}
			}
			total++
		}

		for _, id := range ids {
			message, err := readMessage(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// MarkConversationRead transitions every unread message from peer to viewer
// in a single transaction, so two concurrent calls can never double-count.
// The returned count is exactly the number of rows transitioned; a call with
// nothing left unread returns zero and is not an error.
func (m *MessageRepository) MarkConversationRead(viewerID, peerID string, at time.Time) (int, error) {
	prefix := []byte(fmt.Sprintf("unread:%s:", viewerID))

	for {
		count := 0
		err := m.db.Update(func(txn *badger.Txn) error {
			count = 0
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			type pending struct {
				key []byte
				id  string
			}
			var matches []pending
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var sender string
				if err := item.Value(func(value []byte) error {
					sender = string(value)
					return nil
				}); err != nil {
					return err
				}
				if sender != peerID {
					continue
				}
				key := item.KeyCopy(nil)
				matches = append(matches, pending{key: key, id: string(key[len(prefix):])})
			}

			for _, p := range matches {
				message, err := readMessage(txn, p.id)
				if err != nil {
					return err
				}
				if message.IsRead {
					// Stale index entry; reclaim it without touching ReadAt.
					if err := txn.Delete(p.key); err != nil {
						return err
					}
					continue
				}
				message.IsRead = true
				readAt := at
				message.ReadAt = &readAt
				if err := writeMessage(txn, message); err != nil {
					return err
				}
				if err := txn.Delete(p.key); err != nil {
					return err
				}
				count++
			}
			return nil
		})
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			return 0, err
		}
		return count, nil
	}
}

// SoftDelete marks the record deleted and removes its index entries.
// The deletion timestamp is write-once: deleting an already-deleted message
// is a no-op returning the record unchanged.
func (m *MessageRepository) SoftDelete(id uuid.UUID, at time.Time) (messaging.Message, error) {
	for {
		var message messaging.Message
		err := m.db.Update(func(txn *badger.Txn) error {
			var err error
			message, err = readMessage(txn, id.String())
			if err != nil {
				return err
			}
			if message.IsDeleted {
				return nil
			}
			message.IsDeleted = true
			deletedAt := at
			message.DeletedAt = &deletedAt
			if err := writeMessage(txn, message); err != nil {
				return err
			}
			for _, key := range [][]byte{
				convKey(message),
				inboxKey(message.SenderID, message),
				inboxKey(message.ReceiverID, message),
			} {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			if !message.IsRead {
				return txn.Delete(unreadKey(message.ReceiverID, message.ID))
			}
			return nil
		})
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			return messaging.Message{}, err
		}
		return message, nil
	}
}

// CountUnread counts live unread messages addressed to the viewer.
// Soft deletes drop the unread entry, so the badge reflects them immediately.
func (m *MessageRepository) CountUnread(viewerID string) (int, error) {
	prefix := []byte(fmt.Sprintf("unread:%s:", viewerID))
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListByParticipant returns every live message the user sent or received,
// newest first. This feeds the conversation aggregation, which relies on the
// descending (timestamp, sequence) order for its last-message selection.
func (m *MessageRepository) ListByParticipant(userID string) ([]messaging.Message, error) {
	var messages []messaging.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("inbox:%s:", userID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append([]byte(prefixStr), []byte("9999999999999999999")...)
		var ids []string
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(value []byte) error {
				ids = append(ids, string(value))
				return nil
			}); err != nil {
				return err
			}
		}

		for _, id := range ids {
			message, err := readMessage(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func readMessage(txn *badger.Txn, id string) (messaging.Message, error) {
	item, err := txn.Get([]byte("msg:" + id))
	if err == badger.ErrKeyNotFound {
		return messaging.Message{}, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return messaging.Message{}, err
	}
	var stored storedMessage
	if err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &stored)
	}); err != nil {
		return messaging.Message{}, err
	}
	return toMessage(stored)
}

func writeMessage(txn *badger.Txn, message messaging.Message) error {
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return txn.Set(msgKey(message.ID), data)
}

// storedMessage is the on-disk representation. Timestamps are stored as
// UnixNano so records round-trip without monotonic-clock or zone drift.
type storedMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender"`
	ReceiverID string `json:"receiver"`
	Content    string `json:"content"`
	Type       string `json:"messageType"`
	Lang       string `json:"lang,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
	IsRead     bool   `json:"isRead"`
	ReadAt     *int64 `json:"readAt,omitempty"`
	IsDeleted  bool   `json:"isDeleted"`
	DeletedAt  *int64 `json:"deletedAt,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	Seq        uint64 `json:"seq"`
}

func fromMessage(message messaging.Message) storedMessage {
	stored := storedMessage{
		ID:         message.ID.String(),
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Content:    message.Content,
		Type:       string(message.Type),
		Lang:       message.Lang,
		FileURL:    message.FileURL,
		FileName:   message.FileName,
		FileSize:   message.FileSize,
		IsRead:     message.IsRead,
		IsDeleted:  message.IsDeleted,
		CreatedAt:  message.CreatedAt.UnixNano(),
		Seq:        message.Seq,
	}
	if message.ReadAt != nil {
		nanos := message.ReadAt.UnixNano()
		stored.ReadAt = &nanos
	}
	if message.DeletedAt != nil {
		nanos := message.DeletedAt.UnixNano()
		stored.DeletedAt = &nanos
	}
	return stored
}

func toMessage(stored storedMessage) (messaging.Message, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return messaging.Message{}, err
	}
	message := messaging.Message{
		ID:         parsedID,
		SenderID:   stored.SenderID,
		ReceiverID: stored.ReceiverID,
		Content:    stored.Content,
		Type:       messaging.MessageType(stored.Type),
		Lang:       stored.Lang,
		FileURL:    stored.FileURL,
		FileName:   stored.FileName,
		FileSize:   stored.FileSize,
		IsRead:     stored.IsRead,
		IsDeleted:  stored.IsDeleted,
		CreatedAt:  time.Unix(0, stored.CreatedAt).UTC(),
		Seq:        stored.Seq,
	}
	if stored.ReadAt != nil {
		readAt := time.Unix(0, *stored.ReadAt).UTC()
		message.ReadAt = &readAt
	}
	if stored.DeletedAt != nil {
		deletedAt := time.Unix(0, *stored.DeletedAt).UTC()
		message.DeletedAt = &deletedAt
	}
	return message, nil
}
