package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MaxContentLength is the upper bound applied to message content after trimming.
const MaxContentLength = 1000

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeFile     MessageType = "file"
	TypeLocation MessageType = "location"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeLocation:
		return true
	default:
		return false
	}
}

// FileMeta carries attachment metadata produced by the external storage layer.
// The values are opaque here: no upload or content validation happens in this subsystem.
type FileMeta struct {
	URL  string
	Name string
	Size int64
}

// Message is the single persisted entity of the subsystem.
// Sender, receiver and creation time are immutable after creation.
// Read and delete flags only ever transition false to true, and their
// timestamps are set exactly once at transition time.
type Message struct {
	ID         uuid.UUID
	SenderID   string
	ReceiverID string
	Content    string
	Type       MessageType
	Lang       string
	FileURL    string
	FileName   string
	FileSize   int64
	IsRead     bool
	ReadAt     *time.Time
	IsDeleted  bool
	DeletedAt  *time.Time
	CreatedAt  time.Time

	// Seq is the insertion order assigned by the store.
	// It disambiguates messages sharing an identical CreatedAt.
	Seq uint64
}

// Peer returns the other participant from the viewer's perspective.
func (m Message) Peer(viewerID string) string {
	if m.SenderID == viewerID {
		return m.ReceiverID
	}
	return m.SenderID
}
