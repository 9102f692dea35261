package messaging

import "time"

type SendCommand struct {
	SenderID   string
	ReceiverID string
	Content    string
	Type       MessageType
	File       *FileMeta
	CreatedAt  time.Time
}

type GetConversationCommand struct {
	ViewerID string
	PeerID   string
	Page     int
	PageSize int
}

type MarkReadCommand struct {
	ViewerID string
	PeerID   string
}

type SearchCommand struct {
	ViewerID string
	PeerID   string
	Query    string
	Page     int
	PageSize int
}
