package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/privacy"
)

var (
	ErrNotFound            = errors.New("chat not found")
	ErrForbidden           = errors.New("not a participant of this chat")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSelfChat            = errors.New("cannot start a chat with yourself")
	ErrEmptyMessage        = errors.New("message content is required")
)

// MessageType is the kind of chat content
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeFile  MessageType = "file"
	TypeImage MessageType = "image"
)

// LastMessage is the denormalised preview shown in chat lists
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a two-party conversation
type Chat struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	IsActive     bool         `json:"isActive"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the chat
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID
func (c *Chat) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ReadReceipt records when a participant first read a message
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is one persisted chat message
type Message struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chatId"`
	SenderID  string        `json:"senderId"`
	Content   string        `json:"content"`
	Type      MessageType   `json:"type"`
	FileURL   *string       `json:"fileUrl,omitempty"`
	ReadBy    []ReadReceipt `json:"readBy"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ReadByUser reports whether userID has a read receipt on m
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Store persists chats and messages
type Store interface {
	// GetOrCreateChat is atomic: concurrent calls for the same pair return one chat
	GetOrCreateChat(ctx context.Context, userA, userB string) (*Chat, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	ListChats(ctx context.Context, userID string) ([]Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	MarkRead(ctx context.Context, chatID, userID string) error
	// AddMessage inserts the message and updates the chat's last message
	AddMessage(ctx context.Context, chatID, senderID, content string, typ MessageType) (*Message, error)
}

// Notifier pushes a persisted message to a receiver with a live connection.
// It reports whether the receiver was online.
type Notifier interface {
	NotifyMessage(receiverID, senderID, content string, at time.Time) bool
}

// Service implements the persisted chat operations
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a chat service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Start returns the chat between userID and receiverID, creating it if needed
func (s *Service) Start(ctx context.Context, userID, receiverID string) (*Chat, error) {
	if receiverID == "" || receiverID == userID {
		return nil, ErrSelfChat
	}
	chat, err := s.store.GetOrCreateChat(ctx, userID, receiverID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// List returns the user's active chats, most recent message first
func (s *Service) List(ctx context.Context, userID string) ([]Chat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// Messages returns the chat history and marks the other party's messages read
func (s *Service) Messages(ctx context.Context, chatID, userID string) ([]Message, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrForbidden
	}

	if err := s.store.MarkRead(ctx, chatID, userID); err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	messages, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Send persists a message and then pushes it live to the other participant
func (s *Service) Send(ctx context.Context, chatID, senderID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(senderID) {
		return nil, ErrForbidden
	}

	msg, err := s.store.AddMessage(ctx, chatID, senderID, content, TypeText)
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	if s.notifier != nil {
		receiverID := chat.Other(senderID)
		online := s.notifier.NotifyMessage(receiverID, senderID, msg.Content, msg.CreatedAt)
		s.logger.Debug("chat message stored",
			zap.String("chat_id", chatID),
			zap.String("receiver_id", receiverID),
			zap.Bool("delivered_live", online),
			zap.Bool("contains_pii", privacy.ContainsPII(msg.Content)),
		)
	}

	return msg, nil
}
