package store

import (
	"github.com/google/uuid"

	"github.com/linguaflow/linguaflow/internal/core/db"
)

// ChatSession is one conversation between a user and the tutor bot.
type ChatSession struct {
	SessionID     string
	UserID        int64
	Language      string
	StartedAt     string
	LastMessageAt string
}

// ChatMessage is one exchange within a session.
type ChatMessage struct {
	ID          int64
	SessionID   string
	Message     string
	BotResponse string
	Timestamp   string
}

// CreateChatSession starts a conversation and returns its session ID.
func (s *Store) CreateChatSession(h *db.Handle, userID int64, language string) (string, error) {
	sessionID := uuid.NewString()
	query, err := s.raw("create-chat-session")
	if err != nil {
		return "", err
	}
	if _, err := h.Execute(query, sessionID, userID, language); err != nil {
		return "", err
	}
	return sessionID, nil
}

// GetChatSession fetches one session by ID.
func (s *Store) GetChatSession(h *db.Handle, sessionID string) (*ChatSession, error) {
	query, err := s.raw("get-chat-session")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, sessionID)
	if err != nil {
		return nil, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return nil, ErrNotFound
	}
	return &ChatSession{
		SessionID:     row.String("session_id"),
		UserID:        row.Int64("user_id"),
		Language:      row.String("language"),
		StartedAt:     row.String("started_at"),
		LastMessageAt: row.String("last_message_at"),
	}, nil
}

// AddChatMessage records one user/bot exchange and bumps the session's
// last-message timestamp.
func (s *Store) AddChatMessage(h *db.Handle, sessionID, message, botResponse string) error {
	query, err := s.raw("add-chat-message")
	if err != nil {
		return err
	}
	if _, err := h.Execute(query, sessionID, message, botResponse); err != nil {
		return err
	}
	touch, err := s.raw("touch-chat-session")
	if err != nil {
		return err
	}
	_, err = h.Execute(touch, sessionID)
	return err
}

// ListChatMessages returns a session's exchanges in order.
func (s *Store) ListChatMessages(h *db.Handle, sessionID string) ([]ChatMessage, error) {
	query, err := s.raw("list-chat-messages")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, sessionID)
	if err != nil {
		return nil, err
	}
	messages := make([]ChatMessage, 0, rows.Len())
	for _, row := range rows.FetchAll() {
		messages = append(messages, ChatMessage{
			ID:          row.Int64("id"),
			SessionID:   row.String("session_id"),
			Message:     row.String("message"),
			BotResponse: row.String("bot_response"),
			Timestamp:   row.String("timestamp"),
		})
	}
	return messages, nil
}

// AddNotification queues a notification for the user.
func (s *Store) AddNotification(h *db.Handle, userID int64, message string) error {
	query, err := s.raw("add-notification")
	if err != nil {
		return err
	}
	_, err = h.Execute(query, userID, message)
	return err
}

// Notification is one user-facing notice.
type Notification struct {
	ID        int64
	Message   string
	Timestamp string
	Read      bool
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(h *db.Handle, userID int64) ([]Notification, error) {
	query, err := s.raw("list-notifications")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, userID)
	if err != nil {
		return nil, err
	}
	notifications := make([]Notification, 0, rows.Len())
	for _, row := range rows.FetchAll() {
		notifications = append(notifications, Notification{
			ID:        row.Int64("id"),
			Message:   row.String("message"),
			Timestamp: row.String("timestamp"),
			Read:      row.Bool("is_read"),
		})
	}
	return notifications, nil
}

// MarkNotificationsRead marks all of the user's notifications read.
func (s *Store) MarkNotificationsRead(h *db.Handle, userID int64) error {
	query, err := s.raw("mark-notifications-read")
	if err != nil {
		return err
	}
	_, err = h.Execute(query, userID)
	return err
}
