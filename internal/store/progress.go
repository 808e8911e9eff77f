package store

import (
	"github.com/linguaflow/linguaflow/internal/core/db"
)

// Progress is per-user learning progress, one row per user.
type Progress struct {
	UserID            int64
	WordsLearned      int64
	ConversationCount int64
	AccuracyRate      float64
	DailyStreak       int64
	LastActivityDate  string
}

// UpsertProgress writes the user's progress snapshot, replacing any previous
// row for that user on both backends.
func (s *Store) UpsertProgress(h *db.Handle, p Progress) error {
	query, err := s.raw("upsert-progress")
	if err != nil {
		return err
	}
	_, err = h.Execute(query, p.UserID, p.WordsLearned, p.ConversationCount, p.AccuracyRate, p.DailyStreak)
	return err
}

// GetProgress returns the user's progress, or ErrNotFound when the user has
// no recorded progress yet.
func (s *Store) GetProgress(h *db.Handle, userID int64) (*Progress, error) {
	query, err := s.raw("get-progress")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, userID)
	if err != nil {
		return nil, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return nil, ErrNotFound
	}
	return &Progress{
		UserID:            row.Int64("user_id"),
		WordsLearned:      row.Int64("words_learned"),
		ConversationCount: row.Int64("conversation_count"),
		AccuracyRate:      row.Float64("accuracy_rate"),
		DailyStreak:       row.Int64("daily_streak"),
		LastActivityDate:  row.String("last_activity_date"),
	}, nil
}
