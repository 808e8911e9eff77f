package store

import (
	"github.com/linguaflow/linguaflow/internal/core/db"
)

// StudyWord is one flashcard entry in a user's study list.
type StudyWord struct {
	ID       int64
	Word     string
	Language string
	Note     string
	AddedAt  string
}

// AddStudyWord adds a word to the user's study list. Re-adding the same word
// is not an error; the second insert affects zero rows and added is false.
func (s *Store) AddStudyWord(h *db.Handle, userID int64, word, language, note string) (added bool, err error) {
	query, err := s.raw("add-study-word")
	if err != nil {
		return false, err
	}
	var noteArg any
	if note != "" {
		noteArg = note
	}
	rows, err := h.Execute(query, userID, word, language, noteArg)
	if err != nil {
		return false, err
	}
	return rows.RowsAffected() > 0, nil
}

// ListStudyWords returns the user's study list, newest first.
func (s *Store) ListStudyWords(h *db.Handle, userID int64) ([]StudyWord, error) {
	query, err := s.raw("list-study-words")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, userID)
	if err != nil {
		return nil, err
	}
	words := make([]StudyWord, 0, rows.Len())
	for _, row := range rows.FetchAll() {
		words = append(words, StudyWord{
			ID:       row.Int64("id"),
			Word:     row.String("word"),
			Language: row.String("language"),
			Note:     row.String("note"),
			AddedAt:  row.String("added_at"),
		})
	}
	return words, nil
}

// RemoveStudyWord deletes a word from the user's study list.
func (s *Store) RemoveStudyWord(h *db.Handle, userID int64, word string) (removed bool, err error) {
	query, err := s.raw("remove-study-word")
	if err != nil {
		return false, err
	}
	rows, err := h.Execute(query, userID, word)
	if err != nil {
		return false, err
	}
	return rows.RowsAffected() > 0, nil
}

// GrantAchievement awards an achievement once; repeat grants are no-ops.
func (s *Store) GrantAchievement(h *db.Handle, userID int64, achievementType string) (granted bool, err error) {
	query, err := s.raw("grant-achievement")
	if err != nil {
		return false, err
	}
	rows, err := h.Execute(query, userID, achievementType)
	if err != nil {
		return false, err
	}
	return rows.RowsAffected() > 0, nil
}

// ListAchievements returns the user's achievements in grant order.
func (s *Store) ListAchievements(h *db.Handle, userID int64) ([]string, error) {
	query, err := s.raw("list-achievements")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, userID)
	if err != nil {
		return nil, err
	}
	achievements := make([]string, 0, rows.Len())
	for _, row := range rows.FetchAll() {
		achievements = append(achievements, row.String("achievement_type"))
	}
	return achievements, nil
}
