package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linguaflow/linguaflow/internal/core/db"
)

// QuizQuestion is one question in the quiz bank. Options are stored as a
// JSON array in a text column, as both backends lack a shared native list
// type.
type QuizQuestion struct {
	ID           int64
	Language     string
	Difficulty   string
	Question     string
	Options      []string
	Answer       string
	QuestionType string
	Points       int64
}

// QuizResult is one completed quiz attempt.
type QuizResult struct {
	UserID          int64
	Language        string
	Difficulty      string
	Score           int64
	Total           int64
	Percentage      float64
	Passed          bool
	QuestionDetails string
	PointsEarned    int64
	StreakBonus     int64
	TimeBonus       int64
}

// AddQuizQuestion inserts a question and returns its ID.
func (s *Store) AddQuizQuestion(h *db.Handle, q QuizQuestion) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("encode options: %w", err)
	}
	if q.QuestionType == "" {
		q.QuestionType = "multiple_choice"
	}
	if q.Points == 0 {
		q.Points = 10
	}

	query, err := s.raw("add-quiz-question")
	if err != nil {
		return 0, err
	}
	rows, err := h.Execute(query, q.Language, q.Difficulty, q.Question, string(options), q.Answer, q.QuestionType, q.Points)
	if err != nil {
		return 0, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return 0, errors.New("add-quiz-question returned no id")
	}
	return row.Int64("id"), nil
}

// ListQuizQuestions returns the question bank for one language and
// difficulty.
func (s *Store) ListQuizQuestions(h *db.Handle, language, difficulty string) ([]QuizQuestion, error) {
	query, err := s.raw("list-quiz-questions")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, language, difficulty)
	if err != nil {
		return nil, err
	}

	questions := make([]QuizQuestion, 0, rows.Len())
	for _, row := range rows.FetchAll() {
		q := QuizQuestion{
			ID:           row.Int64("id"),
			Language:     row.String("language"),
			Difficulty:   row.String("difficulty"),
			Question:     row.String("question"),
			Answer:       row.String("answer"),
			QuestionType: row.String("question_type"),
			Points:       row.Int64("points"),
		}
		if err := json.Unmarshal([]byte(row.String("options")), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// DeleteQuizQuestion removes a question from the bank.
func (s *Store) DeleteQuizQuestion(h *db.Handle, id int64) (bool, error) {
	query, err := s.raw("delete-quiz-question")
	if err != nil {
		return false, err
	}
	rows, err := h.Execute(query, id)
	if err != nil {
		return false, err
	}
	return rows.RowsAffected() > 0, nil
}

// RecordQuizResult stores a completed attempt.
func (s *Store) RecordQuizResult(h *db.Handle, r QuizResult) error {
	query, err := s.raw("record-quiz-result")
	if err != nil {
		return err
	}
	_, err = h.Execute(query, r.UserID, r.Language, r.Difficulty, r.Score, r.Total, r.Percentage,
		boolToInt(r.Passed), r.QuestionDetails, r.PointsEarned, r.StreakBonus, r.TimeBonus)
	return err
}

// ListQuizResults returns the user's attempts, newest first.
func (s *Store) ListQuizResults(h *db.Handle, userID int64) ([]QuizResult, error) {
	query, err := s.raw("list-quiz-results")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, userID)
	if err != nil {
		return nil, err
	}
	results := make([]QuizResult, 0, rows.Len())
	for _, row := range rows.FetchAll() {
		results = append(results, QuizResult{
			UserID:     userID,
			Language:   row.String("language"),
			Difficulty: row.String("difficulty"),
			Score:      row.Int64("score"),
			Total:      row.Int64("total"),
			Percentage: row.Float64("percentage"),
			Passed:     row.Bool("passed"),
		})
	}
	return results, nil
}
