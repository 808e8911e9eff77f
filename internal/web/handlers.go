package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/linguaflow/linguaflow/internal/core/db"
	"github.com/linguaflow/linguaflow/internal/store"
	"github.com/linguaflow/linguaflow/internal/types"
)

// withHandle runs fn inside a per-request database handle, translating
// failures into HTTP responses. fn is responsible for writing the success
// response; withHandle commits only when fn returns nil.
func (s *Server) withHandle(c *gin.Context, fn func(h *db.Handle) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	err := s.factory.WithHandle(ctx, fn)
	if err == nil {
		return
	}
	if c.Writer.Written() {
		// fn wrote the success body before the commit failed; too late to
		// change the response, so only log.
		s.log.Error("commit failed after response", "path", c.Request.URL.Path, "error", err)
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, types.ErrConnection):
		s.log.Error("database unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
	default:
		s.log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	status := "healthy"
	checks := map[string]string{"database": "ok"}
	err := s.factory.WithHandle(ctx, func(h *db.Handle) error {
		_, err := h.Execute("SELECT 1")
		return err
	})
	if err != nil {
		status = "unhealthy"
		checks["database"] = "error: " + err.Error()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"backend": s.factory.Backend().String(),
		"checks":  checks,
	})
}

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	Email          string `json:"email" binding:"required"`
	Password       string `json:"password" binding:"required"`
	SecurityAnswer string `json:"security_answer" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		id, err := s.store.RegisterUser(h, req.Username, req.Email, req.Password, req.SecurityAnswer, false)
		if err != nil {
			return err
		}
		if err := s.store.RecordActivity(h, id, "register", ""); err != nil {
			return err
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "username": req.Username})
		return nil
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		user, err := s.store.Authenticate(h, req.Username, req.Password)
		if err != nil {
			return err
		}
		if err := s.store.RecordActivity(h, user.ID, "login", ""); err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"is_admin": user.IsAdmin,
		})
		return nil
	})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

func (s *Server) handleCreatePasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		token, err := s.store.CreatePasswordReset(h, req.Email)
		if errors.Is(err, store.ErrNotFound) {
			// Do not reveal whether the email has an account.
			c.JSON(http.StatusAccepted, gin.H{"accepted": true})
			return nil
		}
		if err != nil {
			return err
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true, "token": token})
		return nil
	})
}

type confirmPasswordResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) handleConfirmPasswordReset(c *gin.Context) {
	var req confirmPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		if err := s.store.ResetPassword(h, req.Token, req.NewPassword); err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{"reset": true})
		return nil
	})
}

type addStudyWordRequest struct {
	Word     string `json:"word" binding:"required"`
	Language string `json:"language"`
	Note     string `json:"note"`
}

func (s *Server) handleAddStudyWord(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req addStudyWordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Language == "" {
		req.Language = "english"
	}

	s.withHandle(c, func(h *db.Handle) error {
		added, err := s.store.AddStudyWord(h, userID, req.Word, req.Language, req.Note)
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{"word": req.Word, "added": added})
		return nil
	})
}

func (s *Server) handleListStudyWords(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		words, err := s.store.ListStudyWords(h, userID)
		if err != nil {
			return err
		}
		out := make([]gin.H, 0, len(words))
		for _, w := range words {
			out = append(out, gin.H{
				"id":       w.ID,
				"word":     w.Word,
				"language": w.Language,
				"note":     w.Note,
				"added_at": w.AddedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"words": out})
		return nil
	})
}

func (s *Server) handleRemoveStudyWord(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	word := c.Param("word")

	s.withHandle(c, func(h *db.Handle) error {
		removed, err := s.store.RemoveStudyWord(h, userID, word)
		if err != nil {
			return err
		}
		if !removed {
			return store.ErrNotFound
		}
		c.JSON(http.StatusOK, gin.H{"word": word, "removed": true})
		return nil
	})
}

func (s *Server) handleGetProgress(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		p, err := s.store.GetProgress(h, userID)
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":            p.UserID,
			"words_learned":      p.WordsLearned,
			"conversation_count": p.ConversationCount,
			"accuracy_rate":      p.AccuracyRate,
			"daily_streak":       p.DailyStreak,
			"last_activity_date": p.LastActivityDate,
		})
		return nil
	})
}

type putProgressRequest struct {
	WordsLearned      int64   `json:"words_learned"`
	ConversationCount int64   `json:"conversation_count"`
	AccuracyRate      float64 `json:"accuracy_rate"`
	DailyStreak       int64   `json:"daily_streak"`
}

func (s *Server) handlePutProgress(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req putProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		err := s.store.UpsertProgress(h, store.Progress{
			UserID:            userID,
			WordsLearned:      req.WordsLearned,
			ConversationCount: req.ConversationCount,
			AccuracyRate:      req.AccuracyRate,
			DailyStreak:       req.DailyStreak,
		})
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "saved": true})
		return nil
	})
}

func (s *Server) handleListQuizQuestions(c *gin.Context) {
	language := c.DefaultQuery("language", "english")
	difficulty := c.DefaultQuery("difficulty", "beginner")

	s.withHandle(c, func(h *db.Handle) error {
		questions, err := s.store.ListQuizQuestions(h, language, difficulty)
		if err != nil {
			return err
		}
		out := make([]gin.H, 0, len(questions))
		for _, q := range questions {
			out = append(out, gin.H{
				"id":         q.ID,
				"question":   q.Question,
				"options":    q.Options,
				"answer":     q.Answer,
				"type":       q.QuestionType,
				"points":     q.Points,
				"language":   q.Language,
				"difficulty": q.Difficulty,
			})
		}
		c.JSON(http.StatusOK, gin.H{"questions": out})
		return nil
	})
}

type quizResultRequest struct {
	Language        string  `json:"language"`
	Difficulty      string  `json:"difficulty"`
	Score           int64   `json:"score"`
	Total           int64   `json:"total" binding:"required"`
	QuestionDetails string  `json:"question_details"`
	PointsEarned    int64   `json:"points_earned"`
	StreakBonus     int64   `json:"streak_bonus"`
	TimeBonus       int64   `json:"time_bonus"`
	Percentage      float64 `json:"percentage"`
	Passed          bool    `json:"passed"`
}

func (s *Server) handleRecordQuizResult(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req quizResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Percentage == 0 && req.Total > 0 {
		req.Percentage = float64(req.Score) / float64(req.Total) * 100
		req.Passed = req.Percentage >= 60
	}

	s.withHandle(c, func(h *db.Handle) error {
		err := s.store.RecordQuizResult(h, store.QuizResult{
			UserID:          userID,
			Language:        req.Language,
			Difficulty:      req.Difficulty,
			Score:           req.Score,
			Total:           req.Total,
			Percentage:      req.Percentage,
			Passed:          req.Passed,
			QuestionDetails: req.QuestionDetails,
			PointsEarned:    req.PointsEarned,
			StreakBonus:     req.StreakBonus,
			TimeBonus:       req.TimeBonus,
		})
		if err != nil {
			return err
		}
		c.JSON(http.StatusCreated, gin.H{"user_id": userID, "recorded": true})
		return nil
	})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		notes, err := s.store.ListNotifications(h, userID)
		if err != nil {
			return err
		}
		out := make([]gin.H, 0, len(notes))
		for _, n := range notes {
			out = append(out, gin.H{
				"id":        n.ID,
				"message":   n.Message,
				"timestamp": n.Timestamp,
				"read":      n.Read,
			})
		}
		c.JSON(http.StatusOK, gin.H{"notifications": out})
		return nil
	})
}

func (s *Server) handleMarkNotificationsRead(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		if err := s.store.MarkNotificationsRead(h, userID); err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "read": true})
		return nil
	})
}

type createChatSessionRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleCreateChatSession(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req createChatSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Language == "" {
		req.Language = "english"
	}

	s.withHandle(c, func(h *db.Handle) error {
		sessionID, err := s.store.CreateChatSession(h, userID, req.Language)
		if err != nil {
			return err
		}
		c.JSON(http.StatusCreated, gin.H{"session_id": sessionID, "language": req.Language})
		return nil
	})
}

type addChatMessageRequest struct {
	Message     string `json:"message" binding:"required"`
	BotResponse string `json:"bot_response"`
}

func (s *Server) handleAddChatMessage(c *gin.Context) {
	sessionID := c.Param("sid")
	var req addChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withHandle(c, func(h *db.Handle) error {
		if _, err := s.store.GetChatSession(h, sessionID); err != nil {
			return err
		}
		if err := s.store.AddChatMessage(h, sessionID, req.Message, req.BotResponse); err != nil {
			return err
		}
		c.JSON(http.StatusCreated, gin.H{"session_id": sessionID, "stored": true})
		return nil
	})
}

func (s *Server) handleListChatMessages(c *gin.Context) {
	sessionID := c.Param("sid")

	s.withHandle(c, func(h *db.Handle) error {
		messages, err := s.store.ListChatMessages(h, sessionID)
		if err != nil {
			return err
		}
		out := make([]gin.H, 0, len(messages))
		for _, m := range messages {
			out = append(out, gin.H{
				"id":           m.ID,
				"message":      m.Message,
				"bot_response": m.BotResponse,
				"timestamp":    m.Timestamp,
			})
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": out})
		return nil
	})
}
