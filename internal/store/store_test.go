package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/linguaflow/linguaflow/internal/core/db"
	"github.com/linguaflow/linguaflow/internal/types"
)

func newTestHandle(t *testing.T) (*Store, *db.Handle) {
	t.Helper()

	s, err := New()
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	f := db.NewFactory(db.Options{
		Backend: types.BackendEmbedded,
		Params:  types.ConnectionParams{Path: types.MemoryPath},
		Schema:  Schema(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h, err := f.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v, want nil", err)
	}
	t.Cleanup(func() { h.Close() })
	return s, h
}

func TestNew_LoadsAllQueries(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	for _, name := range []string{
		"create-user", "get-user-by-username", "count-admins",
		"add-study-word", "upsert-progress", "add-quiz-question",
		"create-chat-session", "list-notifications",
		"create-password-reset", "consume-password-reset",
	} {
		if _, err := s.raw(name); err != nil {
			t.Errorf("raw(%q) error = %v, want nil", name, err)
		}
	}
	if _, err := s.raw("does-not-exist"); err == nil {
		t.Errorf("raw(does-not-exist) error = nil, want lookup failure")
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s, h := newTestHandle(t)

	id, err := s.RegisterUser(h, "maria", "maria@example.com", "s3cret", "perro", false)
	if err != nil {
		t.Fatalf("RegisterUser() error = %v, want nil", err)
	}
	if id <= 0 {
		t.Fatalf("RegisterUser() id = %d, want positive", id)
	}

	t.Run("correct password", func(t *testing.T) {
		user, err := s.Authenticate(h, "maria", "s3cret")
		if err != nil {
			t.Fatalf("Authenticate() error = %v, want nil", err)
		}
		if user.ID != id || user.Username != "maria" || user.Email != "maria@example.com" {
			t.Errorf("user = %+v, want id=%d maria", user, id)
		}
		if user.IsAdmin {
			t.Errorf("IsAdmin = true, want false")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := s.Authenticate(h, "maria", "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := s.Authenticate(h, "ghost", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		if _, err := h.Execute("UPDATE users SET is_active = 0 WHERE id = ?", id); err != nil {
			t.Fatalf("deactivate error = %v", err)
		}
		if _, err := s.Authenticate(h, "maria", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestPasswordReset(t *testing.T) {
	s, h := newTestHandle(t)

	if _, err := s.RegisterUser(h, "lena", "lena@example.com", "old-pass", "gato", false); err != nil {
		t.Fatalf("RegisterUser() error = %v, want nil", err)
	}

	token, err := s.CreatePasswordReset(h, "lena@example.com")
	if err != nil {
		t.Fatalf("CreatePasswordReset() error = %v, want nil", err)
	}
	if token == "" {
		t.Fatalf("CreatePasswordReset() token = %q, want non-empty", token)
	}

	t.Run("unknown email", func(t *testing.T) {
		if _, err := s.CreatePasswordReset(h, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("CreatePasswordReset() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("redeem", func(t *testing.T) {
		if err := s.ResetPassword(h, token, "new-pass"); err != nil {
			t.Fatalf("ResetPassword() error = %v, want nil", err)
		}
		if _, err := s.Authenticate(h, "lena", "old-pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate(old password) error = %v, want ErrInvalidCredentials", err)
		}
		if _, err := s.Authenticate(h, "lena", "new-pass"); err != nil {
			t.Errorf("Authenticate(new password) error = %v, want nil", err)
		}
	})

	t.Run("single use", func(t *testing.T) {
		if err := s.ResetPassword(h, token, "again"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ResetPassword(used token) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		if err := s.ResetPassword(h, "bogus", "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ResetPassword(unknown token) error = %v, want ErrNotFound", err)
		}
	})
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	s, h := newTestHandle(t)

	id, err := s.RegisterUser(h, "omar", "omar@example.com", "pass", "tortuga", false)
	if err != nil {
		t.Fatalf("RegisterUser() error = %v, want nil", err)
	}
	_, err = h.Execute(
		"INSERT INTO password_resets (user_id, token, expires_at) VALUES (?, ?, ?)",
		id, "stale-token", "2001-01-01 00:00:00")
	if err != nil {
		t.Fatalf("insert expired reset error = %v, want nil", err)
	}

	if err := s.ResetPassword(h, "stale-token", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResetPassword(expired token) error = %v, want ErrNotFound", err)
	}
}

func TestCountUsers_FreshDatabase(t *testing.T) {
	s, h := newTestHandle(t)

	count, err := s.CountUsers(h)
	if err != nil {
		t.Fatalf("CountUsers() error = %v, want nil", err)
	}
	if count != 0 {
		t.Errorf("CountUsers() = %d, want 0 on a fresh database", count)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s, h := newTestHandle(t)
	if _, err := s.GetUser(h, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestEnsureAdminUser(t *testing.T) {
	s, h := newTestHandle(t)

	created, err := s.EnsureAdminUser(h)
	if err != nil {
		t.Fatalf("EnsureAdminUser() error = %v, want nil", err)
	}
	if !created {
		t.Fatalf("created = false, want true on empty database")
	}

	again, err := s.EnsureAdminUser(h)
	if err != nil {
		t.Fatalf("second EnsureAdminUser() error = %v, want nil", err)
	}
	if again {
		t.Errorf("created = true on second call, want false")
	}

	admin, err := s.Authenticate(h, "admin", "admin123")
	if err != nil {
		t.Fatalf("Authenticate(admin) error = %v, want nil", err)
	}
	if !admin.IsAdmin {
		t.Errorf("IsAdmin = false, want true for seeded admin")
	}
}

func TestStudyList(t *testing.T) {
	s, h := newTestHandle(t)

	added, err := s.AddStudyWord(h, 1, "bonjour", "french", "greeting")
	if err != nil {
		t.Fatalf("AddStudyWord() error = %v, want nil", err)
	}
	if !added {
		t.Fatalf("added = false, want true on first insert")
	}

	dup, err := s.AddStudyWord(h, 1, "bonjour", "french", "")
	if err != nil {
		t.Fatalf("duplicate AddStudyWord() error = %v, want nil", err)
	}
	if dup {
		t.Errorf("added = true on duplicate, want false")
	}

	if _, err := s.AddStudyWord(h, 1, "merci", "french", ""); err != nil {
		t.Fatalf("AddStudyWord(merci) error = %v", err)
	}

	words, err := s.ListStudyWords(h, 1)
	if err != nil {
		t.Fatalf("ListStudyWords() error = %v, want nil", err)
	}
	if len(words) != 2 {
		t.Fatalf("len(words) = %d, want 2", len(words))
	}
	if words[0].Word != "merci" {
		t.Errorf("words[0] = %q, want merci (newest first)", words[0].Word)
	}
	if words[1].Note != "greeting" {
		t.Errorf("words[1].Note = %q, want greeting", words[1].Note)
	}

	removed, err := s.RemoveStudyWord(h, 1, "bonjour")
	if err != nil {
		t.Fatalf("RemoveStudyWord() error = %v, want nil", err)
	}
	if !removed {
		t.Errorf("removed = false, want true")
	}
	if again, _ := s.RemoveStudyWord(h, 1, "bonjour"); again {
		t.Errorf("removed = true on second delete, want false")
	}
}

func TestAchievements(t *testing.T) {
	s, h := newTestHandle(t)

	granted, err := s.GrantAchievement(h, 1, "first_word")
	if err != nil {
		t.Fatalf("GrantAchievement() error = %v, want nil", err)
	}
	if !granted {
		t.Fatalf("granted = false, want true")
	}
	if again, _ := s.GrantAchievement(h, 1, "first_word"); again {
		t.Errorf("granted = true on repeat, want false")
	}

	list, err := s.ListAchievements(h, 1)
	if err != nil {
		t.Fatalf("ListAchievements() error = %v, want nil", err)
	}
	if len(list) != 1 || list[0] != "first_word" {
		t.Errorf("achievements = %v, want [first_word]", list)
	}
}

func TestProgressUpsert(t *testing.T) {
	s, h := newTestHandle(t)

	if _, err := s.GetProgress(h, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProgress() before upsert error = %v, want ErrNotFound", err)
	}

	if err := s.UpsertProgress(h, Progress{UserID: 1, WordsLearned: 10, DailyStreak: 2}); err != nil {
		t.Fatalf("UpsertProgress() error = %v, want nil", err)
	}
	if err := s.UpsertProgress(h, Progress{UserID: 1, WordsLearned: 25, DailyStreak: 3, AccuracyRate: 0.8}); err != nil {
		t.Fatalf("second UpsertProgress() error = %v, want nil", err)
	}

	p, err := s.GetProgress(h, 1)
	if err != nil {
		t.Fatalf("GetProgress() error = %v, want nil", err)
	}
	if p.WordsLearned != 25 || p.DailyStreak != 3 {
		t.Errorf("progress = %+v, want the replacing snapshot", p)
	}
	if p.AccuracyRate != 0.8 {
		t.Errorf("AccuracyRate = %v, want 0.8", p.AccuracyRate)
	}
	if p.LastActivityDate == "" {
		t.Errorf("LastActivityDate empty, want stamped by the upsert")
	}

	rows, err := h.Execute("SELECT COUNT(*) AS count FROM user_progress WHERE user_id = ?", int64(1))
	if err != nil {
		t.Fatalf("count error = %v", err)
	}
	row, _ := rows.FetchOne()
	if row.Int64("count") != 1 {
		t.Errorf("rows for user = %d, want exactly 1 after repeated upserts", row.Int64("count"))
	}
}

func TestQuizBank(t *testing.T) {
	s, h := newTestHandle(t)

	id, err := s.AddQuizQuestion(h, QuizQuestion{
		Language:   "spanish",
		Difficulty: "beginner",
		Question:   "What does 'gato' mean?",
		Options:    []string{"dog", "cat", "bird"},
		Answer:     "cat",
	})
	if err != nil {
		t.Fatalf("AddQuizQuestion() error = %v, want nil", err)
	}

	questions, err := s.ListQuizQuestions(h, "spanish", "beginner")
	if err != nil {
		t.Fatalf("ListQuizQuestions() error = %v, want nil", err)
	}
	if len(questions) != 1 {
		t.Fatalf("len(questions) = %d, want 1", len(questions))
	}
	q := questions[0]
	if q.ID != id {
		t.Errorf("ID = %d, want %d", q.ID, id)
	}
	if len(q.Options) != 3 || q.Options[1] != "cat" {
		t.Errorf("Options = %v, want JSON round-trip of three options", q.Options)
	}
	if q.QuestionType != "multiple_choice" || q.Points != 10 {
		t.Errorf("defaults = %q/%d, want multiple_choice/10", q.QuestionType, q.Points)
	}

	if list, _ := s.ListQuizQuestions(h, "spanish", "advanced"); len(list) != 0 {
		t.Errorf("questions for other difficulty = %d, want 0", len(list))
	}

	deleted, err := s.DeleteQuizQuestion(h, id)
	if err != nil {
		t.Fatalf("DeleteQuizQuestion() error = %v, want nil", err)
	}
	if !deleted {
		t.Errorf("deleted = false, want true")
	}
}

func TestQuizResults(t *testing.T) {
	s, h := newTestHandle(t)

	err := s.RecordQuizResult(h, QuizResult{
		UserID: 1, Language: "spanish", Difficulty: "beginner",
		Score: 8, Total: 10, Percentage: 80, Passed: true,
		QuestionDetails: `[{"q":1,"correct":true}]`, PointsEarned: 80,
	})
	if err != nil {
		t.Fatalf("RecordQuizResult() error = %v, want nil", err)
	}

	results, err := s.ListQuizResults(h, 1)
	if err != nil {
		t.Fatalf("ListQuizResults() error = %v, want nil", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Score != 8 || r.Total != 10 || r.Percentage != 80 || !r.Passed {
		t.Errorf("result = %+v, want the recorded attempt", r)
	}
}

func TestChatAndNotifications(t *testing.T) {
	s, h := newTestHandle(t)

	sessionID, err := s.CreateChatSession(h, 1, "french")
	if err != nil {
		t.Fatalf("CreateChatSession() error = %v, want nil", err)
	}
	if sessionID == "" {
		t.Fatalf("sessionID empty, want generated id")
	}

	session, err := s.GetChatSession(h, sessionID)
	if err != nil {
		t.Fatalf("GetChatSession() error = %v, want nil", err)
	}
	if session.UserID != 1 || session.Language != "french" {
		t.Errorf("session = %+v, want user 1 french", session)
	}

	if _, err := s.GetChatSession(h, "no-such-session"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChatSession(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.AddChatMessage(h, sessionID, "Bonjour!", "Bonjour! Comment allez-vous?"); err != nil {
		t.Fatalf("AddChatMessage() error = %v, want nil", err)
	}
	messages, err := s.ListChatMessages(h, sessionID)
	if err != nil {
		t.Fatalf("ListChatMessages() error = %v, want nil", err)
	}
	if len(messages) != 1 || messages[0].Message != "Bonjour!" {
		t.Errorf("messages = %+v, want the stored exchange", messages)
	}

	if err := s.AddNotification(h, 1, "New achievement unlocked"); err != nil {
		t.Fatalf("AddNotification() error = %v, want nil", err)
	}
	notes, err := s.ListNotifications(h, 1)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v, want nil", err)
	}
	if len(notes) != 1 || notes[0].Read {
		t.Fatalf("notifications = %+v, want one unread", notes)
	}

	if err := s.MarkNotificationsRead(h, 1); err != nil {
		t.Fatalf("MarkNotificationsRead() error = %v, want nil", err)
	}
	notes, err = s.ListNotifications(h, 1)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v, want nil", err)
	}
	if !notes[0].Read {
		t.Errorf("Read = false after MarkNotificationsRead, want true")
	}
}

func TestRecordActivity(t *testing.T) {
	s, h := newTestHandle(t)

	if err := s.RecordActivity(h, 1, "login", "from-test"); err != nil {
		t.Fatalf("RecordActivity() error = %v, want nil", err)
	}
	rows, err := h.Execute("SELECT activity_type, details FROM account_activity WHERE user_id = ?", int64(1))
	if err != nil {
		t.Fatalf("select error = %v", err)
	}
	row, ok := rows.FetchOne()
	if !ok {
		t.Fatalf("no activity row recorded")
	}
	if row.String("activity_type") != "login" || row.String("details") != "from-test" {
		t.Errorf("activity = %q/%q, want login/from-test", row.String("activity_type"), row.String("details"))
	}
}
