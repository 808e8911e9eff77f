package store

import "github.com/linguaflow/linguaflow/internal/core/db"

// Schema returns the full table set the application requires. The
// reconciler applies it on every connection acquisition; the unique keys
// double as conflict metadata for the dialect translator's upsert rewrites.
func Schema() *db.SchemaSpec {
	return &db.SchemaSpec{Tables: []db.Table{
		{
			Name: "users",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "username", Type: db.ColText, NotNull: true, Unique: true},
				{Name: "email", Type: db.ColText, NotNull: true, Unique: true},
				{Name: "password", Type: db.ColText, NotNull: true},
				{Name: "security_answer", Type: db.ColText, NotNull: true},
				{Name: "is_admin", Type: db.ColInt, Default: "0"},
				{Name: "is_active", Type: db.ColInt, Default: "1"},
				{Name: "reset_token", Type: db.ColText},
				{Name: "bio", Type: db.ColText},
				{Name: "profile_picture", Type: db.ColText},
				{Name: "dark_mode", Type: db.ColInt, Default: "0"},
				{Name: "name", Type: db.ColText},
				{Name: "phone", Type: db.ColText},
				{Name: "location", Type: db.ColText},
				{Name: "website", Type: db.ColText},
				{Name: "avatar", Type: db.ColText},
				{Name: "timezone", Type: db.ColText},
				{Name: "datetime_format", Type: db.ColText},
			},
		},
		{
			Name: "quiz_questions",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "language", Type: db.ColText, NotNull: true},
				{Name: "difficulty", Type: db.ColText, NotNull: true},
				{Name: "question", Type: db.ColText, NotNull: true},
				{Name: "options", Type: db.ColText, NotNull: true},
				{Name: "answer", Type: db.ColText, NotNull: true},
				{Name: "question_type", Type: db.ColText, Default: "'multiple_choice'"},
				{Name: "points", Type: db.ColInt, Default: "10"},
				{Name: "created_at", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
			},
		},
		{
			Name: "quiz_results",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "language", Type: db.ColText, NotNull: true},
				{Name: "difficulty", Type: db.ColText, NotNull: true},
				{Name: "score", Type: db.ColInt, NotNull: true},
				{Name: "total", Type: db.ColInt, NotNull: true},
				{Name: "percentage", Type: db.ColReal, Default: "0"},
				{Name: "passed", Type: db.ColInt, Default: "0"},
				{Name: "timestamp", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
			},
		},
		{
			Name: "quiz_results_enhanced",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "language", Type: db.ColText, NotNull: true},
				{Name: "difficulty", Type: db.ColText, NotNull: true},
				{Name: "score", Type: db.ColInt, NotNull: true},
				{Name: "total", Type: db.ColInt, NotNull: true},
				{Name: "percentage", Type: db.ColReal, Default: "0"},
				{Name: "passed", Type: db.ColInt, Default: "0"},
				{Name: "timestamp", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
				{Name: "question_details", Type: db.ColText},
				{Name: "points_earned", Type: db.ColInt, Default: "0"},
				{Name: "streak_bonus", Type: db.ColInt, Default: "0"},
				{Name: "time_bonus", Type: db.ColInt, Default: "0"},
			},
		},
		{
			Name: "notifications",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "message", Type: db.ColText, NotNull: true},
				{Name: "timestamp", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
				{Name: "is_read", Type: db.ColInt, Default: "0"},
			},
		},
		{
			Name: "chat_sessions",
			Columns: []db.Column{
				{Name: "session_id", Type: db.ColText, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "language", Type: db.ColText, NotNull: true},
				{Name: "started_at", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
				{Name: "last_message_at", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
			},
		},
		{
			Name: "chat_messages",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "session_id", Type: db.ColText, NotNull: true},
				{Name: "message", Type: db.ColText, NotNull: true},
				{Name: "bot_response", Type: db.ColText, NotNull: true},
				{Name: "timestamp", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
			},
		},
		{
			Name: "study_list",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "word", Type: db.ColText, NotNull: true},
				{Name: "added_at", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
				{Name: "note", Type: db.ColText},
				{Name: "language", Type: db.ColText, Default: "'english'"},
			},
			UniqueKey: []string{"user_id", "word"},
		},
		{
			Name: "user_progress",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "words_learned", Type: db.ColInt, Default: "0"},
				{Name: "conversation_count", Type: db.ColInt, Default: "0"},
				{Name: "accuracy_rate", Type: db.ColReal, Default: "0"},
				{Name: "daily_streak", Type: db.ColInt, Default: "0"},
				{Name: "last_activity_date", Type: db.ColDate},
				{Name: "last_updated", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
			},
			// Replace-on-conflict upserts key on the owning user.
			UniqueKey: []string{"user_id"},
		},
		{
			Name: "achievements",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "achievement_type", Type: db.ColText, NotNull: true},
				{Name: "earned_at", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
			},
			UniqueKey: []string{"user_id", "achievement_type"},
		},
		{
			Name: "account_activity",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "activity_type", Type: db.ColText, NotNull: true},
				{Name: "timestamp", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
				{Name: "details", Type: db.ColText},
			},
		},
		{
			Name: "password_resets",
			Columns: []db.Column{
				{Name: "id", Type: db.ColSerial, PrimaryKey: true},
				{Name: "user_id", Type: db.ColInt, NotNull: true},
				{Name: "token", Type: db.ColText, NotNull: true},
				{Name: "created_at", Type: db.ColTimestamp, Default: "CURRENT_TIMESTAMP"},
				{Name: "expires_at", Type: db.ColTimestamp, NotNull: true},
				{Name: "used", Type: db.ColInt, Default: "0"},
			},
		},
	}}
}
