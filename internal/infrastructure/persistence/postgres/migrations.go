package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CATALOG READ MODELS
// Owned by upstream services; replicated here so the collaborator readers
// can join against them.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id);

CREATE TABLE IF NOT EXISTS enrollments (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES users(id),
    course_id TEXT NOT NULL REFERENCES courses(id)
);
CREATE INDEX IF NOT EXISTS idx_enrollments_student_course ON enrollments(student_id, course_id);

CREATE TABLE IF NOT EXISTS question_bank (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    question_text TEXT NOT NULL,
    options_json JSONB NOT NULL DEFAULT '[]'::jsonb,
    correct_answer TEXT NOT NULL,
    marks INTEGER,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_question_bank_course_id ON question_bank(course_id);
`

const migration001Down = `
DROP TABLE IF EXISTS question_bank;
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PROGRESS AND CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS lesson_progress (
    id TEXT PRIMARY KEY,
    enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    lesson_id TEXT NOT NULL,
    is_complete BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE,
    CONSTRAINT uq_lesson_progress_pair UNIQUE (enrollment_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS certificates (
    id TEXT PRIMARY KEY,
    enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completion_date TIMESTAMP WITH TIME ZONE NOT NULL,
    CONSTRAINT uq_certificates_enrollment UNIQUE (enrollment_id)
);
CREATE INDEX IF NOT EXISTS idx_certificates_student_id ON certificates(student_id);
CREATE INDEX IF NOT EXISTS idx_certificates_course_id ON certificates(course_id);
`

const migration002Down = `
DROP TABLE IF EXISTS certificates;
DROP TABLE IF EXISTS lesson_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    total_marks INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_student_course ON assessments(student_id, course_id);

CREATE TABLE IF NOT EXISTS assessment_questions (
    id TEXT PRIMARY KEY,
    assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
    source_question_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    question_text TEXT NOT NULL,
    options_json JSONB NOT NULL,
    correct_answer TEXT NOT NULL,
    marks INTEGER NOT NULL,
    CONSTRAINT uq_assessment_questions_position UNIQUE (assessment_id, position)
);

CREATE TABLE IF NOT EXISTS assessment_submissions (
    id TEXT PRIMARY KEY,
    assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
    score INTEGER NOT NULL,
    total_marks INTEGER NOT NULL,
    percentage NUMERIC(5,2) NOT NULL,
    passed BOOLEAN NOT NULL,
    answers_json JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessment_submissions_assessment ON assessment_submissions(assessment_id, submitted_at);
`

const migration003Down = `
DROP TABLE IF EXISTS assessment_submissions;
DROP TABLE IF EXISTS assessment_questions;
DROP TABLE IF EXISTS assessments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: NOTIFICATION LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS notification_log (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    event_id TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    recipient_email TEXT NOT NULL,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    status TEXT NOT NULL,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    sent_at TIMESTAMP WITH TIME ZONE,
    CONSTRAINT valid_notification_status CHECK (status IN ('SENT', 'FAILED'))
);
CREATE INDEX IF NOT EXISTS idx_notification_log_recipient ON notification_log(recipient_id, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS notification_log;
`

const migration005Up = `
CREATE TABLE IF NOT EXISTS processed_events (
    consumer     VARCHAR(128) NOT NULL,
    event_id     VARCHAR(64) NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    completed    BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (consumer, event_id)
);
CREATE INDEX IF NOT EXISTS idx_processed_events_expires ON processed_events(expires_at);
`

const migration005Down = `
DROP TABLE IF EXISTS processed_events;
`

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_catalog_read_models", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_progress_and_certificates", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_assessments", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_notification_log", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_processed_events", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
// Concurrent workers serialize on an advisory lock.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.conn.WithAdvisoryLock(ctx, "schema_migrations", func(ctx context.Context) error {
		if err := m.ensureTable(ctx); err != nil {
			return err
		}

		applied, err := m.applied(ctx)
		if err != nil {
			return err
		}

		for _, mig := range m.migrations {
			if _, done := applied[mig.Version]; done {
				continue
			}

			err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
				if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
					return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
				}
				_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
				return err
			})
			if err != nil {
				return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
			}
		}
		return nil
	})
}

// Status returns every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}
