// Package archive stores finished lives in SQLite. It supplies the play
// history and the accumulated metrics that raise rare-trait odds.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tatianab/life-restart/internal/draw"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/summary"
)

// Bonus metric keys.
const (
	MetricTimes        = "TMS"   // lives played
	MetricAchievements = "CACHV" // lives finished with the top total grade
)

// TopGrade is the total grade that counts as an achievement.
const TopGrade = 3

// ErrNotFound is returned when no life has the requested id.
var ErrNotFound = errors.New("life not found")

// DB wraps a SQLite connection for the life archive.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

// Open opens or creates the archive at path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lives (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		finished_ns INTEGER NOT NULL,
		final_age INTEGER NOT NULL,
		total REAL NOT NULL,
		total_grade INTEGER NOT NULL,
		traits_json TEXT NOT NULL,
		allocation_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		records_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lives_finished ON lives(finished_ns);
	CREATE INDEX IF NOT EXISTS idx_lives_grade ON lives(total_grade);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type lifeRow struct {
	ID             string  `db:"id"`
	SessionID      string  `db:"session_id"`
	FinishedNS     int64   `db:"finished_ns"`
	FinalAge       int     `db:"final_age"`
	Total          float64 `db:"total"`
	TotalGrade     int     `db:"total_grade"`
	TraitsJSON     string  `db:"traits_json"`
	AllocationJSON string  `db:"allocation_json"`
	SummaryJSON    string  `db:"summary_json"`
	RecordsJSON    string  `db:"records_json"`
}

// RecordLife stores a finished life under a new id.
func (db *DB) RecordLife(ctx context.Context, life models.Life) (string, error) {
	traitsJSON, err := json.Marshal(life.Traits)
	if err != nil {
		return "", fmt.Errorf("encode traits: %w", err)
	}
	allocJSON, err := json.Marshal(life.Allocation)
	if err != nil {
		return "", fmt.Errorf("encode allocation: %w", err)
	}
	sumJSON, err := json.Marshal(life.Summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	recJSON, err := json.Marshal(life.Records)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}

	total, _ := life.Summary.Get(summary.MetricTotal)
	row := lifeRow{
		ID:             uuid.NewString(),
		SessionID:      life.SessionID,
		FinishedNS:     db.now().UnixNano(),
		FinalAge:       life.FinalAge(),
		Total:          total.Value,
		TotalGrade:     total.Grade,
		TraitsJSON:     string(traitsJSON),
		AllocationJSON: string(allocJSON),
		SummaryJSON:    string(sumJSON),
		RecordsJSON:    string(recJSON),
	}

	_, err = db.conn.NamedExecContext(ctx, `INSERT INTO lives
		(id, session_id, finished_ns, final_age, total, total_grade,
		 traits_json, allocation_json, summary_json, records_json)
		VALUES (:id, :session_id, :finished_ns, :final_age, :total, :total_grade,
		 :traits_json, :allocation_json, :summary_json, :records_json)`, row)
	if err != nil {
		return "", fmt.Errorf("insert life: %w", err)
	}
	return row.ID, nil
}

// Bonus returns the draw bonus metrics accumulated over all archived lives.
func (db *DB) Bonus(ctx context.Context) (draw.BonusContext, error) {
	var counts struct {
		Times        int `db:"times"`
		Achievements int `db:"achievements"`
	}
	err := db.conn.GetContext(ctx, &counts, `SELECT
		COUNT(*) AS times,
		COALESCE(SUM(CASE WHEN total_grade >= ? THEN 1 ELSE 0 END), 0) AS achievements
		FROM lives`, TopGrade)
	if err != nil {
		return nil, fmt.Errorf("count lives: %w", err)
	}
	return draw.BonusContext{
		MetricTimes:        float64(counts.Times),
		MetricAchievements: float64(counts.Achievements),
	}, nil
}

// Entry is a history line for an archived life.
type Entry struct {
	ID         string
	SessionID  string
	FinishedAt time.Time
	FinalAge   int
	Total      float64
	TotalGrade int
	Traits     []string
}

// Recent returns up to limit lives, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var rows []lifeRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT
		id, session_id, finished_ns, final_age, total, total_grade,
		traits_json, allocation_json, summary_json, records_json
		FROM lives ORDER BY finished_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select lives: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		var traits []models.Trait
		if err := json.Unmarshal([]byte(r.TraitsJSON), &traits); err != nil {
			return nil, fmt.Errorf("life %s: traits: %w", r.ID, err)
		}
		names := make([]string, len(traits))
		for i, t := range traits {
			names[i] = t.Name
		}
		out = append(out, Entry{
			ID:         r.ID,
			SessionID:  r.SessionID,
			FinishedAt: time.Unix(0, r.FinishedNS).UTC(),
			FinalAge:   r.FinalAge,
			Total:      r.Total,
			TotalGrade: r.TotalGrade,
			Traits:     names,
		})
	}
	return out, nil
}

// Life loads a full archived life.
func (db *DB) Life(ctx context.Context, id string) (models.Life, error) {
	var r lifeRow
	err := db.conn.GetContext(ctx, &r, `SELECT
		id, session_id, finished_ns, final_age, total, total_grade,
		traits_json, allocation_json, summary_json, records_json
		FROM lives WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Life{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Life{}, fmt.Errorf("select life: %w", err)
	}

	life := models.Life{ID: r.ID, SessionID: r.SessionID}
	for _, col := range []struct {
		name string
		data string
		dst  any
	}{
		{"traits", r.TraitsJSON, &life.Traits},
		{"allocation", r.AllocationJSON, &life.Allocation},
		{"summary", r.SummaryJSON, &life.Summary},
		{"records", r.RecordsJSON, &life.Records},
	} {
		if err := json.Unmarshal([]byte(col.data), col.dst); err != nil {
			return models.Life{}, fmt.Errorf("life %s: %s: %w", r.ID, col.name, err)
		}
	}
	return life, nil
}
