package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"go.uber.org/zap"
)

// TimeFormat формат даты в истории
const TimeFormat = "02.01.2006 15:04:05"

// ResultRecord результат одной функции в зафиксированном раунде
type ResultRecord struct {
	FunctionID string   `json:"function_id"`
	Expression string   `json:"expression"`
	Area       *float64 `json:"area"`
	Error      *string  `json:"error"`
}

// RoundRecord зафиксированный раунд расчета
type RoundRecord struct {
	ID          string         `json:"id"`
	Seq         uint64         `json:"seq"`
	Fingerprint string         `json:"fingerprint"`
	Lower       float64        `json:"lower"`
	Upper       float64        `json:"upper"`
	TotalArea   *float64       `json:"total_area"`
	GlobalError *string        `json:"global_error"`
	CreatedAt   string         `json:"created_at"`
	Results     []ResultRecord `json:"results"`
}

// Store история раундов в sqlite
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open открывает (или создает) базу и применяет схему
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite не любит параллельную запись из нескольких соединений
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			lower_limit REAL NOT NULL,
			upper_limit REAL NOT NULL,
			total_area REAL,
			global_error TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%d.%m.%Y %H:%M:%S', 'now')),
			position INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("create table rounds: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS round_results (
			round_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			function_id TEXT NOT NULL,
			expression TEXT NOT NULL,
			area REAL,
			error TEXT,
			PRIMARY KEY (round_id, position),
			FOREIGN KEY (round_id) REFERENCES rounds(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create table round_results: %w", err)
	}

	return s.applyMigrations()
}

// applyMigrations добавляет столбцы, которых нет в старых базах
func (s *Store) applyMigrations() error {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('rounds') WHERE name='position'").Scan(&count)
	if err != nil {
		return fmt.Errorf("check column position: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(`ALTER TABLE rounds ADD COLUMN position INTEGER`); err != nil {
			return fmt.Errorf("add column position: %w", err)
		}
	}
	return nil
}

// SaveRound сохраняет раунд вместе с результатами функций
func (s *Store) SaveRound(ctx context.Context, round *RoundRecord) error {
	if round.CreatedAt == "" {
		round.CreatedAt = time.Now().Format(TimeFormat)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (id, seq, fingerprint, lower_limit, upper_limit, total_area, global_error, created_at, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM rounds))`,
		round.ID, round.Seq, round.Fingerprint, round.Lower, round.Upper,
		nullFloat(round.TotalArea), nullString(round.GlobalError), round.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}

	for i, r := range round.Results {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO round_results (round_id, position, function_id, expression, area, error) VALUES (?, ?, ?, ?, ?, ?)",
			round.ID, i, r.FunctionID, r.Expression, nullFloat(r.Area), nullString(r.Error),
		)
		if err != nil {
			return fmt.Errorf("save round result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round: %w", err)
	}

	s.logger.Debug("round saved", zap.String("id", round.ID), zap.Uint64("seq", round.Seq), zap.Int("results", len(round.Results)))
	return nil
}

// RecentRounds возвращает последние limit раундов, новые первыми
func (s *Store) RecentRounds(ctx context.Context, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, fingerprint, lower_limit, upper_limit, total_area, global_error, created_at
		 FROM rounds ORDER BY position DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []RoundRecord
	for rows.Next() {
		var (
			r           RoundRecord
			totalArea   sql.NullFloat64
			globalError sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Seq, &r.Fingerprint, &r.Lower, &r.Upper, &totalArea, &globalError, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.TotalArea = fromNullFloat(totalArea)
		r.GlobalError = fromNullString(globalError)
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rounds: %w", err)
	}

	for i := range rounds {
		results, err := s.results(ctx, rounds[i].ID)
		if err != nil {
			return nil, err
		}
		rounds[i].Results = results
	}
	return rounds, nil
}

func (s *Store) results(ctx context.Context, roundID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT function_id, expression, area, error FROM round_results WHERE round_id = ? ORDER BY position", roundID)
	if err != nil {
		return nil, fmt.Errorf("query round results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var (
			r    ResultRecord
			area sql.NullFloat64
			msg  sql.NullString
		)
		if err := rows.Scan(&r.FunctionID, &r.Expression, &area, &msg); err != nil {
			return nil, fmt.Errorf("scan round result: %w", err)
		}
		r.Area = fromNullFloat(area)
		r.Error = fromNullString(msg)
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
