package storage

import (
	"context"
	"database/sql"
	"log/slog"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) SaveRun(ctx context.Context, run Run, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, query, timestamp, documents, analyzed, overall_credibility, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Query, run.Timestamp, run.Documents, run.Analyzed, run.OverallCredibility, run.Payload,
	)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (run_id, rank, url, title, status, credibility, word_count, language)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			doc.RunID, doc.Rank, doc.URL, doc.Title, doc.Status, doc.Credibility, doc.WordCount, doc.Language,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("archived run", "id", run.ID, "query", run.Query, "documents", run.Documents)
	return nil
}

func (s *PostgresStorage) SearchRuns(ctx context.Context, query string, limit int) ([]RunSummary, error) {
	slog.Debug("archive search", "query", query, "limit", limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, timestamp, documents, overall_credibility
		FROM runs, websearch_to_tsquery('english', $1) q
		WHERE textsearch @@ q
		ORDER BY timestamp DESC
		LIMIT $2`,
		query, limit,
	)
	if err != nil {
		slog.Error("archive search failed", "query", query, "err", err)
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Query, &r.Timestamp, &r.Documents, &r.OverallCredibility); err != nil {
			return nil, err
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

func (s *PostgresStorage) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, timestamp, documents, overall_credibility
		FROM runs
		ORDER BY timestamp DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Query, &r.Timestamp, &r.Documents, &r.OverallCredibility); err != nil {
			return nil, err
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

func (s *PostgresStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, query, timestamp, documents, analyzed, overall_credibility, payload
		FROM runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Query, &run.Timestamp, &run.Documents, &run.Analyzed, &run.OverallCredibility, &run.Payload)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
