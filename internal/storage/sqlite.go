package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    content_hash TEXT PRIMARY KEY,
    source       TEXT NOT NULL,
    url          TEXT NOT NULL,
    title        TEXT NOT NULL,
    body         TEXT NOT NULL DEFAULT '',
    published_at TEXT,
    fetched_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    ticker      TEXT NOT NULL,
    price       TEXT NOT NULL,
    change_pct  TEXT,
    source_used TEXT NOT NULL,
    as_of       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL,
    generated_at    TEXT NOT NULL,
    summary_text    TEXT NOT NULL DEFAULT '',
    action          TEXT NOT NULL DEFAULT '',
    risk_level      TEXT NOT NULL DEFAULT '',
    confidence      REAL NOT NULL DEFAULT 0,
    stances_json    TEXT NOT NULL DEFAULT '[]',
    key_factors_json TEXT NOT NULL DEFAULT '[]',
    risks_json      TEXT NOT NULL DEFAULT '[]',
    supporting_json TEXT NOT NULL DEFAULT '[]',
    model_used      TEXT NOT NULL DEFAULT '',
    raw_output      TEXT NOT NULL DEFAULT '',
    structured      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_logs (
    run_id            TEXT PRIMARY KEY,
    started_at        TEXT NOT NULL,
    finished_at       TEXT,
    status            TEXT NOT NULL DEFAULT 'running',
    articles_fetched  INTEGER NOT NULL DEFAULT 0,
    articles_new      INTEGER NOT NULL DEFAULT 0,
    articles_kept     INTEGER NOT NULL DEFAULT 0,
    quotes_resolved   INTEGER NOT NULL DEFAULT 0,
    recommendation_id INTEGER NOT NULL DEFAULT 0,
    error_message     TEXT NOT NULL DEFAULT ''
);
`

// Store is the SQLite-backed system of record: articles deduplicated by
// content hash, per-run quote audit rows, the append-only recommendation
// history, and run logs. A run holds exclusive access; there is no
// cross-run concurrency to defend against beyond WAL's reader tolerance.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.ArticleStore    = (*Store)(nil)
	_ ports.HistoryStore    = (*Store)(nil)
	_ ports.QuoteAuditStore = (*Store)(nil)
	_ ports.RunLogStore     = (*Store)(nil)
)

// Open creates (or opens) the database file and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, sb: sq.StatementBuilder}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveArticle inserts the article keyed by its content hash. A hash already
// present leaves the stored row untouched and reports inserted=false, which
// makes ingest idempotent under retry.
func (s *Store) SaveArticle(ctx context.Context, a domain.Article) (bool, error) {
	query, args, err := s.sb.
		Insert("articles").
		Options("OR IGNORE").
		Columns("content_hash", "source", "url", "title", "body", "published_at", "fetched_at").
		Values(a.ContentHash, a.Source, a.URL, a.Title, a.Body,
			nullableTime(a.PublishedAt), a.FetchedAt.UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// HasArticle reports whether a content hash is already stored.
func (s *Store) HasArticle(ctx context.Context, contentHash string) (bool, error) {
	query, args, err := s.sb.
		Select("1").
		From("articles").
		Where(sq.Eq{"content_hash": contentHash}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query article: %w", err)
	}
	return true, nil
}

// PruneOlderThan deletes articles fetched before the cutoff. This bounds the
// dedup store to a rolling window instead of growing indefinitely.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.
		Delete("articles").
		Where(sq.Lt{"fetched_at": cutoff.UTC().Format(time.RFC3339)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune articles: %w", err)
	}
	return res.RowsAffected()
}

// SaveQuotes records the resolved quote set of a run for auditability.
func (s *Store) SaveQuotes(ctx context.Context, runID string, quotes []domain.Quote) error {
	for _, q := range quotes {
		var changePct any
		if q.ChangePct != nil {
			changePct = q.ChangePct.String()
		}

		query, args, err := s.sb.
			Insert("quotes").
			Columns("run_id", "ticker", "price", "change_pct", "source_used", "as_of").
			Values(runID, q.Ticker, q.Price.String(), changePct, q.SourceUsed,
				q.AsOf.UTC().Format(time.RFC3339)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert quote %s: %w", q.Ticker, err)
		}
	}
	return nil
}

// AppendRecommendation adds one row to the append-only history.
func (s *Store) AppendRecommendation(ctx context.Context, rec domain.Recommendation) (int64, error) {
	stances, err := json.Marshal(rec.Stances)
	if err != nil {
		return 0, fmt.Errorf("marshal stances: %w", err)
	}
	factors, err := json.Marshal(rec.KeyFactors)
	if err != nil {
		return 0, fmt.Errorf("marshal key factors: %w", err)
	}
	risks, err := json.Marshal(rec.Risks)
	if err != nil {
		return 0, fmt.Errorf("marshal risks: %w", err)
	}
	supporting, err := json.Marshal(rec.SupportingRef)
	if err != nil {
		return 0, fmt.Errorf("marshal supporting refs: %w", err)
	}

	query, args, err := s.sb.
		Insert("recommendations").
		Columns("run_id", "generated_at", "summary_text", "action", "risk_level",
			"confidence", "stances_json", "key_factors_json", "risks_json",
			"supporting_json", "model_used", "raw_output", "structured").
		Values(rec.RunID, rec.GeneratedAt.UTC().Format(time.RFC3339), rec.SummaryText,
			rec.Action, rec.RiskLevel, rec.Confidence, string(stances), string(factors),
			string(risks), string(supporting), rec.ModelUsed, rec.RawOutput, rec.Structured).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert recommendation: %w", err)
	}
	return res.LastInsertId()
}

// RecentRecommendations returns the newest rows, most recent first.
func (s *Store) RecentRecommendations(ctx context.Context, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = 3
	}

	query, args, err := s.sb.
		Select("run_id", "generated_at", "summary_text", "action", "risk_level",
			"confidence", "stances_json", "key_factors_json", "risks_json",
			"supporting_json", "model_used", "raw_output", "structured").
		From("recommendations").
		OrderBy("generated_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []domain.Recommendation
	for rows.Next() {
		var (
			rec         domain.Recommendation
			generatedAt string
			stances     string
			factors     string
			risks       string
			supporting  string
		)
		if err := rows.Scan(&rec.RunID, &generatedAt, &rec.SummaryText, &rec.Action,
			&rec.RiskLevel, &rec.Confidence, &stances, &factors, &risks,
			&supporting, &rec.ModelUsed, &rec.RawOutput, &rec.Structured); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, generatedAt); err == nil {
			rec.GeneratedAt = t
		}
		_ = json.Unmarshal([]byte(stances), &rec.Stances)
		_ = json.Unmarshal([]byte(factors), &rec.KeyFactors)
		_ = json.Unmarshal([]byte(risks), &rec.Risks)
		_ = json.Unmarshal([]byte(supporting), &rec.SupportingRef)

		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return recs, nil
}

// CreateRunLog opens a run-log row in the running state.
func (s *Store) CreateRunLog(ctx context.Context, runID string, startedAt time.Time) error {
	query, args, err := s.sb.
		Insert("run_logs").
		Columns("run_id", "started_at", "status").
		Values(runID, startedAt.UTC().Format(time.RFC3339), string(domain.RunStatusRunning)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// UpdateRunLog overwrites the run-log row with the run's current state.
func (s *Store) UpdateRunLog(ctx context.Context, log domain.RunLog) error {
	update := s.sb.
		Update("run_logs").
		Set("status", string(log.Status)).
		Set("articles_fetched", log.ArticlesFetched).
		Set("articles_new", log.ArticlesNew).
		Set("articles_kept", log.ArticlesKept).
		Set("quotes_resolved", log.QuotesResolved).
		Set("recommendation_id", log.RecommendationID).
		Set("error_message", log.Error).
		Where(sq.Eq{"run_id": log.RunID})
	if !log.FinishedAt.IsZero() {
		update = update.Set("finished_at", log.FinishedAt.UTC().Format(time.RFC3339))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update run log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
