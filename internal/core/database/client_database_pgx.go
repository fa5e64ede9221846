package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core"
	"github.com/klvl/alynappi/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// buildDSN appends certificate verification to the DATABASE_URL when a CA cert is configured.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

const documentColumns = `id, title, source_type, year, issue, url, storage_url, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	if err := row.Scan(&d.ID, &d.Title, &d.SourceType, &d.Year, &d.Issue, &d.URL, &d.StorageURL, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) findDocument(ctx context.Context, column, value string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE ` + column + ` = $1 LIMIT 1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by %s: %w", column, err)
	}
	return d, nil
}

// FindDocumentByTitle returns nil, nil when no document has the title.
func (c *DatabaseClient) FindDocumentByTitle(ctx context.Context, title string) (*models.Document, error) {
	return c.findDocument(ctx, "title", title)
}

// FindDocumentByURL returns nil, nil when no document has the url.
func (c *DatabaseClient) FindDocumentByURL(ctx context.Context, url string) (*models.Document, error) {
	return c.findDocument(ctx, "url", url)
}

func (c *DatabaseClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// CreateDocumentWithSections inserts the document and its sections in a single transaction.
// Missing ids are generated; a failure on any row leaves nothing behind.
func (c *DatabaseClient) CreateDocumentWithSections(ctx context.Context, doc *models.Document, sections []models.Section) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const docQ = `
		INSERT INTO documents (id, title, source_type, year, issue, url, storage_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at
	`
	if err := tx.QueryRowContext(ctx, docQ,
		doc.ID, doc.Title, doc.SourceType, doc.Year, doc.Issue, doc.URL, doc.StorageURL,
	).Scan(&doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	const secQ = `
		INSERT INTO sections (id, document_id, content, category, page_number, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	stmt, err := tx.PrepareContext(ctx, secQ)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range sections {
		s := &sections[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.DocumentID = doc.ID
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.DocumentID, s.Content, s.Category, s.PageNumber, pgvector.NewVector(s.Embedding),
		); err != nil {
			return fmt.Errorf("insert section %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document %s: %w", doc.Title, err)
	}
	log.Debug().Str("document_id", doc.ID).Int("sections", len(sections)).Msg("document persisted")
	return nil
}

const matchSectionsQuery = `
	SELECT s.id, s.document_id, s.content, s.category, s.page_number, d.title,
	       1 - (s.embedding <=> $1) AS similarity
	FROM sections s
	JOIN documents d ON d.id = s.document_id
	WHERE 1 - (s.embedding <=> $1) > $2
	ORDER BY s.embedding <=> $1
	LIMIT $3
`

// MatchSections returns up to count sections whose cosine similarity to queryVec exceeds threshold,
// most similar first.
func (c *DatabaseClient) MatchSections(ctx context.Context, queryVec []float32, threshold float64, count int) ([]models.MatchedSection, error) {
	rows, err := c.db.QueryContext(ctx, matchSectionsQuery, pgvector.NewVector(queryVec), threshold, count)
	if err != nil {
		return nil, fmt.Errorf("match sections: %w", err)
	}
	defer rows.Close()

	var out []models.MatchedSection
	for rows.Next() {
		var m models.MatchedSection
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Content, &m.Category, &m.PageNumber, &m.Title, &m.Similarity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ core.DbClient = (*DatabaseClient)(nil)
