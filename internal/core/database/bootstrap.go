package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the schema on first start and checks that the
// embedding column of an existing schema matches embedDim.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, embedDim int) error {

	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'alynappi_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	// If table missing OR version row missing, run initdb.sql
	if !exists {
		return runBootstrap(ctxBoot, db, embedDim)
	}

	var storedDim int
	err = db.QueryRowContext(ctxBoot, `SELECT embed_dim FROM alynappi_meta WHERE version = $1`, schemaVersion).Scan(&storedDim)
	if err == sql.ErrNoRows {
		return runBootstrap(ctxBoot, db, embedDim)
	}
	if err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if storedDim != embedDim {
		return fmt.Errorf("schema was created for %d-dim embeddings, EMBED_DIM is %d", storedDim, embedDim)
	}

	log.Debug().Int("version", schemaVersion).Msg("schema already bootstrapped")
	return nil
}

func runBootstrap(ctx context.Context, db *sql.DB, embedDim int) error {
	script, err := bootstrapScript(embedDim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	log.Info().Int("embed_dim", embedDim).Msg("database schema bootstrapped")
	return nil
}

// bootstrapScript renders initdb.sql for the given embedding dimension.
func bootstrapScript(embedDim int) (string, error) {
	if embedDim <= 0 {
		return "", fmt.Errorf("invalid embedding dimension %d", embedDim)
	}
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return strings.ReplaceAll(string(sqlBytes), "{{EMBED_DIM}}", strconv.Itoa(embedDim)), nil
}
