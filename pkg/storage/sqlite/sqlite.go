// Package sqlite provides a SQLite-backed storage driver using the cgo-free
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage"
)

// SQLiteDriver implements storage.Driver on a single SQLite database.
type SQLiteDriver struct {
	db *sql.DB
}

// NewSQLiteDriver opens (or creates) the database at dbPath and migrates the
// schema. The dbPath can be a file path or ":memory:" for an in-memory
// database.
func NewSQLiteDriver(dbPath string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The modernc driver serializes writes itself, but a single connection
	// keeps ":memory:" databases from silently forking per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteDriver{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables and indexes if they don't exist.
func (s *SQLiteDriver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		kind TEXT NOT NULL,
		summary TEXT NOT NULL,
		embedding TEXT,
		content_hash TEXT NOT NULL,
		reinforcement_count INTEGER NOT NULL DEFAULT 0,
		happened_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_facts_scope_hash
		ON facts(scope, content_hash);

	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		kind TEXT NOT NULL,
		entity TEXT NOT NULL,
		slot TEXT NOT NULL,
		value TEXT NOT NULL,
		polarity TEXT NOT NULL,
		version_key TEXT NOT NULL,
		relation TEXT NOT NULL,
		source_memory_id TEXT NOT NULL,
		engine TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		confidence REAL NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		predecessor_id TEXT,
		event_date DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_active_key
		ON cards(scope, version_key) WHERE is_active = 1;

	CREATE INDEX IF NOT EXISTS idx_cards_lookup
		ON cards(scope, entity, slot, is_active);

	CREATE INDEX IF NOT EXISTS idx_cards_version_key
		ON cards(scope, version_key);

	CREATE TABLE IF NOT EXISTS enrichments (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		memory_id TEXT NOT NULL,
		engine TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		success INTEGER NOT NULL,
		card_ids TEXT,
		error_message TEXT,
		enriched_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_enrichments_key
		ON enrichments(scope, memory_id, engine, engine_version);
	`

	_, err := s.db.Exec(schema)
	return err
}

const factColumns = `id, scope, kind, summary, embedding, content_hash,
	reinforcement_count, happened_at, created_at, updated_at`

// InsertFact stores a new fact.
func (s *SQLiteDriver) InsertFact(ctx context.Context, fact *memory.Fact) error {
	if fact == nil {
		return fmt.Errorf("cannot store nil fact")
	}

	embeddingJSON, err := marshalEmbedding(fact.Embedding)
	if err != nil {
		return err
	}

	query := `INSERT INTO facts (` + factColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		fact.ID, fact.Scope, string(fact.Kind), fact.Summary, embeddingJSON,
		fact.ContentHash, fact.ReinforcementCount,
		fact.HappenedAt.UTC(), fact.CreatedAt.UTC(), fact.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return memory.ConflictError{Key: fact.ContentHash, Reason: "duplicate content hash"}
	}
	if err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}

	return nil
}

// GetFact retrieves a fact by ID within a scope.
func (s *SQLiteDriver) GetFact(ctx context.Context, scope, id string) (*memory.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE scope = ? AND id = ?`

	return s.scanFact(s.db.QueryRowContext(ctx, query, scope, id), id)
}

// FindFactByContentHash returns the fact with the given content hash.
func (s *SQLiteDriver) FindFactByContentHash(ctx context.Context, scope, contentHash string) (*memory.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE scope = ? AND content_hash = ?`

	return s.scanFact(s.db.QueryRowContext(ctx, query, scope, contentHash), contentHash)
}

// ReinforceFact increments a fact's reinforcement count.
func (s *SQLiteDriver) ReinforceFact(ctx context.Context, scope, id string) (int, error) {
	query := `UPDATE facts
		SET reinforcement_count = reinforcement_count + 1, updated_at = ?
		WHERE scope = ? AND id = ?
		RETURNING reinforcement_count`

	var count int
	err := s.db.QueryRowContext(ctx, query, time.Now().UTC(), scope, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, memory.NotFoundError{Entity: "fact", Key: id}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reinforce fact: %w", err)
	}

	return count, nil
}

// ListFacts returns all facts in a scope, newest first.
func (s *SQLiteDriver) ListFacts(ctx context.Context, scope string) ([]*memory.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts
		WHERE scope = ? ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	return s.scanFacts(rows)
}

// SearchFactsLexical returns facts whose summary contains at least one term.
func (s *SQLiteDriver) SearchFactsLexical(ctx context.Context, scope string, terms []string, limit int) ([]*memory.Fact, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(terms))
	args := []any{scope}

	for _, term := range terms {
		if term == "" {
			continue
		}
		conditions = append(conditions, "summary LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(term)+"%")
	}

	if len(conditions) == 0 {
		return nil, nil
	}

	query := `SELECT ` + factColumns + ` FROM facts
		WHERE scope = ? AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search facts: %w", err)
	}
	defer rows.Close()

	return s.scanFacts(rows)
}

// UpdateFactEmbedding sets the embedding on a fact.
func (s *SQLiteDriver) UpdateFactEmbedding(ctx context.Context, scope, id string, embedding []float32) error {
	embeddingJSON, err := marshalEmbedding(embedding)
	if err != nil {
		return err
	}

	query := `UPDATE facts SET embedding = ?, updated_at = ? WHERE scope = ? AND id = ?`

	res, err := s.db.ExecContext(ctx, query, embeddingJSON, time.Now().UTC(), scope, id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return memory.NotFoundError{Entity: "fact", Key: id}
	}

	return nil
}

const cardColumns = `id, scope, kind, entity, slot, value, polarity,
	version_key, relation, source_memory_id, engine, engine_version,
	confidence, is_active, predecessor_id, event_date, created_at, updated_at`

// InsertCard stores a new card.
func (s *SQLiteDriver) InsertCard(ctx context.Context, card *memory.Card) error {
	if card == nil {
		return fmt.Errorf("cannot store nil card")
	}

	err := insertCardTx(ctx, s.db, card)
	if isUniqueViolation(err) {
		return memory.ConflictError{Key: card.VersionKey, Reason: "active card already exists"}
	}
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}

	return nil
}

// execer covers *sql.DB and *sql.Tx so card inserts share one statement.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCardTx(ctx context.Context, e execer, card *memory.Card) error {
	query := `INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var predecessor sql.NullString
	if card.PredecessorID != "" {
		predecessor = sql.NullString{String: card.PredecessorID, Valid: true}
	}

	var eventDate sql.NullTime
	if card.EventDate != nil {
		eventDate = sql.NullTime{Time: card.EventDate.UTC(), Valid: true}
	}

	_, err := e.ExecContext(ctx, query,
		card.ID, card.Scope, string(card.Kind), card.Entity, card.Slot,
		card.Value, string(card.Polarity), card.VersionKey,
		string(card.Relation), card.SourceMemoryID, string(card.Engine),
		card.EngineVersion, card.Confidence, boolToInt(card.Active),
		predecessor, eventDate, card.CreatedAt.UTC(), card.UpdatedAt.UTC(),
	)

	return err
}

// GetActiveCard returns the newest active card for (scope, entity, slot).
func (s *SQLiteDriver) GetActiveCard(ctx context.Context, scope, entity, slot string) (*memory.Card, error) {
	cards, err := s.ListActiveCards(ctx, scope, entity, slot)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, memory.NotFoundError{Entity: "card", Key: entity + ":" + slot}
	}

	return cards[0], nil
}

// ListActiveCards returns every active card for (scope, entity, slot).
func (s *SQLiteDriver) ListActiveCards(ctx context.Context, scope, entity, slot string) ([]*memory.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE scope = ? AND entity = ? AND slot = ? AND is_active = 1
		ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, scope, entity, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to query active cards: %w", err)
	}
	defer rows.Close()

	cards, err := s.scanCards(rows)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cards))
	for _, card := range cards {
		if seen[card.VersionKey] {
			return nil, memory.DataIntegrityError{
				Key:    card.VersionKey,
				Detail: "multiple active cards for one version key",
			}
		}
		seen[card.VersionKey] = true
	}

	return cards, nil
}

// SwapActiveCard atomically deactivates the predecessor and inserts the
// successor as the new active card for its version key.
func (s *SQLiteDriver) SwapActiveCard(ctx context.Context, scope, predecessorID string, successor *memory.Card) error {
	if successor == nil {
		return fmt.Errorf("cannot store nil card")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deactivate := `UPDATE cards SET is_active = 0, updated_at = ?
		WHERE scope = ? AND id = ? AND is_active = 1`

	res, err := tx.ExecContext(ctx, deactivate, time.Now().UTC(), scope, predecessorID)
	if err != nil {
		return fmt.Errorf("failed to deactivate predecessor: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected != 1 {
		return memory.ConflictError{
			Key:    successor.VersionKey,
			Reason: "predecessor is no longer the active card",
		}
	}

	if err := insertCardTx(ctx, tx, successor); err != nil {
		if isUniqueViolation(err) {
			return memory.ConflictError{Key: successor.VersionKey, Reason: "active card already exists"}
		}
		return fmt.Errorf("failed to insert successor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit swap: %w", err)
	}

	return nil
}

// RetractActiveCard deactivates the active card for a version key.
func (s *SQLiteDriver) RetractActiveCard(ctx context.Context, scope, versionKey string) (*memory.Card, error) {
	query := `UPDATE cards SET is_active = 0, updated_at = ?
		WHERE scope = ? AND version_key = ? AND is_active = 1
		RETURNING ` + cardColumns

	card, err := s.scanCard(s.db.QueryRowContext(ctx, query, time.Now().UTC(), scope, versionKey), versionKey)
	if err != nil {
		return nil, err
	}

	return card, nil
}

// ListCardHistory returns every card for a version key, newest first.
func (s *SQLiteDriver) ListCardHistory(ctx context.Context, scope, versionKey string) ([]*memory.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE scope = ? AND version_key = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, scope, versionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query card history: %w", err)
	}
	defer rows.Close()

	return s.scanCards(rows)
}

// InsertEnrichment stores an enrichment record.
func (s *SQLiteDriver) InsertEnrichment(ctx context.Context, record *memory.EnrichmentRecord) error {
	if record == nil {
		return fmt.Errorf("cannot store nil enrichment record")
	}

	var cardIDs sql.NullString
	if len(record.CardIDs) > 0 {
		raw, err := json.Marshal(record.CardIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal card ids: %w", err)
		}
		cardIDs = sql.NullString{String: string(raw), Valid: true}
	}

	query := `INSERT INTO enrichments
		(id, scope, memory_id, engine, engine_version, success, card_ids, error_message, enriched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Scope, record.MemoryID, string(record.Engine),
		record.EngineVersion, boolToInt(record.Success), cardIDs,
		record.ErrorMessage, record.EnrichedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return memory.ConflictError{
			Key:    record.MemoryID,
			Reason: "enrichment already recorded for engine version",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to insert enrichment: %w", err)
	}

	return nil
}

// HasEnrichment reports whether a fact was already processed by an engine version.
func (s *SQLiteDriver) HasEnrichment(ctx context.Context, scope, memoryID string, engine memory.EngineKind, engineVersion string) (bool, error) {
	query := `SELECT 1 FROM enrichments
		WHERE scope = ? AND memory_id = ? AND engine = ? AND engine_version = ?
		LIMIT 1`

	var exists int
	err := s.db.QueryRowContext(ctx, query, scope, memoryID, string(engine), engineVersion).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check enrichment: %w", err)
	}

	return true, nil
}

// ListEnrichedMemoryIDs returns IDs of all facts processed by an engine version.
func (s *SQLiteDriver) ListEnrichedMemoryIDs(ctx context.Context, scope string, engine memory.EngineKind, engineVersion string) ([]string, error) {
	query := `SELECT memory_id FROM enrichments
		WHERE scope = ? AND engine = ? AND engine_version = ?`

	rows, err := s.db.QueryContext(ctx, query, scope, string(engine), engineVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrichments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrichment: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// Close closes the database connection.
func (s *SQLiteDriver) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteDriver) scanFact(row rowScanner, key string) (*memory.Fact, error) {
	var fact memory.Fact
	var kind string
	var embeddingJSON sql.NullString

	err := row.Scan(
		&fact.ID, &fact.Scope, &kind, &fact.Summary, &embeddingJSON,
		&fact.ContentHash, &fact.ReinforcementCount,
		&fact.HappenedAt, &fact.CreatedAt, &fact.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.NotFoundError{Entity: "fact", Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fact: %w", err)
	}

	fact.Kind = memory.Kind(kind)

	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &fact.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}

	return &fact, nil
}

func (s *SQLiteDriver) scanFacts(rows *sql.Rows) ([]*memory.Fact, error) {
	var facts []*memory.Fact

	for rows.Next() {
		fact, err := s.scanFact(rows, "")
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return facts, nil
}

func (s *SQLiteDriver) scanCard(row rowScanner, key string) (*memory.Card, error) {
	var card memory.Card
	var kind, polarity, relation, engine string
	var active int
	var predecessor sql.NullString
	var eventDate sql.NullTime

	err := row.Scan(
		&card.ID, &card.Scope, &kind, &card.Entity, &card.Slot, &card.Value,
		&polarity, &card.VersionKey, &relation, &card.SourceMemoryID,
		&engine, &card.EngineVersion, &card.Confidence, &active,
		&predecessor, &eventDate, &card.CreatedAt, &card.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.NotFoundError{Entity: "card", Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}

	card.Kind = memory.CardKind(kind)
	card.Polarity = memory.Polarity(polarity)
	card.Relation = memory.Relation(relation)
	card.Engine = memory.EngineKind(engine)
	card.Active = active == 1

	if predecessor.Valid {
		card.PredecessorID = predecessor.String
	}
	if eventDate.Valid {
		t := eventDate.Time
		card.EventDate = &t
	}

	return &card, nil
}

func (s *SQLiteDriver) scanCards(rows *sql.Rows) ([]*memory.Card, error) {
	var cards []*memory.Card

	for rows.Next() {
		card, err := s.scanCard(rows, "")
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return cards, nil
}

func marshalEmbedding(embedding []float32) (sql.NullString, error) {
	if len(embedding) == 0 {
		return sql.NullString{}, nil
	}

	raw, err := json.Marshal(embedding)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	return sql.NullString{String: string(raw), Valid: true}, nil
}

// escapeLike escapes LIKE metacharacters in a search term.
func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)

	return term
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// isUniqueViolation detects SQLite unique-constraint failures. The modernc
// driver surfaces them as plain errors carrying the constraint message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

// Ensure SQLiteDriver implements storage.Driver
var _ storage.Driver = (*SQLiteDriver)(nil)
