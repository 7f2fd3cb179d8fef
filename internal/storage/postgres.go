package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/xaenox/botpanel/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

const botColumns = `id, user_id, username, password_ref, status, current_activity, last_seen,
	command, command_extras, command_seq, command_ack, config, created_at`

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify("connect", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Info("Database schema is up to date")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*models.BotRecord, error) {
	var (
		rec      models.BotRecord
		status   string
		command  string
		lastSeen sql.NullTime
		extras   []byte
		config   []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.Owner,
		&rec.Credentials.Username,
		&rec.Credentials.PasswordRef,
		&status,
		&rec.CurrentActivity,
		&lastSeen,
		&command,
		&extras,
		&rec.CommandSeq,
		&rec.CommandAck,
		&config,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.Status(status)
	rec.Command = models.CommandKind(command)
	if lastSeen.Valid {
		ts := lastSeen.Time
		rec.LastSeen = &ts
	}
	if err := json.Unmarshal(extras, &rec.CommandExtras); err != nil {
		return nil, fmt.Errorf("error decoding command extras: %w", err)
	}
	if err := json.Unmarshal(config, &rec.Config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStorage) GetBot(ctx context.Context, id string) (*models.BotRecord, error) {
	who, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + botColumns + ` FROM bots WHERE user_id = $1 AND id = $2`
	rec, err := scanBot(s.db.QueryRowContext(ctx, query, who.UserID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get bot", err)
	}
	return rec, nil
}

func (s *PostgresStorage) ListBots(ctx context.Context) ([]*models.BotRecord, error) {
	who, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + botColumns + ` FROM bots WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, who.UserID)
	if err != nil {
		return nil, classify("list bots", err)
	}
	defer rows.Close()

	var bots []*models.BotRecord
	for rows.Next() {
		rec, err := scanBot(rows)
		if err != nil {
			return nil, classify("scan bot", err)
		}
		bots = append(bots, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list bots", err)
	}
	return bots, nil
}

func (s *PostgresStorage) CreateBot(ctx context.Context, rec *models.BotRecord) error {
	who, err := operator(ctx)
	if err != nil {
		return err
	}

	if rec.Status == "" {
		rec.Status = models.StatusStopped
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	config, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	query := `
		INSERT INTO bots (id, user_id, username, password_ref, status, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		who.UserID,
		rec.Credentials.Username,
		rec.Credentials.PasswordRef,
		string(rec.Status),
		config,
		rec.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return classify("create bot", err)
	}

	rec.Owner = who.UserID
	return nil
}

func (s *PostgresStorage) WriteCommand(ctx context.Context, id string, kind models.CommandKind, extras models.CommandExtras) (models.CommandReceipt, error) {
	who, err := operator(ctx)
	if err != nil {
		return models.CommandReceipt{}, err
	}

	payload, err := json.Marshal(extras)
	if err != nil {
		return models.CommandReceipt{}, fmt.Errorf("error encoding command extras: %w", err)
	}

	// The CTE locks the row so the returned previous slot is the one overwritten.
	query := `
		WITH prev AS (
			SELECT command, command_seq, command_ack
			FROM bots
			WHERE user_id = $1 AND id = $2
			FOR UPDATE
		)
		UPDATE bots b
		SET command = $3, command_extras = $4, command_seq = b.command_seq + 1
		FROM prev
		WHERE b.user_id = $1 AND b.id = $2
		RETURNING b.command_seq, prev.command, prev.command_seq, prev.command_ack`

	var (
		receipt  models.CommandReceipt
		prevKind string
	)
	err = s.db.QueryRowContext(ctx, query, who.UserID, id, string(kind), payload).
		Scan(&receipt.Seq, &prevKind, &receipt.PrevSeq, &receipt.PrevAck)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CommandReceipt{}, ErrNotFound
	}
	if err != nil {
		return models.CommandReceipt{}, classify("write command", err)
	}
	receipt.PrevKind = models.CommandKind(prevKind)
	return receipt, nil
}

func (s *PostgresStorage) WriteConfig(ctx context.Context, id string, cfg models.BotConfig, creds models.Credentials) error {
	who, err := operator(ctx)
	if err != nil {
		return err
	}

	config, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	query := `
		UPDATE bots
		SET config = $3, username = $4, password_ref = $5
		WHERE user_id = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, who.UserID, id, config, creds.Username, creds.PasswordRef)
	if err != nil {
		return classify("write config", err)
	}
	return expectOneRow(result)
}

func (s *PostgresStorage) WriteStatus(ctx context.Context, id string, report models.StatusReport) error {
	who, err := agent(ctx, id)
	if err != nil {
		return err
	}

	seen := report.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}

	query := `
		UPDATE bots
		SET status = $3, current_activity = $4, last_seen = $5
		WHERE user_id = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, who.UserID, id, string(report.Status), report.Activity, seen)
	if err != nil {
		return classify("write status", err)
	}
	return expectOneRow(result)
}

func (s *PostgresStorage) AckCommand(ctx context.Context, id string, seq int64) error {
	who, err := agent(ctx, id)
	if err != nil {
		return err
	}

	query := `
		UPDATE bots
		SET command_ack = GREATEST(command_ack, $3),
			command = CASE WHEN command_seq = $3 THEN '' ELSE command END,
			command_extras = CASE WHEN command_seq = $3 THEN '{}'::jsonb ELSE command_extras END
		WHERE user_id = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, who.UserID, id, seq)
	if err != nil {
		return classify("ack command", err)
	}
	return expectOneRow(result)
}

func (s *PostgresStorage) PutSecret(ctx context.Context, handle string, sealed []byte) error {
	who, err := operator(ctx)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO secrets (handle, user_id, sealed) VALUES ($1, $2, $3)`,
		handle, who.UserID, sealed)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return classify("put secret", err)
}

func (s *PostgresStorage) GetSecret(ctx context.Context, handle string) ([]byte, error) {
	who, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	var sealed []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT sealed FROM secrets WHERE handle = $1 AND user_id = $2`,
		handle, who.UserID).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get secret", err)
	}
	return sealed, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
