package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"credgate/internal/authorizer/models"
	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/sentinel"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// PostgresStore persists authorizers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `id, appid, authorized, refresh_token, func_scopes, profile, created_at, updated_at`

// Create inserts a new record. An existing appid yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, a *models.Authorizer) error {
	if a == nil {
		return fmt.Errorf("authorizer is required")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	scopes, err := encodeScopes(a.FuncScopes)
	if err != nil {
		return err
	}
	profile, err := models.EncodeProfile(a.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	query := `
		INSERT INTO authorizers (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(a.ID),
		string(a.AppID),
		a.Authorized,
		a.RefreshToken,
		scopes,
		profile,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("authorizer appid must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create authorizer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByAppID(ctx context.Context, appID id.AppID) (*models.Authorizer, error) {
	query := `SELECT ` + selectColumns + ` FROM authorizers WHERE appid = $1`
	a, err := scanAuthorizer(s.db.QueryRowContext(ctx, query, string(appID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find authorizer by appid: %w", err)
	}
	return a, nil
}

// Update writes the non-nil fields of changes plus updated_at. Empty changes
// issue no statement.
func (s *PostgresStore) Update(ctx context.Context, appID id.AppID, changes models.Changes, now time.Time) error {
	if changes.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Authorized != nil {
		add("authorized", *changes.Authorized)
	}
	if changes.RefreshToken != nil {
		add("refresh_token", *changes.RefreshToken)
	}
	if changes.FuncScopes != nil {
		scopes, err := encodeScopes(*changes.FuncScopes)
		if err != nil {
			return err
		}
		add("func_scopes", scopes)
	}
	if changes.Profile != nil {
		profile, err := models.EncodeProfile(*changes.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		add("profile", profile)
	}
	add("updated_at", now)

	args = append(args, string(appID))
	query := fmt.Sprintf(`UPDATE authorizers SET %s WHERE appid = $%d`, strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgCode(err) == pgCheckViolation {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "authorized record requires a refresh token")
		}
		return fmt.Errorf("update authorizer: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update authorizer rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns all records ordered by appid.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Authorizer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM authorizers ORDER BY appid`)
	if err != nil {
		return nil, fmt.Errorf("list authorizers: %w", err)
	}
	defer rows.Close()

	var out []*models.Authorizer
	for rows.Next() {
		a, err := scanAuthorizer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan authorizer: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list authorizers: %w", err)
	}
	return out, nil
}

type authorizerRow interface {
	Scan(dest ...any) error
}

func scanAuthorizer(row authorizerRow) (*models.Authorizer, error) {
	var (
		a       models.Authorizer
		rowID   uuid.UUID
		appID   string
		scopes  []byte
		profile []byte
	)
	if err := row.Scan(&rowID, &appID, &a.Authorized, &a.RefreshToken, &scopes, &profile, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.AuthorizerID(rowID)
	a.AppID = id.AppID(appID)
	if len(scopes) > 0 {
		if err := json.Unmarshal(scopes, &a.FuncScopes); err != nil {
			return nil, fmt.Errorf("decode func_scopes: %w", err)
		}
	}
	p, err := models.DecodeProfile(profile)
	if err != nil {
		return nil, err
	}
	a.Profile = p
	return &a, nil
}

func encodeScopes(scopes []int) ([]byte, error) {
	if scopes == nil {
		scopes = []int{}
	}
	data, err := json.Marshal(scopes)
	if err != nil {
		return nil, fmt.Errorf("encode func_scopes: %w", err)
	}
	return data, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
