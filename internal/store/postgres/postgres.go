package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates any missing tables and indexes. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const sellerColumns = `id, name, email, password_hash, role, kind, partner_store, valid_from, valid_until, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeller(row rowScanner) (*domain.Seller, error) {
	var (
		seller     domain.Seller
		validFrom  sql.NullTime
		validUntil sql.NullTime
	)
	if err := row.Scan(
		&seller.ID, &seller.Name, &seller.Email, &seller.PasswordHash, &seller.Role, &seller.Kind,
		&seller.PartnerStore, &validFrom, &validUntil, &seller.CreatedAt,
	); err != nil {
		return nil, err
	}
	seller.ValidFrom = nullTimePtr(validFrom)
	seller.ValidUntil = nullTimePtr(validUntil)
	return &seller, nil
}

func (s *Store) CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error) {
	seller.Email = strings.ToLower(strings.TrimSpace(seller.Email))
	if seller.Name == "" || seller.Email == "" || seller.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}
	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = time.Now().UTC()
	}

	created, err := scanSeller(s.db.QueryRowContext(ctx, `
		INSERT INTO sellers (name, email, password_hash, role, kind, partner_store, valid_from, valid_until, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+sellerColumns,
		seller.Name, seller.Email, seller.PasswordHash, seller.Role, seller.Kind, seller.PartnerStore,
		timePtrArg(seller.ValidFrom), timePtrArg(seller.ValidUntil), seller.CreatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) UpdateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error) {
	seller.Email = strings.ToLower(strings.TrimSpace(seller.Email))

	updated, err := scanSeller(s.db.QueryRowContext(ctx, `
		UPDATE sellers
		SET name = $2, email = $3, role = $4, kind = $5, partner_store = $6, valid_from = $7, valid_until = $8,
			password_hash = COALESCE(NULLIF($9, ''), password_hash)
		WHERE id = $1
		RETURNING `+sellerColumns,
		seller.ID, seller.Name, seller.Email, seller.Role, seller.Kind, seller.PartnerStore,
		timePtrArg(seller.ValidFrom), timePtrArg(seller.ValidUntil), seller.PasswordHash,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) GetSeller(ctx context.Context, id int64) (*domain.Seller, error) {
	seller, err := scanSeller(s.db.QueryRowContext(ctx, `SELECT `+sellerColumns+` FROM sellers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return seller, nil
}

func (s *Store) GetSellerByEmail(ctx context.Context, email string) (*domain.Seller, error) {
	seller, err := scanSeller(s.db.QueryRowContext(ctx,
		`SELECT `+sellerColumns+` FROM sellers WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return seller, nil
}

func (s *Store) ListSellers(ctx context.Context) ([]domain.Seller, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sellerColumns+` FROM sellers ORDER BY name COLLATE "C", id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sellers := make([]domain.Seller, 0, 32)
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		sellers = append(sellers, *seller)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sellers, nil
}

func (s *Store) UpdateSellerPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sellers SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateBank(ctx context.Context, bank domain.Bank) (*domain.Bank, error) {
	if strings.TrimSpace(bank.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if bank.CreatedAt.IsZero() {
		bank.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO banks (name, code, active, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, bank.Name, bank.Code, bank.Active, bank.CreatedAt).Scan(&bank.ID)
	if err != nil {
		return nil, err
	}
	return &bank, nil
}

func (s *Store) UpdateBank(ctx context.Context, bank domain.Bank) (*domain.Bank, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE banks SET name = $2, code = $3, active = $4
		WHERE id = $1
		RETURNING created_at
	`, bank.ID, bank.Name, bank.Code, bank.Active).Scan(&bank.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &bank, nil
}

func (s *Store) GetBank(ctx context.Context, id int64) (*domain.Bank, error) {
	var bank domain.Bank
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, code, active, created_at FROM banks WHERE id = $1
	`, id).Scan(&bank.ID, &bank.Name, &bank.Code, &bank.Active, &bank.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &bank, nil
}

func (s *Store) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, code, active, created_at FROM banks ORDER BY name COLLATE "C", id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	banks := make([]domain.Bank, 0, 16)
	for rows.Next() {
		var bank domain.Bank
		if err := rows.Scan(&bank.ID, &bank.Name, &bank.Code, &bank.Active, &bank.CreatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, bank)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return banks, nil
}

func (s *Store) CreatePartnerStore(ctx context.Context, partner domain.PartnerStore) (*domain.PartnerStore, error) {
	if strings.TrimSpace(partner.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if partner.CreatedAt.IsZero() {
		partner.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO partner_stores (name, cnpj, city, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, partner.Name, partner.CNPJ, partner.City, partner.Active, partner.CreatedAt).Scan(&partner.ID)
	if err != nil {
		return nil, err
	}
	return &partner, nil
}

func (s *Store) UpdatePartnerStore(ctx context.Context, partner domain.PartnerStore) (*domain.PartnerStore, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE partner_stores SET name = $2, cnpj = $3, city = $4, active = $5
		WHERE id = $1
		RETURNING created_at
	`, partner.ID, partner.Name, partner.CNPJ, partner.City, partner.Active).Scan(&partner.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &partner, nil
}

func (s *Store) GetPartnerStore(ctx context.Context, id int64) (*domain.PartnerStore, error) {
	var partner domain.PartnerStore
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, cnpj, city, active, created_at FROM partner_stores WHERE id = $1
	`, id).Scan(&partner.ID, &partner.Name, &partner.CNPJ, &partner.City, &partner.Active, &partner.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &partner, nil
}

func (s *Store) ListPartnerStores(ctx context.Context) ([]domain.PartnerStore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, cnpj, city, active, created_at FROM partner_stores ORDER BY name COLLATE "C", id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	partners := make([]domain.PartnerStore, 0, 16)
	for rows.Next() {
		var partner domain.PartnerStore
		if err := rows.Scan(&partner.ID, &partner.Name, &partner.CNPJ, &partner.City, &partner.Active, &partner.CreatedAt); err != nil {
			return nil, err
		}
		partners = append(partners, partner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return partners, nil
}

const ruleColumns = `id, seller_id, min_value, max_value, percent, created_at`

func scanRule(row rowScanner) (*domain.CommissionRule, error) {
	var (
		rule     domain.CommissionRule
		sellerID sql.NullInt64
		minValue decimal.Decimal
		maxValue decimal.NullDecimal
		percent  decimal.Decimal
	)
	if err := row.Scan(&rule.ID, &sellerID, &minValue, &maxValue, &percent, &rule.CreatedAt); err != nil {
		return nil, err
	}
	if sellerID.Valid {
		id := sellerID.Int64
		rule.SellerID = &id
	}
	rule.MinValue = minValue.InexactFloat64()
	if maxValue.Valid {
		upper := maxValue.Decimal.InexactFloat64()
		rule.MaxValue = &upper
	}
	rule.Percent = percent.InexactFloat64()
	return &rule, nil
}

func (s *Store) CreateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	created, err := scanRule(s.db.QueryRowContext(ctx, `
		INSERT INTO commission_rules (seller_id, min_value, max_value, percent, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+ruleColumns,
		int64PtrArg(rule.SellerID), rule.MinValue, float64PtrArg(rule.MaxValue), rule.Percent, rule.CreatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		if isCheckViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) UpdateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	updated, err := scanRule(s.db.QueryRowContext(ctx, `
		UPDATE commission_rules SET seller_id = $2, min_value = $3, max_value = $4, percent = $5
		WHERE id = $1
		RETURNING `+ruleColumns,
		rule.ID, int64PtrArg(rule.SellerID), rule.MinValue, float64PtrArg(rule.MaxValue), rule.Percent,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		if isCheckViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteCommissionRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commission_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) GetCommissionRule(ctx context.Context, id int64) (*domain.CommissionRule, error) {
	rule, err := scanRule(s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM commission_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rule, nil
}

func (s *Store) ListCommissionRules(ctx context.Context) ([]domain.CommissionRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM commission_rules ORDER BY min_value, id`)
}

func (s *Store) ListApplicableRules(ctx context.Context, sellerID int64) ([]domain.CommissionRule, error) {
	return s.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM commission_rules
		WHERE seller_id IS NULL OR seller_id = $1
		ORDER BY min_value, id
	`, sellerID)
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]domain.CommissionRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.CommissionRule, 0, 16)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID, &entry.ActorID, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

func timePtrArg(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func int64PtrArg(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func float64PtrArg(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

// isCheckViolation also covers numeric overflow (22003), which the schema's
// NUMERIC precision raises for values out of range.
func isCheckViolation(err error) bool {
	code := pgErrorCode(err)
	return code == "23514" || code == "22003"
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
