package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
)

const uniqueViolation = "23505"

// pgxPool is the subset of pgxpool.Pool the storage depends on, narrow enough
// for pgxmock to stand in during tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type sessionRepository struct {
	storage *Storage
}

type orderRepository struct {
	storage *Storage
}

type userRepository struct {
	storage *Storage
}

type catalogRepository struct {
	storage *Storage
}

// New creates storage with connection retry and schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	// the database may still be starting; retry the first ping a few times
	backoff := retry.WithMaxRetries(3, retry.NewConstant(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.Warn("database ping failed, retrying", slog.String("error", pingErr.Error()))
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ repository.Factory = (*Storage)(nil)

// Factory methods for domain repositories.
func (s *Storage) Sessions() repository.SessionRepository {
	return &sessionRepository{storage: s}
}

func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) Users() repository.UserRepository {
	return &userRepository{storage: s}
}

func (s *Storage) Catalog() repository.CatalogRepository {
	return &catalogRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            user_id TEXT PRIMARY KEY,
            state TEXT NOT NULL,
            data JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            service_id TEXT,
            service_name TEXT,
            platform TEXT,
            category TEXT,
            target TEXT,
            quantity INTEGER NOT NULL DEFAULT 0,
            raw_price DOUBLE PRECISION NOT NULL DEFAULT 0,
            price_per_unit DOUBLE PRECISION NOT NULL DEFAULT 0,
            price_unit_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
            amount_due DOUBLE PRECISION NOT NULL DEFAULT 0,
            payment_phone TEXT,
            status TEXT NOT NULL,
            payment_meta JSONB,
            provider_response JSONB,
            remote_order_id TEXT,
            payment_ref TEXT,
            completed_at TIMESTAMPTZ,
            referred_credited BOOLEAN NOT NULL DEFAULT FALSE,
            processing BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            phone TEXT PRIMARY KEY,
            balance DOUBLE PRECISION NOT NULL DEFAULT 0,
            referred_by TEXT,
            referrals INTEGER NOT NULL DEFAULT 0,
            withdrawn DOUBLE PRECISION NOT NULL DEFAULT 0,
            referral_code TEXT UNIQUE,
            language TEXT NOT NULL DEFAULT 'en',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id TEXT PRIMARY KEY,
            platform TEXT NOT NULL,
            category TEXT,
            name TEXT NOT NULL,
            price DOUBLE PRECISION,
            raw JSONB,
            imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_polling ON orders(status) WHERE remote_order_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_services_platform ON services(platform, category)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// --- SessionRepository implementation ---

func (r *sessionRepository) Get(ctx context.Context, userID string) (*model.Session, error) {
	const query = `SELECT state, data, updated_at FROM sessions WHERE user_id=$1`
	var (
		state   string
		rawData []byte
		updated time.Time
	)
	err := r.storage.pool.QueryRow(ctx, query, userID).Scan(&state, &rawData, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}

	session := &model.Session{UserID: userID, State: model.DialogState(state), UpdatedAt: updated}
	if err := json.Unmarshal(rawData, &session.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *model.Session) error {
	rawData, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}

	const query = `INSERT INTO sessions (user_id, state, data, updated_at)
                   VALUES ($1, $2, $3, NOW())
                   ON CONFLICT (user_id) DO UPDATE
                   SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = NOW()`
	_, err = r.storage.pool.Exec(ctx, query, session.UserID, string(session.State), rawData)
	return err
}

// --- OrderRepository implementation ---

const orderColumns = `id, session_id, service_id, service_name, platform, category, target,
                      quantity, raw_price, price_per_unit, price_unit_multiplier, amount_due,
                      payment_phone, status, payment_meta, provider_response, remote_order_id,
                      payment_ref, completed_at, referred_credited, processing, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o          model.Order
		status     string
		payMeta    []byte
		provResp   []byte
		payPhone   *string
		serviceID  *string
		service    *string
		platform   *string
		category   *string
		target     *string
		paymentRef *string
	)
	err := row.Scan(&o.ID, &o.SessionID, &serviceID, &service, &platform, &category, &target,
		&o.Quantity, &o.RawPrice, &o.PricePerUnit, &o.PriceUnitMultiplier, &o.AmountDue,
		&payPhone, &status, &payMeta, &provResp, &o.RemoteOrderID,
		&paymentRef, &o.CompletedAt, &o.ReferredCredited, &o.Processing, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	o.PaymentMeta = payMeta
	o.ProviderResponse = provResp
	o.PaymentRef = paymentRef
	if serviceID != nil {
		o.ServiceID = *serviceID
	}
	if service != nil {
		o.ServiceName = *service
	}
	if platform != nil {
		o.Platform = *platform
	}
	if category != nil {
		o.Category = *category
	}
	if target != nil {
		o.Target = *target
	}
	if payPhone != nil {
		o.PaymentPhone = *payPhone
	}
	return &o, nil
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	const query = `INSERT INTO orders
                   (id, session_id, service_id, service_name, platform, category, target,
                    quantity, raw_price, price_per_unit, price_unit_multiplier, amount_due,
                    payment_phone, status)
                   VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.storage.pool.Exec(ctx, query,
		order.ID, order.SessionID, order.ServiceID, order.ServiceName, order.Platform,
		order.Category, order.Target, order.Quantity, order.RawPrice, order.PricePerUnit,
		order.PriceUnitMultiplier, order.AmountDue, order.PaymentPhone, string(order.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// terminalStatuses guards every transition so a completed, failed, or
// cancelled order can never be moved again.
const terminalStatuses = `('COMPLETED','FAILED','CANCELLED','PAYMENT_FAILED')`

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (bool, error) {
	query := `UPDATE orders SET status=$1, updated_at=NOW(),
              completed_at = CASE WHEN $1='COMPLETED' THEN NOW() ELSE completed_at END
              WHERE id=$2 AND status NOT IN ` + terminalStatuses
	tag, err := r.storage.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *orderRepository) MarkPaymentFailed(ctx context.Context, id string, payload []byte, ref *string) error {
	query := `UPDATE orders SET status='PAYMENT_FAILED', payment_meta=$2,
              payment_ref=COALESCE($3, payment_ref), updated_at=NOW()
              WHERE id=$1 AND status NOT IN ` + terminalStatuses
	_, err := r.storage.pool.Exec(ctx, query, id, payload, ref)
	return err
}

func (r *orderRepository) MarkPaymentReceived(ctx context.Context, id string, ref *string) error {
	query := `UPDATE orders SET status='PROCESSING',
              payment_ref=COALESCE($2, payment_ref), updated_at=NOW()
              WHERE id=$1 AND status NOT IN ` + terminalStatuses
	_, err := r.storage.pool.Exec(ctx, query, id, ref)
	return err
}

func (r *orderRepository) ClaimSubmission(ctx context.Context, id string) (bool, error) {
	query := `UPDATE orders SET processing=TRUE, updated_at=NOW()
              WHERE id=$1 AND processing=FALSE AND remote_order_id IS NULL
              AND status NOT IN ` + terminalStatuses
	tag, err := r.storage.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *orderRepository) StoreSubmissionResult(ctx context.Context, id string, response []byte, remoteID *string, status model.OrderStatus, completedAt *time.Time) error {
	const query = `UPDATE orders SET provider_response=$2, remote_order_id=$3, status=$4,
                   completed_at=COALESCE($5, completed_at), processing=FALSE, updated_at=NOW()
                   WHERE id=$1`
	_, err := r.storage.pool.Exec(ctx, query, id, response, remoteID, string(status), completedAt)
	return err
}

func (r *orderRepository) StorePaymentMeta(ctx context.Context, id string, payload []byte) error {
	const query = `UPDATE orders SET payment_meta=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.storage.pool.Exec(ctx, query, id, payload)
	return err
}

func (r *orderRepository) StoreProviderResponse(ctx context.Context, id string, response []byte) error {
	const query = `UPDATE orders SET provider_response=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.storage.pool.Exec(ctx, query, id, response)
	return err
}

func (r *orderRepository) ClaimReferralCredit(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE orders SET referred_credited=TRUE, updated_at=NOW()
                   WHERE id=$1 AND referred_credited=FALSE`
	tag, err := r.storage.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *orderRepository) SelectBatchForPolling(ctx context.Context, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
              FROM orders
              WHERE remote_order_id IS NOT NULL AND status IN ('PROCESSING','PENDING')
              ORDER BY updated_at
              LIMIT $1`
	rows, err := r.storage.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`
	rows, err := r.storage.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- UserRepository implementation ---

const userColumns = `phone, balance, referred_by, referrals, withdrawn, referral_code, language, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.Phone, &u.Balance, &u.ReferredBy, &u.Referrals, &u.Withdrawn,
		&u.ReferralCode, &u.Language, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone=$1`
	user, err := scanUser(r.storage.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetOrCreate(ctx context.Context, phone string) (*model.User, error) {
	query := `INSERT INTO users (phone) VALUES ($1)
              ON CONFLICT (phone) DO UPDATE SET updated_at = NOW()
              RETURNING ` + userColumns
	return scanUser(r.storage.pool.QueryRow(ctx, query, phone))
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code=$1`
	user, err := scanUser(r.storage.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) SetReferredBy(ctx context.Context, phone, referrer string) error {
	const query = `UPDATE users SET referred_by=$2, updated_at=NOW()
                   WHERE phone=$1 AND referred_by IS NULL`
	tag, err := r.storage.pool.Exec(ctx, query, phone, referrer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrReferralAlreadySet
	}
	return nil
}

func (r *userRepository) SetReferralCode(ctx context.Context, phone, code string) error {
	const query = `UPDATE users SET referral_code=$2, updated_at=NOW() WHERE phone=$1`
	_, err := r.storage.pool.Exec(ctx, query, phone, code)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *userRepository) SetLanguage(ctx context.Context, phone, language string) error {
	const query = `UPDATE users SET language=$2, updated_at=NOW() WHERE phone=$1`
	_, err := r.storage.pool.Exec(ctx, query, phone, language)
	return err
}

func (r *userRepository) ListReferees(ctx context.Context, referrer string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referred_by=$1 ORDER BY created_at`
	rows, err := r.storage.pool.Query(ctx, query, referrer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *userRepository) CreditBonus(ctx context.Context, phone string, amount float64) (*model.User, error) {
	query := `UPDATE users SET balance=balance+$2, referrals=referrals+1, updated_at=NOW()
              WHERE phone=$1
              RETURNING ` + userColumns
	user, err := scanUser(r.storage.pool.QueryRow(ctx, query, phone, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Withdraw(ctx context.Context, phone string, amount float64) (*model.User, error) {
	// balance must never go negative
	query := `UPDATE users SET balance=balance-$2, withdrawn=withdrawn+$2, updated_at=NOW()
              WHERE phone=$1 AND balance >= $2
              RETURNING ` + userColumns
	user, err := scanUser(r.storage.pool.QueryRow(ctx, query, phone, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrInsufficientBalance
		}
		return nil, err
	}
	return user, nil
}

// --- CatalogRepository implementation ---

func (r *catalogRepository) ReplaceServices(ctx context.Context, services []model.Service) error {
	return r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM services`); err != nil {
			return err
		}
		const insert = `INSERT INTO services (id, platform, category, name, price, raw)
                        VALUES ($1,$2,$3,$4,$5,$6)`
		for _, svc := range services {
			if _, err := tx.Exec(ctx, insert, svc.ID, svc.Platform, svc.Category, svc.Name, svc.Price, []byte(svc.Raw)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *catalogRepository) ListPlatforms(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT platform FROM services ORDER BY platform`
	return r.storage.queryStrings(ctx, query)
}

func (r *catalogRepository) ListCategories(ctx context.Context, platform string) ([]string, error) {
	const query = `SELECT DISTINCT category FROM services
                   WHERE platform=$1 AND category IS NOT NULL AND category <> ''
                   ORDER BY category`
	return r.storage.queryStrings(ctx, query, platform)
}

func (r *catalogRepository) ListServices(ctx context.Context, platform, category string) ([]model.Service, error) {
	query := `SELECT id, platform, category, name, price, raw, imported_at
              FROM services WHERE platform=$1`
	args := []any{platform}
	if category != "" {
		query += ` AND category=$2`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *catalogRepository) GetByID(ctx context.Context, id string) (*model.Service, error) {
	const query = `SELECT id, platform, category, name, price, raw, imported_at
                   FROM services WHERE id=$1`
	svc, err := scanService(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return svc, nil
}

func scanService(row pgx.Row) (*model.Service, error) {
	var (
		svc      model.Service
		category *string
		raw      []byte
	)
	if err := row.Scan(&svc.ID, &svc.Platform, &category, &svc.Name, &svc.Price, &raw, &svc.ImportedAt); err != nil {
		return nil, err
	}
	if category != nil {
		svc.Category = *category
	}
	svc.Raw = raw
	return &svc, nil
}

func (s *Storage) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}
