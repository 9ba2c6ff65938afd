package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
)

// Serializable transactions are retried this many times on serialization
// failures and deadlocks before the error is returned.
const (
	maxTxAttempts = 3
	retryBackoff  = 10 * time.Millisecond
)

const campaignColumns = `
	c.id,
	c.name,
	c.discount_type,
	c.discount_value,
	c.start_date,
	c.end_date,
	c.total_budget,
	c.used_budget,
	c.daily_usage_limit,
	c.created_at,
	c.updated_at,
	t.data`

const campaignFrom = `
	FROM campaigns c
	LEFT JOIN campaign_targeting t ON t.campaign_id = c.id`

// CampaignRepository implements port.CampaignRepository using pgxpool for
// PostgreSQL. NUMERIC columns map to decimal.Decimal through the codec
// registered on every pool connection.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a new repository instance.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var (
		c            domain.Campaign
		discountType string
		targetingRaw []byte
	)
	err := row.Scan(
		&c.ID,
		&c.Name,
		&discountType,
		&c.DiscountValue,
		&c.StartDate,
		&c.EndDate,
		&c.TotalBudget,
		&c.UsedBudget,
		&c.DailyUsageLimit,
		&c.CreatedAt,
		&c.UpdatedAt,
		&targetingRaw,
	)
	if err != nil {
		return c, err
	}
	c.DiscountType = domain.DiscountType(discountType)
	if len(targetingRaw) > 0 {
		if err = json.Unmarshal(targetingRaw, &c.Targeting); err != nil {
			return c, fmt.Errorf("campaign %d: decode targeting: %w", c.ID, err)
		}
	}
	c.Targeting = c.Targeting.Normalize()
	return c, nil
}

func (r *CampaignRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	return r.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO campaigns (name, discount_type, discount_value, start_date, end_date, total_budget, used_budget, daily_usage_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at`,
			c.Name, string(c.DiscountType), c.DiscountValue, c.StartDate, c.EndDate, c.TotalBudget, c.UsedBudget, c.DailyUsageLimit,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return err
		}
		return saveTargeting(ctx, tx, c.ID, c.Targeting)
	})
}

func saveTargeting(ctx context.Context, tx pgx.Tx, campaignID int64, t domain.Targeting) error {
	data, err := json.Marshal(t.Normalize())
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO campaign_targeting (campaign_id, data) VALUES ($1, $2)
		ON CONFLICT (campaign_id) DO UPDATE SET data = EXCLUDED.data`, campaignID, data)
	return err
}

// GetCampaign returns a campaign by id.
func (r *CampaignRepository) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT`+campaignColumns+campaignFrom+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+campaignColumns+campaignFrom+` ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		return scanCampaign(row)
	})
}

// UpdateCampaign writes every administrator field. used_budget is left
// alone; the CHECK on campaigns rejects a total below it.
func (r *CampaignRepository) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	return r.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE campaigns
			SET name = $2,
			    discount_type = $3,
			    discount_value = $4,
			    start_date = $5,
			    end_date = $6,
			    total_budget = $7,
			    daily_usage_limit = $8,
			    updated_at = now()
			WHERE id = $1
			RETURNING used_budget, created_at, updated_at`,
			c.ID, c.Name, string(c.DiscountType), c.DiscountValue, c.StartDate, c.EndDate, c.TotalBudget, c.DailyUsageLimit,
		).Scan(&c.UsedBudget, &c.CreatedAt, &c.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: campaign %d", domain.ErrNotFound, c.ID)
		}
		if err != nil {
			return err
		}
		return saveTargeting(ctx, tx, c.ID, c.Targeting)
	})
}

// DeleteCampaign removes the campaign; targeting and usage rows cascade.
func (r *CampaignRepository) DeleteCampaign(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CampaignRepository) GetActiveCampaigns(ctx context.Context, at time.Time, discountType *domain.DiscountType) ([]domain.Campaign, error) {
	var typeArg *string
	if discountType != nil {
		s := string(*discountType)
		typeArg = &s
	}
	rows, err := r.pool.Query(ctx, `SELECT`+campaignColumns+campaignFrom+`
		WHERE $1 BETWEEN c.start_date AND c.end_date
		  AND c.used_budget < c.total_budget
		  AND ($2::text IS NULL OR c.discount_type = $2)
		ORDER BY c.id`, at, typeArg)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		return scanCampaign(row)
	})
}

func (r *CampaignRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (username, email) VALUES ($1, $2) RETURNING id, created_at`,
		c.Username, c.Email,
	).Scan(&c.ID, &c.CreatedAt)
	return mapError(err)
}

func (r *CampaignRepository) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.pool.QueryRow(ctx, `SELECT id, username, email, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Username, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) MissingCustomers(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT u.id
		FROM unnest($1::bigint[]) AS u(id)
		LEFT JOIN customers c ON c.id = u.id
		WHERE c.id IS NULL
		ORDER BY u.id`, ids)
	if err != nil {
		return nil, err
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return missing, nil
}

func (r *CampaignRepository) GetUsage(ctx context.Context, key domain.UsageKey) (*domain.UsageRecord, error) {
	usage := &domain.UsageRecord{Key: key}
	err := r.pool.QueryRow(ctx, `
		SELECT transaction_count FROM discount_usage
		WHERE campaign_id = $1 AND customer_id = $2 AND used_on = $3`,
		key.CampaignID, key.CustomerID, key.Day,
	).Scan(&usage.TransactionCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return usage, nil
}

// Redeem runs fn in a serializable transaction holding row locks on the
// campaign and on the usage row, then writes the new used budget, the usage
// counter and the redemption before committing.
func (r *CampaignRepository) Redeem(ctx context.Context, key domain.UsageKey, fn port.RedeemFunc) (*domain.Redemption, error) {
	var red *domain.Redemption
	err := r.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		red = nil
		c, err := scanCampaign(tx.QueryRow(ctx,
			`SELECT`+campaignColumns+campaignFrom+` WHERE c.id = $1 FOR UPDATE OF c`, key.CampaignID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: campaign %d", domain.ErrNotFound, key.CampaignID)
		}
		if err != nil {
			return err
		}

		usage := &domain.UsageRecord{Key: key}
		err = tx.QueryRow(ctx, `
			SELECT transaction_count FROM discount_usage
			WHERE campaign_id = $1 AND customer_id = $2 AND used_on = $3
			FOR UPDATE`,
			key.CampaignID, key.CustomerID, key.Day,
		).Scan(&usage.TransactionCount)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if red, err = fn(&c, usage); err != nil {
			return err
		}

		if _, err = tx.Exec(ctx,
			`UPDATE campaigns SET used_budget = $2, updated_at = now() WHERE id = $1`,
			c.ID, c.UsedBudget); err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO discount_usage (campaign_id, customer_id, used_on, transaction_count)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (campaign_id, customer_id, used_on)
			DO UPDATE SET transaction_count = EXCLUDED.transaction_count`,
			key.CampaignID, key.CustomerID, key.Day, usage.TransactionCount); err != nil {
			return err
		}
		if red == nil {
			return nil
		}
		if red.CreatedAt.IsZero() {
			red.CreatedAt = time.Now().UTC()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO redemptions (id, campaign_id, customer_id, used_on, subtotal, delivery_fee, discount_amount, total, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			red.ID, red.CampaignID, red.CustomerID, red.Day,
			red.Order.Subtotal, red.Order.DeliveryFee, red.Order.DiscountApplied, red.Order.Total, red.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return red, nil
}

// GetStats returns aggregated redemptions for campaigns.
func (r *CampaignRepository) GetStats(ctx context.Context, req port.StatsReq) (*port.StatsResp, error) {
	args := []any{req.From, req.To}
	whereCampaign := ""
	if req.CampaignID != nil {
		whereCampaign = "AND campaign_id = $3"
		args = append(args, *req.CampaignID)
	}
	query := fmt.Sprintf(`
		SELECT count(*), COALESCE(sum(discount_amount), 0)
		FROM redemptions
		WHERE created_at >= $1 AND created_at <= $2 %s`, whereCampaign)
	resp := &port.StatsResp{DiscountTotal: decimal.Zero}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&resp.Redemptions, &resp.DiscountTotal); err != nil {
		return nil, err
	}
	return resp, nil
}

// inTx runs fn in a transaction, committing when it returns nil. Transient
// conflicts (serialization failure, deadlock) restart fn from scratch.
func (r *CampaignRepository) inTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.runTx(ctx, opts, fn)
		if !isRetryable(err) || attempt == maxTxAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * retryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return mapError(err)
}

func (r *CampaignRepository) runTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// mapError translates constraint violations into domain errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Detail)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.Detail)
	case codeCheckViolation:
		return fmt.Errorf("%w: constraint %s violated", domain.ErrInvalidInput, pgErr.ConstraintName)
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
	}
	return err
}
