package recurring

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	Create(ctx context.Context, userId int, obligation Obligation) (Obligation, error)
	// Get loads an obligation regardless of its owner so callers can tell a missing record from a foreign one.
	Get(ctx context.Context, id uuid.UUID) (Obligation, error)
	FindActiveObligations(ctx context.Context, userId int) ([]Obligation, error)
	FindObligations(ctx context.Context, userId int, includeInactive bool) ([]Obligation, error)
	// Update writes the obligation only when the stored version still equals expectedVersion.
	// The returned obligation carries the incremented version.
	Update(ctx context.Context, userId int, obligation Obligation, expectedVersion int) (Obligation, error)
	Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepo(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

const obligationColumns = `id, user_id, title, amount::text, category, description, frequency, start_date,
	end_date, next_due_date, payment_method, is_active, tags, version, created_at, updated_at`

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *repositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&repositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *repositoryImpl) Create(ctx context.Context, userId int, obligation Obligation) (Obligation, error) {
	query := `INSERT INTO recurring_obligation (
					id,
					user_id,
					title,
					amount,
					category,
					description,
					frequency,
					start_date,
					end_date,
					next_due_date,
					payment_method,
					is_active,
					tags,
					version
				) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
				RETURNING ` + obligationColumns

	if obligation.Id == uuid.Nil {
		obligation.Id = uuid.New()
	}
	created, err := scanObligation(r.getQueryer().QueryRow(ctx, query,
		obligation.Id,
		userId,
		obligation.Title,
		obligation.Amount.StringFixed(2),
		string(obligation.Category),
		obligation.Description,
		string(obligation.Frequency),
		obligation.StartDate,
		obligation.EndDate,
		obligation.NextDueDate,
		string(obligation.PaymentMethod),
		obligation.IsActive,
		tagsOrEmpty(obligation.Tags),
	))
	if err != nil {
		err := fmt.Errorf("could not store recurring obligation: %w", err)
		log.Error(err)
		return Obligation{}, err
	}
	return created, nil
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM recurring_obligation WHERE id = $1`
	obligation, err := scanObligation(r.getQueryer().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Obligation{}, ErrObligationNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get recurring obligation %s: %w", id, err)
		log.Error(err)
		return Obligation{}, err
	}
	return obligation, nil
}

func (r *repositoryImpl) FindActiveObligations(ctx context.Context, userId int) ([]Obligation, error) {
	return r.FindObligations(ctx, userId, false)
}

func (r *repositoryImpl) FindObligations(ctx context.Context, userId int, includeInactive bool) ([]Obligation, error) {
	query := `SELECT ` + obligationColumns + `
			  FROM recurring_obligation
			  WHERE user_id = $1 AND (is_active OR $2)
			  ORDER BY next_due_date, id::text`
	rows, err := r.getQueryer().Query(ctx, query, userId, includeInactive)
	if err != nil {
		err := fmt.Errorf("could not query recurring obligations: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	obligations := make([]Obligation, 0)
	for rows.Next() {
		obligation, err := scanObligation(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		obligations = append(obligations, obligation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return obligations, nil
}

func (r *repositoryImpl) Update(ctx context.Context, userId int, obligation Obligation, expectedVersion int) (Obligation, error) {
	query := `UPDATE recurring_obligation SET
					title = $4,
					amount = $5::numeric,
					category = $6,
					description = $7,
					frequency = $8,
					start_date = $9,
					end_date = $10,
					next_due_date = $11,
					payment_method = $12,
					is_active = $13,
					tags = $14,
					version = version + 1,
					updated_at = now()
				WHERE id = $1 AND user_id = $2 AND version = $3
				RETURNING ` + obligationColumns

	updated, err := scanObligation(r.getQueryer().QueryRow(ctx, query,
		obligation.Id,
		userId,
		expectedVersion,
		obligation.Title,
		obligation.Amount.StringFixed(2),
		string(obligation.Category),
		obligation.Description,
		string(obligation.Frequency),
		obligation.StartDate,
		obligation.EndDate,
		obligation.NextDueDate,
		string(obligation.PaymentMethod),
		obligation.IsActive,
		tagsOrEmpty(obligation.Tags),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Obligation{}, r.missedUpdateReason(ctx, userId, obligation.Id)
	}
	if err != nil {
		err := fmt.Errorf("could not update recurring obligation %s: %w", obligation.Id, err)
		log.Error(err)
		return Obligation{}, err
	}
	return updated, nil
}

// missedUpdateReason explains why a conditional update matched no rows.
func (r *repositoryImpl) missedUpdateReason(ctx context.Context, userId int, id uuid.UUID) error {
	var exists bool
	err := r.getQueryer().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM recurring_obligation WHERE id = $1 AND user_id = $2)`, id, userId,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("could not check recurring obligation %s: %w", id, err)
	}
	if !exists {
		return ErrObligationNotFound
	}
	log.Infof("version conflict while updating recurring obligation %s", id)
	return ErrConcurrencyConflict
}

func (r *repositoryImpl) Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	result, err := r.getQueryer().Exec(ctx,
		`DELETE FROM recurring_obligation WHERE id = $1 AND user_id = $2`, id, userId)
	if err != nil {
		err := fmt.Errorf("could not delete recurring obligation %s: %w", id, err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func scanObligation(row pgx.Row) (Obligation, error) {
	var (
		o             Obligation
		amount        string
		category      string
		frequency     string
		paymentMethod string
	)
	err := row.Scan(
		&o.Id,
		&o.OwnerId,
		&o.Title,
		&amount,
		&category,
		&o.Description,
		&frequency,
		&o.StartDate,
		&o.EndDate,
		&o.NextDueDate,
		&paymentMethod,
		&o.IsActive,
		&o.Tags,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return Obligation{}, err
	}
	o.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Obligation{}, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	o.Category = Category(category)
	o.Frequency = Frequency(frequency)
	o.PaymentMethod = PaymentMethod(paymentMethod)
	return o, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
