package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/IUBLibTech/ipguide/internal/model"
)

// PostgresRepository persists the raw record set between runs so the
// index can be rebuilt when the remote table is unreachable.
type PostgresRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresRepository(db *sqlx.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// SaveRecords replaces the stored snapshot with records, in one
// transaction so a failed save leaves the previous snapshot intact.
func (r *PostgresRepository) SaveRecords(ctx context.Context, records []model.RawRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE network_records"); err != nil {
		return err
	}

	query := `
        INSERT INTO network_records (network, asn, org_name, country_code)
        VALUES ($1, $2, $3, $4)
    `

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx, rec.Network, rec.ASN, rec.Name, rec.Country)
		if err != nil {
			r.logger.Error("failed to insert network record",
				zap.String("network", rec.Network),
				zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

// LoadRecords returns the stored snapshot in its original load order.
func (r *PostgresRepository) LoadRecords(ctx context.Context) ([]model.RawRecord, error) {
	query := `
        SELECT network, asn, org_name, country_code
        FROM network_records
        ORDER BY id ASC
    `

	var records []model.RawRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		r.logger.Error("failed to load network records", zap.Error(err))
		return nil, err
	}

	return records, nil
}

func (r *PostgresRepository) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT count(*) FROM network_records")
	return count, err
}
