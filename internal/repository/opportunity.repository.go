package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const (
	defaultOpportunityLimit = 100
	maxOpportunityLimit     = 1000
)

var opportunityColumns = []string{
	"id",
	"pair",
	"buy_exchange",
	"sell_exchange",
	"buy_price",
	"sell_price",
	"spread_percent",
	"profit_percent",
	"estimated_profit",
	"buy_fee",
	"sell_fee",
	"volume",
	"detected_at",
}

type OpportunityRepository struct {
	db *sqlx.DB
}

func NewOpportunityRepository(db *sqlx.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// Create journals an opportunity. Redelivered ids are ignored and reported as not inserted.
func (r *OpportunityRepository) Create(ctx context.Context, data *entity.ArbitrageOpportunity) (bool, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(data.TableName()).
		Columns(opportunityColumns...).
		Values(
			data.ID,
			data.Pair,
			data.BuyExchange,
			data.SellExchange,
			data.BuyPrice,
			data.SellPrice,
			data.SpreadPercent,
			data.ProfitPercent,
			data.EstimatedProfit,
			data.BuyFee,
			data.SellFee,
			data.Volume,
			data.Timestamp,
		).
		Suffix("ON CONFLICT (id) DO NOTHING")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// FindRecent returns journaled opportunities, newest first.
func (r *OpportunityRepository) FindRecent(ctx context.Context, filter entity.OpportunityFilter) ([]entity.ArbitrageOpportunity, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = defaultOpportunityLimit
	}
	if limit > maxOpportunityLimit {
		limit = maxOpportunityLimit
	}

	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(opportunityColumns...).
		From(entity.ArbitrageOpportunity{}.TableName()).
		OrderBy("detected_at DESC").
		Limit(limit)

	if filter.Pair != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"pair": filter.Pair})
	}
	if filter.Exchange != "" {
		queryBuilder = queryBuilder.Where(sq.Or{
			sq.Eq{"buy_exchange": filter.Exchange},
			sq.Eq{"sell_exchange": filter.Exchange},
		})
	}
	if !filter.Since.IsZero() {
		queryBuilder = queryBuilder.Where(sq.GtOrEq{"detected_at": filter.Since})
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	opportunities := []entity.ArbitrageOpportunity{}
	err = r.db.SelectContext(ctx, &opportunities, query, args...)
	if err != nil {
		return nil, err
	}

	return opportunities, nil
}
