package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

func newMockRepository(t *testing.T) (*OpportunityRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewOpportunityRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleOpportunity() *entity.ArbitrageOpportunity {
	return &entity.ArbitrageOpportunity{
		ID:              "6f1c3c8e-0000-4000-8000-000000000001",
		Pair:            "BTC/USDT",
		BuyExchange:     entity.ExchangeBinance,
		SellExchange:    entity.ExchangeOKX,
		BuyPrice:        100,
		SellPrice:       102,
		SpreadPercent:   2,
		ProfitPercent:   1.8,
		EstimatedProfit: 18,
		BuyFee:          1,
		SellFee:         1,
		Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpportunityRepositoryCreate(t *testing.T) {
	insertQuery := regexp.QuoteMeta("INSERT INTO arbitrage_opportunities (id,pair,buy_exchange,sell_exchange,buy_price,sell_price,spread_percent,profit_percent,estimated_profit,buy_fee,sell_fee,volume,detected_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) ON CONFLICT (id) DO NOTHING")

	tests := []struct {
		name         string
		mockSetup    func(mock sqlmock.Sqlmock, o *entity.ArbitrageOpportunity)
		wantInserted bool
		wantErr      bool
	}{
		{
			name: "inserted",
			mockSetup: func(mock sqlmock.Sqlmock, o *entity.ArbitrageOpportunity) {
				mock.ExpectExec(insertQuery).
					WithArgs(o.ID, o.Pair, "binance", "okx", 100.0, 102.0, 2.0, 1.8, 18.0, 1.0, 1.0, 0.0, o.Timestamp).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantInserted: true,
		},
		{
			name: "duplicate id",
			mockSetup: func(mock sqlmock.Sqlmock, _ *entity.ArbitrageOpportunity) {
				mock.ExpectExec(insertQuery).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantInserted: false,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock, _ *entity.ArbitrageOpportunity) {
				mock.ExpectExec(insertQuery).WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			opportunity := sampleOpportunity()
			tt.mockSetup(mock, opportunity)

			inserted, err := repo.Create(context.Background(), opportunity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if inserted != tt.wantInserted {
				t.Fatalf("Create() inserted = %v, want %v", inserted, tt.wantInserted)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOpportunityRepositoryFindRecent(t *testing.T) {
	repo, mock := newMockRepository(t)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	detected := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(opportunityColumns).
		AddRow("opp-2", "BTC/USDT", "binance", "okx", 100.0, 102.0, 2.0, 1.8, 18.0, 1.0, 1.0, 0.0, detected).
		AddRow("opp-1", "BTC/USDT", "bybit", "binance", 99.0, 100.0, 1.01, 0.81, 8.1, 1.0, 1.0, 0.0, detected.Add(-time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+strings.Join(opportunityColumns, ", ")+" FROM arbitrage_opportunities WHERE pair = $1 AND (buy_exchange = $2 OR sell_exchange = $3) AND detected_at >= $4 ORDER BY detected_at DESC LIMIT 2")).
		WithArgs("BTC/USDT", "binance", "binance", since).
		WillReturnRows(rows)

	got, err := repo.FindRecent(context.Background(), entity.OpportunityFilter{
		Pair:     "BTC/USDT",
		Exchange: entity.ExchangeBinance,
		Since:    since,
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("FindRecent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].ID != "opp-2" || got[0].SellExchange != entity.ExchangeOKX || !got[0].Timestamp.Equal(detected) {
		t.Fatalf("unexpected first row %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}

func TestOpportunityRepositoryFindRecentCapsLimit(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM arbitrage_opportunities ORDER BY detected_at DESC LIMIT 1000")).
		WillReturnRows(sqlmock.NewRows(opportunityColumns))

	got, err := repo.FindRecent(context.Background(), entity.OpportunityFilter{Limit: 50000})
	if err != nil {
		t.Fatalf("FindRecent() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty, non-nil slice, got %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}
