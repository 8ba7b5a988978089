package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lunchbot-api/internal/ledger"
)

type staticSource struct {
	rows []Row
	err  error
}

func (s *staticSource) Fetch(ctx context.Context) ([]Row, error) {
	return s.rows, s.err
}

func TestParseRows(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		csv := "telegram_id,balance,daily_price\n100,50000,25000\n200,-10000,30000\n"
		rows, err := ParseRows(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, Row{TelegramID: 100, Balance: 50000, DailyPrice: 25000}, rows[0])
		assert.Equal(t, Row{TelegramID: 200, Balance: -10000, DailyPrice: 30000}, rows[1])
	})

	t.Run("without header", func(t *testing.T) {
		rows, err := ParseRows(strings.NewReader("100,50000,25000\n"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		rows, err := ParseRows(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("malformed row fails the whole parse", func(t *testing.T) {
		csv := "telegram_id,balance,daily_price\n100,50000,25000\n200,not-a-number,30000\n"
		_, err := ParseRows(strings.NewReader(csv))
		assert.Error(t, err)
	})

	t.Run("short row fails", func(t *testing.T) {
		_, err := ParseRows(strings.NewReader("100,50000\n"))
		assert.Error(t, err)
	})
}

func TestReconcilerSync(t *testing.T) {
	newUser := func(id, balance, price int64) *ledger.User {
		u := ledger.NewUser(id, "Test", "+998901234567", ledger.Defaults{Balance: balance, DailyPrice: price})
		return u
	}

	t.Run("overwrites balance and price for known users", func(t *testing.T) {
		repo := ledger.NewMockLedgerRepository()
		repo.SeedUser(newUser(100, 10000, 25000))
		repo.SeedUser(newUser(200, 0, 25000))

		source := &staticSource{rows: []Row{
			{TelegramID: 100, Balance: 75000, DailyPrice: 25000},
			{TelegramID: 200, Balance: -5000, DailyPrice: 30000},
		}}

		rec := NewReconciler(source, repo, zaptest.NewLogger(t))
		result, err := rec.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, result.Rows)
		assert.Equal(t, 2, result.Updated)
		assert.Equal(t, 0, result.Skipped)

		u100, err := repo.GetUser(100)
		require.NoError(t, err)
		assert.Equal(t, int64(75000), u100.Balance)

		u200, err := repo.GetUser(200)
		require.NoError(t, err)
		assert.Equal(t, int64(-5000), u200.Balance)
		assert.Equal(t, int64(30000), u200.DailyPrice)
	})

	t.Run("skips unregistered users instead of creating them", func(t *testing.T) {
		repo := ledger.NewMockLedgerRepository()
		repo.SeedUser(newUser(100, 0, 25000))

		source := &staticSource{rows: []Row{
			{TelegramID: 100, Balance: 1000, DailyPrice: 25000},
			{TelegramID: 999, Balance: 1000, DailyPrice: 25000},
		}}

		rec := NewReconciler(source, repo, zaptest.NewLogger(t))
		result, err := rec.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, result.Skipped)

		_, err = repo.GetUser(999)
		assert.Error(t, err)
	})

	t.Run("fetch failure aborts before any write", func(t *testing.T) {
		repo := ledger.NewMockLedgerRepository()
		repo.SeedUser(newUser(100, 10000, 25000))

		source := &staticSource{err: errors.New("unreachable")}
		rec := NewReconciler(source, repo, zaptest.NewLogger(t))

		_, err := rec.Sync(context.Background())
		require.Error(t, err)

		u, err := repo.GetUser(100)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), u.Balance)
	})
}

func TestHTTPCSVSource(t *testing.T) {
	t.Run("fetches and parses the export", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("telegram_id,balance,daily_price\n100,50000,25000\n"))
		}))
		defer server.Close()

		source := NewHTTPCSVSource(server.URL, 5*time.Second, 0, zaptest.NewLogger(t))
		rows, err := source.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(100), rows[0].TelegramID)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte("100,50000,25000\n"))
		}))
		defer server.Close()

		source := NewHTTPCSVSource(server.URL, 5*time.Second, 5, zaptest.NewLogger(t))
		rows, err := source.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		source := NewHTTPCSVSource(server.URL, time.Second, 1, zaptest.NewLogger(t))
		_, err := source.Fetch(context.Background())
		require.Error(t, err)

		var sourceErr *SourceError
		assert.ErrorAs(t, err, &sourceErr)
	})
}
