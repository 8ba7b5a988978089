package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Row is one authoritative record pulled from the external sheet. Balance
// and daily price overwrite the stored values on sync.
type Row struct {
	TelegramID int64
	Balance    int64
	DailyPrice int64
}

// RowSource yields the current authoritative rows. Implementations own all
// transport and auth mechanics; the reconciler only sees rows.
type RowSource interface {
	Fetch(ctx context.Context) ([]Row, error)
}

// httpCSVSource pulls rows from a published CSV export URL. Transient HTTP
// failures are retried with exponential backoff, bounded by maxRetries.
type httpCSVSource struct {
	url        string
	client     *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewHTTPCSVSource creates a RowSource reading a CSV export URL.
func NewHTTPCSVSource(url string, timeout time.Duration, maxRetries int, logger *zap.Logger) RowSource {
	return &httpCSVSource{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (s *httpCSVSource) Fetch(ctx context.Context) ([]Row, error) {
	var rows []Row

	operation := func() error {
		fetched, err := s.fetchOnce(ctx)
		if err != nil {
			s.logger.Warn("Sheet fetch attempt failed", zap.Error(err))
			return err
		}
		rows = fetched
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, NewSourceError(s.url, err)
	}

	return rows, nil
}

func (s *httpCSVSource) fetchOnce(ctx context.Context) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return ParseRows(resp.Body)
}

// ParseRows decodes CSV content into rows. The expected layout is a header
// line followed by telegram_id,balance,daily_price records. Malformed lines
// fail the whole parse: a partially applied sheet is worse than none.
func ParseRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip the header if the first field is not numeric.
	start := 0
	if _, err := strconv.ParseInt(strings.TrimSpace(records[0][0]), 10, 64); err != nil {
		start = 1
	}

	rows := make([]Row, 0, len(records))
	for i, record := range records[start:] {
		if len(record) < 3 {
			return nil, fmt.Errorf("row %d: expected 3 fields, got %d", i+start+1, len(record))
		}

		telegramID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad telegram_id %q", i+start+1, record[0])
		}
		balance, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad balance %q", i+start+1, record[1])
		}
		price, err := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad daily_price %q", i+start+1, record[2])
		}

		rows = append(rows, Row{TelegramID: telegramID, Balance: balance, DailyPrice: price})
	}

	return rows, nil
}
