// Package ledger keeps the append-only record of completed trades: an
// in-memory ordered sequence for readers plus a durable CSV log. The ledger is
// the only writer to the log file; every other component is read-only.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// header is the fixed column order of the trade log. It is written once when
// the file is first created and never rewritten on subsequent runs.
var header = []string{"symbol", "qty", "side", "price", "time", "portfolio_balance"}

// Ledger is the append-only trade ledger. Safe for concurrent use; rows are
// kept in fill order and never reordered, rewritten, or deleted.
type Ledger struct {
	mu     sync.RWMutex
	trades []domain.Trade
	path   string
	logger *slog.Logger
}

// New opens (or creates) the trade log at path and returns a Ledger. When the
// file already exists its rows are loaded so trade history survives restarts;
// when it does not, the header row is written.
func New(path string, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: logger.With(slog.String("component", "ledger")),
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		if err := l.load(); err != nil {
			return nil, fmt.Errorf("ledger: load %s: %w", path, err)
		}
	case err == nil || os.IsNotExist(err):
		if err := l.writeHeader(); err != nil {
			return nil, fmt.Errorf("ledger: init %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("ledger: stat %s: %w", path, err)
	}

	l.logger.Info("trade ledger ready",
		slog.String("path", path),
		slog.Int("trades", len(l.trades)),
	)
	return l, nil
}

// Record appends one completed trade to the in-memory sequence and the durable
// log. The durable append happens before Record returns, so a caller that
// broadcasts after Record never announces a trade that was not persisted.
func (l *Ledger) Record(trade domain.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rowOf(trade)); err != nil {
		return fmt.Errorf("ledger: append %s: %w", l.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("ledger: flush %s: %w", l.path, err)
	}

	l.trades = append(l.trades, trade)
	return nil
}

// AllTrades returns a copy of the trade sequence in fill order. Repeated calls
// observe the same prefix; the sequence only grows.
func (l *Ledger) AllTrades() []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

func (l *Ledger) writeHeader() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// load reads the existing trade log back into memory. Malformed rows are
// skipped with a warning rather than failing startup.
func (l *Ledger) load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // field counts checked per row below
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.logger.Warn("skipping unreadable trade log row",
				slog.Int("row", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		if line == 1 && len(row) > 0 && row[0] == header[0] {
			continue // header row
		}
		if len(row) != len(header) {
			l.logger.Warn("skipping malformed trade log row",
				slog.Int("row", line),
				slog.String("error", fmt.Sprintf("%d fields, want %d", len(row), len(header))),
			)
			continue
		}
		trade, err := tradeOf(row)
		if err != nil {
			l.logger.Warn("skipping malformed trade log row",
				slog.Int("row", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		l.trades = append(l.trades, trade)
	}
	return nil
}

func rowOf(t domain.Trade) []string {
	return []string{
		t.Symbol,
		strconv.FormatInt(t.Qty, 10),
		string(t.Side),
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		t.Time.UTC().Format(time.RFC3339),
		strconv.FormatFloat(t.PortfolioBalance, 'f', 2, 64),
	}
}

func tradeOf(row []string) (domain.Trade, error) {
	qty, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("qty: %w", err)
	}
	price, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("price: %w", err)
	}
	at, err := time.Parse(time.RFC3339, row[4])
	if err != nil {
		return domain.Trade{}, fmt.Errorf("time: %w", err)
	}
	balance, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("portfolio_balance: %w", err)
	}
	return domain.Trade{
		Symbol:           row[0],
		Qty:              qty,
		Side:             domain.OrderSide(row[2]),
		Price:            price,
		Time:             at,
		PortfolioBalance: balance,
	}, nil
}
