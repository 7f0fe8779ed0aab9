package game

import (
	"context"
	"time"
)

// RunCycle applies one valuation update from the latest activity window:
// activity-based increases first, then availability mean-reversion, then
// decay, all committed together, finishing by stamping the cycle time. The
// step order is fixed. Runs under the trade mutex so an in-flight buy never
// interleaves with the repricing pass.
func (s *Service) RunCycle(ctx context.Context, communityID string, channelCounts, emojiCounts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	countByTicker := make(map[string]int, len(channelCounts)+len(emojiCounts))
	for name, n := range channelCounts {
		if ticker, ok := s.reg.TickerFor(name); ok {
			countByTicker[ticker] += n
		}
	}
	for token, n := range emojiCounts {
		if ticker, ok := s.reg.TickerFor(token); ok {
			countByTicker[ticker] += n
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	type stockRow struct {
		ticker    string
		price     float64
		available int64
	}
	rows, err := tx.Query(ctx, `
		SELECT ticker, price, available FROM stocks FOR UPDATE
	`)
	if err != nil {
		return err
	}
	var stocks []stockRow
	for rows.Next() {
		var r stockRow
		if err := rows.Scan(&r.ticker, &r.price, &r.available); err != nil {
			rows.Close()
			return err
		}
		stocks = append(stocks, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range stocks {
		stocks[i].price = RaisePrice(stocks[i].price, countByTicker[stocks[i].ticker])
	}
	for i := range stocks {
		stocks[i].available = s.val.NextAvailable(stocks[i].available)
	}
	for i := range stocks {
		stocks[i].price = s.val.Decay(stocks[i].price)
	}

	for _, st := range stocks {
		if _, err := tx.Exec(ctx, `
			UPDATE stocks SET price = $1, available = $2 WHERE ticker = $3
		`, st.price, st.available, st.ticker); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO metadata (community_id, last_cycle_at)
		VALUES ($1, $2)
		ON CONFLICT (community_id) DO UPDATE SET last_cycle_at = EXCLUDED.last_cycle_at
	`, communityID, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.log.Info("valuation cycle complete", "stocks", len(stocks), "active_tickers", len(countByTicker))
	return nil
}
