package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is the single owner of the shared ledger. Buys and valuation cycles
// share one coarse mutex so availability and balance checks always observe a
// consistent snapshot; everything else is atomic per call via a transaction.
type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger
	val *Valuation

	mu  sync.Mutex
	reg *Registry
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, val *Valuation) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = NewValuation(nil)
	}
	return &Service{
		db:  db,
		log: logger,
		val: val,
		reg: NewRegistry(),
	}
}

func (s *Service) Registry() *Registry { return s.reg }

func (s *Service) Valuation() *Valuation { return s.val }

func (s *Service) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id  TEXT PRIMARY KEY,
			gamertag TEXT NOT NULL UNIQUE,
			balance  DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS holdings (
			user_id  TEXT NOT NULL REFERENCES users(user_id),
			ticker   TEXT NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			PRIMARY KEY (user_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS stocks (
			ticker    TEXT PRIMARY KEY,
			price     DOUBLE PRECISION NOT NULL,
			available BIGINT NOT NULL CHECK (available >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			community_id  TEXT PRIMARY KEY,
			last_cycle_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id          BIGSERIAL PRIMARY KEY,
			tx_group_id UUID NOT NULL,
			user_id     TEXT NOT NULL,
			account     TEXT NOT NULL,
			action      TEXT NOT NULL,
			ticker      TEXT,
			cash_delta  DOUBLE PRECISION NOT NULL DEFAULT 0,
			share_delta BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InitStocks replays ticker allocation over the community's names and lists
// any stock not yet in the ledger, priced from the seed-window activity.
// Channel names must arrive in platform order; emoji tokens are sorted here
// so the replay order stays fixed across restarts.
func (s *Service) InitStocks(ctx context.Context, channelNames, emojiTokens []string, channelCounts, emojiCounts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type listing struct {
		ticker string
		name   string
		count  int
	}
	var listings []listing

	for _, name := range channelNames {
		ticker, err := s.reg.Allocate(PrefixChannel, name, name)
		if err != nil {
			s.log.Error("ticker allocation failed", "channel", name, "err", err)
			continue
		}
		listings = append(listings, listing{ticker, name, channelCounts[name]})
	}

	sorted := append([]string(nil), emojiTokens...)
	sort.Strings(sorted)
	// Symbols come from the emoji's name part; the animated flag and id
	// digits in the token are not symbol material.
	for _, token := range sorted {
		ticker, err := s.reg.Allocate(PrefixEmoji, token, EmojiName(token))
		if err != nil {
			s.log.Error("ticker allocation failed", "emoji", token, "err", err)
			continue
		}
		listings = append(listings, listing{ticker, token, emojiCounts[token]})
	}

	existing := make(map[string]bool)
	rows, err := s.db.Query(ctx, `SELECT ticker FROM stocks`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return err
		}
		existing[t] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, l := range listings {
		if existing[l.ticker] {
			continue
		}
		price := s.val.SeedPrice(l.count)
		if _, err := tx.Exec(ctx, `
			INSERT INTO stocks (ticker, price, available)
			VALUES ($1, $2, $3)
			ON CONFLICT (ticker) DO NOTHING
		`, l.ticker, price, InitialAvailable); err != nil {
			return err
		}
		s.log.Info("listed stock", "ticker", l.ticker, "source", l.name, "price", price)
	}
	return tx.Commit(ctx)
}

func (s *Service) Register(ctx context.Context, userID, gamertag string) error {
	if err := ValidateGamertag(gamertag); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrAlreadyRegistered
	}
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE gamertag = $1)`, gamertag).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrGamertagTaken
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO users (user_id, gamertag, balance)
		VALUES ($1, $2, $3)
	`, userID, gamertag, StarterBalance); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) Rename(ctx context.Context, userID, gamertag string) error {
	if err := ValidateGamertag(gamertag); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var taken bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE gamertag = $1 AND user_id <> $2)
	`, gamertag, userID).Scan(&taken); err != nil {
		return err
	}
	if taken {
		return ErrGamertagTaken
	}
	cmd, err := tx.Exec(ctx, `UPDATE users SET gamertag = $1 WHERE user_id = $2`, gamertag, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotRegistered
	}
	return tx.Commit(ctx)
}

// Buy debits the buyer, upserts the holding and decrements availability in
// one transaction, serialized under the trade mutex so two buyers can never
// both pass the availability check on the same snapshot.
func (s *Service) Buy(ctx context.Context, userID, ticker string, quantity int64) (TradeResult, error) {
	var out TradeResult
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if quantity <= 0 {
		return out, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	var balance float64
	if err := tx.QueryRow(ctx, `
		SELECT balance FROM users WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balance); err != nil {
		if err == pgx.ErrNoRows {
			return out, ErrNotRegistered
		}
		return out, err
	}

	var price float64
	var available int64
	if err := tx.QueryRow(ctx, `
		SELECT price, available FROM stocks WHERE ticker = $1 FOR UPDATE
	`, ticker).Scan(&price, &available); err != nil {
		if err == pgx.ErrNoRows {
			return out, ErrStockNotFound
		}
		return out, err
	}
	plan, err := planBuy(ticker, price, balance, available, quantity)
	if err != nil {
		return out, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET balance = $1 WHERE user_id = $2`, plan.Balance, userID); err != nil {
		return out, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO holdings (user_id, ticker, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, ticker) DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity
	`, userID, ticker, quantity); err != nil {
		return out, err
	}
	if _, err := tx.Exec(ctx, `UPDATE stocks SET available = $1 WHERE ticker = $2`, plan.Available, ticker); err != nil {
		return out, err
	}
	if err := appendTransferEntries(ctx, tx, "buy", userID, "market", ticker, -plan.Cost, quantity); err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, err
	}

	return TradeResult{
		Ticker:    ticker,
		Quantity:  quantity,
		Price:     price,
		Total:     plan.Cost,
		Balance:   plan.Balance,
		Available: plan.Available,
	}, nil
}

// Sell credits the seller at the current price and returns the shares to the
// available pool unconditionally.
func (s *Service) Sell(ctx context.Context, userID, ticker string, quantity int64) (TradeResult, error) {
	var out TradeResult
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if quantity <= 0 {
		return out, ErrInvalidQuantity
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	var balance float64
	if err := tx.QueryRow(ctx, `
		SELECT balance FROM users WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balance); err != nil {
		if err == pgx.ErrNoRows {
			return out, ErrNotRegistered
		}
		return out, err
	}

	var price float64
	var available int64
	if err := tx.QueryRow(ctx, `
		SELECT price, available FROM stocks WHERE ticker = $1 FOR UPDATE
	`, ticker).Scan(&price, &available); err != nil {
		if err == pgx.ErrNoRows {
			return out, ErrStockNotFound
		}
		return out, err
	}

	held, err := lockedHolding(ctx, tx, userID, ticker)
	if err != nil {
		return out, err
	}
	plan, err := planSell(ticker, price, balance, available, held, quantity)
	if err != nil {
		return out, err
	}

	if err := reduceHolding(ctx, tx, userID, ticker, held, quantity); err != nil {
		return out, err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET balance = $1 WHERE user_id = $2`, plan.Balance, userID); err != nil {
		return out, err
	}
	if _, err := tx.Exec(ctx, `UPDATE stocks SET available = $1 WHERE ticker = $2`, plan.Available, ticker); err != nil {
		return out, err
	}
	if err := appendTransferEntries(ctx, tx, "sell", userID, "market", ticker, plan.Proceeds, -quantity); err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, err
	}

	return TradeResult{
		Ticker:    ticker,
		Quantity:  quantity,
		Price:     price,
		Total:     plan.Proceeds,
		Balance:   plan.Balance,
		Available: plan.Available,
	}, nil
}

// GiftCurrency moves amount from the sender to the holder of toGamertag.
// Returns the sender's balance after the transfer.
func (s *Service) GiftCurrency(ctx context.Context, fromID, toGamertag string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	toID, err := userIDByGamertag(ctx, tx, toGamertag)
	if err != nil {
		return 0, err
	}

	// Both balance rows are locked in user-id order so two opposite gifts
	// can never deadlock.
	var balance float64
	for _, id := range lockOrder(fromID, toID) {
		var b float64
		if err := tx.QueryRow(ctx, `
			SELECT balance FROM users WHERE user_id = $1 FOR UPDATE
		`, id).Scan(&b); err != nil {
			if err == pgx.ErrNoRows && id == fromID {
				return 0, ErrNotRegistered
			}
			return 0, err
		}
		if id == fromID {
			balance = b
		}
	}
	if balance < amount {
		return 0, fmt.Errorf("%w: you only have %.2f", ErrInsufficientFunds, balance)
	}

	balance -= amount
	if _, err := tx.Exec(ctx, `UPDATE users SET balance = $1 WHERE user_id = $2`, balance, fromID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET balance = balance + $1 WHERE user_id = $2`, amount, toID); err != nil {
		return 0, err
	}
	if err := appendTransferEntries(ctx, tx, "gift_currency", fromID, toID, "", -amount, 0); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// GiftStock moves shares between two holdings without touching price or
// availability. Returns the sender's remaining quantity.
func (s *Service) GiftStock(ctx context.Context, fromID, ticker, toGamertag string, quantity int64) (int64, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	toID, err := userIDByGamertag(ctx, tx, toGamertag)
	if err != nil {
		return 0, err
	}

	// Same deadlock-avoidance ordering as GiftCurrency, on holding rows.
	var held int64
	for _, id := range lockOrder(fromID, toID) {
		qty, err := lockedHolding(ctx, tx, id, ticker)
		if err != nil {
			return 0, err
		}
		if id == fromID {
			held = qty
		}
	}
	if held == 0 {
		return 0, fmt.Errorf("%w: you don't own %s", ErrInsufficientShares, ticker)
	}
	if held < quantity {
		return 0, fmt.Errorf("%w: you only have %d %s", ErrInsufficientShares, held, ticker)
	}

	if err := reduceHolding(ctx, tx, fromID, ticker, held, quantity); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO holdings (user_id, ticker, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, ticker) DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity
	`, toID, ticker, quantity); err != nil {
		return 0, err
	}
	if err := appendTransferEntries(ctx, tx, "gift_stock", fromID, toID, ticker, 0, -quantity); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return held - quantity, nil
}

// NetWorth is balance plus holdings at current prices.
func (s *Service) NetWorth(ctx context.Context, userID string) (float64, error) {
	var netWorth float64
	err := s.db.QueryRow(ctx, `
		SELECT u.balance + COALESCE((
			SELECT SUM(h.quantity * st.price)
			FROM holdings h
			JOIN stocks st ON st.ticker = h.ticker
			WHERE h.user_id = u.user_id
		), 0)
		FROM users u
		WHERE u.user_id = $1
	`, userID).Scan(&netWorth)
	if err == pgx.ErrNoRows {
		return 0, ErrNotRegistered
	}
	return netWorth, err
}

func (s *Service) Portfolio(ctx context.Context, userID string) (PortfolioView, error) {
	var out PortfolioView
	err := s.db.QueryRow(ctx, `SELECT balance FROM users WHERE user_id = $1`, userID).Scan(&out.Balance)
	if err == pgx.ErrNoRows {
		return out, ErrNotRegistered
	}
	if err != nil {
		return out, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT h.ticker, h.quantity, st.price
		FROM holdings h
		JOIN stocks st ON st.ticker = h.ticker
		WHERE h.user_id = $1
		ORDER BY h.ticker
	`, userID)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var h HoldingView
		if err := rows.Scan(&h.Ticker, &h.Quantity, &h.Price); err != nil {
			return out, err
		}
		out.Holdings = append(out.Holdings, h)
	}
	return out, rows.Err()
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := s.db.Query(ctx, `
		WITH holding_value AS (
			SELECT h.user_id, SUM(h.quantity * st.price) AS value
			FROM holdings h
			JOIN stocks st ON st.ticker = h.ticker
			GROUP BY h.user_id
		)
		SELECT u.user_id, u.gamertag,
		       u.balance + COALESCE(hv.value, 0) AS net_worth
		FROM users u
		LEFT JOIN holding_value hv ON hv.user_id = u.user_id
		ORDER BY net_worth DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardRow
	rank := 1
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.Gamertag, &r.NetWorth); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListStocks returns tradable stocks (price > 0) for one category prefix,
// most valuable first, with the source name resolved from the registry.
func (s *Service) ListStocks(ctx context.Context, prefix byte, limit int) ([]StockView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ticker, price, available
		FROM stocks
		WHERE price > 0 AND ticker LIKE $1
		ORDER BY price DESC
		LIMIT $2
	`, string(prefix)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockView
	for rows.Next() {
		var v StockView
		if err := rows.Scan(&v.Ticker, &v.Price, &v.Available); err != nil {
			return nil, err
		}
		v.Name, _ = s.reg.NameFor(v.Ticker)
		out = append(out, v)
	}
	return out, rows.Err()
}

// LastCycleAt reports when the previous valuation cycle completed. Returns a
// zero time if no cycle has run yet.
func (s *Service) LastCycleAt(ctx context.Context, communityID string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRow(ctx, `
		SELECT last_cycle_at FROM metadata WHERE community_id = $1
	`, communityID).Scan(&t)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	return t, err
}

// lockOrder returns the two ids in the fixed order row locks must be taken.
func lockOrder(a, b string) []string {
	if a == b {
		return []string{a}
	}
	if b < a {
		a, b = b, a
	}
	return []string{a, b}
}

func userIDByGamertag(ctx context.Context, tx pgx.Tx, gamertag string) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `SELECT user_id FROM users WHERE gamertag = $1`, gamertag).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", ErrGamertagUnknown
	}
	return id, err
}

// lockedHolding returns the caller's locked holding quantity, 0 if none.
func lockedHolding(ctx context.Context, tx pgx.Tx, userID, ticker string) (int64, error) {
	var qty int64
	err := tx.QueryRow(ctx, `
		SELECT quantity FROM holdings WHERE user_id = $1 AND ticker = $2 FOR UPDATE
	`, userID, ticker).Scan(&qty)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return qty, err
}

// reduceHolding decrements a holding, deleting the row when it hits zero.
func reduceHolding(ctx context.Context, tx pgx.Tx, userID, ticker string, held, quantity int64) error {
	remaining, gone := remainingHolding(held, quantity)
	if gone {
		_, err := tx.Exec(ctx, `
			DELETE FROM holdings WHERE user_id = $1 AND ticker = $2
		`, userID, ticker)
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE holdings SET quantity = $1 WHERE user_id = $2 AND ticker = $3
	`, remaining, userID, ticker)
	return err
}
