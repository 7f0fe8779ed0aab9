package game

type TradeResult struct {
	Ticker    string  `json:"ticker"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Total     float64 `json:"total"`
	Balance   float64 `json:"balance"`
	Available int64   `json:"available"`
}

type StockView struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Available int64   `json:"available"`
}

type HoldingView struct {
	Ticker   string  `json:"ticker"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

type PortfolioView struct {
	Balance  float64       `json:"balance"`
	Holdings []HoldingView `json:"holdings"`
}

type LeaderboardRow struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"user_id"`
	Gamertag string  `json:"gamertag"`
	NetWorth float64 `json:"net_worth"`
}
