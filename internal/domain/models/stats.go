package models

// Stats holds whole-store aggregates.
type Stats struct {
	TotalUsers             int     `json:"totalUsers"`
	TotalBalance           int64   `json:"totalBalance"`
	AvgBalance             float64 `json:"avgBalance"`
	TotalTransactions      int     `json:"totalTransactions"`
	TotalTransactionAmount int64   `json:"totalTransactionAmount"`
}
