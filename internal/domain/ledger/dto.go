package ledger

import "time"

// BalanceResponse is the public view of a balance.
type BalanceResponse struct {
	AccountID       string    `json:"account_id"`
	AvailablePoints int64     `json:"available_points"`
	TotalEarned     int64     `json:"total_earned"`
	TotalSpent      int64     `json:"total_spent"`
	QuotaAllotment  int64     `json:"quota_allotment"`
	QuotaUsed       int64     `json:"quota_used"`
	QuotaRemaining  int64     `json:"quota_remaining"`
	Period          Period    `json:"period"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewBalanceResponse(b *Balance) BalanceResponse {
	return BalanceResponse{
		AccountID:       b.AccountID,
		AvailablePoints: b.AvailablePoints,
		TotalEarned:     b.TotalEarned,
		TotalSpent:      b.TotalSpent,
		QuotaAllotment:  b.QuotaAllotment,
		QuotaUsed:       b.QuotaUsed,
		QuotaRemaining:  b.QuotaRemaining(),
		Period:          b.LastResetPeriod,
		UpdatedAt:       b.UpdatedAt,
	}
}

// QuotaResponse describes the caller's giving quota for the current period.
type QuotaResponse struct {
	Period    Period `json:"period"`
	Allotment int64  `json:"allotment"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}
