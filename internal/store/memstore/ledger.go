package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/cheers/cheers-api/internal/domain/ledger"
)

type ledgerStore struct {
	s *Store
}

func (l *ledgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return l.s.withTx(ctx, func(tx *memTx) error { return fn(ctx, tx) })
}

func (l *ledgerStore) EnsureBalance(_ context.Context, seed *ledger.Balance) (*ledger.Balance, error) {
	var out ledger.Balance
	l.s.write(func(st *state) error {
		b, ok := st.balances[seed.AccountID]
		if !ok {
			b = *seed
			st.balances[seed.AccountID] = b
		}
		out = b
		return nil
	})
	return &out, nil
}

func (l *ledgerStore) GetBalance(_ context.Context, accountID string) (*ledger.Balance, error) {
	var (
		out ledger.Balance
		ok  bool
	)
	l.s.read(func(st *state) {
		out, ok = st.balances[accountID]
	})
	if !ok {
		return nil, ledger.ErrBalanceNotFound
	}
	return &out, nil
}

func (l *ledgerStore) ListTransactions(_ context.Context, accountID string, filter ledger.HistoryFilter) ([]*ledger.Transaction, error) {
	filter = filter.Normalize()

	var matched []*ledger.Transaction
	l.s.read(func(st *state) {
		for _, t := range st.txns {
			if filter.Matches(t, accountID) {
				c := *t
				matched = append(matched, &c)
			}
		}
	})
	sortTransactionsDesc(matched)

	if filter.Offset >= len(matched) {
		return []*ledger.Transaction{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func (l *ledgerStore) SumByAccount(_ context.Context, kind ledger.Kind, since, until time.Time) ([]ledger.AccountTotal, error) {
	sums := map[string]int64{}
	l.s.read(func(st *state) {
		for _, t := range st.txns {
			if t.Kind != kind || t.CreatedAt.Before(since) || !t.CreatedAt.Before(until) {
				continue
			}
			party := t.ToAccount
			if kind == ledger.KindGiven && t.FromAccount != nil {
				party = *t.FromAccount
			}
			sums[party] += t.Amount
		}
	})

	totals := make([]ledger.AccountTotal, 0, len(sums))
	for id, total := range sums {
		totals = append(totals, ledger.AccountTotal{AccountID: id, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].AccountID < totals[j].AccountID
	})
	return totals, nil
}

func (l *ledgerStore) ListAccountsDueForReset(_ context.Context, period ledger.Period, after string, limit int) ([]string, error) {
	var ids []string
	l.s.read(func(st *state) {
		for id, b := range st.balances {
			if b.LastResetPeriod.Before(period) && id > after {
				ids = append(ids, id)
			}
		}
	})
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
