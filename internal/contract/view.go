package contract

import (
	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/internal/mpc"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// Snapshot is the read-only decoded view handed to off-chain consumers. It
// carries everything a display surface needs; mutation goes through actions
// only.
type Snapshot struct {
	Token abi.Address
	API   abi.Address

	Accounts        []AccountEntry
	Lotteries       []*Lottery
	LotteryAccounts []LotteryAccountEntry

	QueueDepth int
}

// AccountEntry pairs a user address with the secret variable holding its
// balance. The balance itself is only readable by the owner through the
// engine's reconstruction path.
type AccountEntry struct {
	Address    abi.Address
	BalanceVar mpc.SecretVarId
}

type LotteryAccountEntry struct {
	LotteryID  *uint256.Int
	BalanceVar mpc.SecretVarId
}

// Snapshot enumerates the ordered maps into a decoded view. Tree entries page
// from the backing store in key order.
func (s *ContractState) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Token:      s.Token,
		API:        s.API,
		QueueDepth: len(s.WorkQueue),
	}

	size, err := s.Accounts.Size()
	if err != nil {
		return nil, err
	}
	accounts, err := s.Accounts.GetNextN(nil, size)
	if err != nil {
		return nil, err
	}
	for _, e := range accounts {
		snap.Accounts = append(snap.Accounts, AccountEntry{Address: e.Key, BalanceVar: e.Value})
	}

	size, err = s.Lotteries.Size()
	if err != nil {
		return nil, err
	}
	lotteries, err := s.Lotteries.GetNextN(nil, size)
	if err != nil {
		return nil, err
	}
	for _, e := range lotteries {
		snap.Lotteries = append(snap.Lotteries, e.Value)
	}

	size, err = s.LotteryAccounts.Size()
	if err != nil {
		return nil, err
	}
	lotteryAccounts, err := s.LotteryAccounts.GetNextN(nil, size)
	if err != nil {
		return nil, err
	}
	for _, e := range lotteryAccounts {
		snap.LotteryAccounts = append(snap.LotteryAccounts, LotteryAccountEntry{
			LotteryID:  e.Key,
			BalanceVar: e.Value,
		})
	}
	return snap, nil
}
