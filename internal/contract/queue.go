package contract

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"github.com/veildraw/veildraw/internal/mpc"
	"github.com/veildraw/veildraw/pkg/log"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// queueBatchSize bounds how many items one ContinueQueue call may process,
// keeping the worst-case cost of a single invocation bounded.
const queueBatchSize = 8

// ContinueQueue processes resolved work items from the head of the queue,
// strictly FIFO. An unresolved head stops processing immediately; calling
// again before it resolves is a no-op. Items with stale references are
// dropped and logged, never retried, so one bad item cannot block the queue.
func (c *Contract) ContinueQueue(block BlockContext) error {
	for processed := 0; processed < queueBatchSize && len(c.state.WorkQueue) > 0; processed++ {
		head := c.state.WorkQueue[0]
		requeue, ready, err := c.resolveItem(block, head)
		if err != nil {
			var qerr *QueueItemError
			if !errors.As(err, &qerr) {
				return err
			}
			log.Queue.Warn().Err(qerr).Msg("dropping work item")
			c.state.WorkQueue = c.state.WorkQueue[1:]
			continue
		}
		if !ready {
			break
		}
		c.state.WorkQueue = c.state.WorkQueue[1:]
		if requeue != nil {
			c.state.WorkQueue = append(c.state.WorkQueue, requeue)
		}
	}
	return c.collectRedundant()
}

// resolveItem attempts to resolve one item. It reports ready=false when the
// item's secret dependencies have not yet resolved. A *QueueItemError means
// the item is defunct and must be dropped; any other error is a store or
// engine failure that aborts the call.
func (c *Contract) resolveItem(block BlockContext, item WorkListItem) (WorkListItem, bool, error) {
	switch it := item.(type) {
	case PendingAccountCreation:
		return c.resolveAccountCreation(it)
	case PendingPurchaseCredits:
		return c.resolveCreditChange(it.Kind(), it.Account, it.Credits)
	case PendingRedeemCredits:
		return c.resolveCreditChange(it.Kind(), it.Account, it.Credits)
	case PendingLotteryCreation:
		return c.resolveLotteryCreation(it)
	case PendingLotteryTicketPurchase:
		return c.resolveTicketPurchase(it)
	case PendingEntropyPublish:
		return c.resolveEntropyPublish(block, it)
	case PendingDrawWinner:
		return c.resolveDrawWinner(it)
	case PendingClaimPrize:
		return c.resolveClaimPrize(it)
	default:
		return nil, false, &QueueItemError{Discriminant: item.Kind(), Err: errors.New("unknown item")}
	}
}

func (c *Contract) resolveAccountCreation(it PendingAccountCreation) (WorkListItem, bool, error) {
	if !c.engine.Resolved(it.AccountCreationID) {
		return nil, false, nil
	}
	cur, ok, err := c.state.Accounts.Get(it.Account)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, c.itemErr(it, ErrAccountNotFound)
	}

	if cur == mpc.None {
		// First pass: the creation secret has resolved. Request the account
		// computation and swap the placeholder for the real balance handle.
		taken, err := c.state.AccountKeys.ContainsKey(it.AccountKey)
		if err != nil {
			return nil, false, err
		}
		if taken {
			if err := c.state.Accounts.Remove(it.Account); err != nil {
				return nil, false, err
			}
			c.retire(it.AccountCreationID)
			return nil, false, c.itemErr(it, ErrDuplicateAccountKey)
		}
		outs, err := c.engine.Compute(mpc.OpCreateAccount, []mpc.SecretVarId{it.AccountCreationID}, nil)
		if err != nil {
			return nil, false, fmt.Errorf("request account computation: %w", err)
		}
		if err := c.state.Accounts.Insert(it.Account, outs[0]); err != nil {
			return nil, false, err
		}
		c.retire(it.AccountCreationID)
		it.AccountCreationID = outs[1]
		return it, true, nil
	}

	// Second pass: the computation result has resolved; commit or roll back
	// the key mapping.
	data, err := c.engine.Reveal(it.AccountCreationID)
	if err != nil {
		return nil, false, fmt.Errorf("reveal account creation result: %w", err)
	}
	res, err := mpc.DecodeComputationResult(data)
	if err != nil {
		return nil, false, err
	}
	c.retire(it.AccountCreationID)
	taken, err := c.state.AccountKeys.ContainsKey(it.AccountKey)
	if err != nil {
		return nil, false, err
	}
	if !res.Successful || taken {
		if err := c.state.Accounts.Remove(it.Account); err != nil {
			return nil, false, err
		}
		c.retire(cur)
		return nil, false, c.itemErr(it, ErrDuplicateAccountKey)
	}
	if err := c.state.AccountKeys.Insert(it.AccountKey, it.Account); err != nil {
		return nil, false, err
	}
	log.Queue.Info().Hex("account", it.Account[:]).Msg("account created")
	return nil, true, nil
}

func (c *Contract) resolveCreditChange(kind WorkItemKind, account abi.Address, amount *uint256.Int) (WorkListItem, bool, error) {
	balance, ok, err := c.state.Accounts.Get(account)
	if err != nil {
		return nil, false, err
	}
	if !ok || balance == mpc.None {
		return nil, false, &QueueItemError{Discriminant: kind, Err: ErrAccountNotFound}
	}
	if !c.engine.Resolved(balance) {
		return nil, false, nil
	}

	op := mpc.OpMintCredits
	if kind == KindPendingRedeemCredits {
		op = mpc.OpBurnCredits
	}
	outs, err := c.engine.Compute(op, []mpc.SecretVarId{balance}, []*uint256.Int{amount})
	if err != nil {
		return nil, false, fmt.Errorf("request balance computation: %w", err)
	}
	if err := c.state.Accounts.Insert(account, outs[0]); err != nil {
		return nil, false, err
	}
	c.retire(balance)
	// The burn result carries whether the debit went through; the balance
	// handle is safe to swap either way since a refused burn returns the
	// balance unchanged.
	if len(outs) > 1 {
		c.retire(outs[1])
	}
	return nil, true, nil
}

func (c *Contract) resolveLotteryCreation(it PendingLotteryCreation) (WorkListItem, bool, error) {
	if !c.engine.Resolved(it.LotteryCreationID) {
		return nil, false, nil
	}
	lottery, ok, err := c.state.Lotteries.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.retire(it.LotteryCreationID)
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}

	if lottery.PendingSecretStateID == nil {
		// First pass: fund the lottery account out of the creator's balance.
		balance, ok, err := c.state.Accounts.Get(it.Account)
		if err != nil {
			return nil, false, err
		}
		if !ok || balance == mpc.None {
			if rmErr := c.state.Lotteries.Remove(it.LotteryID); rmErr != nil {
				return nil, false, rmErr
			}
			c.retire(it.LotteryCreationID)
			return nil, false, c.itemErr(it, ErrAccountNotFound)
		}
		if !c.engine.Resolved(balance) {
			return nil, false, nil
		}
		outs, err := c.engine.Compute(mpc.OpCreateLottery,
			[]mpc.SecretVarId{it.LotteryCreationID, balance},
			[]*uint256.Int{it.PrizePool})
		if err != nil {
			return nil, false, fmt.Errorf("request lottery computation: %w", err)
		}
		if err := c.state.Accounts.Insert(it.Account, outs[0]); err != nil {
			return nil, false, err
		}
		if err := c.state.LotteryAccounts.Insert(it.LotteryID, outs[1]); err != nil {
			return nil, false, err
		}
		lottery.PendingSecretStateID = &outs[2]
		if err := c.state.Lotteries.Insert(it.LotteryID, lottery); err != nil {
			return nil, false, err
		}
		c.retire(it.LotteryCreationID, balance)
		it.LotteryCreationID = outs[3]
		return it, true, nil
	}

	// Second pass: open the lottery, or unwind it if the creator could not
	// cover the prize pool.
	data, err := c.engine.Reveal(it.LotteryCreationID)
	if err != nil {
		return nil, false, fmt.Errorf("reveal lottery creation result: %w", err)
	}
	res, err := mpc.DecodeComputationResult(data)
	if err != nil {
		return nil, false, err
	}
	c.retire(it.LotteryCreationID)
	if !res.Successful {
		if acct, ok, err := c.state.LotteryAccounts.Get(it.LotteryID); err != nil {
			return nil, false, err
		} else if ok {
			c.retire(acct)
			if err := c.state.LotteryAccounts.Remove(it.LotteryID); err != nil {
				return nil, false, err
			}
		}
		c.retire(*lottery.PendingSecretStateID)
		if err := c.state.Lotteries.Remove(it.LotteryID); err != nil {
			return nil, false, err
		}
		return nil, false, c.itemErr(it, ErrInsufficientFunds)
	}
	lottery.Status = StatusOpen
	lottery.SecretStateID = lottery.PendingSecretStateID
	lottery.PendingSecretStateID = nil
	if err := c.state.Lotteries.Insert(it.LotteryID, lottery); err != nil {
		return nil, false, err
	}
	log.Queue.Info().Str("lottery", it.LotteryID.Dec()).Msg("lottery opened")
	return nil, true, nil
}

func (c *Contract) resolveTicketPurchase(it PendingLotteryTicketPurchase) (WorkListItem, bool, error) {
	lottery, ok, err := c.state.Lotteries.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok || lottery.SecretStateID == nil {
		c.retire(it.TicketPurchaseID)
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}
	balance, ok, err := c.state.Accounts.Get(it.Account)
	if err != nil {
		return nil, false, err
	}
	if !ok || balance == mpc.None {
		c.retire(it.TicketPurchaseID)
		return nil, false, c.itemErr(it, ErrAccountNotFound)
	}
	lotteryAcct, ok, err := c.state.LotteryAccounts.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.retire(it.TicketPurchaseID)
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}
	stateVar := *lottery.SecretStateID
	for _, id := range []mpc.SecretVarId{it.TicketPurchaseID, balance, lotteryAcct, stateVar} {
		if !c.engine.Resolved(id) {
			return nil, false, nil
		}
	}

	outs, err := c.engine.Compute(mpc.OpPurchaseTicket,
		[]mpc.SecretVarId{it.TicketPurchaseID, balance, lotteryAcct, stateVar},
		[]*uint256.Int{lottery.EntryCost})
	if err != nil {
		return nil, false, fmt.Errorf("request ticket computation: %w", err)
	}
	if err := c.state.Accounts.Insert(it.Account, outs[0]); err != nil {
		return nil, false, err
	}
	if err := c.state.LotteryAccounts.Insert(it.LotteryID, outs[1]); err != nil {
		return nil, false, err
	}
	lottery.SecretStateID = &outs[2]
	if err := c.state.Lotteries.Insert(it.LotteryID, lottery); err != nil {
		return nil, false, err
	}
	// The purchase secret itself stays live: the draw walks the ticket
	// ledger through it.
	c.retire(balance, lotteryAcct, stateVar, outs[3])
	return nil, true, nil
}

func (c *Contract) resolveEntropyPublish(block BlockContext, it PendingEntropyPublish) (WorkListItem, bool, error) {
	lottery, ok, err := c.state.Lotteries.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok || lottery.SecretStateID == nil {
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}
	if !c.engine.Resolved(*lottery.SecretStateID) {
		return nil, false, nil
	}

	entropy := entropyFromHash(block.Hash)
	outs, err := c.engine.Compute(mpc.OpWinnerIndex,
		[]mpc.SecretVarId{*lottery.SecretStateID},
		[]*uint256.Int{entropy})
	if err != nil {
		return nil, false, fmt.Errorf("request winner index computation: %w", err)
	}
	lottery.PendingSecretStateID = &outs[0]
	if err := c.state.Lotteries.Insert(it.LotteryID, lottery); err != nil {
		return nil, false, err
	}
	return PendingDrawWinner{LotteryID: it.LotteryID}, true, nil
}

func (c *Contract) resolveDrawWinner(it PendingDrawWinner) (WorkListItem, bool, error) {
	lottery, ok, err := c.state.Lotteries.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok || lottery.PendingSecretStateID == nil {
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}
	pending := *lottery.PendingSecretStateID
	if !c.engine.Resolved(pending) {
		return nil, false, nil
	}

	if it.WinnerIndex == nil {
		// First pass: the winner index has been revealed. Settle the pot
		// between the lottery account and the creator.
		if lottery.SecretStateID == nil {
			return nil, false, c.itemErr(it, ErrLotteryNotFound)
		}
		stateVar := *lottery.SecretStateID
		lotteryAcct, ok, err := c.state.LotteryAccounts.Get(it.LotteryID)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, c.itemErr(it, ErrLotteryNotFound)
		}
		creatorBal, ok, err := c.state.Accounts.Get(lottery.Creator)
		if err != nil {
			return nil, false, err
		}
		if !ok || creatorBal == mpc.None {
			return nil, false, c.itemErr(it, ErrAccountNotFound)
		}
		for _, id := range []mpc.SecretVarId{stateVar, lotteryAcct, creatorBal} {
			if !c.engine.Resolved(id) {
				return nil, false, nil
			}
		}

		data, err := c.engine.Reveal(pending)
		if err != nil {
			return nil, false, fmt.Errorf("reveal winner index: %w", err)
		}
		index, err := decodeRevealedU128(data)
		if err != nil {
			return nil, false, err
		}
		outs, err := c.engine.Compute(mpc.OpDrawWinner,
			[]mpc.SecretVarId{stateVar, lotteryAcct, creatorBal},
			[]*uint256.Int{lottery.EntryCost, lottery.PrizePool, index})
		if err != nil {
			return nil, false, fmt.Errorf("request draw computation: %w", err)
		}
		if err := c.state.LotteryAccounts.Insert(it.LotteryID, outs[0]); err != nil {
			return nil, false, err
		}
		if err := c.state.Accounts.Insert(lottery.Creator, outs[1]); err != nil {
			return nil, false, err
		}
		lottery.WinnerIndex = index
		lottery.SecretStateID = nil
		lottery.PendingSecretStateID = &outs[2]
		if err := c.state.Lotteries.Insert(it.LotteryID, lottery); err != nil {
			return nil, false, err
		}
		c.retire(pending, stateVar, lotteryAcct, creatorBal)
		it.WinnerIndex = index
		return it, true, nil
	}

	// Second pass: the draw result has resolved. Record the winner and
	// complete the lottery.
	data, err := c.engine.Reveal(pending)
	if err != nil {
		return nil, false, fmt.Errorf("reveal draw result: %w", err)
	}
	res, err := mpc.DecodeDrawResult(data)
	if err != nil {
		return nil, false, err
	}
	c.retire(pending)
	c.retire(lottery.EntriesSvars...)
	lottery.EntriesSvars = nil
	lottery.PendingSecretStateID = nil
	lottery.Status = StatusComplete
	if res.Successful {
		winner, ok, err := c.state.AccountKeys.Get(res.WinnerKey)
		if err != nil {
			return nil, false, err
		}
		if ok {
			lottery.Winner = &winner
		} else {
			// Winning key no longer maps to an account; the pot stays with
			// the lottery account and nobody can claim it.
			lottery.PrizeClaimed = true
		}
	} else {
		// No winning ticket; the draw already returned the pot to the
		// creator.
		lottery.PrizeClaimed = true
	}
	if err := c.state.Lotteries.Insert(it.LotteryID, lottery); err != nil {
		return nil, false, err
	}
	log.Queue.Info().Str("lottery", it.LotteryID.Dec()).
		Str("index", it.WinnerIndex.Dec()).Bool("winner", res.Successful).
		Msg("lottery complete")
	return nil, true, nil
}

func (c *Contract) resolveClaimPrize(it PendingClaimPrize) (WorkListItem, bool, error) {
	lottery, ok, err := c.state.Lotteries.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok || lottery.Winner == nil {
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}
	winnerBal, ok, err := c.state.Accounts.Get(*lottery.Winner)
	if err != nil {
		return nil, false, err
	}
	if !ok || winnerBal == mpc.None {
		return nil, false, c.itemErr(it, ErrAccountNotFound)
	}
	lotteryAcct, ok, err := c.state.LotteryAccounts.Get(it.LotteryID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, c.itemErr(it, ErrLotteryNotFound)
	}
	if !c.engine.Resolved(winnerBal) || !c.engine.Resolved(lotteryAcct) {
		return nil, false, nil
	}

	outs, err := c.engine.Compute(mpc.OpClaimWinnings,
		[]mpc.SecretVarId{lotteryAcct, winnerBal}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("request claim computation: %w", err)
	}
	if err := c.state.Accounts.Insert(*lottery.Winner, outs[0]); err != nil {
		return nil, false, err
	}
	if err := c.state.LotteryAccounts.Insert(it.LotteryID, outs[1]); err != nil {
		return nil, false, err
	}
	c.retire(winnerBal, lotteryAcct)
	log.Queue.Info().Str("lottery", it.LotteryID.Dec()).Msg("prize claimed")
	return nil, true, nil
}

func (c *Contract) itemErr(item WorkListItem, err error) *QueueItemError {
	return &QueueItemError{Discriminant: item.Kind(), Err: err}
}

// retire marks variables as redundant. They are handed to the engine for
// deletion once their producing rounds have completed.
func (c *Contract) retire(ids ...mpc.SecretVarId) {
	for _, id := range ids {
		if id != mpc.None {
			c.state.RedundantVariables = append(c.state.RedundantVariables, id)
		}
	}
}

// collectRedundant deletes the redundant variables whose rounds have
// completed; the rest stay listed for a later pass.
func (c *Contract) collectRedundant() error {
	if len(c.state.RedundantVariables) == 0 {
		return nil
	}
	var deletable, remaining []mpc.SecretVarId
	for _, id := range c.state.RedundantVariables {
		if c.engine.Resolved(id) {
			deletable = append(deletable, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	if len(deletable) > 0 {
		if err := c.engine.DeleteVariables(deletable); err != nil {
			return fmt.Errorf("delete redundant variables: %w", err)
		}
	}
	c.state.RedundantVariables = remaining
	return nil
}

// entropyFromHash folds a block hash into a public 128-bit entropy value.
func entropyFromHash(hash [32]byte) *uint256.Int {
	sum := blake2b.Sum256(hash[:])
	v, _ := abi.NewLittleEndianReader(sum[:abi.U128Length]).ReadU128()
	return v
}

func decodeRevealedU128(data []byte) (*uint256.Int, error) {
	r := abi.NewLittleEndianReader(data)
	v, err := r.ReadU128()
	if err != nil {
		return nil, err
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return v, nil
}
