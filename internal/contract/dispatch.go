package contract

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/veildraw/veildraw/internal/mpc"
	"github.com/veildraw/veildraw/pkg/log"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// BlockContext carries the consensus-provided values an invocation runs
// under: the block timestamp deadlines compare against and the block hash
// entropy derives from.
type BlockContext struct {
	// Time is the block timestamp in unix seconds.
	Time int64
	// Hash is the hash of the block the invocation executes in.
	Hash [32]byte
}

// CallContext identifies one invocation.
type CallContext struct {
	Sender abi.Address
	Block  BlockContext
}

// Contract applies actions to a ContractState. It is the sole writer of the
// state; the surrounding runtime serializes invocations, so Contract itself
// takes no locks.
type Contract struct {
	state  *ContractState
	engine mpc.Engine
	logger zerolog.Logger
}

func New(state *ContractState, engine mpc.Engine) *Contract {
	return &Contract{
		state:  state,
		engine: engine,
		logger: log.Contract,
	}
}

// State exposes the current state for reading. Callers must not mutate it.
func (c *Contract) State() *ContractState {
	return c.state
}

// Execute applies one decoded invoke action. Validation happens before any
// mutation; a returned error means the state is untouched.
func (c *Contract) Execute(ctx CallContext, action Action) error {
	switch a := action.(type) {
	case ContinueQueueAction:
		return c.ContinueQueue(ctx.Block)
	case PurchaseCreditsAction:
		return c.purchaseCredits(ctx, a)
	case RedeemCreditsAction:
		return c.redeemCredits(ctx, a)
	case DrawWinnerAction:
		return c.drawWinner(ctx, a)
	case ClaimAction:
		return c.claim(ctx, a)
	case FailInSeparateActionAction:
		return fmt.Errorf("%w: %s", ErrExplicitFailure, a.Message)
	default:
		return fmt.Errorf("unhandled action 0x%02x", action.selector())
	}
}

// ExecuteSecret applies a secret-input action: the decoded public prefix plus
// the secret payload, which is forwarded to the engine untouched.
func (c *Contract) ExecuteSecret(ctx CallContext, action SecretAction, secret []byte) error {
	switch a := action.(type) {
	case CreateAccountAction:
		return c.createAccount(ctx, a, secret)
	case CreateLotteryAction:
		return c.createLottery(ctx, a, secret)
	case PurchaseTicketsAction:
		return c.purchaseTickets(ctx, a, secret)
	default:
		return fmt.Errorf("unhandled secret action 0x%02x", action.selector())
	}
}

func (c *Contract) createAccount(ctx CallContext, a CreateAccountAction, secret []byte) error {
	if exists, err := c.state.Accounts.ContainsKey(ctx.Sender); err != nil {
		return err
	} else if exists {
		return ErrDuplicateAccount
	}
	if a.AccountKey.IsZero() {
		return ErrDuplicateAccountKey
	}
	if taken, err := c.state.AccountKeys.ContainsKey(a.AccountKey); err != nil {
		return err
	} else if taken {
		return ErrDuplicateAccountKey
	}

	id, err := c.engine.SubmitSecretInput(ctx.Sender, mpc.KindAccountCreationSecret, secret)
	if err != nil {
		return fmt.Errorf("submit account creation secret: %w", err)
	}
	// Placeholder entry reserves the address until the secret resolves.
	if err := c.state.Accounts.Insert(ctx.Sender, mpc.None); err != nil {
		return err
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingAccountCreation{
		Account:           ctx.Sender,
		AccountKey:        a.AccountKey,
		AccountCreationID: id,
	})
	c.logger.Debug().Hex("account", ctx.Sender[:]).Uint32("svar", uint32(id)).
		Msg("account creation enqueued")
	return nil
}

func (c *Contract) createLottery(ctx CallContext, a CreateLotteryAction, secret []byte) error {
	if exists, err := c.state.Accounts.ContainsKey(ctx.Sender); err != nil {
		return err
	} else if !exists {
		return ErrAccountNotFound
	}
	if taken, err := c.state.Lotteries.ContainsKey(a.LotteryID); err != nil {
		return err
	} else if taken {
		return ErrDuplicateLotteryID
	}
	if a.Deadline <= ctx.Block.Time {
		return ErrInvalidDeadline
	}
	if a.EntryCost.IsZero() {
		return ErrInvalidEconomics
	}

	id, err := c.engine.SubmitSecretInput(ctx.Sender, mpc.KindLotteryCreationSecret, secret)
	if err != nil {
		return fmt.Errorf("submit lottery creation secret: %w", err)
	}
	lottery := &Lottery{
		LotteryID: a.LotteryID,
		Creator:   ctx.Sender,
		Status:    StatusPending,
		Deadline:  a.Deadline,
		EntryCost: a.EntryCost,
		PrizePool: a.PrizePool,
	}
	if err := c.state.Lotteries.Insert(a.LotteryID, lottery); err != nil {
		return err
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingLotteryCreation{
		Account:           ctx.Sender,
		LotteryID:         a.LotteryID,
		PrizePool:         a.PrizePool,
		LotteryCreationID: id,
	})
	c.logger.Debug().Str("lottery", a.LotteryID.Dec()).Uint32("svar", uint32(id)).
		Msg("lottery creation enqueued")
	return nil
}

func (c *Contract) purchaseTickets(ctx CallContext, a PurchaseTicketsAction, secret []byte) error {
	lottery, ok, err := c.state.Lotteries.Get(a.LotteryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLotteryNotFound
	}
	if lottery.Status != StatusOpen {
		return ErrLotteryNotOpen
	}
	if ctx.Block.Time >= lottery.Deadline {
		return ErrDeadlinePassed
	}
	if exists, err := c.state.Accounts.ContainsKey(ctx.Sender); err != nil {
		return err
	} else if !exists {
		return ErrAccountNotFound
	}

	id, err := c.engine.SubmitSecretInput(ctx.Sender, mpc.KindTicketPurchase, secret)
	if err != nil {
		return fmt.Errorf("submit ticket purchase secret: %w", err)
	}
	lottery.EntriesSvars = append(lottery.EntriesSvars, id)
	if err := c.state.Lotteries.Insert(a.LotteryID, lottery); err != nil {
		return err
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingLotteryTicketPurchase{
		Account:          ctx.Sender,
		LotteryID:        a.LotteryID,
		TicketPurchaseID: id,
	})
	return nil
}

func (c *Contract) purchaseCredits(ctx CallContext, a PurchaseCreditsAction) error {
	if exists, err := c.state.Accounts.ContainsKey(ctx.Sender); err != nil {
		return err
	} else if !exists {
		return ErrAccountNotFound
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingPurchaseCredits{
		Account: ctx.Sender,
		Credits: a.Amount,
	})
	return nil
}

func (c *Contract) redeemCredits(ctx CallContext, a RedeemCreditsAction) error {
	if exists, err := c.state.Accounts.ContainsKey(ctx.Sender); err != nil {
		return err
	} else if !exists {
		return ErrAccountNotFound
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingRedeemCredits{
		Account: ctx.Sender,
		Credits: a.Amount,
	})
	return nil
}

func (c *Contract) drawWinner(ctx CallContext, a DrawWinnerAction) error {
	lottery, ok, err := c.state.Lotteries.Get(a.LotteryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLotteryNotFound
	}
	switch lottery.Status {
	case StatusClosed, StatusComplete:
		return ErrAlreadyDrawn
	case StatusOpen:
	default:
		return ErrLotteryNotOpen
	}
	if ctx.Block.Time < lottery.Deadline {
		return ErrDeadlineNotReached
	}
	if len(lottery.EntriesSvars) == 0 {
		return ErrNoEntries
	}

	lottery.Status = StatusClosed
	if err := c.state.Lotteries.Insert(a.LotteryID, lottery); err != nil {
		return err
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingEntropyPublish{LotteryID: a.LotteryID})
	c.logger.Info().Str("lottery", a.LotteryID.Dec()).Msg("lottery closed, draw pending")
	return nil
}

func (c *Contract) claim(ctx CallContext, a ClaimAction) error {
	lottery, ok, err := c.state.Lotteries.Get(a.LotteryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLotteryNotFound
	}
	if lottery.Status != StatusComplete {
		return ErrNotYetDrawn
	}
	if lottery.PrizeClaimed {
		return ErrAlreadyClaimed
	}
	if lottery.Winner == nil || *lottery.Winner != ctx.Sender {
		return ErrNotWinner
	}

	lottery.PrizeClaimed = true
	if err := c.state.Lotteries.Insert(a.LotteryID, lottery); err != nil {
		return err
	}
	c.state.WorkQueue = append(c.state.WorkQueue, PendingClaimPrize{LotteryID: a.LotteryID})
	return nil
}
