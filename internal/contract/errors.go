package contract

import (
	"errors"
	"fmt"
)

// Domain errors reject an action with state untouched.
var (
	ErrDuplicateAccount    = errors.New("account already exists for address")
	ErrDuplicateAccountKey = errors.New("account key already in use")
	ErrAccountNotFound     = errors.New("account does not exist")
	ErrDuplicateLotteryID  = errors.New("lottery id already used")
	ErrLotteryNotFound     = errors.New("lottery does not exist")
	ErrInvalidDeadline     = errors.New("lottery deadline must be in the future")
	ErrInvalidEconomics    = errors.New("lottery entry cost must be non-zero")
	ErrLotteryNotOpen      = errors.New("lottery is not open")
	ErrDeadlinePassed      = errors.New("lottery deadline has passed")
	ErrDeadlineNotReached  = errors.New("lottery deadline has not been reached")
	ErrAlreadyDrawn        = errors.New("lottery has already been drawn")
	ErrNoEntries           = errors.New("no entries in the lottery")
	ErrNotYetDrawn         = errors.New("lottery winner has not been drawn")
	ErrNotWinner           = errors.New("claimant is not the lottery winner")
	ErrAlreadyClaimed      = errors.New("prize has already been claimed")
	ErrInsufficientFunds   = errors.New("account balance cannot cover the amount")
)

// ErrExplicitFailure is the deterministic abort of failInSeparateAction.
var ErrExplicitFailure = errors.New("explicit failure")

// QueueItemError reports a work item whose referenced entities no longer
// exist, or whose resolution cannot proceed. The item is dropped and the
// queue continues; blocking the whole queue on one bad item would be a
// denial-of-service vector.
type QueueItemError struct {
	Discriminant WorkItemKind
	Err          error
}

func (e *QueueItemError) Error() string {
	return fmt.Sprintf("work item %s: %v", e.Discriminant, e.Err)
}

func (e *QueueItemError) Unwrap() error {
	return e.Err
}
