package contract

import (
	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/internal/mpc"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// WorkItemKind is the discriminant of a WorkListItem variant.
type WorkItemKind uint8

const (
	KindPendingAccountCreation      WorkItemKind = 1
	KindPendingPurchaseCredits      WorkItemKind = 2
	KindPendingRedeemCredits        WorkItemKind = 3
	KindPendingLotteryCreation      WorkItemKind = 4
	KindPendingLotteryTicketPurchase WorkItemKind = 5
	KindPendingEntropyPublish       WorkItemKind = 6
	KindPendingDrawWinner           WorkItemKind = 7
	KindPendingClaimPrize           WorkItemKind = 8
)

func (k WorkItemKind) String() string {
	switch k {
	case KindPendingAccountCreation:
		return "PendingAccountCreation"
	case KindPendingPurchaseCredits:
		return "PendingPurchaseCredits"
	case KindPendingRedeemCredits:
		return "PendingRedeemCredits"
	case KindPendingLotteryCreation:
		return "PendingLotteryCreation"
	case KindPendingLotteryTicketPurchase:
		return "PendingLotteryTicketPurchase"
	case KindPendingEntropyPublish:
		return "PendingEntropyPublish"
	case KindPendingDrawWinner:
		return "PendingDrawWinner"
	case KindPendingClaimPrize:
		return "PendingClaimPrize"
	default:
		return "unknown"
	}
}

// WorkListItem is one pending asynchronous unit of work. Each variant carries
// the minimal data needed to resume once its secret computation finishes.
type WorkListItem interface {
	Kind() WorkItemKind
	encode(w *abi.Writer) error
}

type PendingAccountCreation struct {
	Account           abi.Address
	AccountKey        *uint256.Int
	AccountCreationID mpc.SecretVarId
}

type PendingPurchaseCredits struct {
	Account abi.Address
	Credits *uint256.Int
}

type PendingRedeemCredits struct {
	Account abi.Address
	Credits *uint256.Int
}

type PendingLotteryCreation struct {
	Account           abi.Address
	LotteryID         *uint256.Int
	PrizePool         *uint256.Int
	LotteryCreationID mpc.SecretVarId
}

type PendingLotteryTicketPurchase struct {
	Account          abi.Address
	LotteryID        *uint256.Int
	TicketPurchaseID mpc.SecretVarId
}

type PendingEntropyPublish struct {
	LotteryID *uint256.Int
}

type PendingDrawWinner struct {
	LotteryID *uint256.Int
	// WinnerIndex is nil until the index computation has been revealed and
	// the draw lookup requested.
	WinnerIndex *uint256.Int
}

type PendingClaimPrize struct {
	LotteryID *uint256.Int
}

func (PendingAccountCreation) Kind() WorkItemKind       { return KindPendingAccountCreation }
func (PendingPurchaseCredits) Kind() WorkItemKind       { return KindPendingPurchaseCredits }
func (PendingRedeemCredits) Kind() WorkItemKind         { return KindPendingRedeemCredits }
func (PendingLotteryCreation) Kind() WorkItemKind       { return KindPendingLotteryCreation }
func (PendingLotteryTicketPurchase) Kind() WorkItemKind { return KindPendingLotteryTicketPurchase }
func (PendingEntropyPublish) Kind() WorkItemKind        { return KindPendingEntropyPublish }
func (PendingDrawWinner) Kind() WorkItemKind            { return KindPendingDrawWinner }
func (PendingClaimPrize) Kind() WorkItemKind            { return KindPendingClaimPrize }

func (i PendingAccountCreation) encode(w *abi.Writer) error {
	w.WriteAddress(i.Account)
	if err := w.WriteU128(i.AccountKey); err != nil {
		return err
	}
	return writeSvar(w, i.AccountCreationID)
}

func (i PendingPurchaseCredits) encode(w *abi.Writer) error {
	w.WriteAddress(i.Account)
	return w.WriteU128(i.Credits)
}

func (i PendingRedeemCredits) encode(w *abi.Writer) error {
	w.WriteAddress(i.Account)
	return w.WriteU128(i.Credits)
}

func (i PendingLotteryCreation) encode(w *abi.Writer) error {
	w.WriteAddress(i.Account)
	if err := w.WriteU128(i.LotteryID); err != nil {
		return err
	}
	if err := w.WriteU128(i.PrizePool); err != nil {
		return err
	}
	return writeSvar(w, i.LotteryCreationID)
}

func (i PendingLotteryTicketPurchase) encode(w *abi.Writer) error {
	w.WriteAddress(i.Account)
	if err := w.WriteU128(i.LotteryID); err != nil {
		return err
	}
	return writeSvar(w, i.TicketPurchaseID)
}

func (i PendingEntropyPublish) encode(w *abi.Writer) error {
	return w.WriteU128(i.LotteryID)
}

func (i PendingDrawWinner) encode(w *abi.Writer) error {
	if err := w.WriteU128(i.LotteryID); err != nil {
		return err
	}
	return writeOptionU128(w, i.WinnerIndex)
}

func (i PendingClaimPrize) encode(w *abi.Writer) error {
	return w.WriteU128(i.LotteryID)
}

func encodeWorkListItem(w *abi.Writer, item WorkListItem) error {
	w.WriteU8(uint8(item.Kind()))
	return item.encode(w)
}

func decodeWorkListItem(r *abi.Reader) (WorkListItem, error) {
	off := r.Offset()
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	switch WorkItemKind(tag) {
	case KindPendingAccountCreation:
		var i PendingAccountCreation
		if i.Account, err = r.ReadAddress(); err != nil {
			return nil, err
		}
		if i.AccountKey, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if i.AccountCreationID, err = readSvar(r); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingPurchaseCredits:
		var i PendingPurchaseCredits
		if i.Account, err = r.ReadAddress(); err != nil {
			return nil, err
		}
		if i.Credits, err = r.ReadU128(); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingRedeemCredits:
		var i PendingRedeemCredits
		if i.Account, err = r.ReadAddress(); err != nil {
			return nil, err
		}
		if i.Credits, err = r.ReadU128(); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingLotteryCreation:
		var i PendingLotteryCreation
		if i.Account, err = r.ReadAddress(); err != nil {
			return nil, err
		}
		if i.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if i.PrizePool, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if i.LotteryCreationID, err = readSvar(r); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingLotteryTicketPurchase:
		var i PendingLotteryTicketPurchase
		if i.Account, err = r.ReadAddress(); err != nil {
			return nil, err
		}
		if i.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if i.TicketPurchaseID, err = readSvar(r); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingEntropyPublish:
		var i PendingEntropyPublish
		if i.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingDrawWinner:
		var i PendingDrawWinner
		if i.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if i.WinnerIndex, err = readOptionU128(r); err != nil {
			return nil, err
		}
		return i, nil
	case KindPendingClaimPrize:
		var i PendingClaimPrize
		if i.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		return i, nil
	default:
		return nil, abi.UnknownDiscriminantError(off, tag)
	}
}
