package contract

import (
	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// Action selector bytes. Invoke actions travel as 0x09 + selector; secret
// inputs carry the selector directly in their public RPC prefix.
const (
	invokeByte uint8 = 0x09

	selContinueQueue         uint8 = 0x10
	selPurchaseCredits       uint8 = 0x20
	selRedeemCredits         uint8 = 0x21
	selDrawWinner            uint8 = 0x22
	selClaim                 uint8 = 0x23
	selCreateAccount         uint8 = 0x40
	selCreateLottery         uint8 = 0x41
	selPurchaseTickets       uint8 = 0x42
	selFailInSeparateAction  uint8 = 0x4c
)

// Action is a decoded public action payload.
type Action interface {
	selector() uint8
}

type ContinueQueueAction struct{}

type PurchaseCreditsAction struct {
	Amount *uint256.Int
}

type RedeemCreditsAction struct {
	Amount *uint256.Int
}

type DrawWinnerAction struct {
	LotteryID *uint256.Int
}

type ClaimAction struct {
	LotteryID *uint256.Int
}

type FailInSeparateActionAction struct {
	Message string
}

// SecretAction is the public prefix of a secret-input submission. The secret
// payload itself travels on a separate channel to the engine.
type SecretAction interface {
	Action
	secretAction()
}

type CreateAccountAction struct {
	// AccountKey duplicates the key inside the secret payload so duplicates
	// can be rejected publicly before any computation is spent.
	AccountKey *uint256.Int
}

type CreateLotteryAction struct {
	LotteryID *uint256.Int
	Deadline  int64
	EntryCost *uint256.Int
	PrizePool *uint256.Int
}

type PurchaseTicketsAction struct {
	LotteryID *uint256.Int
}

func (ContinueQueueAction) selector() uint8        { return selContinueQueue }
func (PurchaseCreditsAction) selector() uint8      { return selPurchaseCredits }
func (RedeemCreditsAction) selector() uint8        { return selRedeemCredits }
func (DrawWinnerAction) selector() uint8           { return selDrawWinner }
func (ClaimAction) selector() uint8                { return selClaim }
func (FailInSeparateActionAction) selector() uint8 { return selFailInSeparateAction }
func (CreateAccountAction) selector() uint8        { return selCreateAccount }
func (CreateLotteryAction) selector() uint8        { return selCreateLottery }
func (PurchaseTicketsAction) selector() uint8      { return selPurchaseTickets }

func (CreateAccountAction) secretAction()   {}
func (CreateLotteryAction) secretAction()   {}
func (PurchaseTicketsAction) secretAction() {}

// DecodeAction parses an invoke payload: the 0x09 invoke byte, a selector,
// and big-endian arguments. The whole buffer must be consumed.
func DecodeAction(buf []byte) (Action, error) {
	r := abi.NewBigEndianReader(buf)
	off := r.Offset()
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if b != invokeByte {
		return nil, abi.UnknownDiscriminantError(off, b)
	}
	off = r.Offset()
	sel, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	var act Action
	switch sel {
	case selContinueQueue:
		act = ContinueQueueAction{}
	case selPurchaseCredits:
		var a PurchaseCreditsAction
		if a.Amount, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	case selRedeemCredits:
		var a RedeemCreditsAction
		if a.Amount, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	case selDrawWinner:
		var a DrawWinnerAction
		if a.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	case selClaim:
		var a ClaimAction
		if a.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	case selFailInSeparateAction:
		var a FailInSeparateActionAction
		if a.Message, err = r.ReadString(); err != nil {
			return nil, err
		}
		act = a
	default:
		return nil, abi.UnknownDiscriminantError(off, sel)
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return act, nil
}

// DecodeSecretAction parses the public RPC prefix of a secret-input
// submission: a selector byte followed by big-endian public arguments.
func DecodeSecretAction(buf []byte) (SecretAction, error) {
	r := abi.NewBigEndianReader(buf)
	off := r.Offset()
	sel, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	var act SecretAction
	switch sel {
	case selCreateAccount:
		var a CreateAccountAction
		if a.AccountKey, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	case selCreateLottery:
		var a CreateLotteryAction
		if a.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if a.Deadline, err = r.ReadI64(); err != nil {
			return nil, err
		}
		if a.EntryCost, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if a.PrizePool, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	case selPurchaseTickets:
		var a PurchaseTicketsAction
		if a.LotteryID, err = r.ReadU128(); err != nil {
			return nil, err
		}
		act = a
	default:
		return nil, abi.UnknownDiscriminantError(off, sel)
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return act, nil
}

// EncodeAction builds the invoke payload for an action, mirroring the
// client-side builders of the contract family.
func EncodeAction(a Action) ([]byte, error) {
	w := abi.NewBigEndianWriter()
	if _, secret := a.(SecretAction); !secret {
		w.WriteU8(invokeByte)
	}
	w.WriteU8(a.selector())
	var err error
	switch v := a.(type) {
	case ContinueQueueAction:
	case PurchaseCreditsAction:
		err = w.WriteU128(v.Amount)
	case RedeemCreditsAction:
		err = w.WriteU128(v.Amount)
	case DrawWinnerAction:
		err = w.WriteU128(v.LotteryID)
	case ClaimAction:
		err = w.WriteU128(v.LotteryID)
	case FailInSeparateActionAction:
		err = w.WriteString(v.Message)
	case CreateAccountAction:
		err = w.WriteU128(v.AccountKey)
	case CreateLotteryAction:
		if err = w.WriteU128(v.LotteryID); err != nil {
			break
		}
		w.WriteI64(v.Deadline)
		if err = w.WriteU128(v.EntryCost); err != nil {
			break
		}
		err = w.WriteU128(v.PrizePool)
	case PurchaseTicketsAction:
		err = w.WriteU128(v.LotteryID)
	}
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
