package mpc

import (
	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// Plaintext layouts of the secret payloads, encoded little-endian. The
// simulator computes on these directly; a production engine would hold them
// as shares. Offsets are load-bearing: the balance display path reads bytes
// 16..32 of a reconstructed account variable.

// AccountCreationSecret is the secret input of createAccount.
type AccountCreationSecret struct {
	AccountKey *uint256.Int
}

// LotteryCreationSecret is the secret input of createLottery.
type LotteryCreationSecret struct {
	LotteryAccountKey *uint256.Int
	CreatorAccountKey *uint256.Int
	RandomSeed        *uint256.Int
}

// TicketPurchaseSecret is the secret input of purchaseTickets.
type TicketPurchaseSecret struct {
	LotteryAccountKey   *uint256.Int
	PurchaserAccountKey *uint256.Int
	Tickets             *uint256.Int
	Entropy             *uint256.Int
}

// AccountBalance is the secret state of a user or lottery account.
type AccountBalance struct {
	AccountKey *uint256.Int
	Balance    *uint256.Int
}

// LotteryState is the private ticket ledger of one lottery.
type LotteryState struct {
	Entropy *uint256.Int
	Tickets *uint256.Int
}

// ComputationResult is the opened outcome of a balance-affecting computation.
type ComputationResult struct {
	Amount     *uint256.Int
	Successful bool
}

// DrawResult is the opened outcome of a winner draw.
type DrawResult struct {
	LotteryKey *uint256.Int
	WinnerKey  *uint256.Int
	Successful bool
}

func encodeU128s(vs ...*uint256.Int) ([]byte, error) {
	w := abi.NewLittleEndianWriter()
	for _, v := range vs {
		if err := w.WriteU128(v); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeU128s(data []byte, n int) ([]*uint256.Int, error) {
	r := abi.NewLittleEndianReader(data)
	out := make([]*uint256.Int, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadU128()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, r.Finish()
}

func (s AccountCreationSecret) Encode() ([]byte, error) {
	return encodeU128s(s.AccountKey)
}

func DecodeAccountCreationSecret(data []byte) (AccountCreationSecret, error) {
	vs, err := decodeU128s(data, 1)
	if err != nil {
		return AccountCreationSecret{}, err
	}
	return AccountCreationSecret{AccountKey: vs[0]}, nil
}

func (s LotteryCreationSecret) Encode() ([]byte, error) {
	return encodeU128s(s.LotteryAccountKey, s.CreatorAccountKey, s.RandomSeed)
}

func DecodeLotteryCreationSecret(data []byte) (LotteryCreationSecret, error) {
	vs, err := decodeU128s(data, 3)
	if err != nil {
		return LotteryCreationSecret{}, err
	}
	return LotteryCreationSecret{LotteryAccountKey: vs[0], CreatorAccountKey: vs[1], RandomSeed: vs[2]}, nil
}

func (s TicketPurchaseSecret) Encode() ([]byte, error) {
	return encodeU128s(s.LotteryAccountKey, s.PurchaserAccountKey, s.Tickets, s.Entropy)
}

func DecodeTicketPurchaseSecret(data []byte) (TicketPurchaseSecret, error) {
	vs, err := decodeU128s(data, 4)
	if err != nil {
		return TicketPurchaseSecret{}, err
	}
	return TicketPurchaseSecret{LotteryAccountKey: vs[0], PurchaserAccountKey: vs[1], Tickets: vs[2], Entropy: vs[3]}, nil
}

func (s AccountBalance) Encode() ([]byte, error) {
	return encodeU128s(s.AccountKey, s.Balance)
}

func DecodeAccountBalance(data []byte) (AccountBalance, error) {
	vs, err := decodeU128s(data, 2)
	if err != nil {
		return AccountBalance{}, err
	}
	return AccountBalance{AccountKey: vs[0], Balance: vs[1]}, nil
}

func (s LotteryState) Encode() ([]byte, error) {
	return encodeU128s(s.Entropy, s.Tickets)
}

func DecodeLotteryState(data []byte) (LotteryState, error) {
	vs, err := decodeU128s(data, 2)
	if err != nil {
		return LotteryState{}, err
	}
	return LotteryState{Entropy: vs[0], Tickets: vs[1]}, nil
}

func (s ComputationResult) Encode() ([]byte, error) {
	w := abi.NewLittleEndianWriter()
	if err := w.WriteU128(s.Amount); err != nil {
		return nil, err
	}
	w.WriteBool(s.Successful)
	return w.Bytes(), nil
}

func DecodeComputationResult(data []byte) (ComputationResult, error) {
	r := abi.NewLittleEndianReader(data)
	amount, err := r.ReadU128()
	if err != nil {
		return ComputationResult{}, err
	}
	ok, err := r.ReadBool()
	if err != nil {
		return ComputationResult{}, err
	}
	return ComputationResult{Amount: amount, Successful: ok}, r.Finish()
}

func (s DrawResult) Encode() ([]byte, error) {
	w := abi.NewLittleEndianWriter()
	if err := w.WriteU128(s.LotteryKey); err != nil {
		return nil, err
	}
	if err := w.WriteU128(s.WinnerKey); err != nil {
		return nil, err
	}
	w.WriteBool(s.Successful)
	return w.Bytes(), nil
}

func DecodeDrawResult(data []byte) (DrawResult, error) {
	r := abi.NewLittleEndianReader(data)
	lottery, err := r.ReadU128()
	if err != nil {
		return DrawResult{}, err
	}
	winner, err := r.ReadU128()
	if err != nil {
		return DrawResult{}, err
	}
	ok, err := r.ReadBool()
	if err != nil {
		return DrawResult{}, err
	}
	return DrawResult{LotteryKey: lottery, WinnerKey: winner, Successful: ok}, r.Finish()
}
