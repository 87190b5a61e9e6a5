package contract

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/internal/avl"
	"github.com/veildraw/veildraw/internal/mpc"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// Tree ids are allocated once at contract deployment and never change.
const (
	accountsTree        avl.TreeID = 0
	accountKeysTree     avl.TreeID = 1
	lotteriesTree       avl.TreeID = 2
	lotteryAccountsTree avl.TreeID = 3
)

// ContractState is the root aggregate. The ordered maps hold only tree ids at
// the wire level; their entries live in the backing store. Mutation happens
// exclusively through the dispatch layer and the queue engine.
type ContractState struct {
	// Token is the address of the token contract credits settle against.
	Token abi.Address
	// API is the address trusted to publish entropy and drive the queue.
	API abi.Address

	// Accounts maps a user address to the secret variable holding its
	// account balance.
	Accounts *avl.TreeMap[abi.Address, mpc.SecretVarId]
	// AccountKeys maps a claimed account key to the address that owns it.
	AccountKeys *avl.TreeMap[*uint256.Int, abi.Address]
	// Lotteries maps a lottery id to its public record.
	Lotteries *avl.TreeMap[*uint256.Int, *Lottery]
	// LotteryAccounts maps a lottery id to the secret variable holding the
	// lottery's pooled balance.
	LotteryAccounts *avl.TreeMap[*uint256.Int, mpc.SecretVarId]

	// WorkQueue holds pending asynchronous items in FIFO order.
	WorkQueue []WorkListItem
	// RedundantVariables lists secret variables whose contents have been
	// superseded and that the engine may discard.
	RedundantVariables []mpc.SecretVarId
}

// NewContractState initializes an empty state bound to the given store.
func NewContractState(token, api abi.Address, store avl.Store) *ContractState {
	return &ContractState{
		Token:           token,
		API:             api,
		Accounts:        avl.NewTreeMap(accountsTree, store, addressCodec(), svarCodec()),
		AccountKeys:     avl.NewTreeMap(accountKeysTree, store, u128Codec(), addressCodec()),
		Lotteries:       avl.NewTreeMap(lotteriesTree, store, u128Codec(), lotteryCodec()),
		LotteryAccounts: avl.NewTreeMap(lotteryAccountsTree, store, u128Codec(), svarCodec()),
	}
}

// Encode serializes the state root in the little-endian state format. Tree
// contents are not inlined; each map serializes as its tree id.
func (s *ContractState) Encode() ([]byte, error) {
	w := abi.NewLittleEndianWriter()
	w.WriteAddress(s.Token)
	w.WriteAddress(s.API)
	w.WriteI32(int32(s.Accounts.ID()))
	w.WriteI32(int32(s.AccountKeys.ID()))
	w.WriteI32(int32(s.Lotteries.ID()))
	w.WriteI32(int32(s.LotteryAccounts.ID()))
	if err := abi.WriteVec(w, s.WorkQueue, encodeWorkListItem); err != nil {
		return nil, fmt.Errorf("encode work queue: %w", err)
	}
	if err := abi.WriteVec(w, s.RedundantVariables, writeSvar); err != nil {
		return nil, fmt.Errorf("encode redundant variables: %w", err)
	}
	return w.Bytes(), nil
}

// DecodeContractState parses a state root and rebinds its ordered maps to the
// given store. The whole buffer must be consumed.
func DecodeContractState(buf []byte, store avl.Store) (*ContractState, error) {
	r := abi.NewLittleEndianReader(buf)
	s := &ContractState{}
	var err error
	if s.Token, err = r.ReadAddress(); err != nil {
		return nil, err
	}
	if s.API, err = r.ReadAddress(); err != nil {
		return nil, err
	}
	ids := make([]avl.TreeID, 4)
	for i := range ids {
		v, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		ids[i] = avl.TreeID(v)
	}
	s.Accounts = avl.NewTreeMap(ids[0], store, addressCodec(), svarCodec())
	s.AccountKeys = avl.NewTreeMap(ids[1], store, u128Codec(), addressCodec())
	s.Lotteries = avl.NewTreeMap(ids[2], store, u128Codec(), lotteryCodec())
	s.LotteryAccounts = avl.NewTreeMap(ids[3], store, u128Codec(), svarCodec())
	if s.WorkQueue, err = abi.ReadVec(r, decodeWorkListItem); err != nil {
		return nil, fmt.Errorf("decode work queue: %w", err)
	}
	if s.RedundantVariables, err = abi.ReadVec(r, readSvar); err != nil {
		return nil, fmt.Errorf("decode redundant variables: %w", err)
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return s, nil
}

func addressCodec() avl.Codec[abi.Address] {
	return avl.Codec[abi.Address]{
		Encode: func(a abi.Address) ([]byte, error) {
			b := make([]byte, abi.AddressLength)
			copy(b, a[:])
			return b, nil
		},
		Decode: func(b []byte) (abi.Address, error) {
			var a abi.Address
			if len(b) != abi.AddressLength {
				return a, fmt.Errorf("address entry is %d bytes, want %d", len(b), abi.AddressLength)
			}
			copy(a[:], b)
			return a, nil
		},
	}
}

func u128Codec() avl.Codec[*uint256.Int] {
	return avl.Codec[*uint256.Int]{
		Encode: func(v *uint256.Int) ([]byte, error) {
			w := abi.NewLittleEndianWriter()
			if err := w.WriteU128(v); err != nil {
				return nil, err
			}
			return w.Bytes(), nil
		},
		Decode: func(b []byte) (*uint256.Int, error) {
			r := abi.NewLittleEndianReader(b)
			v, err := r.ReadU128()
			if err != nil {
				return nil, err
			}
			if err := r.Finish(); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

func svarCodec() avl.Codec[mpc.SecretVarId] {
	return avl.Codec[mpc.SecretVarId]{
		Encode: func(id mpc.SecretVarId) ([]byte, error) {
			w := abi.NewLittleEndianWriter()
			if err := writeSvar(w, id); err != nil {
				return nil, err
			}
			return w.Bytes(), nil
		},
		Decode: func(b []byte) (mpc.SecretVarId, error) {
			r := abi.NewLittleEndianReader(b)
			id, err := readSvar(r)
			if err != nil {
				return 0, err
			}
			if err := r.Finish(); err != nil {
				return 0, err
			}
			return id, nil
		},
	}
}

func lotteryCodec() avl.Codec[*Lottery] {
	return avl.Codec[*Lottery]{
		Encode: func(l *Lottery) ([]byte, error) {
			w := abi.NewLittleEndianWriter()
			if err := l.encode(w); err != nil {
				return nil, err
			}
			return w.Bytes(), nil
		},
		Decode: func(b []byte) (*Lottery, error) {
			r := abi.NewLittleEndianReader(b)
			l, err := decodeLottery(r)
			if err != nil {
				return nil, err
			}
			if err := r.Finish(); err != nil {
				return nil, err
			}
			return l, nil
		},
	}
}
