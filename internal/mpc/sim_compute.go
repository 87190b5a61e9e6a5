package mpc

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

var max128 = func() *uint256.Int {
	v := new(uint256.Int).SetUint64(math.MaxUint64)
	return v.Or(v, new(uint256.Int).Lsh(v, 64))
}()

// add128 and sub128 wrap at 2^128, matching 128-bit engine arithmetic.
func add128(a, b *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Add(a, b)
	return out.And(out, max128)
}

func sub128(a, b *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Sub(a, b)
	return out.And(out, max128)
}

type output struct {
	kind   VariableKind
	owner  abi.Address
	opened bool
}

func (s *Simulator) Compute(op ComputeOp, inputs []SecretVarId, args []*uint256.Int) ([]SecretVarId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := s.outputSpec(op, inputs, args)
	if err != nil {
		return nil, err
	}

	ids := make([]SecretVarId, len(spec.outputs))
	for i, o := range spec.outputs {
		ids[i] = s.allocate(o.kind, o.owner)
		s.vars[ids[i]].opened = o.opened
	}
	for _, in := range inputs {
		s.vars[in].pendingUses++
	}
	s.rounds = append(s.rounds, &round{
		inputs:  append([]SecretVarId(nil), inputs...),
		outputs: ids,
		exec: func() error {
			payloads, err := spec.run()
			if err != nil {
				return fmt.Errorf("mpc: op 0x%02x: %w", uint8(op), err)
			}
			if len(payloads) != len(ids) {
				return fmt.Errorf("mpc: op 0x%02x produced %d outputs, want %d", uint8(op), len(payloads), len(ids))
			}
			for i, p := range payloads {
				s.vars[ids[i]].data = p
			}
			return nil
		},
	})
	return ids, nil
}

type computation struct {
	outputs []output
	run     func() ([][]byte, error)
}

func (s *Simulator) outputSpec(op ComputeOp, inputs []SecretVarId, args []*uint256.Int) (*computation, error) {
	ownerOf := func(i int) (abi.Address, error) {
		v, err := s.load(inputs[i])
		if err != nil {
			return abi.Address{}, err
		}
		return v.owner, nil
	}
	need := func(nin, nargs int) error {
		if len(inputs) != nin || len(args) != nargs {
			return fmt.Errorf("mpc: op 0x%02x: want %d inputs and %d args, got %d and %d",
				uint8(op), nin, nargs, len(inputs), len(args))
		}
		return nil
	}

	switch op {
	case OpCreateAccount:
		if err := need(1, 0); err != nil {
			return nil, err
		}
		owner, err := ownerOf(0)
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{
				{kind: KindUserAccount, owner: owner},
				{kind: KindComputationResult, owner: s.operator, opened: true},
			},
			run: func() ([][]byte, error) { return s.runCreateAccount(inputs[0]) },
		}, nil

	case OpMintCredits:
		if err := need(1, 1); err != nil {
			return nil, err
		}
		bal, err := s.load(inputs[0])
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{{kind: bal.kind, owner: bal.owner}},
			run:     func() ([][]byte, error) { return s.runMint(inputs[0], args[0]) },
		}, nil

	case OpBurnCredits:
		if err := need(1, 1); err != nil {
			return nil, err
		}
		bal, err := s.load(inputs[0])
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{
				{kind: bal.kind, owner: bal.owner},
				{kind: KindComputationResult, owner: s.operator, opened: true},
			},
			run: func() ([][]byte, error) { return s.runBurn(inputs[0], args[0]) },
		}, nil

	case OpCreateLottery:
		if err := need(2, 1); err != nil {
			return nil, err
		}
		creator, err := ownerOf(1)
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{
				{kind: KindUserAccount, owner: creator},
				{kind: KindLotteryAccount, owner: s.operator},
				{kind: KindLotteryState, owner: s.operator},
				{kind: KindComputationResult, owner: s.operator, opened: true},
			},
			run: func() ([][]byte, error) { return s.runCreateLottery(inputs[0], inputs[1], args[0]) },
		}, nil

	case OpPurchaseTicket:
		if err := need(4, 1); err != nil {
			return nil, err
		}
		purchaser, err := ownerOf(1)
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{
				{kind: KindUserAccount, owner: purchaser},
				{kind: KindLotteryAccount, owner: s.operator},
				{kind: KindLotteryState, owner: s.operator},
				{kind: KindComputationResult, owner: s.operator, opened: true},
			},
			run: func() ([][]byte, error) {
				return s.runPurchaseTicket(inputs[0], inputs[1], inputs[2], inputs[3], args[0])
			},
		}, nil

	case OpWinnerIndex:
		if err := need(1, 1); err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{{kind: KindWinnerIndex, owner: s.operator, opened: true}},
			run:     func() ([][]byte, error) { return s.runWinnerIndex(inputs[0], args[0]) },
		}, nil

	case OpDrawWinner:
		if err := need(3, 3); err != nil {
			return nil, err
		}
		creator, err := ownerOf(2)
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{
				{kind: KindLotteryAccount, owner: s.operator},
				{kind: KindUserAccount, owner: creator},
				{kind: KindDrawResult, owner: s.operator, opened: true},
			},
			run: func() ([][]byte, error) {
				return s.runDrawWinner(inputs[0], inputs[1], inputs[2], args[0], args[1], args[2])
			},
		}, nil

	case OpClaimWinnings:
		if err := need(2, 0); err != nil {
			return nil, err
		}
		winner, err := ownerOf(1)
		if err != nil {
			return nil, err
		}
		return &computation{
			outputs: []output{
				{kind: KindUserAccount, owner: winner},
				{kind: KindLotteryAccount, owner: s.operator},
			},
			run: func() ([][]byte, error) { return s.runClaim(inputs[0], inputs[1]) },
		}, nil

	default:
		return nil, fmt.Errorf("mpc: unknown compute op 0x%02x", uint8(op))
	}
}

func (s *Simulator) balance(id SecretVarId) (AccountBalance, error) {
	v, err := s.loadResolved(id)
	if err != nil {
		return AccountBalance{}, err
	}
	return DecodeAccountBalance(v.data)
}

// accountKeyInUse scans every live account variable for the key, skipping the
// variable the computation is producing a replacement for.
func (s *Simulator) accountKeyInUse(key *uint256.Int, skip SecretVarId) (bool, error) {
	if key.IsZero() {
		return true, nil
	}
	for _, id := range s.order {
		v := s.vars[id]
		if v.deleted || !v.resolved || id == skip {
			continue
		}
		if v.kind != KindUserAccount && v.kind != KindLotteryAccount {
			continue
		}
		bal, err := DecodeAccountBalance(v.data)
		if err != nil {
			return false, err
		}
		if bal.AccountKey.Eq(key) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Simulator) runCreateAccount(creationID SecretVarId) ([][]byte, error) {
	v, err := s.loadResolved(creationID)
	if err != nil {
		return nil, err
	}
	secret, err := DecodeAccountCreationSecret(v.data)
	if err != nil {
		return nil, err
	}
	inUse, err := s.accountKeyInUse(secret.AccountKey, creationID)
	if err != nil {
		return nil, err
	}
	key := secret.AccountKey
	if inUse {
		key = uint256.NewInt(0)
	}
	balance, err := AccountBalance{AccountKey: key, Balance: uint256.NewInt(0)}.Encode()
	if err != nil {
		return nil, err
	}
	result, err := ComputationResult{Amount: uint256.NewInt(0), Successful: !inUse}.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{balance, result}, nil
}

func (s *Simulator) runMint(balanceID SecretVarId, amount *uint256.Int) ([][]byte, error) {
	bal, err := s.balance(balanceID)
	if err != nil {
		return nil, err
	}
	bal.Balance = add128(bal.Balance, amount)
	out, err := bal.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

func (s *Simulator) runBurn(balanceID SecretVarId, amount *uint256.Int) ([][]byte, error) {
	bal, err := s.balance(balanceID)
	if err != nil {
		return nil, err
	}
	successful := bal.Balance.Cmp(amount) >= 0
	if successful {
		bal.Balance = sub128(bal.Balance, amount)
	}
	out, err := bal.Encode()
	if err != nil {
		return nil, err
	}
	result, err := ComputationResult{Amount: amount, Successful: successful}.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{out, result}, nil
}

func (s *Simulator) runCreateLottery(creationID, creatorBalanceID SecretVarId, prizePool *uint256.Int) ([][]byte, error) {
	v, err := s.loadResolved(creationID)
	if err != nil {
		return nil, err
	}
	secret, err := DecodeLotteryCreationSecret(v.data)
	if err != nil {
		return nil, err
	}
	creator, err := s.balance(creatorBalanceID)
	if err != nil {
		return nil, err
	}

	inUse, err := s.accountKeyInUse(secret.LotteryAccountKey, creationID)
	if err != nil {
		return nil, err
	}
	key := secret.LotteryAccountKey
	if inUse {
		key = uint256.NewInt(0)
	}
	successful := !key.IsZero() && creator.Balance.Cmp(prizePool) >= 0
	funded := uint256.NewInt(0)
	if successful {
		creator.Balance = sub128(creator.Balance, prizePool)
		funded = prizePool
	}

	creatorOut, err := creator.Encode()
	if err != nil {
		return nil, err
	}
	lotteryOut, err := AccountBalance{AccountKey: key, Balance: funded}.Encode()
	if err != nil {
		return nil, err
	}
	stateOut, err := LotteryState{Entropy: secret.RandomSeed, Tickets: uint256.NewInt(0)}.Encode()
	if err != nil {
		return nil, err
	}
	result, err := ComputationResult{Amount: prizePool, Successful: successful}.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{creatorOut, lotteryOut, stateOut, result}, nil
}

func (s *Simulator) runPurchaseTicket(purchaseID, purchaserBalanceID, lotteryBalanceID, lotteryStateID SecretVarId, ticketPrice *uint256.Int) ([][]byte, error) {
	v, err := s.loadResolved(purchaseID)
	if err != nil {
		return nil, err
	}
	secret, err := DecodeTicketPurchaseSecret(v.data)
	if err != nil {
		return nil, err
	}
	purchaser, err := s.balance(purchaserBalanceID)
	if err != nil {
		return nil, err
	}
	lottery, err := s.balance(lotteryBalanceID)
	if err != nil {
		return nil, err
	}
	sv, err := s.loadResolved(lotteryStateID)
	if err != nil {
		return nil, err
	}
	state, err := DecodeLotteryState(sv.data)
	if err != nil {
		return nil, err
	}

	cost := new(uint256.Int).Mul(secret.Tickets, ticketPrice)
	cost.And(cost, max128)
	successful := purchaser.Balance.Cmp(cost) >= 0
	if successful {
		purchaser.Balance = sub128(purchaser.Balance, cost)
		lottery.Balance = add128(lottery.Balance, cost)
		state.Tickets = add128(state.Tickets, secret.Tickets)
		state.Entropy = add128(state.Entropy, secret.Entropy)
	}

	purchaserOut, err := purchaser.Encode()
	if err != nil {
		return nil, err
	}
	lotteryOut, err := lottery.Encode()
	if err != nil {
		return nil, err
	}
	stateOut, err := state.Encode()
	if err != nil {
		return nil, err
	}
	result, err := ComputationResult{Amount: uint256.NewInt(0), Successful: successful}.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{purchaserOut, lotteryOut, stateOut, result}, nil
}

func (s *Simulator) runWinnerIndex(lotteryStateID SecretVarId, published *uint256.Int) ([][]byte, error) {
	sv, err := s.loadResolved(lotteryStateID)
	if err != nil {
		return nil, err
	}
	state, err := DecodeLotteryState(sv.data)
	if err != nil {
		return nil, err
	}
	index := uint256.NewInt(0)
	if !state.Tickets.IsZero() {
		index = new(uint256.Int).Mod(add128(state.Entropy, published), state.Tickets)
	}
	out, err := encodeU128s(index)
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

func (s *Simulator) runDrawWinner(lotteryStateID, lotteryBalanceID, creatorBalanceID SecretVarId, entryCost, prizePool, winnerIndex *uint256.Int) ([][]byte, error) {
	lottery, err := s.balance(lotteryBalanceID)
	if err != nil {
		return nil, err
	}
	creator, err := s.balance(creatorBalanceID)
	if err != nil {
		return nil, err
	}

	// Walk the ticket-purchase variables in submission order until the
	// revealed index lands inside one purchase's ticket range.
	winnerKey := uint256.NewInt(0)
	cursor := uint256.NewInt(0)
	for _, id := range s.order {
		v := s.vars[id]
		if v.deleted || !v.resolved || v.kind != KindTicketPurchase {
			continue
		}
		ticket, err := DecodeTicketPurchaseSecret(v.data)
		if err != nil {
			return nil, err
		}
		if !ticket.LotteryAccountKey.Eq(lottery.AccountKey) {
			continue
		}
		upper := add128(cursor, ticket.Tickets)
		if winnerIndex.Cmp(cursor) >= 0 && winnerIndex.Cmp(upper) < 0 {
			winnerKey = ticket.PurchaserAccountKey
			break
		}
		cursor = upper
	}

	if winnerKey.IsZero() {
		// No winner: the whole pot returns to the creator.
		creator.Balance = add128(creator.Balance, lottery.Balance)
		lottery.Balance = uint256.NewInt(0)
	} else if lottery.Balance.Cmp(prizePool) >= 0 {
		// Ticket revenue beyond the prize pool goes to the creator; the
		// pool itself stays in the lottery account until claimed.
		remainder := sub128(lottery.Balance, prizePool)
		creator.Balance = add128(creator.Balance, remainder)
		lottery.Balance = new(uint256.Int).Set(prizePool)
	}

	lotteryOut, err := lottery.Encode()
	if err != nil {
		return nil, err
	}
	creatorOut, err := creator.Encode()
	if err != nil {
		return nil, err
	}
	result, err := DrawResult{
		LotteryKey: lottery.AccountKey,
		WinnerKey:  winnerKey,
		Successful: !winnerKey.IsZero(),
	}.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{lotteryOut, creatorOut, result}, nil
}

func (s *Simulator) runClaim(lotteryBalanceID, winnerBalanceID SecretVarId) ([][]byte, error) {
	lottery, err := s.balance(lotteryBalanceID)
	if err != nil {
		return nil, err
	}
	winner, err := s.balance(winnerBalanceID)
	if err != nil {
		return nil, err
	}
	winner.Balance = add128(winner.Balance, lottery.Balance)
	lottery.Balance = uint256.NewInt(0)

	winnerOut, err := winner.Encode()
	if err != nil {
		return nil, err
	}
	lotteryOut, err := lottery.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{winnerOut, lotteryOut}, nil
}
