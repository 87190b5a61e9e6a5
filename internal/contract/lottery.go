package contract

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/internal/mpc"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// LotteryStatus is the lifecycle state machine of a lottery. Transitions are
// strictly monotonic: Pending → Open → Closed → Complete.
type LotteryStatus uint8

const (
	StatusPending  LotteryStatus = 1
	StatusOpen     LotteryStatus = 2
	StatusClosed   LotteryStatus = 3
	StatusComplete LotteryStatus = 4
)

func (s LotteryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusComplete:
		return "complete"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Lottery is the public state of one lottery instance. Ticket counts and the
// ledger mapping entries to purchasers stay secret behind SecretStateID.
type Lottery struct {
	LotteryID *uint256.Int
	Creator   abi.Address
	Status    LotteryStatus
	// Unix seconds after which entries close and the draw may run.
	Deadline  int64
	EntryCost *uint256.Int
	PrizePool *uint256.Int
	Winner    *abi.Address
	// SecretStateID points at the lottery's private ticket ledger.
	SecretStateID *mpc.SecretVarId
	// PendingSecretStateID holds the handle of an in-flight computation so a
	// failed round never clobbers valid state.
	PendingSecretStateID *mpc.SecretVarId
	// EntriesSvars lists the ticket-purchase secret inputs, in submission
	// order, consumed when the winner is drawn.
	EntriesSvars []mpc.SecretVarId
	WinnerIndex  *uint256.Int
	PrizeClaimed bool
}

func (l *Lottery) encode(w *abi.Writer) error {
	if err := w.WriteU128(l.LotteryID); err != nil {
		return err
	}
	w.WriteAddress(l.Creator)
	w.WriteU8(uint8(l.Status))
	w.WriteI64(l.Deadline)
	if err := w.WriteU128(l.EntryCost); err != nil {
		return err
	}
	if err := w.WriteU128(l.PrizePool); err != nil {
		return err
	}
	if err := abi.WriteOption(w, l.Winner, func(w *abi.Writer, a abi.Address) error {
		w.WriteAddress(a)
		return nil
	}); err != nil {
		return err
	}
	if err := abi.WriteOption(w, l.SecretStateID, writeSvar); err != nil {
		return err
	}
	if err := abi.WriteOption(w, l.PendingSecretStateID, writeSvar); err != nil {
		return err
	}
	if err := abi.WriteVec(w, l.EntriesSvars, writeSvar); err != nil {
		return err
	}
	if err := writeOptionU128(w, l.WinnerIndex); err != nil {
		return err
	}
	w.WriteBool(l.PrizeClaimed)
	return nil
}

func decodeLottery(r *abi.Reader) (*Lottery, error) {
	l := &Lottery{}
	var err error
	if l.LotteryID, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if l.Creator, err = r.ReadAddress(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if status < uint8(StatusPending) || status > uint8(StatusComplete) {
		return nil, abi.UnknownDiscriminantError(r.Offset()-1, status)
	}
	l.Status = LotteryStatus(status)
	if l.Deadline, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if l.EntryCost, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if l.PrizePool, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if l.Winner, err = abi.ReadOption(r, (*abi.Reader).ReadAddress); err != nil {
		return nil, err
	}
	if l.SecretStateID, err = abi.ReadOption(r, readSvar); err != nil {
		return nil, err
	}
	if l.PendingSecretStateID, err = abi.ReadOption(r, readSvar); err != nil {
		return nil, err
	}
	if l.EntriesSvars, err = abi.ReadVec(r, readSvar); err != nil {
		return nil, err
	}
	if l.WinnerIndex, err = readOptionU128(r); err != nil {
		return nil, err
	}
	if l.PrizeClaimed, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return l, nil
}

func writeOptionU128(w *abi.Writer, v *uint256.Int) error {
	w.WriteBool(v != nil)
	if v == nil {
		return nil
	}
	return w.WriteU128(v)
}

func readOptionU128(r *abi.Reader) (*uint256.Int, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return r.ReadU128()
}

func writeSvar(w *abi.Writer, id mpc.SecretVarId) error {
	w.WriteU32(uint32(id))
	return nil
}

func readSvar(r *abi.Reader) (mpc.SecretVarId, error) {
	v, err := r.ReadU32()
	return mpc.SecretVarId(v), err
}
