// Package mpc defines the contract's view of the external secret-computation
// engine. The contract holds opaque variable ids; the engine holds the values.
// Computations stay secret-to-secret: the contract only learns results that
// the engine intentionally opens.
package mpc

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// SecretVarId is an opaque handle to a value owned by the engine.
// The zero id means "no variable".
type SecretVarId uint32

// None is the absent secret variable id.
const None SecretVarId = 0

// VariableKind tags the engine-side type of a secret variable. The values
// match the metadata discriminants of the contract family.
type VariableKind uint8

const (
	KindAccountCreationSecret VariableKind = 1
	KindLotteryCreationSecret VariableKind = 2
	KindUserAccount           VariableKind = 3
	KindLotteryAccount        VariableKind = 4
	KindLotteryState          VariableKind = 5
	KindComputationResult     VariableKind = 6
	KindDrawResult            VariableKind = 7
	KindWinnerIndex           VariableKind = 8
	KindTicketPurchase        VariableKind = 11
)

// ComputeOp selects a secret computation. Values follow the computation
// shortnames of the contract family.
type ComputeOp uint8

const (
	OpCreateAccount  ComputeOp = 0x70
	OpMintCredits    ComputeOp = 0x71
	OpBurnCredits    ComputeOp = 0x72
	OpCreateLottery  ComputeOp = 0x73
	OpPurchaseTicket ComputeOp = 0x74
	OpDrawWinner     ComputeOp = 0x75
	OpClaimWinnings  ComputeOp = 0x76
	OpWinnerIndex    ComputeOp = 0x77
)

var (
	ErrUnknownVariable = errors.New("mpc: unknown secret variable")
	ErrUnresolved      = errors.New("mpc: computation round not yet complete")
	ErrNotOpened       = errors.New("mpc: variable is not an opened result")
	ErrNotAuthorized   = errors.New("mpc: requester does not own the variable")
)

// Engine is the external secret-computation collaborator. Submissions and
// computations return handles immediately; the values behind them become
// available only after the engine's round completes, which the contract
// observes through Resolved.
type Engine interface {
	// SubmitSecretInput registers a new secret input owned by owner.
	SubmitSecretInput(owner abi.Address, kind VariableKind, secret []byte) (SecretVarId, error)

	// Compute requests a secret computation over the input variables with
	// the given public arguments, returning the expected output handles.
	Compute(op ComputeOp, inputs []SecretVarId, args []*uint256.Int) ([]SecretVarId, error)

	// Resolved reports whether the round producing id has completed.
	Resolved(id SecretVarId) bool

	// Reveal returns the plaintext of an intentionally opened result
	// variable, such as a computation outcome or a drawn index.
	Reveal(id SecretVarId) ([]byte, error)

	// FetchSecretVariable reconstructs a secret value for its owner. This is
	// the user-initiated display path; contract logic never calls it.
	FetchSecretVariable(requester abi.Address, id SecretVarId) ([]byte, error)

	// DeleteVariables retires variables the contract no longer references.
	DeleteVariables(ids []SecretVarId) error
}
