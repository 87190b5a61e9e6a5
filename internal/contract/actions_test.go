package contract

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

func TestActionRoundTrip(t *testing.T) {
	actions := []Action{
		ContinueQueueAction{},
		PurchaseCreditsAction{Amount: uint256.NewInt(500)},
		RedeemCreditsAction{Amount: uint256.NewInt(25)},
		DrawWinnerAction{LotteryID: uint256.NewInt(42)},
		ClaimAction{LotteryID: uint256.NewInt(42)},
		FailInSeparateActionAction{Message: "boom"},
	}
	for _, action := range actions {
		encoded, err := EncodeAction(action)
		require.NoError(t, err)
		require.Equal(t, uint8(0x09), encoded[0])

		decoded, err := DecodeAction(encoded)
		require.NoError(t, err)
		assert.Equal(t, action, decoded)
	}
}

func TestSecretActionRoundTrip(t *testing.T) {
	actions := []SecretAction{
		CreateAccountAction{AccountKey: uint256.NewInt(1111)},
		CreateLotteryAction{
			LotteryID: uint256.NewInt(42),
			Deadline:  1700003600,
			EntryCost: uint256.NewInt(1),
			PrizePool: uint256.NewInt(5),
		},
		PurchaseTicketsAction{LotteryID: uint256.NewInt(42)},
	}
	for _, action := range actions {
		encoded, err := EncodeAction(action)
		require.NoError(t, err)
		assert.NotEqual(t, uint8(0x09), encoded[0])

		decoded, err := DecodeSecretAction(encoded)
		require.NoError(t, err)
		assert.Equal(t, action, decoded)
	}
}

func TestDecodeActionRejectsMissingInvokeByte(t *testing.T) {
	_, err := DecodeAction([]byte{0x20})
	var decodeErr *abi.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, decodeErr.Offset)
	assert.Equal(t, uint64(0x20), decodeErr.Value)
}

func TestDecodeActionRejectsUnknownSelector(t *testing.T) {
	_, err := DecodeAction([]byte{0x09, 0x7f})
	var decodeErr *abi.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 1, decodeErr.Offset)
	assert.Equal(t, uint64(0x7f), decodeErr.Value)

	_, err = DecodeSecretAction([]byte{0x7f})
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, decodeErr.Offset)
}

func TestDecodeActionRejectsTrailingBytes(t *testing.T) {
	encoded, err := EncodeAction(ClaimAction{LotteryID: uint256.NewInt(1)})
	require.NoError(t, err)

	_, err = DecodeAction(append(encoded, 0xff))
	var decodeErr *abi.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, len(encoded), decodeErr.Offset)
}

func TestDecodeActionRejectsTruncatedPayload(t *testing.T) {
	encoded, err := EncodeAction(PurchaseCreditsAction{Amount: uint256.NewInt(9)})
	require.NoError(t, err)

	_, err = DecodeAction(encoded[:len(encoded)-4])
	var decodeErr *abi.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestActionArgumentsAreBigEndian(t *testing.T) {
	encoded, err := EncodeAction(DrawWinnerAction{LotteryID: uint256.NewInt(1)})
	require.NoError(t, err)
	require.Len(t, encoded, 2+abi.U128Length)
	assert.Equal(t, uint8(1), encoded[len(encoded)-1])
	assert.Equal(t, uint8(0), encoded[2])
}
