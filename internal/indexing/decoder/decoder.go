// Package decoder extracts the validator public key from deposit contract call data.
package decoder

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrMalformedCalldata is returned when call data does not decode as a deposit.
var ErrMalformedCalldata = errors.New("malformed deposit calldata")

// DepositSelector is the 4-byte id of deposit(bytes,bytes,bytes,bytes32).
var DepositSelector = []byte{0x22, 0x89, 0x51, 0x18}

// depositArgs is (pubkey, withdrawal_credentials, signature, deposit_data_root).
var depositArgs = mustArguments("bytes", "bytes", "bytes", "bytes32")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %s: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// DecodePubkey returns the 0x-prefixed hex pubkey carried by deposit call data.
// Input may be the raw argument tuple or a full call with the deposit selector.
func DecodePubkey(input []byte) (string, error) {
	data := input
	if len(data) >= 4 && bytes.Equal(data[:4], DepositSelector) {
		data = data[4:]
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty input", ErrMalformedCalldata)
	}

	values, err := depositArgs.Unpack(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCalldata, err)
	}
	if len(values) != len(depositArgs) {
		return "", fmt.Errorf("%w: got %d values", ErrMalformedCalldata, len(values))
	}

	pubkey, ok := values[0].([]byte)
	if !ok {
		return "", fmt.Errorf("%w: pubkey is %T", ErrMalformedCalldata, values[0])
	}
	return hexutil.Encode(pubkey), nil
}

// EncodeDeposit packs a deposit call, selector included. Used by tests and tooling.
func EncodeDeposit(pubkey, withdrawalCredentials, signature []byte, depositDataRoot [32]byte) ([]byte, error) {
	packed, err := depositArgs.Pack(pubkey, withdrawalCredentials, signature, depositDataRoot)
	if err != nil {
		return nil, fmt.Errorf("pack deposit: %w", err)
	}
	return append(append([]byte{}, DepositSelector...), packed...), nil
}
