// Package abi binary-encodes contract function calls using the target
// ledger's static/dynamic head-and-tail calldata convention.
package abi

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const wordSize = 32

// Selector returns the first four bytes of the keccak-256 hash of the
// canonical function signature. Whitespace is stripped so callers may format
// signatures freely.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], ethcrypto.Keccak256([]byte(canonical(signature)))[:4])
	return sel
}

// Encode builds calldata for the given function signature and arguments.
// Supported parameter types: bytes32, uint256, address, string, string[],
// uint256[]. Numeric arguments must be arbitrary-precision; values outside
// [0, 2^256) are rejected rather than truncated.
func Encode(signature string, args ...interface{}) ([]byte, error) {
	sig := canonical(signature)
	types, err := paramTypes(sig)
	if err != nil {
		return nil, err
	}
	if len(types) != len(args) {
		return nil, fmt.Errorf("abi: %s expects %d arguments, got %d", sig, len(types), len(args))
	}

	headSize := len(types) * wordSize
	head := make([]byte, 0, headSize)
	var tail []byte
	for i, typ := range types {
		if isDynamic(typ) {
			offset, err := encodeUint(big.NewInt(int64(headSize + len(tail))))
			if err != nil {
				return nil, err
			}
			head = append(head, offset...)
			encoded, err := encodeDynamic(typ, args[i])
			if err != nil {
				return nil, fmt.Errorf("abi: argument %d (%s): %w", i, typ, err)
			}
			tail = append(tail, encoded...)
			continue
		}
		word, err := encodeStatic(typ, args[i])
		if err != nil {
			return nil, fmt.Errorf("abi: argument %d (%s): %w", i, typ, err)
		}
		head = append(head, word...)
	}

	sel := Selector(sig)
	out := make([]byte, 0, 4+len(head)+len(tail))
	out = append(out, sel[:]...)
	out = append(out, head...)
	out = append(out, tail...)
	return out, nil
}

func canonical(signature string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, signature)
}

func paramTypes(signature string) ([]string, error) {
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, fmt.Errorf("abi: malformed signature %q", signature)
	}
	inner := signature[open+1 : len(signature)-1]
	if inner == "" {
		return nil, nil
	}
	types := strings.Split(inner, ",")
	for _, typ := range types {
		switch typ {
		case "bytes32", "uint256", "address", "string", "string[]", "uint256[]":
		default:
			return nil, fmt.Errorf("abi: unsupported parameter type %q", typ)
		}
	}
	return types, nil
}

func isDynamic(typ string) bool {
	switch typ {
	case "string", "string[]", "uint256[]":
		return true
	}
	return false
}

func encodeStatic(typ string, arg interface{}) ([]byte, error) {
	switch typ {
	case "bytes32":
		switch v := arg.(type) {
		case [32]byte:
			out := make([]byte, wordSize)
			copy(out, v[:])
			return out, nil
		case common.Hash:
			out := make([]byte, wordSize)
			copy(out, v[:])
			return out, nil
		}
		return nil, fmt.Errorf("want [32]byte, got %T", arg)
	case "uint256":
		switch v := arg.(type) {
		case *big.Int:
			return encodeUint(v)
		case uint64:
			return encodeUint(new(big.Int).SetUint64(v))
		}
		return nil, fmt.Errorf("want *big.Int, got %T", arg)
	case "address":
		switch v := arg.(type) {
		case common.Address:
			out := make([]byte, wordSize)
			copy(out[wordSize-common.AddressLength:], v[:])
			return out, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("invalid address %q", v)
			}
			addr := common.HexToAddress(v)
			out := make([]byte, wordSize)
			copy(out[wordSize-common.AddressLength:], addr[:])
			return out, nil
		}
		return nil, fmt.Errorf("want address, got %T", arg)
	}
	return nil, fmt.Errorf("not a static type")
}

func encodeDynamic(typ string, arg interface{}) ([]byte, error) {
	switch typ {
	case "string":
		v, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", arg)
		}
		return encodeString(v), nil
	case "uint256[]":
		v, ok := arg.([]*big.Int)
		if !ok {
			return nil, fmt.Errorf("want []*big.Int, got %T", arg)
		}
		out, err := encodeUint(big.NewInt(int64(len(v))))
		if err != nil {
			return nil, err
		}
		for i, elem := range v {
			word, err := encodeUint(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, word...)
		}
		return out, nil
	case "string[]":
		v, ok := arg.([]string)
		if !ok {
			return nil, fmt.Errorf("want []string, got %T", arg)
		}
		out, err := encodeUint(big.NewInt(int64(len(v))))
		if err != nil {
			return nil, err
		}
		// Element offsets are relative to the start of the element head
		// area, immediately after the length word.
		head := make([]byte, 0, len(v)*wordSize)
		var tail []byte
		for _, elem := range v {
			offset, err := encodeUint(big.NewInt(int64(len(v)*wordSize + len(tail))))
			if err != nil {
				return nil, err
			}
			head = append(head, offset...)
			tail = append(tail, encodeString(elem)...)
		}
		out = append(out, head...)
		out = append(out, tail...)
		return out, nil
	}
	return nil, fmt.Errorf("not a dynamic type")
}

func encodeString(s string) []byte {
	length, _ := encodeUint(big.NewInt(int64(len(s))))
	return append(length, padRight([]byte(s))...)
}

func encodeUint(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("nil uint256")
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("uint256 must be non-negative, got %s", v)
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", v)
	}
	out := word.Bytes32()
	return out[:], nil
}

func padRight(data []byte) []byte {
	if rem := len(data) % wordSize; rem != 0 {
		return append(data, make([]byte, wordSize-rem)...)
	}
	return data
}
