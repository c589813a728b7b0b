package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenSide identifies which side of a reserve a stream pays emissions on.
type TokenSide uint8

const (
	// SideLiability covers debt-token (borrower) positions.
	SideLiability TokenSide = iota
	// SideSupply covers supply/collateral-token (lender) positions.
	SideSupply
)

func (s TokenSide) String() string {
	switch s {
	case SideLiability:
		return "liability"
	case SideSupply:
		return "supply"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseTokenSide parses a side name ("liability" or "supply").
func ParseTokenSide(input string) (TokenSide, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "liability", "d":
		return SideLiability, nil
	case "supply", "b":
		return SideSupply, nil
	default:
		return 0, fmt.Errorf("invalid token side: %q", input)
	}
}

// StreamKey identifies one emission stream: a reserve asset plus the side
// of the reserve the stream rewards.
type StreamKey struct {
	Asset common.Address `json:"asset"`
	Side  TokenSide      `json:"side"`
}

func (k StreamKey) String() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(k.Asset.Hex()), k.Side)
}

// ParseStreamKey parses "0xASSET:liability" or "0xASSET:supply".
func ParseStreamKey(input string) (StreamKey, error) {
	parts := strings.SplitN(strings.TrimSpace(input), ":", 2)
	if len(parts) != 2 {
		return StreamKey{}, fmt.Errorf("invalid stream key: %q", input)
	}
	if !common.IsHexAddress(parts[0]) {
		return StreamKey{}, fmt.Errorf("invalid asset address: %q", parts[0])
	}
	side, err := ParseTokenSide(parts[1])
	if err != nil {
		return StreamKey{}, err
	}
	return StreamKey{Asset: common.HexToAddress(parts[0]), Side: side}, nil
}

// ParseStreamKeys parses a comma-separated stream key list, preserving order
// and duplicates.
func ParseStreamKeys(inputs []string) ([]StreamKey, error) {
	keys := make([]StreamKey, 0, len(inputs))
	for _, raw := range inputs {
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			key, err := ParseStreamKey(item)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}
