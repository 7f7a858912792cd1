package rpc

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"checksvault/native/registry"
)

// ItemResult is the RPC projection of a registry item.
type ItemResult struct {
	ID       uint64 `json:"id"`
	Rank     uint8  `json:"rank"`
	Seed     string `json:"seed"`
	Owner    string `json:"owner"`
	Consumed bool   `json:"consumed"`
}

func itemResult(item *registry.Item) ItemResult {
	return ItemResult{
		ID:       item.ID,
		Rank:     item.Rank,
		Seed:     formatSeed(item.Seed),
		Owner:    formatAddress(item.Owner),
		Consumed: item.Consumed,
	}
}

func parseAddress(raw string) ([20]byte, *RPCError) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(addr) {
		return addr, &RPCError{Code: codeInvalidParams, Message: "invalid address"}
	}
	copy(addr[:], decoded)
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatSeed(seed uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	return "0x" + hex.EncodeToString(buf[:])
}
