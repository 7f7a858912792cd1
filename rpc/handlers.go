package rpc

import (
	"encoding/json"
	"errors"
	"math/big"

	"checksvault/native/registry"
	"checksvault/native/vault"
)

type depositParams struct {
	Caller  string   `json:"caller"`
	ItemIDs []uint64 `json:"itemIds"`
}

func (s *Server) handleDeposit(params []json.RawMessage) (interface{}, *RPCError) {
	var p depositParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Deposit(caller, p.ItemIDs); err != nil {
		s.metrics.RecordRejection("deposit")
		return nil, vaultError(err)
	}
	s.metrics.RecordDeposits(len(p.ItemIDs))
	s.publishSupply()
	return s.supplyResult()
}

type redeemParams struct {
	Caller string `json:"caller"`
	ItemID uint64 `json:"itemId"`
}

func (s *Server) handleRedeem(params []json.RawMessage) (interface{}, *RPCError) {
	var p redeemParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Redeem(caller, p.ItemID); err != nil {
		s.metrics.RecordRejection("redeem")
		return nil, vaultError(err)
	}
	s.metrics.RecordRedeem()
	s.publishSupply()
	return s.supplyResult()
}

type mergePairParams struct {
	Caller string `json:"caller"`
	KeepID uint64 `json:"keepId"`
	BurnID uint64 `json:"burnId"`
}

func (s *Server) handleMergePair(params []json.RawMessage) (interface{}, *RPCError) {
	var p mergePairParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.MergePair(caller, p.KeepID, p.BurnID); err != nil {
		s.metrics.RecordRejection("mergePair")
		return nil, vaultError(err)
	}
	s.metrics.RecordMerge("pair")
	return map[string]uint64{"keepId": p.KeepID}, nil
}

type mergeAggregateParams struct {
	Caller  string   `json:"caller"`
	ItemIDs []uint64 `json:"itemIds"`
}

func (s *Server) handleMergeAggregate(params []json.RawMessage) (interface{}, *RPCError) {
	var p mergeAggregateParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.MergeAggregate(caller, p.ItemIDs); err != nil {
		s.metrics.RecordRejection("mergeAggregate")
		return nil, vaultError(err)
	}
	s.metrics.RecordMerge("aggregate")
	if len(p.ItemIDs) == 0 {
		return nil, &RPCError{Code: codeServerError, Message: "empty aggregate accepted unexpectedly"}
	}
	return map[string]uint64{"survivorId": p.ItemIDs[0]}, nil
}

type receiveValueParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
	Data   string `json:"data,omitempty"`
}

func (s *Server) handleReceiveValue(params []json.RawMessage) (interface{}, *RPCError) {
	var p receiveValueParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := parseAddress(p.From)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount := new(big.Int)
	if p.Amount != "" {
		if _, ok := amount.SetString(p.Amount, 10); !ok {
			return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount"}
		}
	}
	err := s.engine.ReceiveValue(from, amount, []byte(p.Data))
	s.metrics.RecordRejection("receiveValue")
	if err == nil {
		return nil, &RPCError{Code: codeServerError, Message: "value transfer accepted unexpectedly"}
	}
	return nil, vaultError(err)
}

func (s *Server) handleMaxSupply([]json.RawMessage) (interface{}, *RPCError) {
	return map[string]string{"maxSupply": s.engine.MaxSupplyAmount().String()}, nil
}

func (s *Server) handleTotalIssued([]json.RawMessage) (interface{}, *RPCError) {
	return s.supplyResult()
}

type balanceOfParams struct {
	Address string `json:"address"`
}

func (s *Server) handleBalanceOf(params []json.RawMessage) (interface{}, *RPCError) {
	var p balanceOfParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(p.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.state.Token().BalanceOf(addr)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	return map[string]string{"address": p.Address, "balance": balance.String()}, nil
}

type itemParams struct {
	ItemID uint64 `json:"itemId"`
}

func (s *Server) handleGetItem(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	item, err := s.state.Registry().GetItem(p.ItemID)
	if err != nil {
		return nil, registryError(err)
	}
	return itemResult(item), nil
}

func (s *Server) handleOwnerOf(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemParams
	if rpcErr := decodeSingleParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, err := s.state.Registry().OwnerOf(p.ItemID)
	if err != nil {
		return nil, registryError(err)
	}
	return map[string]string{"owner": formatAddress(owner)}, nil
}

func (s *Server) supplyResult() (interface{}, *RPCError) {
	total, err := s.engine.TotalIssued()
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	return map[string]string{"totalIssued": total.String()}, nil
}

func (s *Server) publishSupply() {
	total, err := s.engine.TotalIssued()
	if err != nil {
		return
	}
	s.metrics.SetIssued(total)
}

func vaultError(err error) *RPCError {
	code := codeServerError
	switch {
	case errors.Is(err, vault.ErrSupplyCeiling):
		code = codeSupplyCeiling
	case errors.Is(err, vault.ErrInsufficientBalance):
		code = codeInsufficientBalance
	case errors.Is(err, vault.ErrInvalidOrder):
		code = codeInvalidOrder
	case errors.Is(err, vault.ErrNotAuthorized):
		code = codeNotAuthorized
	case errors.Is(err, vault.ErrItemNotFound):
		code = codeItemNotFound
	case errors.Is(err, vault.ErrNotInCustody):
		code = codeNotInCustody
	case errors.Is(err, vault.ErrRegistryRejected):
		code = codeRegistryRejected
	case errors.Is(err, vault.ErrUnsolicitedValue):
		code = codeUnsolicitedValue
	}
	return &RPCError{Code: code, Message: err.Error()}
}

func registryError(err error) *RPCError {
	code := codeServerError
	switch {
	case errors.Is(err, registry.ErrItemNotFound), errors.Is(err, registry.ErrItemConsumed):
		code = codeItemNotFound
	case errors.Is(err, registry.ErrNotAuthorized):
		code = codeNotAuthorized
	}
	return &RPCError{Code: code, Message: err.Error()}
}
