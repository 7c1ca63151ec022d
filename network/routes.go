package network

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/chain"
	"github.com/thrylos-labs/posseal/consensus/sealer"
	"github.com/thrylos-labs/posseal/consensus/staking"
	"github.com/thrylos-labs/posseal/crypto/hash"
	"github.com/thrylos-labs/posseal/store"
	"github.com/thrylos-labs/posseal/utils"
)

type StatusResponse struct {
	Strategy   string    `json:"strategy"`
	Height     int       `json:"height"`
	Tip        hash.Hash `json:"tip"`
	Validators int       `json:"validators"`
	Pending    int       `json:"pending"`
}

type BalanceResponse struct {
	Address string        `json:"address"`
	Balance amount.Amount `json:"balance"`
}

type TransactionRequest struct {
	From   string        `json:"from"`
	To     string        `json:"to"`
	Amount amount.Amount `json:"amount"`
}

type RegisterValidatorRequest struct {
	Address string        `json:"address"`
	Stake   amount.Amount `json:"stake"`
}

func (router *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	bc := router.node.Chain()
	utils.SendJSON(w, http.StatusOK, StatusResponse{
		Strategy:   router.node.Strategy(),
		Height:     bc.Height(),
		Tip:        bc.Latest().Hash,
		Validators: len(router.node.Validators()),
		Pending:    len(bc.PendingTransactions()),
	})
}

func (router *Router) handleGetValidators(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, router.node.Validators())
}

func (router *Router) handleRegisterValidator(w http.ResponseWriter, r *http.Request) {
	var req RegisterValidatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := router.node.RegisterValidator(req.Address, req.Stake)
	switch {
	case err == nil:
		utils.SendJSON(w, http.StatusCreated, entry)
	case errors.Is(err, staking.ErrDuplicateValidator):
		utils.SendErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, staking.ErrInsufficientBalance), errors.Is(err, staking.ErrZeroStake),
		errors.Is(err, chain.ErrInvalidTransaction):
		utils.SendErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		utils.LogError(router.logger, "register validator", err)
		utils.SendErrorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

func (router *Router) handleGetBlocks(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, router.node.Chain().Blocks())
}

func (router *Router) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	h, err := hash.FromString(mux.Vars(r)["hash"])
	if err != nil {
		utils.SendErrorResponse(w, "Invalid block hash: "+err.Error(), http.StatusBadRequest)
		return
	}
	b, err := router.node.BlockByHash(h)
	if errors.Is(err, store.ErrNotFound) {
		utils.SendErrorResponse(w, "Block not found", http.StatusNotFound)
		return
	}
	if err != nil {
		utils.LogError(router.logger, "get block", err)
		utils.SendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, b)
}

func (router *Router) handleSeal(w http.ResponseWriter, r *http.Request) {
	b, err := router.node.SealNext()
	if errors.Is(err, sealer.ErrNoEligibleValidator) {
		utils.SendErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		utils.LogError(router.logger, "seal", err)
		utils.SendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusCreated, b)
}

func (router *Router) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	utils.SendJSON(w, http.StatusOK, BalanceResponse{
		Address: address,
		Balance: router.node.Chain().GetBalanceOfAddress(address),
	})
}

func (router *Router) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := router.node.SubmitTransaction(req.From, req.To, req.Amount)
	if errors.Is(err, chain.ErrInvalidTransaction) || errors.Is(err, chain.ErrInsufficientFunds) {
		utils.SendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		utils.LogError(router.logger, "submit transaction", err)
		utils.SendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusCreated, tx)
}

func (router *Router) handlePendingTransactions(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, router.node.Chain().PendingTransactions())
}

func (router *Router) handleValidate(w http.ResponseWriter, r *http.Request) {
	if err := router.node.Chain().ValidationCheck(); err != nil {
		utils.SendJSON(w, http.StatusOK, map[string]interface{}{"valid": false, "error": err.Error()})
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
}
