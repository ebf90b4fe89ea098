package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MrBlinki/sui-hackaton25/internal/api/middleware"
	"github.com/MrBlinki/sui-hackaton25/internal/contract"
	"github.com/MrBlinki/sui-hackaton25/internal/ledger"
)

// LedgerHandler exposes the contract entry points and the read-only state.
type LedgerHandler struct {
	state *ledger.StateManager
}

// NewLedgerHandler creates a new LedgerHandler backed by the state manager
func NewLedgerHandler(state *ledger.StateManager) *LedgerHandler {
	return &LedgerHandler{state: state}
}

type registerRequest struct {
	Title  string `json:"title" binding:"required"`
	Artist string `json:"artist"`
}

type playRequest struct {
	Title   string  `json:"title" binding:"required"`
	Payment *uint64 `json:"payment" binding:"required"`
}

type fundRequest struct {
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

// GetState returns the full committed state, registry included.
func (h *LedgerHandler) GetState(c *gin.Context) {
	s, err := h.state.State(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetCurrent is the cheap endpoint polled by players.
func (h *LedgerHandler) GetCurrent(c *gin.Context) {
	s, err := h.state.State(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"current_track": s.CurrentTrack,
		"last_payer":    s.LastPayer,
		"version":       s.Version,
	})
}

func (h *LedgerHandler) RegisterTrack(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": err.Error()})
		return
	}

	receipt, err := h.state.Execute(c.Request.Context(), contract.Call{
		Kind:   contract.KindRegisterTrack,
		Caller: contract.Address(middleware.Caller(c)),
		Title:  req.Title,
		Artist: contract.Address(req.Artist),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *LedgerHandler) RemoveTrack(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		writeError(c, contract.ErrIndexOutOfBounds)
		return
	}

	receipt, err := h.state.Execute(c.Request.Context(), contract.Call{
		Kind:   contract.KindRemoveTrack,
		Caller: contract.Address(middleware.Caller(c)),
		Index:  index,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Play pays the fee to switch the current track.
func (h *LedgerHandler) Play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": err.Error()})
		return
	}

	receipt, err := h.state.Execute(c.Request.Context(), contract.Call{
		Kind:    contract.KindChangeTrack,
		Caller:  contract.Address(middleware.Caller(c)),
		Title:   req.Title,
		Payment: *req.Payment,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *LedgerHandler) GetEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.state.Events(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	addr := c.Param("address")
	balance, err := h.state.Balance(c.Request.Context(), contract.Address(addr))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": balance})
}

// FundAccount is the owner-only faucet.
func (h *LedgerHandler) FundAccount(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": err.Error()})
		return
	}

	addr := c.Param("address")
	balance, err := h.state.Fund(c.Request.Context(),
		contract.Address(middleware.Caller(c)), contract.Address(addr), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": balance})
}

func writeError(c *gin.Context, err error) {
	code := contract.Code(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, contract.ErrInsufficientPayment), errors.Is(err, contract.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, contract.ErrTrackNotFound):
		status = http.StatusNotFound
	case errors.Is(err, contract.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, contract.ErrIndexOutOfBounds), errors.Is(err, contract.ErrEmptyTitle), errors.Is(err, contract.ErrUnknownCall):
		status = http.StatusBadRequest
	case errors.Is(err, contract.ErrDuplicateTitle):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrNotInitialized):
		status = http.StatusServiceUnavailable
		code = "NotInitialized"
	}

	if status == http.StatusInternalServerError {
		slog.Error("ledger request failed", "error", err, "path", c.FullPath(), "request_id", c.GetString("request_id"))
		c.JSON(status, gin.H{"error": "Internal", "message": "ledger error"})
		return
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
