package api

import (
	"context"
	"errors"
	"net/http"

	"loans-service/internal/domain/loan"
	reqdto "loans-service/internal/handler/dto/request"
	resdto "loans-service/internal/handler/dto/response"
	"loans-service/internal/pkg/errs"
	"loans-service/internal/usecase/commands"
	"loans-service/internal/usecase/queries"
	"loans-service/internal/usecase/resilience"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LoanHandler struct {
	commands *commands.LoanCommands
	queries  *queries.LoanQueries
	selector *resilience.Selector
}

func NewLoanHandler(cmds *commands.LoanCommands, qs *queries.LoanQueries, selector *resilience.Selector) *LoanHandler {
	return &LoanHandler{commands: cmds, queries: qs, selector: selector}
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req reqdto.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, resdto.APIResponse{
			Success: false,
			Error:   "Solicitud inválida: bookId, userId y userName son obligatorios",
		})
		return
	}

	result := h.commands.CreateLoan(c.Request.Context(), resilience.CreateLoanInput{
		BookID:   req.BookID,
		UserID:   req.UserID,
		UserName: req.UserName,
	})
	if !result.Success {
		c.JSON(http.StatusBadRequest, resdto.APIResponse{
			Success:  false,
			Error:    result.Error,
			Details:  result.Details,
			Strategy: h.selector.ActiveName(),
		})
		return
	}

	c.JSON(http.StatusCreated, resdto.APIResponse{
		Success:  true,
		Data:     resdto.FromLoan(result.Loan),
		Details:  result.Details,
		Strategy: h.selector.ActiveName(),
	})
}

func (h *LoanHandler) ReturnLoan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, resdto.APIResponse{
			Success: false,
			Error:   "Identificador de préstamo inválido",
		})
		return
	}

	returned, err := h.commands.ReturnLoan(c.Request.Context(), id)
	if err != nil {
		var stateErr *commands.InvalidStateError
		switch {
		case errors.Is(err, errs.ErrLoanNotFound):
			c.JSON(http.StatusNotFound, resdto.APIResponse{
				Success: false,
				Error:   "Préstamo no encontrado",
			})
		case errors.Is(err, errs.ErrLoanAlreadyReturned):
			c.JSON(http.StatusBadRequest, resdto.APIResponse{
				Success: false,
				Error:   "El libro ya fue devuelto",
			})
		case errors.As(err, &stateErr):
			c.JSON(http.StatusBadRequest, resdto.APIResponse{
				Success: false,
				Error:   stateErr.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, resdto.APIResponse{
				Success: false,
				Error:   "Error interno del servidor",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.APIResponse{
		Success: true,
		Data:    resdto.FromLoan(returned),
	})
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	h.list(c, h.queries.ListAll)
}

func (h *LoanHandler) ListActiveLoans(c *gin.Context) {
	h.list(c, h.queries.ListActive)
}

func (h *LoanHandler) ListPendingLoans(c *gin.Context) {
	h.list(c, h.queries.ListPending)
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, resdto.APIResponse{
			Success: false,
			Error:   "Identificador de préstamo inválido",
		})
		return
	}

	l, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrLoanNotFound) {
			c.JSON(http.StatusNotFound, resdto.APIResponse{
				Success: false,
				Error:   "Préstamo no encontrado",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, resdto.APIResponse{
			Success: false,
			Error:   "Error interno del servidor",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.APIResponse{Success: true, Data: resdto.FromLoan(l)})
}

// StrategyStatus reports the active strategy, its live health view and the
// full list of strategies the service can run with.
func (h *LoanHandler) StrategyStatus(c *gin.Context) {
	c.JSON(http.StatusOK, resdto.APIResponse{
		Success:  true,
		Strategy: h.selector.ActiveName(),
		Data: gin.H{
			"active":    h.selector.Status(),
			"available": h.selector.Available(),
		},
	})
}

func (h *LoanHandler) list(c *gin.Context, fetch func(ctx context.Context) ([]*loan.Loan, error)) {
	loans, err := fetch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, resdto.APIResponse{
			Success: false,
			Error:   "Error interno del servidor",
		})
		return
	}
	c.JSON(http.StatusOK, resdto.APIResponse{Success: true, Data: resdto.FromLoans(loans)})
}
