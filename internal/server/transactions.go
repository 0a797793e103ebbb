package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	BookingID     string          `json:"booking_id"`
	RentalID      string          `json:"rental_id"`
	Description   string          `json:"description"`
}

func (s *Server) CreateTransaction(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	bookingID, err := parseOptionalSnowflakeID(req.BookingID)
	if err != nil {
		AbortWithError(c, newValidationError("booking_id", "invalid_booking_id", "invalid booking_id"))
		return
	}
	rentalID, err := parseOptionalSnowflakeID(req.RentalID)
	if err != nil {
		AbortWithError(c, newValidationError("rental_id", "invalid_rental_id", "invalid rental_id"))
		return
	}

	resp, err := s.ledgerSvc.CreateTransaction(c.Request.Context(), ledgerdomain.CreateTransactionRequest{
		UserID:        userID,
		Type:          ledgerdomain.TransactionType(strings.TrimSpace(req.Type)),
		Amount:        req.Amount,
		Currency:      strings.TrimSpace(req.Currency),
		Status:        ledgerdomain.TransactionStatus(strings.TrimSpace(req.Status)),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		BookingID:     bookingID,
		RentalID:      rentalID,
		Description:   strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) DeleteTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.ledgerSvc.DeleteTransaction(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"transaction_id": id.String(), "balance": resp}})
}
