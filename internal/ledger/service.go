package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Service records seller balance movements.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	SellerTotal(ctx context.Context, sellerID uuid.UUID) (int64, error)
	History(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEvent, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
// AmountCents is always positive; the sign is derived from Type.
type RecordLedgerEventInput struct {
	SellerID    uuid.UUID             `json:"seller_id"`
	OrderID     uuid.UUID             `json:"order_id"`
	PaymentID   *uuid.UUID            `json:"payment_id,omitempty"`
	OrderItemID *uuid.UUID            `json:"order_item_id,omitempty"`
	Type        enums.LedgerEventType `json:"type"`
	AmountCents int64                 `json:"amount_cents"`
	Metadata    json.RawMessage       `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if input.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.AmountCents < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}

	var signed int64
	switch input.Type {
	case enums.LedgerEventTypeSellerCredit:
		signed = input.AmountCents
	case enums.LedgerEventTypeRefundDebit:
		signed = -input.AmountCents
	default:
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}

	event := &models.LedgerEvent{
		SellerID:    input.SellerID,
		OrderID:     input.OrderID,
		PaymentID:   input.PaymentID,
		OrderItemID: input.OrderItemID,
		Type:        input.Type,
		AmountCents: signed,
		Metadata:    input.Metadata,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// SellerTotal returns the balance implied by the seller's ledger history.
func (s *service) SellerTotal(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	if sellerID == uuid.Nil {
		return 0, fmt.Errorf("seller id is required")
	}
	return s.repo.SumBySellerID(ctx, sellerID)
}

// History lists the seller's most recent balance movements.
func (s *service) History(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEvent, error) {
	if sellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id is required")
	}
	return s.repo.ListBySellerID(ctx, sellerID, limit)
}
