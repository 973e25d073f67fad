package stripe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

const (
	MetadataOrderID      = "order_id"
	MetadataBuyerID      = "buyer_id"
	MetadataSellerID     = "seller_id"
	MetadataOfferID      = "offer_id"
	MetadataSource       = "source"
	MetadataTotalAmount  = "total_amount"
	MetadataSellerAmount = "seller_amount"
	MetadataAdminAmount  = "admin_amount"
)

// SettlementMetadata is attached to every checkout session and its payment
// intent so the webhook can settle the seller group without extra lookups.
type SettlementMetadata struct {
	OrderID      uuid.UUID
	BuyerID      uuid.UUID
	SellerID     uuid.UUID
	OfferID      *uuid.UUID
	Source       enums.OrderSource
	TotalAmount  int64
	SellerAmount int64
	AdminAmount  int64
}

// Map renders the metadata in the provider's string map form.
func (m SettlementMetadata) Map() map[string]string {
	out := map[string]string{
		MetadataOrderID:      m.OrderID.String(),
		MetadataBuyerID:      m.BuyerID.String(),
		MetadataSellerID:     m.SellerID.String(),
		MetadataSource:       string(m.Source),
		MetadataTotalAmount:  strconv.FormatInt(m.TotalAmount, 10),
		MetadataSellerAmount: strconv.FormatInt(m.SellerAmount, 10),
		MetadataAdminAmount:  strconv.FormatInt(m.AdminAmount, 10),
	}
	if m.OfferID != nil {
		out[MetadataOfferID] = m.OfferID.String()
	}
	return out
}

// ParseSettlementMetadata validates and decodes session metadata.
func ParseSettlementMetadata(raw map[string]string) (SettlementMetadata, error) {
	var m SettlementMetadata
	var err error
	if m.OrderID, err = parseUUID(raw, MetadataOrderID); err != nil {
		return m, err
	}
	if m.BuyerID, err = parseUUID(raw, MetadataBuyerID); err != nil {
		return m, err
	}
	if m.SellerID, err = parseUUID(raw, MetadataSellerID); err != nil {
		return m, err
	}
	if m.Source, err = enums.ParseOrderSource(raw[MetadataSource]); err != nil {
		return m, fmt.Errorf("metadata %s: %w", MetadataSource, err)
	}
	if m.TotalAmount, err = parseAmount(raw, MetadataTotalAmount); err != nil {
		return m, err
	}
	if m.SellerAmount, err = parseAmount(raw, MetadataSellerAmount); err != nil {
		return m, err
	}
	if m.AdminAmount, err = parseAmount(raw, MetadataAdminAmount); err != nil {
		return m, err
	}
	if m.SellerAmount+m.AdminAmount != m.TotalAmount {
		return m, fmt.Errorf("metadata amounts do not add up: %d + %d != %d", m.SellerAmount, m.AdminAmount, m.TotalAmount)
	}
	if m.Source == enums.OrderSourceOffer {
		offerID, err := parseUUID(raw, MetadataOfferID)
		if err != nil {
			return m, err
		}
		m.OfferID = &offerID
	}
	return m, nil
}

func parseUUID(raw map[string]string, key string) (uuid.UUID, error) {
	value := strings.TrimSpace(raw[key])
	if value == "" {
		return uuid.Nil, fmt.Errorf("metadata %s missing", key)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("metadata %s: %w", key, err)
	}
	return id, nil
}

func parseAmount(raw map[string]string, key string) (int64, error) {
	value := strings.TrimSpace(raw[key])
	if value == "" {
		return 0, fmt.Errorf("metadata %s missing", key)
	}
	amount, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata %s: %w", key, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("metadata %s must not be negative", key)
	}
	return amount, nil
}
