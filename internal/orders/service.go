package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/money"
)

// OfferCheckoutWindow matches the provider's checkout session lifetime. A
// pending offer order younger than this may still be paid.
const OfferCheckoutWindow = 24 * time.Hour

// CatalogReader resolves products and offers inside a transaction.
type CatalogReader interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindOfferForUpdate(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

// SellerReader loads sellers with their payout state.
type SellerReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// AggregatorParams wires the aggregator's collaborators. The factories bind a
// repository to the caller's transaction.
type AggregatorParams struct {
	Repo     Repository
	Catalog  func(tx *gorm.DB) CatalogReader
	Sellers  func(tx *gorm.DB) SellerReader
	Currency string
}

// Aggregator turns a cart or an accepted offer into a pending order split per
// seller. It never touches inventory.
type Aggregator struct {
	repo     Repository
	catalog  func(tx *gorm.DB) CatalogReader
	sellers  func(tx *gorm.DB) SellerReader
	currency string
	now      func() time.Time
}

func NewAggregator(params AggregatorParams) (*Aggregator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller reader required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Aggregator{
		repo:     params.Repo,
		catalog:  params.Catalog,
		sellers:  params.Sellers,
		currency: currency,
		now:      time.Now,
	}, nil
}

type pricedLine struct {
	product   models.Product
	quantity  int
	unitCents int64
	color     string
	size      string
}

// BuildFromCart creates an order from the buyer's cart lines.
func (a *Aggregator) BuildFromCart(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID, lines []CartLine) (*Aggregate, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		ids = append(ids, line.ProductID)
	}

	products, err := a.catalog(tx).FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	requested := map[uuid.UUID]int{}
	priced := make([]pricedLine, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
		}
		requested[product.ID] += line.Quantity
		if err := ensurePurchasable(buyerID, product, requested[product.ID]); err != nil {
			return nil, err
		}
		priced = append(priced, pricedLine{
			product:   product,
			quantity:  line.Quantity,
			unitCents: product.PriceCents,
			color:     firstNonEmpty(line.Color, product.Color),
			size:      firstNonEmpty(line.Size, product.Size),
		})
	}

	return a.build(ctx, tx, buyerID, enums.OrderSourceCart, nil, priced)
}

// BuildFromOffer creates a single-seller order for one unit at the offer price.
func (a *Aggregator) BuildFromOffer(ctx context.Context, tx *gorm.DB, buyerID, offerID uuid.UUID) (*Aggregate, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}

	offer, err := a.catalog(tx).FindOfferForUpdate(ctx, offerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	if offer.Status != enums.OfferStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer is not accepted")
	}
	if offer.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offered product not found")
	}
	if offer.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer price must be positive")
	}
	if err := ensurePurchasable(buyerID, *offer.Product, 1); err != nil {
		return nil, err
	}
	open, err := a.repo.WithTx(tx).HasOpenOfferOrder(ctx, offer.ID, a.now().Add(-OfferCheckoutWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check offer orders")
	}
	if open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "offer already has an open checkout")
	}

	line := pricedLine{
		product:   *offer.Product,
		quantity:  1,
		unitCents: offer.PriceCents,
		color:     offer.Product.Color,
		size:      offer.Product.Size,
	}
	return a.build(ctx, tx, buyerID, enums.OrderSourceOffer, &offer.ID, []pricedLine{line})
}

func (a *Aggregator) build(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID, source enums.OrderSource, offerID *uuid.UUID, lines []pricedLine) (*Aggregate, error) {
	sellerIDs := distinctSellers(lines)
	accounts, err := a.payoutAccounts(ctx, tx, sellerIDs)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UID:      NewOrderUID(),
		BuyerID:  buyerID,
		Source:   source,
		OfferID:  offerID,
		Currency: a.currency,
		Status:   enums.OrderStatusPending,
	}

	splits := map[uuid.UUID]money.Split{}
	for _, line := range lines {
		total, err := money.LineTotal(line.unitCents, line.quantity)
		if err != nil {
			return nil, pkgerrors.NegativeAmount(err, "line total")
		}
		split, err := money.SplitAmount(total)
		if err != nil {
			return nil, pkgerrors.NegativeAmount(err, "line total")
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:         line.product.ID,
			SellerID:          line.product.SellerID,
			Quantity:          line.quantity,
			ItemPriceCents:    line.unitCents,
			PriceCents:        split.Total,
			SellerAmountCents: split.SellerAmount,
			AdminAmountCents:  split.AdminAmount,
			RefundStatus:      enums.RefundStatusNone,
			ProductName:       line.product.Name,
			Description:       line.product.Description,
			Color:             line.color,
			Size:              line.size,
			Material:          line.product.Material,
			Condition:         line.product.Condition,
			ImageURL:          line.product.ImageURL,
		})
		splits[line.product.SellerID] = splits[line.product.SellerID].Plus(split)
		order.PriceCents += total
	}

	if err := a.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	agg := &Aggregate{Order: order}
	for _, sellerID := range sellerIDs {
		group := SellerGroup{
			SellerID:        sellerID,
			StripeAccountID: accounts[sellerID],
			Split:           splits[sellerID],
		}
		for _, item := range order.Items {
			if item.SellerID == sellerID {
				group.Items = append(group.Items, item)
			}
		}
		agg.Groups = append(agg.Groups, group)
	}
	return agg, nil
}

// payoutAccounts returns the connected account of every seller, or fails with
// MissingPayoutAccount naming each seller that cannot take a split payment.
func (a *Aggregator) payoutAccounts(ctx context.Context, tx *gorm.DB, sellerIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	sellers, err := a.sellers(tx).FindByIDs(ctx, sellerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sellers")
	}
	accounts := make(map[uuid.UUID]string, len(sellers))
	for _, seller := range sellers {
		if seller.CanReceivePayouts() {
			accounts[seller.ID] = *seller.StripeAccountID
		}
	}
	var missing []string
	for _, id := range sellerIDs {
		if _, ok := accounts[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.MissingPayoutAccount(missing)
	}
	return accounts, nil
}

func ensurePurchasable(buyerID uuid.UUID, product models.Product, quantity int) error {
	if product.SellerID == buyerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own listing")
	}
	if product.Status != enums.ProductStatusActive {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not available", product.ID))
	}
	if product.Quantity < quantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s has only %d left", product.ID, product.Quantity))
	}
	return nil
}

func distinctSellers(lines []pricedLine) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, line := range lines {
		if _, ok := seen[line.product.SellerID]; ok {
			continue
		}
		seen[line.product.SellerID] = struct{}{}
		ids = append(ids, line.product.SellerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// NewOrderUID returns the short human readable order code.
func NewOrderUID() string {
	id := uuid.New()
	return fmt.Sprintf("VM-%X", id[:4])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
