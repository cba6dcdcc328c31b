package domain

import (
	"fmt"
	"math"
	"sort"
)

// Maximum single-axis parcel extent, in centimetres, for the smaller shipping tiers.
const (
	smallMaxExtentCM  = 20.0
	mediumMaxExtentCM = 40.0
)

// ShippingTable holds tier fees (USD) and volume thresholds (cm³).
type ShippingTable struct {
	SmallCost          float64
	MediumCost         float64
	LargeCost          float64
	SmallThresholdCM3  float64
	MediumThresholdCM3 float64
}

// Cost returns the fee for a tier.
func (t ShippingTable) Cost(size ShippingSize) float64 {
	switch size {
	case ShippingSmall:
		return t.SmallCost
	case ShippingMedium:
		return t.MediumCost
	case ShippingLarge:
		return t.LargeCost
	default:
		return t.LargeCost
	}
}

// DiscountPolicy decides the fractional discount applied to a unit price for a quantity.
type DiscountPolicy interface {
	Discount(quantity int) float64
}

// NoDiscount applies no quantity discount.
type NoDiscount struct{}

// Discount implements DiscountPolicy.
func (NoDiscount) Discount(int) float64 { return 0 }

// DiscountTier grants Percent off the unit price from MinQuantity units upward.
type DiscountTier struct {
	MinQuantity int
	Percent     float64
}

// TieredDiscount picks the tier with the highest MinQuantity not above the ordered quantity.
type TieredDiscount []DiscountTier

// NewTieredDiscount returns the tiers sorted by descending MinQuantity.
func NewTieredDiscount(tiers []DiscountTier) TieredDiscount {
	sorted := make(TieredDiscount, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinQuantity > sorted[j].MinQuantity })

	return sorted
}

// Discount implements DiscountPolicy.
func (t TieredDiscount) Discount(quantity int) float64 {
	for _, tier := range t {
		if quantity >= tier.MinQuantity {
			return tier.Percent / 100.0
		}
	}

	return 0
}

// PricingConfig is the rate card the engine prices against.
type PricingConfig struct {
	Currency              string
	MarkupPercentage      float64
	MinimumOrder          float64
	EstimatedShippingDays int
	Rates                 MaterialRates
	Shipping              ShippingTable

	// Discount is optional; nil means NoDiscount.
	Discount DiscountPolicy
}

// PricingEngine turns geometry into money. All methods are pure functions of
// their arguments and the configured rate card.
type PricingEngine struct {
	cfg PricingConfig
}

// NewPricingEngine creates an engine for the given rate card.
func NewPricingEngine(cfg PricingConfig) *PricingEngine {
	if cfg.Discount == nil {
		cfg.Discount = NoDiscount{}
	}

	return &PricingEngine{cfg: cfg}
}

// Config returns the rate card.
func (e *PricingEngine) Config() PricingConfig {
	return e.cfg
}

// MaterialCost returns the raw material cost of a part of the given volume.
func (e *PricingEngine) MaterialCost(volumeMM3 float64, material Material) float64 {
	return volumeMM3 / 1000.0 * e.cfg.Rates.Rate(material)
}

// Markup returns the markup on a base cost.
func (e *PricingEngine) Markup(baseCost float64) float64 {
	return baseCost * (e.cfg.MarkupPercentage / 100.0)
}

// QuantityPricing applies the discount policy and returns the unit and total cost.
func (e *PricingEngine) QuantityPricing(unitCost float64, quantity int) (unit, total float64) {
	unit = unitCost * (1 - e.cfg.Discount.Discount(quantity))
	return unit, unit * float64(quantity)
}

// PriceLineItem returns a priced copy of item.
func (e *PricingEngine) PriceLineItem(item LineItem) LineItem {
	cost := e.MaterialCost(item.Volume, item.Material)
	withMarkup := cost + e.Markup(cost)
	unit, _ := e.QuantityPricing(withMarkup, item.Quantity)

	priced := item
	priced.UnitPrice = RoundCents(unit)
	priced.TotalPrice = RoundCents(priced.UnitPrice * float64(item.Quantity))

	return priced
}

// ShippingFor classifies a shipment and returns its tier and fee.
// Both the volume and the extent conditions must hold for a smaller tier.
func (e *PricingEngine) ShippingFor(totalVolumeCM3 float64, boxes []BoundingBox) (ShippingSize, float64) {
	var maxExtentMM float64
	for _, b := range boxes {
		maxExtentMM = math.Max(maxExtentMM, b.MaxExtent())
	}

	maxExtentCM := maxExtentMM / 10.0

	var size ShippingSize

	switch {
	case totalVolumeCM3 <= e.cfg.Shipping.SmallThresholdCM3 && maxExtentCM <= smallMaxExtentCM:
		size = ShippingSmall
	case totalVolumeCM3 <= e.cfg.Shipping.MediumThresholdCM3 && maxExtentCM <= mediumMaxExtentCM:
		size = ShippingMedium
	default:
		size = ShippingLarge
	}

	return size, e.cfg.Shipping.Cost(size)
}

// PriceQuote aggregates priced line items into a quote without identity or
// timestamps. It fails when the list is empty or the total misses the minimum order.
func (e *PricingEngine) PriceQuote(items []LineItem) (*Quote, error) {
	if len(items) == 0 {
		return nil, NewValidationError("files", "cannot calculate pricing for empty file list")
	}

	var (
		subtotal    float64
		totalVolume float64
	)

	boxes := make([]BoundingBox, 0, len(items))
	for _, li := range items {
		subtotal += li.TotalPrice
		totalVolume += li.VolumeCM3()
		boxes = append(boxes, li.BoundingBox)
	}

	size, shipping := e.ShippingFor(totalVolume, boxes)

	subtotal = RoundCents(subtotal)
	shipping = RoundCents(shipping)
	total := RoundCents(subtotal + shipping)

	if total < e.cfg.MinimumOrder {
		return nil, NewValidationErrorWithValue("total",
			fmt.Sprintf("Order total $%.2f is below minimum order value $%.2f", total, e.cfg.MinimumOrder),
			total)
	}

	return &Quote{
		Items:                 append([]LineItem(nil), items...),
		Subtotal:              subtotal,
		ShippingCost:          shipping,
		Total:                 total,
		ShippingSize:          size,
		EstimatedShippingDays: e.cfg.EstimatedShippingDays,
		IsValid:               true,
	}, nil
}

// FileBreakdown is the per-line portion of a pricing breakdown.
type FileBreakdown struct {
	Filename            string
	Material            Material
	Quantity            int
	VolumeCM3           float64
	MaterialCostPerUnit float64
	MarkupPerUnit       float64
	UnitPrice           float64
	TotalPrice          float64
}

// Breakdown is an audit view of how a quote's price was reached.
type Breakdown struct {
	Currency         string
	Files            []FileBreakdown
	MaterialCost     float64
	QuantityDiscount float64
	Markup           float64
	Subtotal         float64
	ShippingSize     ShippingSize
	ShippingCost     float64
	EstimatedDays    int
	Total            float64
	MeetsMinimum     bool
}

// Breakdown recomputes per-line cost and markup for a quote.
func (e *PricingEngine) Breakdown(q *Quote) Breakdown {
	b := Breakdown{
		Currency:      e.cfg.Currency,
		Files:         make([]FileBreakdown, 0, len(q.Items)),
		Subtotal:      q.Subtotal,
		ShippingSize:  q.ShippingSize,
		ShippingCost:  q.ShippingCost,
		EstimatedDays: q.EstimatedShippingDays,
		Total:         q.Total,
		MeetsMinimum:  q.Total >= e.cfg.MinimumOrder,
	}

	var materialTotal, markupTotal, discountTotal float64

	for _, li := range q.Items {
		cost := e.MaterialCost(li.Volume, li.Material)
		markup := e.Markup(cost)
		materialTotal += cost * float64(li.Quantity)
		markupTotal += markup * float64(li.Quantity)

		_, discounted := e.QuantityPricing(cost+markup, li.Quantity)
		discountTotal += (cost+markup)*float64(li.Quantity) - discounted

		b.Files = append(b.Files, FileBreakdown{
			Filename:            li.Filename,
			Material:            li.Material,
			Quantity:            li.Quantity,
			VolumeCM3:           RoundCents(li.VolumeCM3()),
			MaterialCostPerUnit: RoundCents(cost),
			MarkupPerUnit:       RoundCents(markup),
			UnitPrice:           li.UnitPrice,
			TotalPrice:          li.TotalPrice,
		})
	}

	b.MaterialCost = RoundCents(materialTotal)
	b.Markup = RoundCents(markupTotal)
	b.QuantityDiscount = RoundCents(discountTotal)

	return b
}
