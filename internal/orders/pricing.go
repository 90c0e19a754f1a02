package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// ZoneTerms is the flat delivery pricing of one zone. A zero FreeThreshold
// means the zone never ships for free.
type ZoneTerms struct {
	Fee           decimal.Decimal
	FreeThreshold decimal.Decimal
	Carrier       string
}

// Schedule maps each delivery zone to its terms.
type Schedule map[enums.DeliveryZone]ZoneTerms

// NewSchedule parses the configured fee schedule.
func NewSchedule(cfg config.DeliveryConfig) (Schedule, error) {
	local, err := parseZone("local", cfg.LocalFee, cfg.LocalFreeThreshold, cfg.LocalCarrier)
	if err != nil {
		return nil, err
	}
	national, err := parseZone("national", cfg.NationalFee, cfg.NationalFreeThreshold, cfg.NationalCarrier)
	if err != nil {
		return nil, err
	}
	return Schedule{
		enums.DeliveryZoneLocal:    local,
		enums.DeliveryZoneNational: national,
	}, nil
}

func parseZone(name, fee, threshold, carrier string) (ZoneTerms, error) {
	f, err := decimal.NewFromString(fee)
	if err != nil {
		return ZoneTerms{}, fmt.Errorf("parse %s delivery fee: %w", name, err)
	}
	th, err := decimal.NewFromString(threshold)
	if err != nil {
		return ZoneTerms{}, fmt.Errorf("parse %s free threshold: %w", name, err)
	}
	if f.IsNegative() || th.IsNegative() {
		return ZoneTerms{}, fmt.Errorf("%s delivery terms must not be negative", name)
	}
	if carrier == "" {
		return ZoneTerms{}, fmt.Errorf("%s carrier required", name)
	}
	return ZoneTerms{Fee: f, FreeThreshold: th, Carrier: carrier}, nil
}

// Terms returns the zone's terms and whether the zone is known.
func (s Schedule) Terms(zone enums.DeliveryZone) (ZoneTerms, bool) {
	t, ok := s[zone]
	return t, ok
}

// PricedLine is one order line after its unit price has been fixed.
type PricedLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal is quantity times unit price, rounded to cents.
func (l PricedLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// OrderTotals are the three stored money figures of an order.
type OrderTotals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Totals is the only place order money figures are computed.
// Total always equals Subtotal + DeliveryFee.
func Totals(lines []PricedLine, terms ZoneTerms) OrderTotals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
	}
	subtotal = subtotal.Round(2)

	fee := terms.Fee.Round(2)
	if terms.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(terms.FreeThreshold) {
		fee = decimal.Zero
	}
	return OrderTotals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}
