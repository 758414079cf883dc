package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zone classifies a delivery address for fee lookup.
type Zone string

const (
	ZoneLocal  Zone = "local"
	ZoneRemote Zone = "remote"
)

// DeliveryOption is the delivery speed chosen at checkout.
type DeliveryOption string

const (
	DeliveryStandard DeliveryOption = "standard"
	DeliveryExpress  DeliveryOption = "express"
	DeliverySameDay  DeliveryOption = "sameday"
)

var deliveryFees = map[Zone]map[DeliveryOption]decimal.Decimal{
	ZoneLocal: {
		DeliveryStandard: decimal.RequireFromString("70.00"),
		DeliveryExpress:  decimal.RequireFromString("100.00"),
		DeliverySameDay:  decimal.RequireFromString("150.00"),
	},
	ZoneRemote: {
		DeliveryStandard: decimal.RequireFromString("120.00"),
		DeliveryExpress:  decimal.RequireFromString("150.00"),
	},
}

// ParseDeliveryOption maps form input to an option. "fast" is accepted as
// an alias of express; anything unrecognized becomes standard.
func ParseDeliveryOption(s string) DeliveryOption {
	switch DeliveryOption(strings.ToLower(strings.TrimSpace(s))) {
	case DeliveryExpress, "fast":
		return DeliveryExpress
	case DeliverySameDay:
		return DeliverySameDay
	default:
		return DeliveryStandard
	}
}

// ClassifyZone reports ZoneLocal when the address mentions the local
// delivery area (case-insensitive).
func ClassifyZone(address, localArea string) Zone {
	area := strings.ToLower(strings.TrimSpace(localArea))
	if area != "" && strings.Contains(strings.ToLower(address), area) {
		return ZoneLocal
	}
	return ZoneRemote
}

// ResolveDelivery returns the option actually applied and its fee.
// Same-day is not offered outside the local zone and falls back to express.
func ResolveDelivery(zone Zone, opt DeliveryOption) (DeliveryOption, decimal.Decimal) {
	table, ok := deliveryFees[zone]
	if !ok {
		table = deliveryFees[ZoneRemote]
	}
	if opt == DeliverySameDay && zone != ZoneLocal {
		opt = DeliveryExpress
	}
	fee, ok := table[opt]
	if !ok {
		return DeliveryStandard, table[DeliveryStandard]
	}
	return opt, fee
}

// Options lists the options offered for a zone with their fees.
func Options(zone Zone) map[DeliveryOption]decimal.Decimal {
	table, ok := deliveryFees[zone]
	if !ok {
		table = deliveryFees[ZoneRemote]
	}
	out := make(map[DeliveryOption]decimal.Decimal, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out
}
