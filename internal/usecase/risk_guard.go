package usecase

import (
	"fmt"

	"AOWI/internal/domain/models"
)

// ValidateOrder checks one order against static limits. It does no I/O and never
// modifies the input; a clamped order is returned as a copy.
//
// Checks run in order: positive volume, allowed symbol, volume cap. Exceeding the
// cap clamps and records a warning rather than rejecting.
func ValidateOrder(order models.Order, limits models.RiskLimits) models.Verdict {
	if !order.Volume.IsPositive() {
		return models.Verdict{Order: order, Reject: models.RejectInvalidVolume}
	}
	if !limits.Allows(order.Symbol) {
		return models.Verdict{Order: order, Reject: models.RejectSymbolNotAllowed}
	}

	v := models.Verdict{Order: order}
	max := limits.MaxFor(order.Symbol)
	if max.IsPositive() && order.Volume.GreaterThan(max) {
		v.Order = order.WithVolume(max)
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("volume %s clamped to max %s for %s", order.Volume, max, order.Symbol))
	}
	return v
}
