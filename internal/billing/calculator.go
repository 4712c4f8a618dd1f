package billing

import (
	"github.com/spec-kit/field-service/internal/domain"
)

// InvoiceLine is one part entry of an invoice summary.
type InvoiceLine struct {
	PartID         string `json:"part_id"`
	PartName       string `json:"part_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// InvoiceSummary is a deterministic breakdown of what an intervention costs,
// derived solely from fields already captured on the intervention.
type InvoiceSummary struct {
	InterventionID string        `json:"intervention_id"`
	ReferenceKey   string        `json:"reference_key"`
	Free           bool          `json:"free"`
	Lines          []InvoiceLine `json:"lines"`
	LaborCents     int64         `json:"labor_cents"`
	TotalCents     int64         `json:"total_cents"`
}

// AmountCents computes the amount due for an intervention. Interventions
// covered by warranty at creation time cost nothing regardless of parts or
// labor recorded afterwards.
func AmountCents(iv *domain.Intervention) int64 {
	if iv == nil || iv.IsFree {
		return 0
	}
	var total int64
	for _, part := range iv.PartsUsed {
		total += part.SubtotalCents()
	}
	if iv.LaborCents != nil {
		total += *iv.LaborCents
	}
	return total
}

// Invoiceable reports whether the intervention should produce an invoice.
func Invoiceable(iv *domain.Intervention) bool {
	if iv == nil {
		return false
	}
	return !iv.IsFree && iv.Status == domain.InterventionStatusCompleted && AmountCents(iv) > 0
}

// Summarize builds an invoice summary from captured fields. Prices are the
// add-time snapshots; nothing is re-fetched from the catalogue.
func Summarize(iv *domain.Intervention) InvoiceSummary {
	summary := InvoiceSummary{
		InterventionID: iv.ID,
		ReferenceKey:   iv.ReferenceKey,
		Free:           iv.IsFree,
		Lines:          make([]InvoiceLine, 0, len(iv.PartsUsed)),
	}
	for _, part := range iv.PartsUsed {
		summary.Lines = append(summary.Lines, InvoiceLine{
			PartID:         part.PartID,
			PartName:       part.PartName,
			Quantity:       part.Quantity,
			UnitPriceCents: part.UnitPriceCents,
			SubtotalCents:  part.SubtotalCents(),
		})
	}
	if iv.LaborCents != nil {
		summary.LaborCents = *iv.LaborCents
	}
	summary.TotalCents = AmountCents(iv)
	return summary
}
