package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/field-service/internal/domain"
)

func labor(cents int64) *int64 {
	return &cents
}

func TestAmountCents(t *testing.T) {
	t.Run("Parts plus labor", func(t *testing.T) {
		iv := &domain.Intervention{
			LaborCents: labor(4500),
			PartsUsed: []domain.PartUsage{
				{PartID: "p1", Quantity: 2, UnitPriceCents: 1250},
				{PartID: "p2", Quantity: 1, UnitPriceCents: 800},
			},
		}
		assert.Equal(t, int64(2*1250+800+4500), AmountCents(iv))
	})

	t.Run("Nil labor treated as zero", func(t *testing.T) {
		iv := &domain.Intervention{
			PartsUsed: []domain.PartUsage{{PartID: "p1", Quantity: 3, UnitPriceCents: 100}},
		}
		assert.Equal(t, int64(300), AmountCents(iv))
	})

	t.Run("Under warranty is always free", func(t *testing.T) {
		iv := &domain.Intervention{
			IsFree:     true,
			LaborCents: labor(9900),
			PartsUsed:  []domain.PartUsage{{PartID: "p1", Quantity: 5, UnitPriceCents: 2000}},
		}
		assert.Equal(t, int64(0), AmountCents(iv))
	})

	t.Run("Referentially transparent", func(t *testing.T) {
		iv := &domain.Intervention{
			LaborCents: labor(1000),
			PartsUsed:  []domain.PartUsage{{PartID: "p1", Quantity: 1, UnitPriceCents: 500}},
		}
		assert.Equal(t, AmountCents(iv), AmountCents(iv))
	})
}

func TestInvoiceable(t *testing.T) {
	tests := []struct {
		name   string
		iv     *domain.Intervention
		expect bool
	}{
		{
			name: "Completed billable",
			iv: &domain.Intervention{
				Status:     domain.InterventionStatusCompleted,
				LaborCents: labor(100),
			},
			expect: true,
		},
		{
			name: "Free never invoiceable",
			iv: &domain.Intervention{
				Status:     domain.InterventionStatusCompleted,
				IsFree:     true,
				LaborCents: labor(100),
			},
			expect: false,
		},
		{
			name: "Not completed",
			iv: &domain.Intervention{
				Status:     domain.InterventionStatusInProgress,
				LaborCents: labor(100),
			},
			expect: false,
		},
		{
			name: "Zero amount",
			iv: &domain.Intervention{
				Status: domain.InterventionStatusCompleted,
			},
			expect: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Invoiceable(tt.iv))
		})
	}
}

func TestSummarize(t *testing.T) {
	iv := &domain.Intervention{
		ID:           "iv-1",
		ReferenceKey: "INT-ABCD1234",
		Status:       domain.InterventionStatusCompleted,
		LaborCents:   labor(2500),
		PartsUsed: []domain.PartUsage{
			{PartID: "p1", PartName: "compressor", Quantity: 1, UnitPriceCents: 12000},
			{PartID: "p2", PartName: "gasket", Quantity: 4, UnitPriceCents: 150},
		},
	}

	summary := Summarize(iv)
	assert.Equal(t, "iv-1", summary.InterventionID)
	assert.False(t, summary.Free)
	assert.Len(t, summary.Lines, 2)
	assert.Equal(t, int64(12000), summary.Lines[0].SubtotalCents)
	assert.Equal(t, int64(600), summary.Lines[1].SubtotalCents)
	assert.Equal(t, int64(2500), summary.LaborCents)
	assert.Equal(t, int64(12000+600+2500), summary.TotalCents)

	// Summaries derive from captured fields only; two calls agree.
	assert.Equal(t, summary, Summarize(iv))
}
