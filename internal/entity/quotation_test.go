package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotationValidate(t *testing.T) {
	assert.ErrorIs(t, (*Quotation)(nil).Validate(), ErrMissingVendor)
	assert.ErrorIs(t, (&Quotation{Items: []Item{{PartNumber: "X"}}}).Validate(), ErrMissingVendor)
	assert.ErrorIs(t, (&Quotation{Vendor: &Vendor{Name: "Acme"}}).Validate(), ErrMissingItems)
	assert.NoError(t, (&Quotation{Vendor: &Vendor{}, Items: []Item{{}}}).Validate())
}

func TestQuotationJSONKeys(t *testing.T) {
	var q Quotation
	raw := `{"Vendor":{"name":"Acme","vat":"123"},"Items":[{"Part Number":"P-1","Unit Price":"10.00","Quantity":"2"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &q))

	require.NotNil(t, q.Vendor)
	assert.Equal(t, "Acme", q.VendorName())
	require.Len(t, q.Items, 1)
	assert.Equal(t, "P-1", q.Items[0].PartNumber)
	assert.Equal(t, "10.00", q.Items[0].UnitPrice)
}

func TestAggregate(t *testing.T) {
	item, ok := NewWorkItem("SO100_E1")
	require.True(t, ok)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	valid := Quotation{Vendor: &Vendor{Name: "Acme"}, Items: []Item{{PartNumber: "A"}}}
	payload, ok := Aggregate(item, []ExtractionResult{
		{SourceKey: "a", Quotation: valid, Valid: true},
		{SourceKey: "b", Valid: false, Reason: "missing vendor"},
	}, now)
	require.True(t, ok)

	want := AggregatedPayload{
		Reference:   "SO100",
		WorkItemID:  "SO100_E1",
		GeneratedAt: now,
		Quotations:  []Quotation{valid},
	}
	assert.Empty(t, cmp.Diff(want, payload))
	assert.Equal(t, 1, payload.ItemCount())

	_, ok = Aggregate(item, []ExtractionResult{{Valid: false}}, now)
	assert.False(t, ok)
}

func TestNewWorkItem(t *testing.T) {
	_, ok := NewWorkItem("NOUNDERSCORE")
	assert.False(t, ok)

	w, ok := NewWorkItem("SO7_AAMk_x")
	require.True(t, ok)
	assert.Equal(t, "SO7", w.Reference)
	assert.Equal(t, "AAMk_x", w.EmailID)
}
