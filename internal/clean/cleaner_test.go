package clean

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMapsFuzzyLabelsToCanonicalKeys(t *testing.T) {
	raw := map[string]string{
		"P.O. Number": "PO-45678",
		"Invoice No":  "INV-001",
	}
	cleaned := NewCleaner(nil).Clean(raw)

	assert.Equal(t, "45678", cleaned["po_number"])
	assert.Equal(t, "001", cleaned["invoice_number"])
}

func TestCleanKeepsUnrecognizedLabels(t *testing.T) {
	cleaned := NewCleaner(nil).Clean(map[string]string{
		"Warehouse Dock": "Dock 7",
	})
	assert.Equal(t, "Dock 7", cleaned["Warehouse Dock"])
	assert.NotContains(t, cleaned, "po_number")
}

func TestCleanMonetaryValues(t *testing.T) {
	cleaned := NewCleaner(nil).Clean(map[string]string{
		"Total": "$12,500.00",
	})
	total, ok := cleaned["Total"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, total.Equal(decimal.RequireFromString("12500")))
}

func TestCleanDropsUnparsableAmount(t *testing.T) {
	cleaned := NewCleaner(nil).Clean(map[string]string{
		"Total": "call for pricing",
	})
	assert.NotContains(t, cleaned, "Total")
}

func TestCleanDates(t *testing.T) {
	c := NewCleaner(nil)
	cases := map[string]string{
		"March 5, 2024": "2024-03-05",
		"Mar 5, 2024":   "2024-03-05",
		"2024-03-05":    "2024-03-05",
	}
	for in, want := range cases {
		cleaned := c.Clean(map[string]string{"Invoice Date": in})
		assert.Equal(t, want, cleaned["Date"], "input %q", in)
	}
}

func TestDatePassthroughOnUnknownFormat(t *testing.T) {
	assert.Equal(t, "05/03/2024", Date("05/03/2024"))
}

func TestCleanIsIdempotent(t *testing.T) {
	c := NewCleaner(nil)
	first := c.Clean(map[string]string{
		"PO Number":    "PO 45678",
		"Invoice Date": "March 5, 2024",
		"Vendor":       "Acme & Sons!",
	})

	again := map[string]string{}
	for k, v := range first {
		if s, ok := v.(string); ok {
			again[k] = s
		}
	}
	second := c.Clean(again)

	assert.Equal(t, first["po_number"], second["po_number"])
	assert.Equal(t, first["Date"], second["Date"])
	assert.Equal(t, first["vendor_name"], second["vendor_name"])
}

func TestAmount(t *testing.T) {
	d, ok := Amount("1,250.00 USD")
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1250")))

	_, ok = Amount("n/a")
	assert.False(t, ok)
}

func TestCanonicalKeyBelowThresholdKeptVerbatim(t *testing.T) {
	c := NewCleaner(nil)
	assert.Equal(t, "Random Field", c.canonicalKey("  Random Field  "))
	assert.Equal(t, "po_number", c.canonicalKey("PO#"))
	assert.Equal(t, "po_number", c.canonicalKey("PO Number"))
	assert.Equal(t, "po_number", c.canonicalKey("P.O. Number"))
	assert.Equal(t, "po_number", c.canonicalKey("Purchase Order Number"))
}
