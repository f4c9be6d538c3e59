package clean

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/shopspring/decimal"
)

// MatchThreshold is the minimum token-sort similarity (0-100) for a raw
// label to be mapped onto a canonical key. Below it the trimmed raw label is
// kept as-is, never dropped.
const MatchThreshold = 80

// canonicalKeys maps each canonical schema key to the label synonyms seen in
// supplier documents. The canonical name itself is included so already-clean
// input maps onto itself.
var canonicalKeys = map[string][]string{
	"invoice_number": {"invoice_number", "Invoice Number", "Invoice #", "Invoice No"},
	"po_number":      {"po_number", "PO Number", "PO#", "Purchase Order Number"},
	"Total":          {"Total", "order_total", "Amount", "Total Price", "Total Amount"},
	"Date":           {"Date", "Order Date", "order_date", "Invoice Date"},
	"vendor_name":    {"vendor_name", "Vendor Name", "Vendor"},
	"customer_id":    {"customer_id", "Customer ID", "client_id"},
}

// Keys whose values are monetary amounts, digit-only identifiers or dates.
var (
	monetaryKeys = map[string]struct{}{"Total": {}}
	numericIDs   = map[string]struct{}{"po_number": {}, "invoice_number": {}}
	dateKeys     = map[string]struct{}{"Date": {}}
)

var (
	valueChars = regexp.MustCompile(`[^A-Za-z0-9 .\-]`)
	moneyChars = regexp.MustCompile(`[^0-9.,]`)
	digitsOnly = regexp.MustCompile(`[^0-9]`)
)

// Date layouts tried in order: long month name, abbreviated month name, ISO.
var dateLayouts = []string{"January 2, 2006", "Jan 2, 2006", "2006-01-02"}

// Cleaner normalizes raw key-value pairs into the canonical schema for both
// PO and invoice records.
type Cleaner struct {
	logger *slog.Logger
}

func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger}
}

// Clean fuzzily maps every raw label onto the canonical key dictionary and
// normalizes the value for the key's semantic class. Monetary values become
// decimals (unset on parse failure), identifier values keep digits only and
// dates are normalized to ISO-8601 with pass-through on failure.
func (c *Cleaner) Clean(raw map[string]string) map[string]any {
	cleaned := make(map[string]any, len(raw))
	for label, value := range raw {
		key := c.canonicalKey(label)
		switch {
		case isMonetary(key):
			d, ok := Amount(value)
			if !ok {
				c.logger.Warn("clean.amount.unparsable", "key", key, "value", value)
				continue
			}
			cleaned[key] = d
		case isNumericID(key):
			cleaned[key] = digitsOnly.ReplaceAllString(value, "")
		case isDate(key):
			cleaned[key] = Date(value)
		default:
			cleaned[key] = strings.TrimSpace(valueChars.ReplaceAllString(value, ""))
		}
	}
	return cleaned
}

// canonicalKey returns the canonical key whose synonym list scores best
// against the raw label, provided the score clears MatchThreshold.
func (c *Cleaner) canonicalKey(label string) string {
	trimmed := strings.TrimSpace(label)
	best, bestScore := "", 0
	for canonical, synonyms := range canonicalKeys {
		for _, syn := range synonyms {
			if score := fuzzy.TokenSortRatio(trimmed, syn); score > bestScore {
				best, bestScore = canonical, score
			}
		}
	}
	if bestScore >= MatchThreshold {
		return best
	}
	return trimmed
}

// Amount normalizes a monetary string ("$12,500.00", "1,250.00 USD") to a
// decimal. The boolean is false when nothing parsable remains.
func Amount(value string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(moneyChars.ReplaceAllString(value, ""), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Date tries the supported layouts in order and returns YYYY-MM-DD on the
// first match. An unsupported format passes through unchanged.
func Date(value string) string {
	trimmed := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return value
}

func isMonetary(key string) bool  { _, ok := monetaryKeys[key]; return ok }
func isNumericID(key string) bool { _, ok := numericIDs[key]; return ok }
func isDate(key string) bool      { _, ok := dateKeys[key]; return ok }
