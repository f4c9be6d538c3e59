package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Label synonyms tried in order against the key-value map; the first
// non-empty match wins. These mirror the vocabulary seen across supplier
// documents and deliberately keep their source quirks (trailing colons,
// spacing) because Textract reproduces them verbatim.
var (
	poNumberKeys      = []string{"PO Number", "P.O.Number", "Order Number"}
	orderDateKeys     = []string{"Order Date", "Invoice Date", "Ordered"}
	vendorNameKeys    = []string{"Vendor Name", "Ordered From"}
	vendorNumberKeys  = []string{"Vendor #", "Vendor Number", "Payer Number"}
	vendorAddressKeys = []string{"Billing address", "Ordered From"}
	taxIDKeys         = []string{"Tax ID", "Federal ID number"}
	shipAddressKeys   = []string{"Ship To :", "Ship To Address", "Shipping address"}
	shipMethodKeys    = []string{"Ship Via", "Ship Via -", "Incoterms :"}
	paymentTermsKeys  = []string{"Payment Terms", "Terms"}
	totalKeys         = []string{"Total", "Invoice Total", "Total Order excl. VAT", "Amount"}
)

var nonNumeric = regexp.MustCompile(`[^\d.,]`)

// Extractor turns analyzer output into DocumentFields. It is a pure
// transformation: a single unparsable field degrades to its zero value and
// never fails the document.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract maps an analysis result to the normalized document-field bag.
func (e *Extractor) Extract(res AnalysisResult) DocumentFields {
	kv := res.KeyValuePairs
	if kv == nil {
		kv = map[string]string{}
	}

	fields := DocumentFields{
		PONumber:  Field(kv, poNumberKeys),
		OrderDate: Field(kv, orderDateKeys),
		VendorInfo: VendorInfo{
			Name:    Field(kv, vendorNameKeys),
			Number:  Field(kv, vendorNumberKeys),
			Address: Field(kv, vendorAddressKeys),
			TaxID:   Field(kv, taxIDKeys),
		},
		ShippingInfo: ShippingInfo{
			Address: Field(kv, shipAddressKeys),
			Method:  Field(kv, shipMethodKeys),
		},
		PaymentTerms: Field(kv, paymentTermsKeys),
		TotalAmount:  Number(Field(kv, totalKeys)),
		LineItems:    e.lineItems(res.Tables, kv),
	}

	e.logger.Debug("extract.fields",
		"po_number", fields.PONumber,
		"total", fields.TotalAmount.String(),
		"line_items", len(fields.LineItems),
	)
	return fields
}

// ExtractText wraps a bare text blob (no tables, no key-value blocks) so the
// same field chains apply. Labels are recovered from "Label: value" lines.
func (e *Extractor) ExtractText(text string) DocumentFields {
	res := AnalysisResult{KeyValuePairs: map[string]string{}}
	for _, line := range strings.Split(text, "\n") {
		res.Lines = append(res.Lines, line)
		if k, v, ok := strings.Cut(line, ":"); ok {
			key := strings.TrimSpace(k)
			val := strings.TrimSpace(v)
			if key != "" && val != "" {
				res.KeyValuePairs[key] = val
			}
		}
	}
	return e.Extract(res)
}

// Field resolves a logical field by trying each label in order and returning
// the first non-empty value, with the currency suffix stripped.
func Field(kv map[string]string, keys []string) string {
	for _, key := range keys {
		if v, ok := kv[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(strings.ReplaceAll(v, "USD", ""))
		}
	}
	return ""
}

// Number coerces a noisy numeric string to a decimal. A trailing "/..."
// fraction marker is dropped, everything outside [0-9.,] is stripped and the
// comma is treated as a thousands separator. Failure yields zero, not an
// error: one bad cell must not abort the document.
func Number(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	if i := strings.Index(value, "/"); i >= 0 {
		value = value[:i]
	}
	cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(value, ""), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
