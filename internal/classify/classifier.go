package classify

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/flowerwork/iceberg/internal/common"
)

// Route is the pipeline path an inbound artifact is sent down.
type Route string

const (
	RouteInvoice       Route = "INVOICE"
	RoutePurchaseOrder Route = "PO"
	RouteStructured    Route = "STRUCTURED"
	RouteText          Route = "TEXT" // no usable attachment; body goes through synthetic-document handling
)

// Decision is the outcome of classifying one inbound email.
type Decision struct {
	Route      Route
	CustomerID string
	PDF        []byte // attachment content for INVOICE / PO routes
	Text       string // body text for the TEXT route
	Subject    string
}

// Tokens whose presence marks bare text as invoice-like.
var invoiceTokens = []string{"invoice", "bill to", "amount due", "payment"}

// Classifier routes inbound artifacts using the receiver-address table and
// subject/body keyword scanning.
type Classifier struct {
	receivers  map[string]string // receiver email -> customer id
	structured map[string]bool   // customer ids on the structured-JSON path
	logger     *slog.Logger
}

func New(receivers map[string]string, structured []string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	s := make(map[string]bool, len(structured))
	for _, id := range structured {
		s[id] = true
	}
	return &Classifier{receivers: receivers, structured: s, logger: logger}
}

// ClassifyEmail parses a raw RFC 5322 message and decides its route. An
// unrecognized receiver address is rejected outright; it never defaults to a
// customer.
func (c *Classifier) ClassifyEmail(raw []byte) (Decision, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: parse email: %v", common.ErrClassification, err)
	}

	receiver := ReceiverAddress(env.GetHeader("To"))
	customerID, ok := c.receivers[receiver]
	if !ok {
		return Decision{}, fmt.Errorf("%w: receiver %q not recognized", common.ErrClassification, receiver)
	}

	subject := env.GetHeader("Subject")
	body := env.Text

	if c.structured[customerID] {
		c.logger.Info("classify.structured", "customer_id", customerID, "receiver", receiver)
		return Decision{Route: RouteStructured, CustomerID: customerID, PDF: firstPDF(env), Subject: subject}, nil
	}

	// PDF attachments win over body text scanning.
	if pdf := firstPDF(env); pdf != nil {
		haystack := strings.ToLower(subject + " " + body)
		switch {
		case strings.Contains(haystack, "invoice"):
			return Decision{Route: RouteInvoice, CustomerID: customerID, PDF: pdf, Subject: subject}, nil
		case strings.Contains(haystack, "po") || strings.Contains(haystack, "purchase order"):
			return Decision{Route: RoutePurchaseOrder, CustomerID: customerID, PDF: pdf, Subject: subject}, nil
		default:
			return Decision{}, fmt.Errorf("%w: no routing keywords in subject or body", common.ErrClassification)
		}
	}

	// No PDF: the body falls through to synthetic-document handling.
	c.logger.Info("classify.text_fallthrough", "customer_id", customerID)
	return Decision{Route: RouteText, CustomerID: customerID, Text: body, Subject: subject}, nil
}

// ClassifyText labels bare text (no attachment) as invoice-like or PO-like.
func ClassifyText(text string) Route {
	lowered := strings.ToLower(text)
	for _, token := range invoiceTokens {
		if strings.Contains(lowered, token) {
			return RouteInvoice
		}
	}
	return RoutePurchaseOrder
}

// ReceiverAddress extracts the bare address from a To header value such as
// "Lab Tech <labtech@flowerwork.co>".
func ReceiverAddress(to string) string {
	if i := strings.LastIndex(to, "<"); i >= 0 {
		to = to[i+1:]
	}
	return strings.TrimSpace(strings.ReplaceAll(to, ">", ""))
}

func firstPDF(env *enmime.Envelope) []byte {
	for _, part := range env.Attachments {
		if part.ContentType == "application/pdf" {
			return part.Content
		}
	}
	return nil
}
