package classify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerwork/iceberg/internal/common"
)

var testReceivers = map[string]string{
	"labtech@flowerwork.co":  "100",
	"brycebiz@flowerwork.co": "200",
}

func buildEmail(to, subject, body string, pdf bool) []byte {
	var b strings.Builder
	b.WriteString("From: sender@example.com\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	if !pdf {
		b.WriteString("Content-Type: text/plain\r\n\r\n")
		b.WriteString(body)
		return []byte(b.String())
	}
	b.WriteString("Content-Type: multipart/mixed; boundary=\"b1\"\r\n\r\n")
	b.WriteString("--b1\r\nContent-Type: text/plain\r\n\r\n" + body + "\r\n")
	b.WriteString("--b1\r\n")
	b.WriteString("Content-Type: application/pdf; name=\"doc.pdf\"\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"doc.pdf\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString("JVBERi0xLjQ=\r\n")
	b.WriteString("--b1--\r\n")
	return []byte(b.String())
}

func TestClassifyEmailRejectsUnknownReceiver(t *testing.T) {
	c := New(testReceivers, nil, nil)
	_, err := c.ClassifyEmail(buildEmail("stranger@example.com", "Invoice", "body", true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrClassification))
}

func TestClassifyEmailRoutesInvoicePDF(t *testing.T) {
	c := New(testReceivers, nil, nil)
	d, err := c.ClassifyEmail(buildEmail("Lab Tech <labtech@flowerwork.co>", "Invoice for March", "see attached", true))
	require.NoError(t, err)
	assert.Equal(t, RouteInvoice, d.Route)
	assert.Equal(t, "100", d.CustomerID)
	assert.NotEmpty(t, d.PDF)
}

func TestClassifyEmailRoutesPurchaseOrderPDF(t *testing.T) {
	c := New(testReceivers, nil, nil)
	d, err := c.ClassifyEmail(buildEmail("labtech@flowerwork.co", "New purchase order", "attached", true))
	require.NoError(t, err)
	assert.Equal(t, RoutePurchaseOrder, d.Route)
}

func TestClassifyEmailRejectsPDFWithoutKeywords(t *testing.T) {
	c := New(testReceivers, nil, nil)
	_, err := c.ClassifyEmail(buildEmail("labtech@flowerwork.co", "FYI", "see document", true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrClassification))
}

func TestClassifyEmailStructuredCustomerAlwaysStructured(t *testing.T) {
	c := New(testReceivers, []string{"200"}, nil)
	d, err := c.ClassifyEmail(buildEmail("brycebiz@flowerwork.co", "whatever", "body", true))
	require.NoError(t, err)
	assert.Equal(t, RouteStructured, d.Route)
	assert.Equal(t, "200", d.CustomerID)
}

func TestClassifyEmailNoPDFFallsThroughToText(t *testing.T) {
	c := New(testReceivers, nil, nil)
	d, err := c.ClassifyEmail(buildEmail("labtech@flowerwork.co", "order details", "PO Number: 45678", false))
	require.NoError(t, err)
	assert.Equal(t, RouteText, d.Route)
	assert.Contains(t, d.Text, "PO Number: 45678")
}

func TestClassifyText(t *testing.T) {
	assert.Equal(t, RouteInvoice, ClassifyText("Amount Due: $500"))
	assert.Equal(t, RouteInvoice, ClassifyText("please find the INVOICE attached"))
	assert.Equal(t, RoutePurchaseOrder, ClassifyText("PO Number: 45678\nTotal: 500"))
}

func TestReceiverAddress(t *testing.T) {
	assert.Equal(t, "labtech@flowerwork.co", ReceiverAddress("Lab Tech <labtech@flowerwork.co>"))
	assert.Equal(t, "labtech@flowerwork.co", ReceiverAddress("labtech@flowerwork.co"))
}
