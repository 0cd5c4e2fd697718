package service

import (
	"strings"
	"time"

	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/pkg/printer"
	"github.com/sangkips/gstbill-desk/pkg/utils"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BuildReceipt computes the printable GST receipt for a bill. Line amounts
// are recomputed from quantity, rate and GST rate; the stored display
// amounts on the bill are ignored. Rates are tax exclusive.
func BuildReceipt(header entity.ReceiptHeader, footer string, bill *entity.BillData, at time.Time) *entity.Receipt {
	r := &entity.Receipt{
		Header:        header,
		BillNumber:    bill.BillNumber,
		Date:          at,
		Cashier:       bill.Cashier,
		Customer:      strings.TrimSpace(bill.CustomerName),
		CustomerPhone: utils.FormatPhone(bill.CustomerPhone, utils.DefaultPhoneRegion),
		CustomerGSTIN: strings.ToUpper(strings.TrimSpace(bill.CustomerGSTIN)),
		Footer:        footer,
	}
	if bill.Date != nil {
		r.Date = *bill.Date
	}

	for _, it := range bill.Items {
		qty := decimal.NewFromFloat(it.Quantity)
		rate := decimal.NewFromFloat(it.Rate)
		pct := decimal.NewFromFloat(it.GSTPercentage)

		taxable := qty.Mul(rate).Round(2)
		gst := taxable.Mul(pct).Div(hundred).Round(2)

		r.Items = append(r.Items, entity.ReceiptItem{
			Name:          it.ProductName,
			HSNCode:       it.HSNCode,
			Unit:          it.Unit,
			Quantity:      qty,
			Rate:          rate,
			GSTPercentage: pct,
			Taxable:       taxable,
			GST:           gst,
			Total:         taxable.Add(gst),
		})
		r.Taxable = r.Taxable.Add(taxable)
		r.TotalGST = r.TotalGST.Add(gst)
	}

	r.InterState = isInterState(header.GSTIN, r.CustomerGSTIN)
	if r.InterState {
		r.IGST = r.TotalGST
	} else {
		r.CGST = r.TotalGST.Div(decimal.NewFromInt(2)).Round(2)
		r.SGST = r.TotalGST.Sub(r.CGST)
	}

	r.Gross = r.Taxable.Add(r.TotalGST)
	r.DiscountPercentage = decimal.NewFromFloat(bill.DiscountPercentage)
	r.Discount = r.Gross.Mul(r.DiscountPercentage).Div(hundred).Round(2)

	net := r.Gross.Sub(r.Discount)
	r.Total = net.Round(0)
	r.RoundOff = r.Total.Sub(net)

	var paid decimal.Decimal
	for _, p := range bill.PaymentSplits {
		amount := decimal.NewFromFloat(p.Amount)
		if amount.IsZero() {
			continue
		}
		r.Payments = append(r.Payments, entity.ReceiptPayment{Type: p.PaymentType, Amount: amount})
		paid = paid.Add(amount)
	}
	if paid.IsPositive() {
		r.Received = paid
	} else {
		r.Received = decimal.NewFromFloat(bill.AmountReceived)
	}

	if r.Received.GreaterThan(r.Total) {
		r.Change = r.Received.Sub(r.Total)
	} else {
		r.Due = r.Total.Sub(r.Received)
	}

	return r
}

// isInterState reports whether seller and buyer are registered in different
// states. The state code is the first two digits of a GSTIN.
func isInterState(sellerGSTIN, buyerGSTIN string) bool {
	if !utils.IsValidGSTIN(sellerGSTIN) || !utils.IsValidGSTIN(buyerGSTIN) {
		return false
	}
	return sellerGSTIN[:2] != buyerGSTIN[:2]
}

// FormatReceipt converts a Receipt into ESC/POS bytes for paper of the given
// character width.
func FormatReceipt(r *entity.Receipt, width int) []byte {
	doc := printer.NewDocument(width)

	// Header
	doc.SetAlign(printer.AlignCenter).
		SetBold(true).
		SetFontSize(printer.FontDouble).
		Text(r.Header.StoreName).
		SetFontSize(printer.FontNormal).
		SetBold(false)

	if r.Header.Address != "" {
		doc.Text(r.Header.Address)
	}
	if r.Header.Phone != "" {
		doc.Text(r.Header.Phone)
	}
	if r.Header.GSTIN != "" {
		doc.TextF("GSTIN: %s", r.Header.GSTIN)
	}
	doc.SetBold(true).Text("TAX INVOICE").SetBold(false)

	doc.SetAlign(printer.AlignLeft).
		Separator('-')

	// Bill info
	if r.BillNumber != "" {
		doc.KeyValue("Bill No:", r.BillNumber)
	}
	doc.KeyValue("Date:", r.Date.Format("02-01-2006 15:04"))

	if r.Cashier != "" {
		doc.KeyValue("Cashier:", r.Cashier)
	}
	if r.Customer != "" {
		doc.KeyValue("Customer:", r.Customer)
	}
	if r.CustomerPhone != "" {
		doc.KeyValue("Phone:", r.CustomerPhone)
	}
	if r.CustomerGSTIN != "" {
		doc.KeyValue("GSTIN:", r.CustomerGSTIN)
	}

	doc.Separator('-')

	// Items
	for _, item := range r.Items {
		doc.ItemLine(item.Quantity.String(), item.Name, item.Total.StringFixed(2))

		detail := "  @ " + item.Rate.StringFixed(2)
		if item.Unit != "" {
			detail += "/" + item.Unit
		}
		detail += " GST " + item.GSTPercentage.String() + "%"
		if item.HSNCode != "" {
			detail += " HSN " + item.HSNCode
		}
		doc.Text(detail)
	}

	doc.Separator('-')

	// Totals
	doc.KeyValue("Taxable:", r.Taxable.StringFixed(2))
	if r.InterState {
		doc.KeyValue("IGST:", r.IGST.StringFixed(2))
	} else if r.TotalGST.IsPositive() {
		doc.KeyValue("CGST:", r.CGST.StringFixed(2)).
			KeyValue("SGST:", r.SGST.StringFixed(2))
	}
	if r.Discount.IsPositive() {
		doc.KeyValue("Discount ("+r.DiscountPercentage.String()+"%):", "-"+r.Discount.StringFixed(2))
	}
	if !r.RoundOff.IsZero() {
		doc.KeyValue("Round off:", r.RoundOff.StringFixed(2))
	}
	doc.SetBold(true).
		KeyValue("TOTAL:", r.Total.StringFixed(2)).
		SetBold(false)

	for _, p := range r.Payments {
		doc.KeyValue(paymentLabel(p.Type)+":", p.Amount.StringFixed(2))
	}
	if r.Received.IsPositive() {
		doc.KeyValue("Received:", r.Received.StringFixed(2))
	}
	if r.Change.IsPositive() {
		doc.KeyValue("Change:", r.Change.StringFixed(2))
	}
	if r.Due.IsPositive() {
		doc.KeyValue("Due:", r.Due.StringFixed(2))
	}

	doc.Separator('-')

	// Footer
	footer := r.Footer
	if footer == "" {
		footer = "Thank you for your business!"
	}
	doc.SetAlign(printer.AlignCenter).
		LineFeed().
		Text(footer).
		LineFeed().
		SetAlign(printer.AlignLeft)

	doc.FeedLines(3).
		PartialCut()

	return doc.Bytes()
}

func paymentLabel(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return "Paid"
	}
	return strings.ToUpper(t)
}
