package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptHeader holds the store/business header printed at the top of a receipt.
type ReceiptHeader struct {
	StoreName string `json:"store_name"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	GSTIN     string `json:"gstin,omitempty"`
}

// ReceiptItem represents a single line item on a receipt.
type ReceiptItem struct {
	Name          string          `json:"name"`
	HSNCode       string          `json:"hsn_code,omitempty"`
	Unit          string          `json:"unit,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	Rate          decimal.Decimal `json:"rate"`
	GSTPercentage decimal.Decimal `json:"gst_percentage"`
	Taxable       decimal.Decimal `json:"taxable"`
	GST           decimal.Decimal `json:"gst"`
	Total         decimal.Decimal `json:"total"`
}

// ReceiptPayment is one payment line printed under the totals.
type ReceiptPayment struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Receipt is a value object representing a printable GST receipt.
// It is composed from bill data at print time and never stored.
type Receipt struct {
	Header        ReceiptHeader    `json:"header"`
	BillNumber    string           `json:"bill_number"`
	Date          time.Time        `json:"date"`
	Cashier       string           `json:"cashier,omitempty"`
	Customer      string           `json:"customer,omitempty"`
	CustomerPhone string           `json:"customer_phone,omitempty"`
	CustomerGSTIN string           `json:"customer_gstin,omitempty"`
	Items         []ReceiptItem    `json:"items"`
	Payments      []ReceiptPayment `json:"payments,omitempty"`
	// InterState is true when IGST applies instead of CGST+SGST.
	InterState         bool            `json:"inter_state"`
	Taxable            decimal.Decimal `json:"taxable"`
	CGST               decimal.Decimal `json:"cgst"`
	SGST               decimal.Decimal `json:"sgst"`
	IGST               decimal.Decimal `json:"igst"`
	TotalGST           decimal.Decimal `json:"total_gst"`
	Gross              decimal.Decimal `json:"gross"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Discount           decimal.Decimal `json:"discount"`
	RoundOff           decimal.Decimal `json:"round_off"`
	Total              decimal.Decimal `json:"total"`
	Received           decimal.Decimal `json:"received"`
	Change             decimal.Decimal `json:"change"`
	Due                decimal.Decimal `json:"due"`
	Footer             string          `json:"footer,omitempty"`
}
