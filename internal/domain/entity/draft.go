package entity

import (
	"strings"
	"time"
)

// PaymentSplit is one payment line of a bill. Splits need not sum to the
// bill total while the bill is being edited.
type PaymentSplit struct {
	PaymentType string  `json:"payment_type"`
	Amount      float64 `json:"amount"`
}

// BillItem is a product line copied into a bill at add time.
// Amount and GSTAmount are derived values stored for display stability.
type BillItem struct {
	ProductID     string   `json:"product_id"`
	ProductName   string   `json:"product_name" binding:"required"`
	ItemCode      string   `json:"item_code"`
	HSNCode       string   `json:"hsn_code"`
	Unit          string   `json:"unit"`
	Quantity      float64  `json:"quantity" binding:"gt=0"`
	Rate          float64  `json:"rate" binding:"gte=0"`
	GSTPercentage float64  `json:"gst_percentage" binding:"gte=0,lte=100"`
	GSTAmount     float64  `json:"gst_amount"`
	Amount        float64  `json:"amount"`
	CostPrice     *float64 `json:"cost_price,omitempty"`
	MRP           *float64 `json:"mrp,omitempty"`
}

// BillTab is one invoice being edited in its own UI tab.
type BillTab struct {
	ID                 string         `json:"id"`
	CustomerName       string         `json:"customer_name"`
	CustomerPhone      string         `json:"customer_phone"`
	CustomerGSTIN      string         `json:"customer_gstin"`
	Items              []BillItem     `json:"items"`
	PaymentSplits      []PaymentSplit `json:"payment_splits"`
	DiscountPercentage float64        `json:"discountPercentage"`
	AmountReceived     float64        `json:"amountReceived"`
}

// HasContent reports whether the tab holds anything worth restoring.
func (t *BillTab) HasContent() bool {
	return len(t.Items) > 0 ||
		strings.TrimSpace(t.CustomerName) != "" ||
		strings.TrimSpace(t.CustomerPhone) != ""
}

// DraftBill is the persisted snapshot of every open bill tab.
type DraftBill struct {
	BillTabs    []BillTab `json:"billTabs"`
	ActiveTabID string    `json:"activeTabId"`
	SavedAt     time.Time `json:"savedAt"`
}

// HasContent reports whether at least one tab has items or customer details.
func HasContent(tabs []BillTab) bool {
	for i := range tabs {
		if tabs[i].HasContent() {
			return true
		}
	}
	return false
}

// DraftRecord is a draft stored in the database, one row per storage key.
type DraftRecord struct {
	Key       string     `gorm:"size:191;primaryKey"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for DraftRecord
func (DraftRecord) TableName() string {
	return "bill_drafts"
}

// IsExpired checks if the draft has outlived its TTL
func (d *DraftRecord) IsExpired(now time.Time) bool {
	return d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}
