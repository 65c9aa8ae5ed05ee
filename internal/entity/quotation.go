package entity

import (
	"errors"
	"strings"
)

var (
	ErrMissingVendor = errors.New("quotation has no vendor block")
	ErrMissingItems  = errors.New("quotation has no items")
)

// Vendor is the sender of a quotation. Every field is optional; presence of
// the block itself is what validity checks.
type Vendor struct {
	Name      string `json:"name,omitempty"`
	NameAr    string `json:"name_ar,omitempty"`
	Address   string `json:"address,omitempty"`
	ShortName string `json:"short_name,omitempty"`
	VAT       string `json:"vat,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
	City      string `json:"city,omitempty"`
	Zip       string `json:"zip,omitempty"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
	Website   string `json:"website,omitempty"`
	Sector    string `json:"sector,omitempty"`
}

// Item is one quoted line. Keys keep the spelling the downstream system reads.
type Item struct {
	PartNumber      string `json:"Part Number,omitempty"`
	FullDescription string `json:"Full Description,omitempty"`
	Quantity        string `json:"Quantity,omitempty"`
	UnitPrice       string `json:"Unit Price,omitempty"`
	Currency        string `json:"Currency,omitempty"`
	Type            string `json:"Type,omitempty"`
	Technology      string `json:"Technology,omitempty"`
	Category        string `json:"Category,omitempty"`
}

// Quotation is the structured payload extracted from one attachment.
type Quotation struct {
	Vendor *Vendor `json:"Vendor,omitempty"`
	Items  []Item  `json:"Items,omitempty"`
}

// Validate checks the two presence rules a quotation must meet before it is
// aggregated: a vendor block and at least one item.
func (q *Quotation) Validate() error {
	if q == nil || q.Vendor == nil {
		return ErrMissingVendor
	}
	if len(q.Items) == 0 {
		return ErrMissingItems
	}
	return nil
}

// VendorName is a display helper for logs and exports.
func (q *Quotation) VendorName() string {
	if q == nil || q.Vendor == nil {
		return ""
	}
	if n := strings.TrimSpace(q.Vendor.Name); n != "" {
		return n
	}
	return strings.TrimSpace(q.Vendor.ShortName)
}
