// File path: internal/sqlite/types.go
package sqlite

// Laptop represents a catalog row with its aggregate dynamic fields.
type Laptop struct {
	SKU           string   `db:"sku" json:"sku"`
	Brand         string   `db:"brand" json:"brand"`
	ModelName     string   `db:"model_name" json:"model_name"`
	Currency      *string  `db:"currency" json:"currency"`
	Availability  *string  `db:"availability" json:"availability"`
	ShippingETA   *string  `db:"shipping_eta" json:"shipping_eta"`
	ReviewCount   *int64   `db:"review_count" json:"review_count"`
	AverageRating *float64 `db:"average_rating" json:"average_rating"`
}

// PriceRecord is one observed price for a laptop. Date is an ISO-8601 day.
type PriceRecord struct {
	ID          int64   `db:"id" json:"id"`
	LaptopSKU   string  `db:"laptop_sku" json:"laptop_sku"`
	Price       float64 `db:"price" json:"price"`
	Date        string  `db:"date" json:"date"`
	VendorName  *string `db:"vendor_name" json:"vendor_name"`
	PromoBadges *string `db:"promo_badges" json:"promo_badges"`
}

// ReviewRecord is a single customer review.
type ReviewRecord struct {
	ID         int64   `db:"id" json:"id"`
	LaptopSKU  string  `db:"laptop_sku" json:"laptop_sku"`
	Rating     int     `db:"rating" json:"rating"`
	ReviewText *string `db:"review_text" json:"review_text"`
	Date       string  `db:"date" json:"date"`
	Source     *string `db:"source" json:"source"`
}

// QARecord is a customer question with its optional answer.
type QARecord struct {
	ID           int64   `db:"id" json:"id"`
	LaptopSKU    string  `db:"laptop_sku" json:"laptop_sku"`
	QuestionText string  `db:"question_text" json:"question_text"`
	AnswerText   *string `db:"answer_text" json:"answer_text"`
	Date         string  `db:"date" json:"date"`
	Source       *string `db:"source" json:"source"`
}

// Snapshot is the result of one logical fact lookup: the catalog row and the
// most recent price record, either of which may be absent.
type Snapshot struct {
	Laptop      *Laptop
	LatestPrice *PriceRecord
}

// LaptopFilter narrows catalog listings. Empty fields do not filter.
type LaptopFilter struct {
	Brand        string
	MinRating    *float64
	Availability string
}
