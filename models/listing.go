package models

// RawListing is one product card as scraped, before any parsing.
// All text fields hold the page text verbatim and may be empty.
type RawListing struct {
	Platform      string `json:"platform"`
	ListingURL    string `json:"listing_url,omitempty"`
	Title         string `json:"title"`
	Price         string `json:"price,omitempty"`
	OriginalPrice string `json:"original_price,omitempty"`
	Rating        string `json:"rating,omitempty"`
	ReviewCount   string `json:"review_count,omitempty"`
	Delivery      string `json:"delivery,omitempty"`
	Shipping      string `json:"shipping,omitempty"`
	Seller        string `json:"seller,omitempty"`
	ReturnPolicy  string `json:"return_policy,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`

	// CardHTML is the outer HTML of the card, kept so the enrichment
	// collaborator can re-read a card whose price did not parse.
	CardHTML string `json:"-"`
}

// CardFields is what the enrichment collaborator read from a card's text.
// Zero values mean the field was not found.
type CardFields struct {
	Title           string   `json:"title"`
	Price           *float64 `json:"price"`
	OriginalPrice   *float64 `json:"original_price"`
	DeliveryDaysMax *int     `json:"delivery_days_max"`
	Rating          *float64 `json:"seller_rating"`
	ReviewCount     *int     `json:"review_count"`
	IsAccessory     bool     `json:"is_accessory"`
}
