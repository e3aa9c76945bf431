package catalog

// Product is a read-only catalog entry. Price includes VAT; Vat is the rate
// as a percentage (22 means 22%).
type Product struct {
	ID          int     `json:"id"`
	DocumentID  string  `json:"documentId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Vat         float64 `json:"vat,omitempty"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Category groups products. IsFood drives kitchen-ticket publication.
type Category struct {
	ID          int       `json:"id"`
	DocumentID  string    `json:"documentId"`
	Name        string    `json:"name"`
	IsFood      bool      `json:"isFood,omitempty"`
	IsAlcoholic bool      `json:"isAlcoholic,omitempty"`
	Products    []Product `json:"products,omitempty"`
}
