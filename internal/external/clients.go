package external

import "context"

// Complaint is the projection of a complaint owned by the complaint service.
type Complaint struct {
	ID                 string `json:"id"`
	ClientID           string `json:"client_id"`
	PurchasedArticleID string `json:"purchased_article_id"`
	Status             string `json:"status"`
}

// Part is the catalogue projection of a spare part.
type Part struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Reference  string `json:"reference"`
	PriceCents int64  `json:"price_cents"`
}

// ComplaintClient looks up and updates complaints in the complaint service.
// UpdateStatus is best-effort: callers ignore its failure.
type ComplaintClient interface {
	Lookup(ctx context.Context, id string) (*Complaint, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// WarrantyClient resolves whether a purchased article is still covered.
type WarrantyClient interface {
	Check(ctx context.Context, purchasedArticleID string) (bool, error)
}

// CatalogClient resolves part name and current price from the catalogue.
type CatalogClient interface {
	LookupPart(ctx context.Context, id string) (*Part, error)
}
