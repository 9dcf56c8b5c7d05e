package shopify

// LineItemInput is one line of an order to create.
type LineItemInput struct {
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// LineItem is the order line summary handed back to the model.
type LineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// Order is an order summary. Status is the fulfillment status, which
// Shopify reports as null for unfulfilled orders.
type Order struct {
	OrderID   int64      `json:"order_id"`
	Email     string     `json:"email"`
	Status    *string    `json:"status"`
	CreatedAt string     `json:"created_at,omitempty"`
	LineItems []LineItem `json:"line_items"`
}

// OrderList is the list-orders payload.
type OrderList struct {
	Orders []Order `json:"orders"`
}

// Product is the summary of a freshly created product.
type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price string  `json:"price"`
	Image *string `json:"image"`
}

// ProductListItem is one row of the list-products payload.
type ProductListItem struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Price    string  `json:"price"`
	ImageURL *string `json:"image_url"`
}

// ProductList is the list-products payload, newest first.
type ProductList struct {
	Products []ProductListItem `json:"products"`
}

// OrderDeletion confirms a deleted order.
type OrderDeletion struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// ProductDeletion confirms a deleted product.
type ProductDeletion struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Wire shapes of the Admin REST API.

type remoteLineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

type remoteOrder struct {
	ID                int64            `json:"id"`
	Email             string           `json:"email"`
	FulfillmentStatus *string          `json:"fulfillment_status"`
	CreatedAt         string           `json:"created_at"`
	LineItems         []remoteLineItem `json:"line_items"`
}

type remoteVariant struct {
	Price string `json:"price"`
}

type remoteImage struct {
	Src string `json:"src"`
}

type remoteProduct struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Variants []remoteVariant `json:"variants"`
	Image    *remoteImage    `json:"image"`
}

func (p remoteProduct) price() string {
	if len(p.Variants) == 0 {
		return ""
	}
	return p.Variants[0].Price
}

func (p remoteProduct) imageSrc() *string {
	if p.Image == nil || p.Image.Src == "" {
		return nil
	}
	src := p.Image.Src
	return &src
}

func (o remoteOrder) summary(withCreatedAt bool) Order {
	out := Order{
		OrderID:   o.ID,
		Email:     o.Email,
		Status:    o.FulfillmentStatus,
		LineItems: make([]LineItem, 0, len(o.LineItems)),
	}
	if withCreatedAt {
		out.CreatedAt = o.CreatedAt
	}
	for _, li := range o.LineItems {
		out.LineItems = append(out.LineItems, LineItem{Title: li.Title, Quantity: li.Quantity})
	}
	return out
}
