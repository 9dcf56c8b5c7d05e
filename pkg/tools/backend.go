package tools

import (
	"context"

	"shopmate/pkg/shopify"
)

// Backend is the commerce system the tools drive. *shopify.Client is the
// production implementation.
type Backend interface {
	CreateOrder(ctx context.Context, email string, items []shopify.LineItemInput) (*shopify.Order, error)
	ListOrders(ctx context.Context, limit int) (*shopify.OrderList, error)
	DeleteOrder(ctx context.Context, orderID string) (*shopify.OrderDeletion, error)
	CreateProduct(ctx context.Context, title, price, imageURL string) (*shopify.Product, error)
	DeleteProduct(ctx context.Context, productID string) (*shopify.ProductDeletion, error)
	ListProducts(ctx context.Context, limit int) (*shopify.ProductList, error)
}

var _ Backend = (*shopify.Client)(nil)
