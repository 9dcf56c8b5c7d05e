package tools

import (
	"context"

	"shopmate/pkg/api"
	"shopmate/pkg/llm"
	"shopmate/pkg/shopify"
)

// Catalog names.
const (
	NameAddOrder      = "add_order"
	NameRemoveOrder   = "remove_order"
	NameListOrders    = "list_orders"
	NameListProducts  = "list_products"
	NameAddProduct    = "add_product"
	NameRemoveProduct = "remove_product"
)

// CommerceTools returns the store catalog in its fixed order.
func CommerceTools(backend Backend) []api.Tool {
	return []api.Tool{
		&AddOrderTool{backend: backend},
		&RemoveOrderTool{backend: backend},
		&ListOrdersTool{backend: backend},
		&ListProductsTool{backend: backend},
		&AddProductTool{backend: backend},
		&RemoveProductTool{backend: backend},
	}
}

func object(required []string, props map[string]*llm.Schema) *llm.Schema {
	if required == nil {
		required = []string{}
	}
	return &llm.Schema{Type: "object", Properties: props, Required: required}
}

//----------------------------------------------------------------
// Orders
//----------------------------------------------------------------

// AddOrderTool creates an order.
type AddOrderTool struct {
	backend Backend
}

func (t *AddOrderTool) Name() string { return NameAddOrder }

func (t *AddOrderTool) Description() string { return "Create a new order in Shopify." }

func (t *AddOrderTool) Parameters() *llm.Schema {
	return object([]string{"customer_email", "line_items"}, map[string]*llm.Schema{
		"customer_email": {Type: "string", Description: "The email address of the customer."},
		"line_items": {
			Type:        "array",
			Description: "A list of items to order. Each item must have a title, quantity, and price.",
			Items: object([]string{"title", "quantity", "price"}, map[string]*llm.Schema{
				"title":    {Type: "string", Description: "The name of the product."},
				"quantity": {Type: "integer", Description: "The quantity of the product."},
				"price":    {Type: "number", Description: "The price of the product.", Coerce: true},
			}),
		},
	})
}

func (t *AddOrderTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	raw, _ := args["line_items"].([]any)
	items := make([]shopify.LineItemInput, 0, len(raw))
	for _, r := range raw {
		m, _ := r.(map[string]any)
		items = append(items, shopify.LineItemInput{
			Title:    stringArg(m, "title"),
			Quantity: intArg(m, "quantity", 1),
			Price:    floatArg(m, "price"),
		})
	}

	order, err := t.backend.CreateOrder(ctx, stringArg(args, "customer_email"), items)
	if err != nil {
		return api.Failure(err.Error(), nil), nil
	}
	return api.Success(order), nil
}

// RemoveOrderTool deletes an order by id.
type RemoveOrderTool struct {
	backend Backend
}

func (t *RemoveOrderTool) Name() string { return NameRemoveOrder }

func (t *RemoveOrderTool) Description() string { return "Delete a Shopify order by order ID." }

func (t *RemoveOrderTool) Parameters() *llm.Schema {
	return object([]string{"order_id"}, map[string]*llm.Schema{
		"order_id": {Type: "string", Description: "The Shopify order ID to delete.", Coerce: true},
	})
}

func (t *RemoveOrderTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	id := stringArg(args, "order_id")
	res, err := t.backend.DeleteOrder(ctx, id)
	if err != nil {
		return api.Failure(err.Error(), map[string]any{"order_id": id}), nil
	}
	return api.Success(res), nil
}

// ListOrdersTool lists recent orders.
type ListOrdersTool struct {
	backend Backend
}

func (t *ListOrdersTool) Name() string { return NameListOrders }

func (t *ListOrdersTool) Description() string { return "List recent Shopify orders." }

func (t *ListOrdersTool) Parameters() *llm.Schema {
	return object(nil, map[string]*llm.Schema{
		"limit": {Type: "integer", Description: "The number of orders to return (default 5).", Coerce: true},
	})
}

func (t *ListOrdersTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	list, err := t.backend.ListOrders(ctx, intArg(args, "limit", shopify.DefaultListLimit))
	if err != nil {
		return api.Failure(err.Error(), nil), nil
	}
	return api.Success(list), nil
}

//----------------------------------------------------------------
// Products
//----------------------------------------------------------------

// ListProductsTool lists the newest products.
type ListProductsTool struct {
	backend Backend
}

func (t *ListProductsTool) Name() string { return NameListProducts }

func (t *ListProductsTool) Description() string {
	return "List products from the Shopify store and return a human-readable list of product titles and prices."
}

func (t *ListProductsTool) Parameters() *llm.Schema {
	return object(nil, map[string]*llm.Schema{
		"limit": {Type: "integer", Description: "Number of products to list, e.g., 3 or 10.", Coerce: true},
	})
}

func (t *ListProductsTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	list, err := t.backend.ListProducts(ctx, intArg(args, "limit", shopify.DefaultListLimit))
	if err != nil {
		return api.Failure(err.Error(), nil), nil
	}
	return api.Success(list), nil
}

// AddProductTool creates a product.
type AddProductTool struct {
	backend Backend
}

func (t *AddProductTool) Name() string { return NameAddProduct }

func (t *AddProductTool) Description() string { return "Add a new product to the Shopify store." }

func (t *AddProductTool) Parameters() *llm.Schema {
	return object([]string{"title", "price"}, map[string]*llm.Schema{
		"title":     {Type: "string"},
		"price":     {Type: "string", Coerce: true},
		"image_url": {Type: "string"},
	})
}

func (t *AddProductTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	p, err := t.backend.CreateProduct(ctx, stringArg(args, "title"), stringArg(args, "price"), stringArg(args, "image_url"))
	if err != nil {
		return api.Failure(err.Error(), nil), nil
	}
	return api.Success(p), nil
}

// RemoveProductTool deletes a product by id.
type RemoveProductTool struct {
	backend Backend
}

func (t *RemoveProductTool) Name() string { return NameRemoveProduct }

func (t *RemoveProductTool) Description() string { return "Remove a product from Shopify using its ID." }

func (t *RemoveProductTool) Parameters() *llm.Schema {
	return object([]string{"product_id"}, map[string]*llm.Schema{
		"product_id": {Type: "string", Description: "The ID of the product to remove", Coerce: true},
	})
}

func (t *RemoveProductTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	id := stringArg(args, "product_id")
	res, err := t.backend.DeleteProduct(ctx, id)
	if err != nil {
		return api.Failure(err.Error(), map[string]any{"id": id}), nil
	}
	return api.Success(res), nil
}
