package agent

import (
	"fmt"
	"strings"
)

// FormatProductList renders a list-products payload for the user.
func FormatProductList(payload map[string]any) string {
	raw, ok := payload["products"]
	if !ok {
		msg, _ := payload["error"].(string)
		if msg == "" {
			msg = "Unknown error"
		}
		return "Shopify error: " + msg
	}

	products, _ := raw.([]any)
	if len(products) == 0 {
		return "There are no products in the store."
	}

	lines := []string{"Latest products:"}
	for _, p := range products {
		item, _ := p.(map[string]any)
		lines = append(lines, fmt.Sprintf("- %s (ID: %s, Price: %s)",
			display(item["title"]), display(item["id"]), display(item["price"])))
	}
	return strings.Join(lines, "\n")
}

// display renders a decoded JSON scalar. Missing values show as "n/a".
func display(v any) string {
	switch x := v.(type) {
	case nil:
		return "n/a"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
