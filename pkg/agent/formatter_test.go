package agent

import "testing"

func TestFormatProductList(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"error", `{"error":"401 Unauthorized"}`, "Shopify error: 401 Unauthorized"},
		{"error without message", `{}`, "Shopify error: Unknown error"},
		{"empty", `{"products":[]}`, "There are no products in the store."},
		{
			"products",
			`{"products":[{"id":9007199254740993,"title":"Hat","price":"12.00"},{"id":2,"title":"Mug","price":null}]}`,
			"Latest products:\n- Hat (ID: 9007199254740993, Price: 12.00)\n- Mug (ID: 2, Price: n/a)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatProductList(decodePayload(tt.payload)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
