//go:build !integration

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/premium-status/u1":
			_, _ = w.Write([]byte(`{"userId":"u1","isPremium":true,"lastChecked":"2025-01-01T00:00:00Z"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/payment-status/u1":
			_, _ = w.Write([]byte(`{"userId":"u1","isPremium":true,"orderId":"o1","purchaseDate":"2025-01-01T00:00:00Z"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/create-checkout":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["userId"] == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"Missing userId"}`))
				return
			}
			_, _ = w.Write([]byte(`{"checkoutUrl":"https://pay.test/x","userId":"u1","plan":"premium"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to check premium status","isPremium":false}`))
		}
	}))
	defer srv.Close()

	api := NewHTTPStatusAPI(srv.URL+"/", time.Second)
	ctx := context.Background()

	st, err := api.PremiumStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.IsPremium)

	pay, err := api.PaymentStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "o1", pay.OrderID)
	require.NotNil(t, pay.PurchaseDate)

	link, err := api.CreateCheckout(ctx, "u1", "premium", "")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/x", link)

	_, err = api.CreateCheckout(ctx, "", "premium", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Missing userId")

	_, err = api.PremiumStatus(ctx, "broken")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}
