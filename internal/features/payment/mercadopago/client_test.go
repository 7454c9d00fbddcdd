package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvelasquez94/raffle-fast/internal/features/payment/models"
)

func TestCreatePaymentLink(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var captured preferenceRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/checkout/preferences", r.URL.Path)
			assert.Equal(t, "Bearer APP_USR-token", r.Header.Get("Authorization"))

			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			json.NewEncoder(w).Encode(preferenceResponse{ID: "pref-1", InitPoint: "https://mp.example/init"})
		}))
		defer server.Close()

		client := NewClientWithBaseURL(server.URL)
		link, err := client.CreatePaymentLink(context.Background(), "APP_USR-token", models.LinkRequest{
			Title:             "Rifa del club",
			Description:       "Número 7",
			Quantity:          1,
			UnitPrice:         1500,
			ExternalReference: "raffle-1:7",
			BuyerEmail:        "ana@example.com",
			BuyerName:         "Ana",
		})

		require.NoError(t, err)
		assert.Equal(t, "https://mp.example/init", link.URL)
		assert.Equal(t, "pref-1", link.PreferenceID)

		require.Len(t, captured.Items, 1)
		assert.Equal(t, "ARS", captured.Items[0].CurrencyID)
		assert.Equal(t, 1500.0, captured.Items[0].UnitPrice)
		assert.Equal(t, 1, captured.PaymentMethods.Installments)
		assert.Equal(t, "raffle-1:7", captured.ExternalReference)
		require.NotNil(t, captured.Payer)
		assert.Equal(t, "ana@example.com", captured.Payer.Email)

		// No return address was supplied, so neither back_urls nor
		// auto_return may appear in the request.
		assert.Nil(t, captured.BackURLs)
		assert.Empty(t, captured.AutoReturn)
	})

	t.Run("Back URLs Enable Auto Return", func(t *testing.T) {
		var captured preferenceRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(preferenceResponse{ID: "pref-1", InitPoint: "https://mp.example/init"})
		}))
		defer server.Close()

		client := NewClientWithBaseURL(server.URL)
		_, err := client.CreatePaymentLink(context.Background(), "token", models.LinkRequest{
			Title:     "Rifa",
			Quantity:  1,
			UnitPrice: 1500,
			BackURLs: &models.BackURLs{
				Success: "https://rifas.example/raffles/r1?payment=success",
				Failure: "https://rifas.example/raffles/r1?payment=failure",
				Pending: "https://rifas.example/raffles/r1?payment=pending",
			},
		})

		require.NoError(t, err)
		require.NotNil(t, captured.BackURLs)
		assert.Equal(t, "approved", captured.AutoReturn)
	})

	t.Run("Statement Descriptor Is Capped", func(t *testing.T) {
		var captured preferenceRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(preferenceResponse{ID: "pref-1", InitPoint: "https://mp.example/init"})
		}))
		defer server.Close()

		client := NewClientWithBaseURL(server.URL)
		_, err := client.CreatePaymentLink(context.Background(), "token", models.LinkRequest{
			Title:     "Gran rifa solidaria del club deportivo",
			Quantity:  1,
			UnitPrice: 1500,
		})

		require.NoError(t, err)
		assert.Len(t, captured.StatementDescriptor, statementDescriptorLimit)
	})

	t.Run("API Error Message Is Surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(apiError{Message: "invalid access token"})
		}))
		defer server.Close()

		client := NewClientWithBaseURL(server.URL)
		_, err := client.CreatePaymentLink(context.Background(), "bad", models.LinkRequest{Title: "Rifa", Quantity: 1, UnitPrice: 1500})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid access token")
	})

	t.Run("Missing Token", func(t *testing.T) {
		client := NewClient()
		_, err := client.CreatePaymentLink(context.Background(), "", models.LinkRequest{Quantity: 1, UnitPrice: 1500})
		assert.Error(t, err)
	})

	t.Run("Zero Price", func(t *testing.T) {
		client := NewClient()
		_, err := client.CreatePaymentLink(context.Background(), "token", models.LinkRequest{Quantity: 1})
		assert.Error(t, err)
	})
}

func TestSearchPayments(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments/search", r.URL.Path)
			assert.Equal(t, "pref-1", r.URL.Query().Get("preference_id"))
			assert.Equal(t, "Bearer APP_USR-token", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(paymentSearchResponse{Results: []models.Payment{
				{ID: "p1", Status: models.PaymentStatusApproved},
				{ID: "p2", Status: models.PaymentStatusRejected},
			}})
		}))
		defer server.Close()

		client := NewClientWithBaseURL(server.URL)
		payments, err := client.SearchPayments(context.Background(), "APP_USR-token", "pref-1")

		require.NoError(t, err)
		require.Len(t, payments, 2)
		assert.True(t, payments[0].Status.Settled())
		assert.True(t, payments[1].Status.TerminalFailure())
	})

	t.Run("Provider Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClientWithBaseURL(server.URL)
		_, err := client.SearchPayments(context.Background(), "token", "pref-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}
