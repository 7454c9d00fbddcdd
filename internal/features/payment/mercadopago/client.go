package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cvelasquez94/raffle-fast/internal/features/payment/models"
)

const defaultBaseURL = "https://api.mercadopago.com"

// statementDescriptorLimit is MercadoPago's cap on the text shown on the
// buyer's card statement.
const statementDescriptorLimit = 22

// Client calls the MercadoPago Preferences and Payments APIs. Each raffle
// carries its own access token, so the token is an argument, not client
// state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientWithBaseURL points the client at a different API host. Used by
// tests.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

type preferenceItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

type preferencePayer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type preferenceBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferencePaymentMethods struct {
	ExcludedPaymentTypes []string `json:"excluded_payment_types"`
	Installments         int      `json:"installments"`
}

type preferenceRequest struct {
	Items               []preferenceItem         `json:"items"`
	ExternalReference   string                   `json:"external_reference"`
	PaymentMethods      preferencePaymentMethods `json:"payment_methods"`
	StatementDescriptor string                   `json:"statement_descriptor"`
	Payer               *preferencePayer         `json:"payer,omitempty"`
	BackURLs            *preferenceBackURLs      `json:"back_urls,omitempty"`
	AutoReturn          string                   `json:"auto_return,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type apiError struct {
	Message string `json:"message"`
}

// CreatePaymentLink creates a checkout preference and returns its payment
// link. The request body mirrors what the provider expects: single
// installment, ARS, statement descriptor capped at 22 characters, and
// back_urls only when a return address exists.
func (c *Client) CreatePaymentLink(ctx context.Context, accessToken string, req models.LinkRequest) (*models.Link, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if req.UnitPrice <= 0 {
		return nil, fmt.Errorf("unit price must be greater than 0")
	}

	descriptor := req.Title
	if len(descriptor) > statementDescriptorLimit {
		descriptor = descriptor[:statementDescriptorLimit]
	}

	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:       req.Title,
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			CurrencyID:  "ARS",
		}},
		ExternalReference: req.ExternalReference,
		PaymentMethods: preferencePaymentMethods{
			ExcludedPaymentTypes: []string{},
			Installments:         1,
		},
		StatementDescriptor: descriptor,
	}

	if req.BackURLs != nil {
		body.BackURLs = &preferenceBackURLs{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		}
		body.AutoReturn = "approved"
	}

	if req.BuyerEmail != "" {
		body.Payer = &preferencePayer{Email: req.BuyerEmail, Name: req.BuyerName}
	}

	var resp preferenceResponse
	if err := c.post(ctx, accessToken, "/checkout/preferences", body, &resp); err != nil {
		return nil, err
	}

	return &models.Link{URL: resp.InitPoint, PreferenceID: resp.ID}, nil
}

type paymentSearchResponse struct {
	Results []models.Payment `json:"results"`
}

// SearchPayments returns every payment attached to a checkout preference.
func (c *Client) SearchPayments(ctx context.Context, accessToken, preferenceID string) ([]models.Payment, error) {
	endpoint := "/v1/payments/search?preference_id=" + url.QueryEscape(preferenceID)

	var resp paymentSearchResponse
	if err := c.get(ctx, accessToken, endpoint, &resp); err != nil {
		return nil, err
	}

	return resp.Results, nil
}

func (c *Client) post(ctx context.Context, accessToken, endpoint string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, accessToken, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
