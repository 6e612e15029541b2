package orders

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testPayload() types.CheckoutPayload {
	return types.CheckoutPayload{
		Items: types.OrderLines{
			{LineID: "jollof-no-protein", ItemID: "jollof", Name: "Jollof Rice", UnitPrice: 4500, Quantity: 2, ProteinIDs: []string{}, LineTotal: 9000},
		},
		CustomerName:   "Tola",
		Phone:          "08030000000",
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodBankTransfer,
		Subtotal:       9000,
		TotalAmount:    9000,
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("http://orders.test/api/", time.Second, WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return client
}

func TestClientSubmitPostsPayload(t *testing.T) {
	var sent types.CheckoutPayload
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/api/orders", req.URL.Path)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "k1", req.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
		return response(http.StatusCreated, `{"success":true,"order":{"_id":"64ab","orderReference":"ATM-7781","verificationCode":"118822","totalAmount":9000}}`), nil
	})

	result, err := client.Submit(context.Background(), "k1", testPayload())
	require.NoError(t, err)
	assert.Equal(t, "64ab", result.OrderID)
	assert.Equal(t, "ATM-7781", result.OrderReference)
	assert.Equal(t, "118822", result.VerificationCode)
	assert.EqualValues(t, 9000, result.TotalAmount)
	assert.Equal(t, "Tola", sent.CustomerName)
	require.Len(t, sent.Items, 1)
	assert.Equal(t, "jollof", sent.Items[0].ItemID)
}

func TestClientSubmitReadsTopLevelAndDataShapes(t *testing.T) {
	cases := map[string]string{
		"top level": `{"orderId":"o-1","reference":"ATM-1","paymentUrl":"https://pay.test/1"}`,
		"data":      `{"data":{"id":"o-1","orderReference":"ATM-1","authorizationUrl":"https://pay.test/1"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return response(http.StatusOK, body), nil
			})
			result, err := client.Submit(context.Background(), "k1", testPayload())
			require.NoError(t, err)
			assert.Equal(t, "o-1", result.OrderID)
			assert.Equal(t, "ATM-1", result.OrderReference)
			assert.Equal(t, "https://pay.test/1", result.PaymentURL)
			assert.EqualValues(t, 9000, result.TotalAmount, "falls back to the submitted total")
		})
	}
}

func TestClientSubmitCarriesPaymentInstructions(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return response(http.StatusCreated, `{"order":{"_id":"64ab","totalAmount":9400,"paymentInstructions":"Transfer to 0123456789 (Atmos Foods)"}}`), nil
	})

	result, err := client.Submit(context.Background(), "k1", testPayload())
	require.NoError(t, err)
	assert.Equal(t, "Transfer to 0123456789 (Atmos Foods)", result.PaymentInstructions)
	assert.EqualValues(t, 9400, result.TotalAmount, "the upstream total is reported as sent")
}

func TestClientSubmitOmitsEmptyIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		_, ok := req.Header["Idempotency-Key"]
		assert.False(t, ok)
		return response(http.StatusOK, `{"orderId":"o-1"}`), nil
	})

	_, err := client.Submit(context.Background(), " ", testPayload())
	require.NoError(t, err)
}

func TestClientSubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   pkgerrors.Code
	}{
		{name: "explicit failure", status: http.StatusOK, body: `{"success":false,"message":"kitchen closed"}`, code: pkgerrors.CodeDependency},
		{name: "bad request", status: http.StatusBadRequest, body: `{"errors":["phone"]}`, code: pkgerrors.CodeValidation},
		{name: "server error", status: http.StatusBadGateway, body: `down`, code: pkgerrors.CodeDependency},
		{name: "garbage", status: http.StatusOK, body: `<html>`, code: pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return response(tc.status, tc.body), nil
			})
			_, err := client.Submit(context.Background(), "k1", testPayload())
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestClientFetch(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		if req.URL.Path != "/api/orders/64ab" {
			return response(http.StatusNotFound, "missing"), nil
		}
		return response(http.StatusOK, `{"_id":"64ab","orderReference":"ATM-7781","status":"ready","totalAmount":9400}`), nil
	})

	remote, err := client.Fetch(context.Background(), "64ab")
	require.NoError(t, err)
	assert.Equal(t, "ready", remote.Status)
	assert.EqualValues(t, 9400, remote.TotalAmount)

	_, err = client.Fetch(context.Background(), "nope")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = client.Fetch(context.Background(), " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ", 0)
	require.Error(t, err)
}
