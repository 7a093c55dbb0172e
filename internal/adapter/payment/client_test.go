package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestFormatPhoneTZ(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+255712345678", "0712345678"},
		{"255712345678", "0712345678"},
		{"712345678", "0712345678"},
		{"0712345678", "0712345678"},
		{"0712-345-678", "0712345678"},
		{"2550712345678", "0712345678"},
		{"440712345678", "0712345678"},
		{"", ""},
		{"abc", ""},
		{"7123", "07123"},
	}
	for _, tc := range cases {
		if got := FormatPhoneTZ(tc.in); got != tc.want {
			t.Errorf("FormatPhoneTZ(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCreatePayment(t *testing.T) {
	var got chargePayload
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.Write([]byte(`{"resultcode": "000", "message": "accepted"}`))
	}))
	defer server.Close()

	gateway, err := NewHTTPGateway(server.URL, "pay-key", "admin@codeskytz.site", testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := gateway.CreatePayment(context.Background(), Request{
		OrderID:    "ord-1",
		BuyerPhone: "+255712345678",
		Amount:     5000,
		WebhookURL: "https://bot.example/webhook/payment",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "pay-key" {
		t.Fatalf("missing api key header, got %q", gotKey)
	}
	if got.BuyerPhone != "0712345678" {
		t.Fatalf("phone not normalized: %q", got.BuyerPhone)
	}
	if got.BuyerName != defaultBuyerName {
		t.Fatalf("buyer name default missing: %q", got.BuyerName)
	}
	if got.BuyerEmail != "admin@codeskytz.site" {
		t.Fatalf("buyer email default missing: %q", got.BuyerEmail)
	}
	if !Accepted(resp) {
		t.Fatal("expected accepted response")
	}
}

func TestCreatePaymentGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"resultcode": "403", "message": "insufficient funds"}`))
	}))
	defer server.Close()

	gateway, _ := NewHTTPGateway(server.URL, "pay-key", "admin@codeskytz.site", testLogger())

	resp, err := gateway.CreatePayment(context.Background(), Request{OrderID: "ord-1", Amount: 100})
	if err != nil {
		t.Fatalf("rejection payload must not be an error: %v", err)
	}
	if Accepted(resp) {
		t.Fatal("rejection must not be accepted")
	}
}

func TestNewHTTPGatewayValidation(t *testing.T) {
	if _, err := NewHTTPGateway("not-absolute", "k", "e", testLogger()); err == nil {
		t.Fatal("expected error for non-absolute url")
	}
}

func TestAccepted(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"resultcode string", `{"resultcode": "000"}`, true},
		{"code field", `{"code": "000"}`, true},
		{"resultcode number", `{"resultcode": 0}`, true},
		{"code number nonzero", `{"code": 403}`, false},
		{"status success", `{"status": "success"}`, true},
		{"status ok", `{"status": "OK"}`, true},
		{"declined", `{"resultcode": "403"}`, false},
		{"garbage", `nope`, false},
		{"empty object", `{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Accepted(json.RawMessage(tc.raw)); got != tc.want {
				t.Fatalf("Accepted(%s) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
