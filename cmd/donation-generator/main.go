package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"

	"donation-gateway/internal/app"
)

// DonationRequest mirrors the body accepted by POST /api/v1/donations.
type DonationRequest struct {
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	TaxID        string       `json:"tax_id"`
	Phone        string       `json:"phone"`
	Amount       string       `json:"amount"`
	Instrument   string       `json:"instrument"`
	Installments int          `json:"installments,omitempty"`
	Card         *CardRequest `json:"card,omitempty"`
}

type CardRequest struct {
	HolderName string `json:"holder_name"`
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

type donationResponse struct {
	Charge struct {
		ProviderID string `json:"provider_id"`
	} `json:"charge"`
}

var instruments = []string{"PIX", "PIX", "BOLETO", "CARD"}

func main() {
	// 1. Setting up flags
	baseURL := flag.String("target", "http://localhost:8080", "Base URL of the donation gateway")
	rps := flag.Int("rps", 5, "Requests per second")
	webhooks := flag.Bool("webhooks", false, "Follow every created charge with a paid webhook")
	webhookToken := flag.String("webhook-token", "", "Value for the asaas-access-token header")
	flag.Parse()

	log.Printf("Starting generator: target=%s, rps=%d, webhooks=%t\n", *baseURL, *rps, *webhooks)

	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 60 * time.Second}

	for {
		select {
		case <-ticker.C:
			go func() {
				providerID, ok := sendDonation(ctx, client, *baseURL)
				if ok && *webhooks && providerID != "" {
					sendPaidWebhook(ctx, client, *baseURL, *webhookToken, providerID)
				}
			}()
		case <-ctx.Done():
			log.Println("Shutting down generator...")
			return
		}
	}
}

func fakeDonation() DonationRequest {
	base := fmt.Sprintf("%09d", rand.Intn(1_000_000_000))
	req := DonationRequest{
		Name:       faker.Name(),
		Email:      faker.Email(),
		TaxID:      app.FormatDocument(app.CompleteDocument(base)),
		Phone:      app.FormatPhone(fmt.Sprintf("119%08d", rand.Intn(100_000_000))),
		Amount:     fmt.Sprintf("%d.%02d", 5+rand.Intn(500), rand.Intn(100)),
		Instrument: instruments[rand.Intn(len(instruments))],
	}
	if req.Instrument == "CARD" {
		req.Installments = 1 + rand.Intn(3)
		req.Card = &CardRequest{
			HolderName: strings.ToUpper(req.Name),
			Number:     faker.CCNumber(),
			Expiry:     fmt.Sprintf("%02d/%d", 1+rand.Intn(12), time.Now().Year()%100+1+rand.Intn(5)),
			CVV:        fmt.Sprintf("%03d", rand.Intn(1000)),
		}
	}
	return req
}

func sendDonation(ctx context.Context, client *http.Client, baseURL string) (string, bool) {
	reqData := fakeDonation()
	var resp donationResponse
	status, err := postJSON(ctx, client, baseURL+"/api/v1/donations", reqData, nil, &resp)
	if err != nil {
		log.Printf("ERROR: failed to send donation: %v", err)
		return "", false
	}
	if status != http.StatusCreated {
		log.Printf("WARN: received non-201 status code: %d (instrument=%s)", status, reqData.Instrument)
		return "", false
	}
	log.Printf("INFO: donation created, instrument=%s provider_id=%s", reqData.Instrument, resp.Charge.ProviderID)
	return resp.Charge.ProviderID, true
}

func sendPaidWebhook(ctx context.Context, client *http.Client, baseURL, token, providerID string) {
	body := map[string]any{
		"eventType": "transaction_status_changed",
		"transaction": map[string]any{
			"id":     providerID,
			"status": "paid",
		},
	}
	headers := map[string]string{}
	if token != "" {
		headers["asaas-access-token"] = token
	}
	status, err := postJSON(ctx, client, baseURL+"/webhooks/payments", body, headers, nil)
	if err != nil {
		log.Printf("ERROR: failed to send webhook: %v", err)
		return
	}
	log.Printf("INFO: webhook for %s answered %d", providerID, status)
}

func postJSON(ctx context.Context, client *http.Client, url string, in any, headers map[string]string, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body : %v", err)
		}
	}()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
