package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// AfricasTalkingSender posts to the AfricasTalking bulk messaging API.
type AfricasTalkingSender struct {
	username   string
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewAfricasTalkingSender() (*AfricasTalkingSender, error) {
	username := os.Getenv("AT_USERNAME")
	apiKey := os.Getenv("AT_API_KEY")

	if username == "" {
		return nil, fmt.Errorf("AT_USERNAME not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("AT_API_KEY not set")
	}

	baseURL := os.Getenv("AT_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.africastalking.com"
	}

	return &AfricasTalkingSender{
		username:   username,
		apiKey:     apiKey,
		from:       os.Getenv("AT_FROM"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type atResponse struct {
	SMSMessageData struct {
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (a *AfricasTalkingSender) Send(ctx context.Context, to, message string) error {
	return a.SendBulk(ctx, []string{to}, message)
}

func (a *AfricasTalkingSender) SendBulk(ctx context.Context, recipients []string, message string) error {
	formData := url.Values{}
	formData.Set("username", a.username)
	formData.Set("to", strings.Join(recipients, ","))
	formData.Set("message", message)
	if a.from != "" {
		formData.Set("from", a.from)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/version1/messaging", strings.NewReader(formData.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apiKey", a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("africastalking request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("africastalking error %s: %s", resp.Status, string(body))
	}

	var parsed atResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("africastalking response unreadable: %w", err)
	}
	for _, r := range parsed.SMSMessageData.Recipients {
		// 100-series codes are accepted/queued
		if r.StatusCode >= 400 {
			return fmt.Errorf("africastalking rejected %s: %s", r.Number, r.Status)
		}
	}
	return nil
}
