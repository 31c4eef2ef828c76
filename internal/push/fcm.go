package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

const defaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMSender delivers pushes through the FCM legacy HTTP API.
type FCMSender struct {
	ServerKey string
	Endpoint  string
	Client    *http.Client
}

func NewFCMSender(serverKey string, timeout time.Duration) *FCMSender {
	return &FCMSender{
		ServerKey: serverKey,
		Endpoint:  defaultFCMEndpoint,
		Client:    &http.Client{Timeout: timeout},
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send posts one message to one registration token. Every failure mode,
// including transport and decode errors, is flattened into a failed Result.
func (s *FCMSender) Send(ctx context.Context, token string, msg Message) Result {
	payload := fcmRequest{
		To: token,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Image: msg.ImageURL,
		},
		Data: msg.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal request: %v", err)}
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultFCMEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.ServerKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return Result{Error: fmt.Sprintf("fcm request: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Error: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return Result{Error: fmt.Sprintf("fcm status %d", resp.StatusCode)}
	}

	var out fcmResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{Error: fmt.Sprintf("decode response: %v", err)}
	}

	if out.Failure > 0 || out.Success == 0 {
		reason := "unknown"
		if len(out.Results) > 0 && out.Results[0].Error != "" {
			reason = out.Results[0].Error
		}
		return Result{Error: reason}
	}

	return Result{Success: true}
}

var _ Sender = (*FCMSender)(nil)
