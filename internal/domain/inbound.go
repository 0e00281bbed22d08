package domain

// InboundNotification is the webhook body the mail provider POSTs when a
// message arrives. Only Data.EmailID is required to fetch the full message.
type InboundNotification struct {
	Type      string                  `json:"type"`
	CreatedAt string                  `json:"created_at"`
	Data      InboundNotificationData `json:"data"`
}

type InboundNotificationData struct {
	EmailID   string   `json:"email_id"`
	From      string   `json:"from"`
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	CreatedAt string   `json:"created_at"`
}

// InboundMessage is the full message fetched from the provider's retrieval
// API. It lives only for the duration of one webhook request and is never
// persisted here.
type InboundMessage struct {
	Object      string            `json:"object"`
	ID          string            `json:"id"`
	To          []string          `json:"to"`
	From        string            `json:"from"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Text        string            `json:"text"`
	Headers     map[string]string `json:"headers"`
	Attachments []Attachment      `json:"attachments"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Content     string `json:"content,omitempty"`
}
