package model

// Placeholders used when the provider omits a header or body.
const (
	NoSubject   = "No Subject"
	NoSender    = "No Sender"
	NoDate      = "No Date"
	NoRecipient = "No Recipient"
	NoBody      = "No body content found or could not parse."
)

// MessageSummary is the metadata returned for each message in a listing.
type MessageSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// Message is a fully fetched message with its decoded body.
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	To      string `json:"to"`
	Date    string `json:"date"`
	Body    string `json:"body"`
	Snippet string `json:"snippet"`
}

// Draft is an outgoing plain-text message.
type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendReceipt identifies a message accepted by the provider.
type SendReceipt struct {
	MessageID string `json:"messageId"`
}

// TrashReceipt identifies a message moved to the trash.
type TrashReceipt struct {
	ID string `json:"id"`
}

// OrDefault returns s, or def when s is empty.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
