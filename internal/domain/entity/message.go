package entity

// MessageRef identifies a message returned by a discovery query
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// MessageSummary is the header view of a message used by the discovery preview
type MessageSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// MessagePart is one node of a message payload tree.
// Parts keeps the order declared by the provider.
type MessagePart struct {
	PartID       string
	MimeType     string
	Filename     string
	AttachmentID string
	Data         []byte
	Parts        []MessagePart
}

// MessagePayload is a fully fetched message
type MessagePayload struct {
	ID      string
	From    string
	Subject string
	Date    string
	Root    MessagePart
}

// Candidate is one email attachment pair considered for invoice processing
type Candidate struct {
	MessageID    string `json:"message_id"`
	AttachmentID string `json:"attachment_id,omitempty"`
	Filename     string `json:"filename"`
	Sender       string `json:"sender,omitempty"`
	Subject      string `json:"subject,omitempty"`

	// Data is filled lazily, either from an inline part body or an attachment fetch
	Data []byte `json:"-"`
}
