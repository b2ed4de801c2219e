package port

import "context"

// Notification is an outbound message to the notification sink. Delivery is
// best-effort and never awaited by the committing transaction.
type Notification struct {
	Type          string
	Recipient     string
	RecipientRole string
	Subject       string
	Body          string
	SessionID     string
	UpdateID      string
}

// Notifier defines the outbound notification sink
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// GeneratedDocument is the output of the document-generation collaborator.
type GeneratedDocument struct {
	Bytes     []byte
	Extension string
}

// DocumentGenerator renders a form-data snapshot into document bytes.
// Pure with respect to application state: same snapshot, same document.
type DocumentGenerator interface {
	Generate(ctx context.Context, formType string, snapshot map[string]interface{}) (*GeneratedDocument, error)
}

// DocumentInspector validates rendered compliance documents before a session
// may be marked as archived.
type DocumentInspector interface {
	// Inspect returns the page count, or an error when the document is
	// unreadable or empty.
	Inspect(ctx context.Context, doc []byte) (int, error)
}

// Credential is the result of verifying a bearer credential.
type Credential struct {
	ActorID    string
	Role       string
	PropertyID string
}

// CredentialVerifier is the authentication capability: bearer credential in,
// actor identity out. Session management itself lives outside this core.
type CredentialVerifier interface {
	Verify(ctx context.Context, bearer string) (*Credential, error)
}
