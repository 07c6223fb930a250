package gmail

import gmailapi "google.golang.org/api/gmail/v1"

const (
	// MaxAttachmentSize is the largest attachment the client downloads (25 MiB).
	MaxAttachmentSize = 25 * 1024 * 1024
)

// Message formats accepted by GetMessage.
const (
	FormatFull     = "full"
	FormatMetadata = "metadata"
	FormatMinimal  = "minimal"
	FormatRaw      = "raw"
)

// GetMessageRequest selects a message and its detail level.
type GetMessageRequest struct {
	Email       string
	MessageID   string
	AccessToken string

	// Format defaults to FormatFull.
	Format string

	// MetadataHeaders restricts the headers returned with FormatMetadata.
	MetadataHeaders []string
}

// AttachmentRequest selects an attachment. When AttachmentID is empty the
// attachment is looked up by Filename.
type AttachmentRequest struct {
	Email        string
	MessageID    string
	AttachmentID string
	Filename     string
	AccessToken  string
}

// Attachment is a downloaded attachment.
type Attachment struct {
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
	Data         []byte
}

// SendRequest is a JSON-wrapped send.
type SendRequest struct {
	Email       string
	Raw         []byte
	ThreadID    string
	AccessToken string
}

// ListRequest selects a page of messages.
type ListRequest struct {
	Email       string
	Query       string
	MaxResults  int64
	PageToken   string
	AccessToken string
}

// ListResult is one page of message references.
type ListResult struct {
	Messages           []*gmailapi.Message
	NextPageToken      string
	ResultSizeEstimate int64
}
