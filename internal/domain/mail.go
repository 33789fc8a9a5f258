package domain

// MailMessage is built and consumed within a single dispatch. It is never persisted.
type MailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string // optional; derived from HTMLBody when empty
}
