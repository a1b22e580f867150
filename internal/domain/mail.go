package domain

// OutboundMail is a single rendered message handed to the mail transport.
type OutboundMail struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}
