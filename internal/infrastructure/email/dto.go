package email

// EmailRequest is one outbound message
type EmailRequest struct {
	From    string   // Overrides the service default when set
	To      []string // Recipients
	Cc      []string
	Subject string
	Body    string
	IsHTML  bool
}
