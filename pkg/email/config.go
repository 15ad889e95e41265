package email

// Config holds outbound email settings. With no Postmark token the binary
// falls back to DevSender, which writes messages to DevOutputDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@diary.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@diary.local"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// UsePostmark reports whether Postmark credentials were configured.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != ""
}
