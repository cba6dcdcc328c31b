package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// CustomerEmailKey is the attribute key under which customer addresses are
// logged. Values under this key are masked.
const CustomerEmailKey = "customer_email"

// sensitiveFields are attribute and struct field names that are always masked.
var sensitiveFields = []string{
	"password", "secret", "token", "credential", "credentials",
	"apiKey", "apikey", "api_key",
	"accessToken", "access_token", "refreshToken", "refresh_token",
	"authorization", "auth", "bearer", "cookie", "session",
	"privateKey", "private_key", "secretKey", "secret_key",
	"aws_secret_access_key", "SecretAccessKey",
	CustomerEmailKey, "CustomerEmail",
}

var sensitivePrefixes = []string{"secret", "private"}

// sensitiveValues match credentials wherever they appear, whatever the key.
var sensitiveValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+$`),
	regexp.MustCompile(`(?i)^basic\s+.+$`),
	regexp.MustCompile(`^whsec_[A-Za-z0-9]+$`),      // CRM webhook signing key
	regexp.MustCompile(`^sha256=[0-9a-f]{64}$`),     // webhook signature header
	regexp.MustCompile(`^(AKIA|ASIA)[0-9A-Z]{16}$`), // AWS access key ID
}

// DefaultRedactOptions returns the masq options applied to every log sink.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+len(sensitivePrefixes)+len(sensitiveValues))

	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	for _, prefix := range sensitivePrefixes {
		opts = append(opts, masq.WithFieldPrefix(prefix))
	}

	for _, re := range sensitiveValues {
		opts = append(opts, masq.WithRegex(re))
	}

	return opts
}

// NewReplaceAttr returns a slog ReplaceAttr that applies DefaultRedactOptions
// plus opts.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
