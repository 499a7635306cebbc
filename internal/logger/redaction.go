package logger

import (
	"io"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// phonePattern matches phone numbers, bare or in E.164 form.
var phonePattern = regexp.MustCompile(`\+?\b\d{9,15}\b`)

type redactRule struct {
	re *regexp.Regexp
	// template is used with ReplaceAllString when fn is nil
	template string
	fn       func(string) string
}

// Redactor masks phone numbers and credentials in log output.
type Redactor struct {
	rules []redactRule
}

// NewRedactor creates a redactor with the default rules.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactRule{
			{re: phonePattern, fn: MaskPhone},
			{
				re:       regexp.MustCompile(`("pairingCode"\s*:\s*)"[^"]*"`),
				template: `${1}"` + redacted + `"`,
			},
			{
				re:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
				template: "Bearer " + redacted,
			},
			{
				re:       regexp.MustCompile(`(?i)\b(password|secret|token)(["\s:=]+)[^\s",]+`),
				template: "${1}${2}" + redacted,
			},
		},
	}
}

// AddPattern redacts every match of pattern entirely.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactRule{re: re, template: redacted})
	return nil
}

// Redact applies every rule to s in order.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		if rule.fn != nil {
			s = rule.re.ReplaceAllStringFunc(s, rule.fn)
		} else {
			s = rule.re.ReplaceAllString(s, rule.template)
		}
	}
	return s
}

// MaskPhone replaces every digit of a phone number but the last two, so
// log lines about one number can still be correlated.
func MaskPhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))

	digits := 0
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			digits++
		}
	}

	seen := 0
	for _, c := range phone {
		if c < '0' || c > '9' {
			b.WriteRune(c)
			continue
		}
		seen++
		if seen > digits-2 {
			b.WriteRune(c)
		} else {
			b.WriteByte('*')
		}
	}
	return b.String()
}

// Wrap returns a writer redacting everything written to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{out: w, redactor: r}
}

type redactingWriter struct {
	out      io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; zerolog treats a shorter count as a
// short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
