package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

const (
	otpSubject = "Your EduPlatform OTP Code"
	otpHTML    = `<p>Your OTP for EduPlatform registration is <b>{{.Code}}</b>. Valid for {{.Minutes}} minutes.</p>`
	otpText    = `Your OTP for EduPlatform registration is {{.Code}}. Valid for {{.Minutes}} minutes.`
)

var (
	otpHTMLTemplate = htmltemplate.Must(htmltemplate.New("otp_html").Parse(otpHTML))
	otpTextTemplate = texttemplate.Must(texttemplate.New("otp_text").Parse(otpText))
)

// OTPTemplate renders the registration code email.
type OTPTemplate struct {
	validFor time.Duration
}

// NewOTPTemplate returns a template that advertises validFor as the code lifetime.
func NewOTPTemplate(validFor time.Duration) *OTPTemplate {
	return &OTPTemplate{validFor: validFor}
}

// Render builds the message for code addressed to recipient.
func (t *OTPTemplate) Render(recipient, code string) (Message, error) {
	data := struct {
		Code    string
		Minutes int
	}{
		Code:    code,
		Minutes: int(t.validFor.Round(time.Minute) / time.Minute),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := otpHTMLTemplate.Execute(&htmlBuf, data); err != nil {
		return Message{}, fmt.Errorf("mail: render otp html: %w", err)
	}
	if err := otpTextTemplate.Execute(&textBuf, data); err != nil {
		return Message{}, fmt.Errorf("mail: render otp text: %w", err)
	}

	return Message{
		To:       recipient,
		Subject:  otpSubject,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}, nil
}
