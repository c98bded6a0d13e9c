package mail

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

// Rendered はテンプレート適用後のメールです。
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type kindTemplate struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

func newKindTemplate(subject, text, html string) kindTemplate {
	return kindTemplate{
		subject: subject,
		text:    template.Must(template.New("text").Option("missingkey=zero").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New("html").Option("missingkey=zero").Parse(html)),
	}
}

var templates = map[Kind]kindTemplate{
	KindVerification: newKindTemplate(
		"Verify your email",
		"Hello {{.username}},\n\nYour verification code is: {{.code}}\nThe code expires in 24 hours.\n",
		`<p>Hello {{.username}},</p><p>Your verification code is: <strong>{{.code}}</strong></p><p>The code expires in 24 hours.</p>`,
	),
	KindWelcome: newKindTemplate(
		"Welcome!",
		"Hello {{.username}},\n\nYour email has been verified. Welcome aboard!\n",
		`<p>Hello {{.username}},</p><p>Your email has been verified. Welcome aboard!</p>`,
	),
	KindReset: newKindTemplate(
		"Reset your password",
		"We received a request to reset your password.\n\nOpen the link below within 1 hour:\n{{.resetURL}}\n\nIf you did not request this, you can ignore this email.\n",
		`<p>We received a request to reset your password.</p><p><a href="{{.resetURL}}">Reset password</a> (valid for 1 hour)</p><p>If you did not request this, you can ignore this email.</p>`,
	),
	KindResetConfirmed: newKindTemplate(
		"Your password has been changed",
		"Your password was reset successfully.\n\nIf you did not make this change, contact support immediately.\n",
		`<p>Your password was reset successfully.</p><p>If you did not make this change, contact support immediately.</p>`,
	),
}

// Render はメッセージの種類に応じた件名と本文を生成します。
func Render(msg Message) (*Rendered, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	tpl := templates[msg.Kind]

	data := msg.Data
	if data == nil {
		data = map[string]string{}
	}

	var text, html bytes.Buffer
	if err := tpl.text.Execute(&text, data); err != nil {
		return nil, err
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return nil, err
	}
	return &Rendered{
		Subject: tpl.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
