package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// WelcomeSubject は患者登録時のウェルカムメールの件名。
const WelcomeSubject = "Welcome to PanchSetu – Your Wellness Journey Begins"

// supportAddress は問い合わせ先として本文に記載するアドレス。
const supportAddress = "support@panchsetu.com"

var welcomeFeatures = []string{
	"📅 Schedule and track your Panchakarma therapy sessions with ease",
	"🔔 Receive timely reminders for pre- and post-procedure precautions",
	"📊 Monitor your recovery progress through personalized reports",
	"💬 Share feedback and symptoms for better care",
}

var welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome.html").Parse(`<div style="font-family: Arial, sans-serif; line-height:1.6; color:#333;">
<h2 style="color:#2c7a7b;">Welcome to PanchSetu 🌿</h2>
<p>Dear {{.Name}},</p>
<p>We’re delighted to welcome you to <strong>PanchSetu</strong>, your trusted companion for Panchakarma therapy and holistic wellness management.</p>
<p>Your account has been successfully created with the email ID: <strong>{{.Email}}</strong>.</p>
<h3 style="color:#2c7a7b;">What you can do with PanchSetu:</h3>
<ul>
{{- range .Features}}
<li>{{.}}</li>
{{- end}}
</ul>
<p>We are committed to combining <em>traditional authenticity</em> with <em>modern efficiency</em> to support your wellness journey.</p>
<p>If you have any questions, feel free to reach out to our support team at <a href="mailto:{{.Support}}">{{.Support}}</a>.</p>
<p style="margin-top:20px;">Wishing you health and wellness,</p>
<p><strong>The PanchSetu Team</strong></p>
</div>
`))

var welcomeText = texttemplate.Must(texttemplate.New("welcome.txt").Parse(`Dear {{.Name}},

Welcome to PanchSetu, your trusted companion for Panchakarma therapy and holistic wellness management.

Your account has been successfully created with the email ID: {{.Email}}.

What you can do with PanchSetu:
{{range .Features}}- {{.}}
{{end}}
If you have any questions, contact {{.Support}}.

Wishing you health and wellness,
The PanchSetu Team
`))

type welcomeData struct {
	Name     string
	Email    string
	Features []string
	Support  string
}

// WelcomeMessage は新規登録した患者向けのウェルカムメールを組み立てる。
// 名前が空の場合は "User" 宛てとする。
func WelcomeMessage(name, email string) (Message, error) {
	if name == "" {
		name = "User"
	}
	data := welcomeData{Name: name, Email: email, Features: welcomeFeatures, Support: supportAddress}

	var html, text bytes.Buffer
	if err := welcomeHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome mail: %w", err)
	}
	if err := welcomeText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome mail: %w", err)
	}

	return Message{
		To:      email,
		Subject: WelcomeSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
