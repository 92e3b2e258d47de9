package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[TemplateID]string{
	TemplateActivationRequest:     "Activate your account",
	TemplateActivationComplete:    "Your account is active",
	TemplatePasswordResetRequest:  "Reset your password",
	TemplatePasswordResetComplete: "Your password was changed",
}

type Renderer struct {
	templates *template.Template
	from      string
}

func NewRenderer(from string) (*Renderer, error) {
	tmpl, err := template.New("mail").Option("missingkey=zero").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}

	for id := range subjects {
		if tmpl.Lookup(string(id)+".html") == nil {
			return nil, fmt.Errorf("mail template %s is missing", id)
		}
	}

	return &Renderer{templates: tmpl, from: from}, nil
}

func (r *Renderer) Render(msg Message) (Email, error) {
	if err := msg.Validate(); err != nil {
		return Email{}, err
	}

	var body bytes.Buffer
	if err := r.templates.ExecuteTemplate(&body, string(msg.Template)+".html", msg.Data); err != nil {
		return Email{}, fmt.Errorf("render %s: %w", msg.Template, err)
	}

	return Email{
		From:     r.from,
		To:       msg.Recipient,
		Subject:  subjects[msg.Template],
		HTMLBody: body.String(),
	}, nil
}
