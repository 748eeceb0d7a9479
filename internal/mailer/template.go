package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
)

// Render executes a stored template against data and addresses the result to to.
func Render(tpl *domain.EmailTemplate, to string, data any) (Message, error) {
	if tpl == nil {
		return Message{}, fmt.Errorf("template is required")
	}

	subject, err := renderText(tpl.Key+":subject", tpl.Subject, data)
	if err != nil {
		return Message{}, err
	}

	msg := Message{To: to, Subject: strings.TrimSpace(subject)}
	if tpl.IsHTML {
		msg.HTMLBody, err = renderHTML(tpl.Key+":body", tpl.Body, data)
	} else {
		msg.TextBody, err = renderText(tpl.Key+":body", tpl.Body, data)
	}
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func renderText(name, source string, data any) (string, error) {
	t, err := texttemplate.New(name).Option("missingkey=zero").Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderHTML(name, source string, data any) (string, error) {
	t, err := htmltemplate.New(name).Option("missingkey=zero").Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
