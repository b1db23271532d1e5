package notify

import (
	"bytes"
	"errors"
	"html/template"
)

const DefaultTemplate = `<html>
	<body>
	<h2>Extratos de Cota Capital de Condomínios já disponíveis</h2>
	<p>Os extratos de cota capital das contas das administradoras já estão disponíveis na pasta da sua agência no <i>One Drive.</i><br>Por favor, acesse a respectiva pasta para consultar os documentos.</p>
	{{- if .Period }}
	<p>Período de referência: {{.Period}}.</p>
	{{- end }}
	<p>Para eventuais dúvidas, favor contatar <i>{{.Contact}}</i>.</p>
	<br>
	<p>Atenciosamente,<br>
	<br>
	{{.Signature}}</p>
	</body>
</html>`

const (
	defaultContact   = "Contatos"
	defaultSignature = "Área de Desenvolvimento de Sistemas"
)

// TemplateData provides fields for rendering the notification body.
type TemplateData struct {
	Contact   string
	Signature string
	Period    string
}

// Template renders notification bodies.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a body template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("statement-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notify template: nil")
	}
	if data.Contact == "" {
		data.Contact = defaultContact
	}
	if data.Signature == "" {
		data.Signature = defaultSignature
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
