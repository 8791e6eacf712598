package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/weaveui/dataset-manager/internal/config"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ConsentRequestData fills the consent request email and the outreach letter.
type ConsentRequestData struct {
	CreatorName string
	ShotTitle   string
	ShotURL     string
	PageURL     string
	ApproveURL  string
	DeclineURL  string
	ExpiresAt   time.Time
	Sender      config.SenderConfig
}

// ReceiptData fills the decision receipt email.
type ReceiptData struct {
	Granted   bool
	Scope     string
	DecidedAt time.Time
	Sender    config.SenderConfig
}

// Templates holds the parsed email and letter templates.
type Templates struct {
	requestText *texttemplate.Template
	requestHTML *htmltemplate.Template
	receipt     *texttemplate.Template
	letter      *texttemplate.Template
}

// LoadTemplates parses the embedded templates. A non-empty letterPath replaces the
// embedded letter with a template file from disk.
func LoadTemplates(letterPath string) (*Templates, error) {
	t := &Templates{}
	var err error
	if t.requestText, err = texttemplate.ParseFS(templateFS, "templates/consent_request.txt.tmpl"); err != nil {
		return nil, fmt.Errorf("parse request text template: %w", err)
	}
	if t.requestHTML, err = htmltemplate.ParseFS(templateFS, "templates/consent_request.html.tmpl"); err != nil {
		return nil, fmt.Errorf("parse request html template: %w", err)
	}
	if t.receipt, err = texttemplate.ParseFS(templateFS, "templates/receipt.txt.tmpl"); err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}

	if letterPath == "" {
		t.letter, err = texttemplate.ParseFS(templateFS, "templates/letter.txt.tmpl")
	} else {
		var raw []byte
		if raw, err = os.ReadFile(letterPath); err == nil {
			t.letter, err = texttemplate.New("letter").Option("missingkey=error").Parse(string(raw))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load letter template: %w", err)
	}
	return t, nil
}

// ConsentRequest renders the subject and both bodies of a consent request.
func (t *Templates) ConsentRequest(data ConsentRequestData) (subject, text, html string, err error) {
	if text, err = execText(t.requestText, data); err != nil {
		return "", "", "", err
	}
	var buf bytes.Buffer
	if err = t.requestHTML.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render request html: %w", err)
	}
	subject = fmt.Sprintf("May we include %q in our design dataset?", data.ShotTitle)
	return subject, text, buf.String(), nil
}

// Receipt renders the decision receipt.
func (t *Templates) Receipt(data ReceiptData) (subject, text string, err error) {
	if text, err = execText(t.receipt, data); err != nil {
		return "", "", err
	}
	subject = "Your consent decision was recorded"
	if !data.Granted {
		subject = "Your decline was recorded"
	}
	return subject, text, nil
}

// Letter renders the outreach letter.
func (t *Templates) Letter(data ConsentRequestData) (string, error) {
	return execText(t.letter, data)
}

func execText(tmpl *texttemplate.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimLeft(buf.String(), "\n"), nil
}
