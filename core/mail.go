package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/classroom/fs"
)

const emailTemplatesDir = "templates/email"

// layout is satisfied by both *texttmpl.Template and *htmltmpl.Template.
type layout interface {
	ExecuteTemplate(w io.Writer, name string, data interface{}) error
}

var (
	templatesMu sync.RWMutex
	templates   = map[string]layout{} // keyed by file name, e.g. "password_reset.txt"
)

type EmailMessage struct {
	To      []mail.Address
	Cc      []mail.Address
	Bcc     []mail.Address
	Subject string
	BodyStr string // plain text, used instead of the text template when set

	TemplateName string // file name without extension
	TemplateData interface{}
	TextContent  string
	HTMLContent  string
}

// EmailService delivers messages in the background.
type EmailService interface {
	SendMessages(messages ...*EmailMessage)
}

// render executes the "base" layout of the template `name`, if it was parsed.
func render(name string, data interface{}) (string, error) {
	templatesMu.RLock()
	tmpl, ok := templates[name]
	templatesMu.RUnlock()
	if !ok {
		return "", nil
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return "", errors.Wrapf(err, "executing %s", name)
	}
	return buf.String(), nil
}

// Render fills TextContent and HTMLContent. Templates see .FrontendBaseURL and the message data as .Data.
func (m *EmailMessage) Render(frontendBaseURL string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	data := struct {
		FrontendBaseURL string
		Data            interface{}
	}{frontendBaseURL, m.TemplateData}

	var err error
	if m.BodyStr == "" {
		if m.TextContent, err = render(m.TemplateName+".txt", data); err != nil {
			return err
		}
	}
	m.HTMLContent, err = render(m.TemplateName+".gohtml", data)
	return err
}

// Deliverable reports whether the message has someone to go to and something to say.
func (m *EmailMessage) Deliverable() bool {
	return len(m.To) > 0 && (m.TextContent != "" || m.HTMLContent != "")
}

// ParseEmailTemplates loads the embedded email templates, each one on top of the
// "_base" layout of the same extension. strict makes missing keys an error.
func ParseEmailTemplates(logger Logger, strict bool) {
	parsed := make(map[string]layout)

	entries, err := appfs.FS.ReadDir(emailTemplatesDir)
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		return
	}

	for _, e := range entries {
		fname := e.Name()
		ext := path.Ext(fname)
		if e.IsDir() || strings.HasPrefix(fname, "_") {
			continue
		}
		files := []string{path.Join(emailTemplatesDir, "_base"+ext), path.Join(emailTemplatesDir, fname)}

		var tmpl layout
		switch ext {
		case ".txt":
			t, perr := texttmpl.ParseFS(appfs.FS, files...)
			if perr == nil && strict {
				t = t.Option("missingkey=error")
			}
			tmpl, err = t, perr
		case ".gohtml":
			t, perr := htmltmpl.ParseFS(appfs.FS, files...)
			if perr == nil && strict {
				t = t.Option("missingkey=error")
			}
			tmpl, err = t, perr
		default:
			continue
		}
		if err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
			continue
		}
		parsed[fname] = tmpl
	}

	templatesMu.Lock()
	templates = parsed
	templatesMu.Unlock()
}
