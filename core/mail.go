package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	appfs "github.com/trezcool/shule/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates map[string]*emailTemplate // by name, without ext
	tmplInit  sync.Once
)

type (
	// emailTemplate holds both renditions of a template; either may be missing.
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// Send renders and delivers one message, blocking until the provider answers.
		Send(ctx context.Context, msg *EmailMessage) error
		// SendMessages sends messages concurrently; failures are logged
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) contextData(conf *Config) ContextData {
	return ContextData{
		AppName:         conf.AppName,
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render fills TextContent and HTMLContent. BodyStr wins over the text template.
func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	ParseEmailTemplates(conf, nil)
	tmpl := templates[m.TemplateName]
	if tmpl == nil {
		return nil
	}
	data := m.contextData(conf)

	var buff bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.ExecuteTemplate(&buff, "base", data); err != nil {
			return fmt.Errorf("rendering %s.txt: %w", m.TemplateName, err)
		}
		m.TextContent = strings.TrimSpace(buff.String())
		buff.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.ExecuteTemplate(&buff, "base", data); err != nil {
			return fmt.Errorf("rendering %s.gohtml: %w", m.TemplateName, err)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the embedded email templates once.
// Files starting with "_" are base layouts shared by every template.
func ParseEmailTemplates(conf *Config, logger Logger) {
	tmplInit.Do(func() { parseTemplates(conf, logger) })
}

func parseTemplates(conf *Config, logger Logger) {
	templates = make(map[string]*emailTemplate)
	logErr := func(err error) {
		err = fmt.Errorf("parsing email templates: %w", err)
		if logger != nil {
			logger.Error(err.Error(), err)
		} else {
			log.Print(err)
		}
	}

	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		logErr(err)
		return
	}

	strict := conf.Debug || conf.TestMode
	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if de.IsDir() || strings.HasPrefix(fname, "_") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		files := []string{path.Join(emailTemplatesDir, "_base"+ext), path.Join(emailTemplatesDir, fname)}

		tmpl := templates[name]
		if tmpl == nil {
			tmpl = new(emailTemplate)
		}
		switch ext {
		case ".txt":
			t, err := texttmpl.ParseFS(appfs.FS, files...)
			if err != nil {
				logErr(err)
				continue
			}
			if strict {
				t.Option("missingkey=error")
			}
			tmpl.text = t
		case ".gohtml":
			t, err := htmltmpl.ParseFS(appfs.FS, files...)
			if err != nil {
				logErr(err)
				continue
			}
			if strict {
				t.Option("missingkey=error")
			}
			tmpl.html = t
		default:
			continue
		}
		templates[name] = tmpl
	}
}
