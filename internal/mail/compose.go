package mail

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

//go:embed templates
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

const timeLayout = "02.01.2006, 15:04:05 MST"

// Anonymous is a visitor's message to a profile owner.
type Anonymous struct {
	RecipientName  string
	RecipientEmail string
	Content        string
	SenderName     string
	SentAt         time.Time
}

// ComposeAnonymous renders the relay e-mail for a.
func ComposeAnonymous(a Anonymous) (Message, error) {
	data := struct {
		RecipientName string
		Content       string
		SenderName    string
		SentAt        string
	}{a.RecipientName, a.Content, a.SenderName, a.SentAt.Format(timeLayout)}

	var h, t bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&h, "message.html", data); err != nil {
		return Message{}, err
	}
	if err := textTemplates.ExecuteTemplate(&t, "message.txt", data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      a.RecipientEmail,
		Subject: "Neue anonyme Nachricht für " + a.RecipientName,
		HTML:    h.String(),
		Text:    t.String(),
	}, nil
}

// RequestNotice tells the operator about a new profile request.
type RequestNotice struct {
	To          string
	Name        string
	Email       string
	Description string
	Sticker     string
	AdminURL    string
	SentAt      time.Time
}

// ComposeRequestNotice renders the admin notification for n.
func ComposeRequestNotice(n RequestNotice) (Message, error) {
	data := struct {
		RequestNotice
		SentAt string
	}{n, n.SentAt.Format(timeLayout)}

	var h bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&h, "request.html", data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      n.To,
		Subject: "Neue Profil-Anfrage: " + n.Name,
		HTML:    h.String(),
	}, nil
}
