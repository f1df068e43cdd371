package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"
)

// LinkBuilder produces a time-limited download link for the ebook asset.
type LinkBuilder interface {
	DownloadLink(ctx context.Context, expiry time.Duration) (string, error)
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Links    LinkBuilder
}

func NewEmailSender(host string, port int, user, password, from string, links LinkBuilder) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		Links:    links,
	}
}

const linkExpiry = 72 * time.Hour

type ebookEmailData struct {
	Name string
	Link string
}

var ebookTmpl = template.Must(template.New("ebook").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #1a1a1a;">
  <h2>Your free guide is here, {{.Name}}!</h2>
  <p>Thanks for requesting our credit secrets guide. Your download link is below:</p>
  <p><a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#dc2626;color:#ffffff;border-radius:6px;text-decoration:none;">Download the Guide</a></p>
  <p>The link expires in 72 hours, so grab your copy soon.</p>
  <p style="color:#666;font-size:12px;">Consumer Advocate Resolution Center</p>
</body>
</html>
`))

// SendEbook emails the lead a presigned download link for the guide.
func (s *EmailSender) SendEbook(name, email string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	link, err := s.Links.DownloadLink(ctx, linkExpiry)
	if err != nil {
		return fmt.Errorf("building ebook link: %w", err)
	}

	var body bytes.Buffer
	if err := ebookTmpl.Execute(&body, ebookEmailData{Name: name, Link: link}); err != nil {
		return fmt.Errorf("rendering ebook email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", fmt.Sprintf("%s, your free credit guide is ready", name))
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("sending ebook email: %w", err)
	}
	return nil
}
