// Package notify delivers tickets and bills by email and Telegram.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"parkwise/internal/models"
)

//go:embed templates
var templateFS embed.FS

const (
	ticketTemplate = "templates/ticket.tmpl"
	billTemplate   = "templates/bill.tmpl"
)

type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

func TicketMessage(to string, ticket models.Ticket) (Message, error) {
	return render(to, ticketTemplate, ticket)
}

func BillMessage(to string, bill models.Bill) (Message, error) {
	return render(to, billTemplate, bill)
}

func render(to, file string, data interface{}) (Message, error) {
	tmpl, err := template.New("email").ParseFS(templateFS, file)
	if err != nil {
		return Message{}, fmt.Errorf("parse %s: %w", file, err)
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}

	plainBody := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(plainBody, "plainBody", data); err != nil {
		return Message{}, fmt.Errorf("render plain body: %w", err)
	}

	htmlTmpl, err := htmltemplate.New("email").ParseFS(templateFS, file)
	if err != nil {
		return Message{}, fmt.Errorf("parse %s: %w", file, err)
	}
	htmlBody := new(bytes.Buffer)
	if err := htmlTmpl.ExecuteTemplate(htmlBody, "htmlBody", data); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}

	return Message{
		To:        to,
		Subject:   subject.String(),
		PlainBody: plainBody.String(),
		HTMLBody:  htmlBody.String(),
	}, nil
}

// BillText is the short form sent to operator chats.
func BillText(bill models.Bill) string {
	return fmt.Sprintf("%s: %s left %s after %dh, charged %.2f",
		bill.BillID, bill.PlateNumber, bill.ParkingCode, bill.DurationHours, bill.TotalAmount)
}
