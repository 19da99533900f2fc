package service

import (
	"fmt"
	"log"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"evrental/internal/db"
	"evrental/internal/entities"
)

// NotifyService delivers rental status updates to renters over email and SMS.
// Delivery is best effort: sends run in goroutines and failures are logged,
// never surfaced to the rental flow.
type NotifyService struct{}

func NewNotifyService() *NotifyService {
	return &NotifyService{}
}

func (n *NotifyService) NotifyRentalStatus(rental *db.Rental, status string) {
	data := entities.RentalEmailData{
		RenterName: rental.RenterName,
		RentalCode: rental.Code,
		StationID:  rental.StationID,
		Status:     status,
		Deposit:    rental.Deposit,
	}

	go func() {
		if err := sendRentalEmail(rental.RenterEmail, data); err != nil {
			log.Printf("rental %s: email notification failed: %v", rental.Code, err)
		}
	}()

	if rental.RenterPhone != "" {
		sms := fmt.Sprintf("EV Rental: your rental %s is %s. Details in your email.", data.RentalCode, data.Status)
		go func() {
			if err := sendSMS(rental.RenterPhone, sms); err != nil {
				log.Printf("rental %s: SMS notification failed: %v", rental.Code, err)
			}
		}()
	}
}

func sendRentalEmail(toEmail string, data entities.RentalEmailData) error {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY not configured")
	}
	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL not configured")
	}
	fromName := os.Getenv("SENDGRID_FROM_NAME")
	if fromName == "" {
		fromName = "EV Rental"
	}

	subject := fmt.Sprintf("Your EV rental %s is %s", data.RentalCode, data.Status)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour rental %s has been %s.\n\n"+
			"Station: %d\nDeposit: %d VND\n\n"+
			"Thank you for riding with us.",
		data.RenterName, data.RentalCode, data.Status, data.StationID, data.Deposit,
	)

	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(data.RenterName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	client := sendgrid.NewSendClient(apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	return nil
}

func sendSMS(to, message string) error {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_FROM_NUMBER")

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(message)

	_, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}
