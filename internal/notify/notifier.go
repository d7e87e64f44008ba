package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
)

const (
	bookingSubject = "Booking Confirmation - Clip & Go"
	brand          = "Clip & Go"
)

// ErrNoRecipient - у записи нет адреса или телефона для уведомления.
var ErrNoRecipient = errors.New("notify: recipient is missing")

// Notifier формирует тексты уведомлений о записях и отправляет их.
type Notifier struct {
	email   EmailSender
	sms     SMSSender
	metrics metrics.BookingMetrics
	log     *logger.Logger
}

func NewNotifier(email EmailSender, sms SMSSender, m metrics.BookingMetrics, log *logger.Logger) *Notifier {
	return &Notifier{email: email, sms: sms, metrics: m, log: log}
}

// SendBookingConfirmation отправляет письмо с подтверждением записи.
func (n *Notifier) SendBookingConfirmation(ctx context.Context, b *models.Booking, shop *models.Shop) error {
	if b.CustomerEmail == "" {
		n.metrics.IncNotification("email", "skipped")
		return ErrNoRecipient
	}

	when := formatAppointment(b.AppointmentDate, b.AppointmentTime)
	plain := fmt.Sprintf("Your haircut is booked!\n\nShop: %s\nAddress: %s\nWhen: %s\n", shop.Name, shop.Address, when)
	if b.BarberName != nil {
		plain += fmt.Sprintf("Barber: %s\n", *b.BarberName)
	}
	plain += "\nSee you soon! - " + brand

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Your haircut is booked!</h2>
<p><strong>Shop:</strong> %s<br><strong>Address:</strong> %s<br><strong>When:</strong> %s</p>
<p>See you soon! - %s</p>
</body></html>`,
		html.EscapeString(shop.Name), html.EscapeString(shop.Address), html.EscapeString(when), html.EscapeString(brand))

	if err := n.email.Send(ctx, b.CustomerEmail, bookingSubject, htmlBody, plain); err != nil {
		n.metrics.IncNotification("email", "failed")
		return err
	}
	n.metrics.IncNotification("email", "sent")
	n.log.Infow("Booking confirmation email sent", "bookingID", b.ID)
	return nil
}

// SendReminder отправляет SMS-напоминание о завтрашней записи.
func (n *Notifier) SendReminder(ctx context.Context, b *models.Booking, shop *models.Shop) error {
	if b.CustomerPhone == nil || *b.CustomerPhone == "" {
		n.metrics.IncNotification("sms", "skipped")
		return ErrNoRecipient
	}

	if err := n.sms.Send(ctx, *b.CustomerPhone, ReminderText(shop.Name, b.AppointmentTime)); err != nil {
		n.metrics.IncNotification("sms", "failed")
		return err
	}
	n.metrics.IncNotification("sms", "sent")
	n.log.Infow("Reminder sms sent", "bookingID", b.ID)
	return nil
}

// ReminderText - текст SMS-напоминания.
func ReminderText(shopName, appointmentTime string) string {
	return fmt.Sprintf("Reminder: Your haircut at %s tomorrow at %s. See you soon! - %s", shopName, appointmentTime, brand)
}

func formatAppointment(date, t string) string {
	parsed, err := time.Parse("2006-01-02 15:04", date+" "+t)
	if err != nil {
		return date + " " + t
	}
	return parsed.Format("Monday, 2 January 2006 at 15:04")
}

// LogEmailSender пишет письма в лог вместо отправки (SMTP не настроен).
type LogEmailSender struct{ Log *logger.Logger }

func (s LogEmailSender) Send(_ context.Context, to, subject, _, _ string) error {
	s.Log.Infow("Email delivery disabled, message logged", "to", to, "subject", subject)
	return nil
}

// LogSMSSender пишет SMS в лог вместо отправки (Twilio не настроен).
type LogSMSSender struct{ Log *logger.Logger }

func (s LogSMSSender) Send(_ context.Context, to, body string) error {
	s.Log.Infow("SMS delivery disabled, message logged", "to", to, "body", body)
	return nil
}
