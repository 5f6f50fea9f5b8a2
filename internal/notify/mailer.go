package notify

import (
	"bakery-service/internal/config"
	"bakery-service/internal/qr"
	"context"
	"fmt"
	"io"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// Mailer sends the HTML order confirmation with the redemption QR code
// embedded inline.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.MailFrom,
	}
}

func (m *Mailer) Send(ctx context.Context, c Confirmation) error {
	if c.Recipient == "" {
		return fmt.Errorf("confirmation has no recipient")
	}

	png, err := qr.Render(c.Token)
	if err != nil {
		return fmt.Errorf("failed to render redemption code: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", c.Recipient)
	msg.SetHeader("Subject", fmt.Sprintf("Order confirmation #%s", c.OrderNumber))
	msg.Embed("qrcode.png", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(png)
		return err
	}))
	msg.SetBody("text/html", buildBody(c))

	// gomail has no context support; the dispatcher enforces its own
	// delivery timeout around this call.
	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildBody(c Confirmation) string {
	var items strings.Builder
	for _, item := range c.Items {
		fmt.Fprintf(&items, `<tr><td>%d x %s</td><td align="right">%.2f</td></tr>`,
			item.Quantity, item.Name, item.Price*float64(item.Quantity))
	}

	pickup := ""
	if c.PickupTime != nil {
		pickup = fmt.Sprintf("<p><strong>Estimated pickup:</strong> %s</p>",
			c.PickupTime.Format("Mon, 2 Jan 2006 15:04"))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #181411;">
  <h1>Thank you for your order!</h1>
  <p>Your order #%s has been received.</p>
  <table width="100%%" cellpadding="6">
    %s
    <tr><td>Subtotal</td><td align="right">%.2f</td></tr>
    <tr><td>Tax</td><td align="right">%.2f</td></tr>
    <tr><td><strong>Total</strong></td><td align="right"><strong>%.2f</strong></td></tr>
  </table>
  %s
  <h3>Pickup code</h3>
  <p>Present this code when collecting your order.</p>
  <img src="cid:qrcode.png" alt="QR Code" width="200" height="200" />
</body>
</html>`,
		c.OrderNumber, items.String(), c.Subtotal, c.Tax, c.Total, pickup)
}
