package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
	"github.com/ctrdhq/account-directory-server/internal/module/account"
	"github.com/ctrdhq/account-directory-server/package/resend"
	"github.com/ctrdhq/account-directory-server/package/twilio"
)

// OTPDeliverer pushes a challenge code to the channel an identifier
// implies. Delivery happens before the code is persisted, so a failed
// send leaves no pending challenge behind. Supports reports whether
// the deliverer can reach identifiers of the given kind, letting
// callers decide before any state is written.
type OTPDeliverer interface {
	Supports(kind account.IdentifierKind) bool
	DeliverOTP(ctx context.Context, identifier account.Identifier, code string, ttl time.Duration) (string, error)
}

type emailOTPDeliverer struct {
	resendService resend.ResendService
	fromAddress   string
	fromName      string
}

func NewEmailOTPDeliverer(resendService resend.ResendService, fromAddress, fromName string) OTPDeliverer {
	return &emailOTPDeliverer{
		resendService: resendService,
		fromAddress:   fromAddress,
		fromName:      fromName,
	}
}

func (d *emailOTPDeliverer) Supports(kind account.IdentifierKind) bool {
	return kind == account.IdentifierEmail
}

func (d *emailOTPDeliverer) DeliverOTP(ctx context.Context, identifier account.Identifier, code string, ttl time.Duration) (string, error) {
	if !d.Supports(identifier.Kind) {
		return "", apperror.Dependency(
			fmt.Sprintf("no delivery channel configured for %s identifiers", identifier.Kind), nil)
	}

	from := d.fromAddress
	if d.fromName != "" {
		from = fmt.Sprintf("%s <%s>", d.fromName, d.fromAddress)
	}

	minutes := int(ttl.Minutes())
	_, err := d.resendService.SendEmail(ctx, &resend.EmailRequest{
		From:    from,
		To:      []string{identifier.Value},
		Subject: "Your verification code",
		Html: fmt.Sprintf(
			`<p>Your verification code is:</p><h2 style="letter-spacing:4px">%s</h2><p>The code expires in %d minutes. If you did not request it, ignore this email.</p>`,
			code, minutes),
		Text: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
	})
	if err != nil {
		return "", apperror.Dependency("failed to deliver verification code", err)
	}

	return identifier.Value, nil
}

type smsOTPDeliverer struct {
	smsService twilio.TwilioService
}

func NewSMSOTPDeliverer(smsService twilio.TwilioService) OTPDeliverer {
	return &smsOTPDeliverer{smsService: smsService}
}

func (d *smsOTPDeliverer) Supports(kind account.IdentifierKind) bool {
	return kind == account.IdentifierMobile
}

func (d *smsOTPDeliverer) DeliverOTP(ctx context.Context, identifier account.Identifier, code string, ttl time.Duration) (string, error) {
	if !d.Supports(identifier.Kind) {
		return "", apperror.Dependency(
			fmt.Sprintf("no delivery channel configured for %s identifiers", identifier.Kind), nil)
	}

	minutes := int(ttl.Minutes())
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
	if _, err := d.smsService.SendSMS(ctx, identifier.Value, body); err != nil {
		return "", apperror.Dependency("failed to deliver verification code", err)
	}

	return identifier.Value, nil
}

type channelDeliverer struct {
	channels []OTPDeliverer
}

// NewChannelDeliverer routes each delivery to the first channel that
// supports the identifier's kind.
func NewChannelDeliverer(channels ...OTPDeliverer) OTPDeliverer {
	return &channelDeliverer{channels: channels}
}

func (d *channelDeliverer) Supports(kind account.IdentifierKind) bool {
	for _, channel := range d.channels {
		if channel.Supports(kind) {
			return true
		}
	}
	return false
}

func (d *channelDeliverer) DeliverOTP(ctx context.Context, identifier account.Identifier, code string, ttl time.Duration) (string, error) {
	for _, channel := range d.channels {
		if channel.Supports(identifier.Kind) {
			return channel.DeliverOTP(ctx, identifier, code, ttl)
		}
	}
	return "", apperror.Dependency(
		fmt.Sprintf("no delivery channel configured for %s identifiers", identifier.Kind), nil)
}
