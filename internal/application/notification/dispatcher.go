package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
)

// Broadcaster pushes a notification to every subscriber of a topic and
// reports what happened.
type Broadcaster interface {
	Name() string
	Publish(ctx context.Context, topic string, n *domain.Notification) (domain.DeliveryReport, error)
}

// SMSSender delivers text messages for notifications on the sms channel.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type accountGetter interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

// Dispatcher fans one notification out to every broadcaster in parallel and
// sums their reports. A failing channel is logged and counted, never fatal.
type Dispatcher struct {
	broadcasters []Broadcaster
	sms          SMSSender
	accounts     accountGetter
	log          *logger.Logger
}

func NewDispatcher(log *logger.Logger, accounts accountGetter, sms SMSSender, broadcasters ...Broadcaster) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{broadcasters: broadcasters, sms: sms, accounts: accounts, log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification) domain.DeliveryReport {
	topic := n.Topic()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		total  domain.DeliveryReport
		failed []error
	)
	for _, b := range d.broadcasters {
		wg.Add(1)
		go func(b Broadcaster) {
			defer wg.Done()
			report, err := b.Publish(ctx, topic, n)
			mu.Lock()
			defer mu.Unlock()
			total = total.Add(report)
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", b.Name(), err))
			}
		}(b)
	}
	wg.Wait()

	if slices.Contains(n.Channels, domain.ChannelSMS) {
		report, err := d.sendSMS(ctx, n)
		total = total.Add(report)
		if err != nil {
			failed = append(failed, fmt.Errorf("sms: %w", err))
		}
	}

	if err := errors.Join(failed...); err != nil {
		d.log.Warn().Err(err).Str("notification_id", n.NotificationID).Str("topic", topic).Msg("broadcast incomplete")
	}
	d.log.Debug().
		Str("notification_id", n.NotificationID).
		Str("topic", topic).
		Int("sent", total.Sent).
		Int("delivered", total.Delivered).
		Int("failed", total.Failed).
		Msg("notification dispatched")
	return total
}

// sendSMS only applies to notifications addressed to one account with a
// phone number on file.
func (d *Dispatcher) sendSMS(ctx context.Context, n *domain.Notification) (domain.DeliveryReport, error) {
	if d.sms == nil || n.Target != domain.TargetSpecificUser || n.TargetID == nil {
		return domain.DeliveryReport{}, nil
	}
	a, err := d.accounts.Get(ctx, *n.TargetID)
	if err != nil {
		return domain.DeliveryReport{Failed: 1}, err
	}
	if a.PhoneNumber == nil || *a.PhoneNumber == "" {
		return domain.DeliveryReport{}, nil
	}
	if err := d.sms.SendSMS(ctx, *a.PhoneNumber, n.Title+": "+n.Message); err != nil {
		return domain.DeliveryReport{Sent: 1, Failed: 1}, err
	}
	return domain.DeliveryReport{Sent: 1, Pending: 1}, nil
}
