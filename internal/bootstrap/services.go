package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nordtolk/booking-api/config"
	"github.com/nordtolk/booking-api/internal/adapters/mailrelay"
	"github.com/nordtolk/booking-api/internal/adapters/onesignal"
	"github.com/nordtolk/booking-api/internal/adapters/smsgw"
	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/data"
	"github.com/nordtolk/booking-api/internal/service"
	"github.com/nordtolk/booking-api/internal/service/dispatch"
)

// Services holds the wired application services.
type Services struct {
	Booking    *service.BookingService
	Lifecycle  *service.LifecycleService
	Assignment *service.AssignmentService
	Sweeper    *service.SweeperService
	Dispatcher *dispatch.Dispatcher
}

// NewServices wires repositories, delivery gateways and services. Gateways
// without credentials fall back to log-only senders so the rest of the
// application keeps working in development.
func NewServices(cfg config.AppConfig, db *sql.DB, cache redis.UniversalClient, logger *slog.Logger) *Services {
	bookings := data.NewBookingRepo(db)
	relations := data.NewRelationRepo(db)
	directory := data.NewDirectoryRepo(db)
	languages := data.NewLanguageRepo(db, cache)
	clock := &data.RealTimeProvider{}

	var push core.PushGateway
	if cfg.Push.Enabled() {
		push = onesignal.NewClient(onesignal.Options{
			AppID:    cfg.Push.AppID,
			RESTKey:  cfg.Push.RESTKey,
			Endpoint: cfg.Push.Endpoint,
			Logger:   logger.With("component", "onesignal"),
		})
	} else {
		logger.Warn("push credentials missing, notifications will only be logged")
		push = logPushGateway{logger: logger}
	}

	var mailer core.Mailer
	if cfg.Mail.Enabled() {
		mailer = mailrelay.NewClient(mailrelay.Options{
			Endpoint:  cfg.Mail.Endpoint,
			APIKey:    cfg.Mail.APIKey,
			FromEmail: cfg.Mail.FromEmail,
			FromName:  cfg.Mail.FromName,
			Logger:    logger.With("component", "mailrelay"),
		})
	} else {
		logger.Warn("mail relay not configured, emails will only be logged")
		mailer = logMailer{logger: logger}
	}

	var sms core.SMSGateway
	if cfg.SMS.Enabled() {
		sms = smsgw.NewClient(smsgw.Options{
			Endpoint:   cfg.SMS.Endpoint,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
			Logger:     logger.With("component", "smsgw"),
		})
	} else {
		logger.Warn("SMS gateway not configured, text messages will only be logged")
		sms = logSMSGateway{logger: logger}
	}

	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Directory:      directory,
		Languages:      languages,
		Push:           push,
		SMS:            sms,
		Clock:          clock,
		Logger:         logger.With("component", "dispatch"),
		SMSConcurrency: int64(cfg.Notify.SMSConcurrency),
	})

	lifecycle := service.NewLifecycleService(service.LifecycleOptions{
		Jobs:      bookings,
		Relations: relations,
		Directory: directory,
		Languages: languages,
		Mailer:    mailer,
		Notifier:  dispatcher,
		Clock:     clock,
		Logger:    logger.With("component", "lifecycle"),
	})

	assignment := service.NewAssignmentService(service.AssignmentOptions{
		Jobs:      bookings,
		Relations: relations,
		Directory: directory,
		Languages: languages,
		Mailer:    mailer,
		Notifier:  dispatcher,
		Lifecycle: lifecycle,
		Clock:     clock,
		Logger:    logger.With("component", "assignment"),
	})

	booking := service.NewBookingService(service.BookingOptions{
		Jobs:      bookings,
		Directory: directory,
		Mailer:    mailer,
		Notifier:  dispatcher,
		Clock:     clock,
		Logger:    logger.With("component", "booking"),
	})

	sweeper := service.NewSweeperService(service.SweeperOptions{
		Jobs:      bookings,
		Directory: directory,
		Notifier:  dispatcher,
		Clock:     clock,
		Logger:    logger.With("component", "sweeper"),
		Interval:  cfg.Sweeper.Interval,
		BatchSize: cfg.Sweeper.BatchSize,
	})

	return &Services{
		Booking:    booking,
		Lifecycle:  lifecycle,
		Assignment: assignment,
		Sweeper:    sweeper,
		Dispatcher: dispatcher,
	}
}

type logPushGateway struct {
	logger *slog.Logger
}

func (g logPushGateway) SendBatch(ctx context.Context, n core.PushNotification) error {
	g.logger.InfoContext(ctx, "push suppressed",
		"recipients", len(n.Recipients), "title", n.Title, "message", n.Message)
	return nil
}

type logMailer struct {
	logger *slog.Logger
}

func (m logMailer) Send(ctx context.Context, msg core.EmailMessage) error {
	m.logger.InfoContext(ctx, "email suppressed",
		"to", msg.To, "subject", msg.Subject, "template", msg.Template)
	return nil
}

type logSMSGateway struct {
	logger *slog.Logger
}

func (g logSMSGateway) Send(ctx context.Context, to, message string) error {
	g.logger.InfoContext(ctx, "SMS suppressed", "to", to)
	return nil
}
