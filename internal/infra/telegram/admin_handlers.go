package telegram

import (
	"context"
	"errors"
	"fmt"

	"water_billing_service/internal/app"
	idb "water_billing_service/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/reconcile", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/reconcile",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		summary, err := adminService.Reconcile(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Reconciliation failed")
			return c.Send(fmt.Sprintf("Status check failed: %s", err.Error()))
		}

		handlerLogger.WithField("updated", summary.Updated).Info("Reconciliation run from Telegram")
		return c.Send(formatReconcileSummary(summary))
	})

	b.Handle("/licence_flags", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/licence_flags",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		// Expected format: /licence_flags <licence-id>
		if len(args) != 1 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /licence_flags <licence-id>")
		}
		licenceID := args[0]
		handlerLogger = handlerLogger.WithField("licence_id", licenceID)

		report, err := adminService.LicenceFlags(ctx, c.Sender().ID, licenceID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, idb.ErrLicenceNotFound):
				logWithError.Warn("Licence not found")
				return c.Send(fmt.Sprintf("No licence found with id %s.", licenceID))
			default:
				logWithError.Error("Failed to read licence flags")
				return c.Send(fmt.Sprintf("Could not read licence flags: %s", err.Error()))
			}
		}
		return c.Send(formatLicenceFlags(report))
	})

	b.Handle("/event", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/event",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid format. Use: /event <event-id>")
		}
		eventID := args[0]

		event, err := adminService.EventSummary(ctx, c.Sender().ID, eventID)
		if err != nil {
			if errors.Is(err, idb.ErrEventNotFound) {
				return c.Send(fmt.Sprintf("No notice event found with id %s.", eventID))
			}
			handlerLogger.WithError(err).Error("Failed to read event")
			return c.Send(fmt.Sprintf("Could not read the event: %s", err.Error()))
		}
		return c.Send(formatEvent(event), refreshMarkup(event.ID))
	})
}
