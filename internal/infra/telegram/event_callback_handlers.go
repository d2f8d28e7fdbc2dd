// internal/infra/telegram/event_callback_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"water_billing_service/internal/app"
	idb "water_billing_service/internal/infra/database"

	"gopkg.in/telebot.v3"
)

func RegisterEventCallbackHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimSpace(c.Callback().Data)

		if strings.HasPrefix(data, refreshCallbackPrefix) {
			eventID := strings.TrimPrefix(data, refreshCallbackPrefix) // evt_refresh_<uuid>
			if eventID == "" {
				c.Bot().OnError(fmt.Errorf("invalid callback data format for refresh: %s", data), c)
				return c.Respond(&telebot.CallbackResponse{Text: "Could not read the request."})
			}

			event, err := adminService.RefreshEvent(ctx, c.Sender().ID, eventID)
			if err != nil {
				switch {
				case errors.Is(err, app.ErrAdminNotAuthorized):
					return c.Respond(&telebot.CallbackResponse{Text: "You are not allowed to do this."})
				case errors.Is(err, idb.ErrEventNotFound):
					return c.Respond(&telebot.CallbackResponse{Text: "Notice event not found."})
				}
				c.Bot().OnError(fmt.Errorf("error refreshing event %s: %w", eventID, err), c)
				return c.Respond(&telebot.CallbackResponse{Text: "Refresh failed."})
			}

			if err := c.Edit(formatEvent(event), refreshMarkup(event.ID)); err != nil && !errors.Is(err, telebot.ErrSameMessageContent) {
				c.Bot().OnError(fmt.Errorf("error updating event message: %w", err), c)
			}
			return c.Respond(&telebot.CallbackResponse{Text: "Statuses refreshed."})
		}

		// Fallback for unhandled callbacks by this specific handler.
		c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
	})
}
