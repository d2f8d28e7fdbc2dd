package telegram

import (
	"fmt"
	"strings"

	"water_billing_service/internal/app"
	"water_billing_service/internal/domain/notification"

	"gopkg.in/telebot.v3"
)

const refreshCallbackPrefix = "evt_refresh_"

func formatReconcileSummary(s app.ReconcileSummary) string {
	return fmt.Sprintf("Status check finished.\nEvents: %d\nChecked: %d\nUpdated: %d\nUnchanged: %d",
		s.Events, s.Checked, s.Updated, s.Skipped)
}

func formatLicenceFlags(r *app.LicenceFlagsReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Licence %s\n", r.Licence.LicenceRef)
	fmt.Fprintf(&b, "Pre-SROC supplementary: %s\n", yesNo(bool(r.Licence.IncludeInPresrocBilling)))
	fmt.Fprintf(&b, "SROC supplementary: %s\n", yesNo(r.Licence.IncludeInSrocBilling))

	if len(r.Years) == 0 {
		b.WriteString("Two-part tariff years: none")
		return b.String()
	}
	b.WriteString("Two-part tariff years:")
	for _, y := range r.Years {
		if !y.TwoPartTariff {
			continue
		}
		state := "waiting"
		if y.BillRunID != nil {
			state = "billed"
		}
		fmt.Fprintf(&b, "\n - %d-%02d (%s)", y.FinancialYearEnd-1, y.FinancialYearEnd%100, state)
	}
	return b.String()
}

func formatEvent(e *notification.Event) string {
	return fmt.Sprintf("Notice %s (%s)\nStatus: %s\nRecipients: %d\nSent: %d\nSending: %d\nError: %d",
		e.ReferenceCode, e.Subtype, e.Status, e.RecipientCount, e.SentCount, e.PendingCount, e.ErrorCount)
}

func refreshMarkup(eventID string) *telebot.ReplyMarkup {
	btn := telebot.InlineButton{Text: "Refresh statuses", Data: refreshCallbackPrefix + eventID}
	return &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{{btn}}}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
