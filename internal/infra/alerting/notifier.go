// internal/infra/alerting/notifier.go
package alerting

import (
	"fmt"
	"sort"
	"strings"

	domainTelegram "water_billing_service/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Notifier reports operational events. Notify is informational; Alert is
// for failures someone should look at.
type Notifier interface {
	Notify(message string, fields logrus.Fields)
	Alert(message string, fields logrus.Fields, err error)
}

// LogNotifier writes to the log and, when a Telegram client is configured,
// forwards alerts to the admin chat.
type LogNotifier struct {
	logger   *logrus.Entry
	telegram domainTelegram.Client
	adminID  int64
}

// NewLogNotifier builds a notifier. tg may be nil.
func NewLogNotifier(logger *logrus.Entry, tg domainTelegram.Client, adminID int64) *LogNotifier {
	return &LogNotifier{logger: logger, telegram: tg, adminID: adminID}
}

func (n *LogNotifier) Notify(message string, fields logrus.Fields) {
	n.logger.WithFields(fields).Info(message)
}

func (n *LogNotifier) Alert(message string, fields logrus.Fields, err error) {
	entry := n.logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)

	if n.telegram == nil || n.adminID == 0 {
		return
	}
	text := formatAlert(message, fields, err)
	if sendErr := n.telegram.SendMessage(n.adminID, text, &telebot.SendOptions{DisableWebPagePreview: true}); sendErr != nil {
		n.logger.WithError(sendErr).Warn("Failed to forward alert to Telegram")
	}
}

func formatAlert(message string, fields logrus.Fields, err error) string {
	var b strings.Builder
	b.WriteString("ALERT: ")
	b.WriteString(message)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, fields[k])
	}
	if err != nil {
		fmt.Fprintf(&b, "\nerror: %v", err)
	}
	return b.String()
}
