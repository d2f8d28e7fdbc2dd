package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"water_billing_service/internal/domain/notification"
)

type PostgresRecipientRepository struct {
	db *sql.DB
}

func NewPostgresRecipientRepository(db *sql.DB) *PostgresRecipientRepository {
	return &PostgresRecipientRepository{db: db}
}

// ListDueReturnsRecipients loads the contacts of every licence with a return
// log due on dueDate and reduces them to one Recipient per contact.
func (r *PostgresRecipientRepository) ListDueReturnsRecipients(ctx context.Context, dueDate time.Time) ([]*notification.Recipient, error) {
	query := `SELECT lc.licence_ref, lc.contact_type,
                      COALESCE(lc.name, ''), COALESCE(lc.email, ''),
                      COALESCE(lc.address_line_1, ''), COALESCE(lc.address_line_2, ''),
                      COALESCE(lc.address_line_3, ''), COALESCE(lc.address_line_4, ''),
                      COALESCE(lc.town, ''), COALESCE(lc.county, ''),
                      COALESCE(lc.postcode, ''), COALESCE(lc.country, '')
               FROM licence_contacts lc
               WHERE lc.licence_ref IN (
                 SELECT DISTINCT rl.licence_ref FROM return_logs rl
                 WHERE rl.due_date = $1 AND rl.status = 'due'
               )
               ORDER BY lc.licence_ref, lc.contact_type`
	rows, err := r.db.QueryContext(ctx, query, dueDate)
	if err != nil {
		return nil, fmt.Errorf("error querying returns notice contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]notification.LicenceContact, 0)
	for rows.Next() {
		var (
			c                   notification.LicenceContact
			line1, line2, line3 string
			line4, town, county string
		)
		if err := rows.Scan(
			&c.LicenceRef, &c.ContactType, &c.Name, &c.Email,
			&line1, &line2, &line3, &line4, &town, &county,
			&c.Postcode, &c.Country,
		); err != nil {
			return nil, fmt.Errorf("error scanning returns notice contact: %w", err)
		}
		c.AddressLines = nonEmpty(line1, line2, line3, line4, town, county)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating returns notice contacts: %w", err)
	}

	return notification.BuildRecipients(contacts), nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
