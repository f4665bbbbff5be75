package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/paydesk/paydesk/internal/query"
)

var ticketColumnList = []string{
	"id", "merchant_id", "subject", "description", "priority", "status",
	"category", "assigned_to", "resolved_at", "created_at", "updated_at",
}

var ticketColumns = strings.Join(ticketColumnList, ", ")

const responseColumns = `id, ticket_id, response_text, is_staff_response, responder_name, responder_email, created_at`

// TicketUpdate is the allow-list for support ticket edits.
var TicketUpdate = &query.Update{
	Table: "support_tickets",
	Key:   "id",
	Columns: []query.Column{
		{Name: "subject", Kind: query.Text},
		{Name: "description", Kind: query.Text},
		{Name: "priority", Kind: query.Enum, Values: TicketPriorities},
		{Name: "status", Kind: query.Enum, Values: TicketStatuses},
		{Name: "category", Kind: query.Text, Nullable: true},
		{Name: "assigned_to", Kind: query.Text, Nullable: true},
	},
}

func ticketDest(t *SupportTicket) []any {
	return []any{&t.ID, &t.MerchantID, &t.Subject, &t.Description, &t.Priority, &t.Status,
		&t.Category, &t.AssignedTo, &t.ResolvedAt, &t.CreatedAt, &t.UpdatedAt}
}

func scanTicketRow(s scanner) (SupportTicket, error) {
	var t SupportTicket
	dest := append(ticketDest(&t), &t.BusinessName, &t.ContactName, &t.MerchantEmail)
	err := s.Scan(dest...)
	return t, err
}

// CreateTicket inserts a support ticket. The merchant is not looked up
// first; a dangling merchant_id surfaces as ErrForeignKey.
func (db *DB) CreateTicket(ctx context.Context, t SupportTicket) (SupportTicket, error) {
	now := db.now()
	t.ID = newID()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Priority == "" {
		t.Priority = DefaultTicketPriority
	}
	if t.Status == "" {
		t.Status = DefaultTicketStatus
	}
	if t.Status == "resolved" && t.ResolvedAt == nil {
		t.ResolvedAt = &now
	}
	_, err := db.exec(ctx,
		`INSERT INTO support_tickets (`+ticketColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MerchantID, t.Subject, t.Description, t.Priority, t.Status,
		t.Category, t.AssignedTo, t.ResolvedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return SupportTicket{}, fmt.Errorf("create ticket: %w", err)
	}
	return t, nil
}

// TicketByID returns the ticket with merchant fields and its responses in
// creation order.
func (db *DB) TicketByID(ctx context.Context, id string) (SupportTicket, error) {
	q := `SELECT ` + strings.Join(TicketList.Columns, ", ") + ` FROM ` + TicketList.From + ` WHERE st.id = ?`
	t, err := scanTicketRow(db.queryRow(ctx, q, id))
	if err != nil {
		return SupportTicket{}, notFound(err, "support ticket")
	}

	rows, err := db.query(ctx,
		`SELECT `+responseColumns+` FROM support_responses WHERE ticket_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return SupportTicket{}, fmt.Errorf("ticket responses: %w", err)
	}
	defer rows.Close()
	t.Responses = []SupportResponse{}
	for rows.Next() {
		var r SupportResponse
		if err := rows.Scan(&r.ID, &r.TicketID, &r.ResponseText, &r.IsStaffResponse,
			&r.ResponderName, &r.ResponderEmail, &r.CreatedAt); err != nil {
			return SupportTicket{}, err
		}
		t.Responses = append(t.Responses, r)
	}
	return t, rows.Err()
}

func (db *DB) ticketStatus(ctx context.Context, id string) (string, error) {
	var status string
	if err := db.queryRow(ctx, `SELECT status FROM support_tickets WHERE id = ?`, id).Scan(&status); err != nil {
		return "", notFound(err, "support ticket")
	}
	return status, nil
}

// UpdateTicket applies set and returns the previous status and the
// updated ticket. Moving to resolved stamps resolved_at.
func (db *DB) UpdateTicket(ctx context.Context, id string, set []query.Assignment) (string, SupportTicket, error) {
	prev, err := db.ticketStatus(ctx, id)
	if err != nil {
		return "", SupportTicket{}, err
	}
	now := db.now()
	if v, ok := query.Lookup(set, "status"); ok && v == "resolved" && prev != "resolved" {
		set = append(set, query.Assignment{Column: "resolved_at", Value: now})
	}
	set = append(set, query.Assignment{Column: "updated_at", Value: now})

	q, args, err := TicketUpdate.Build(db.dialect, set, id)
	if err != nil {
		return "", SupportTicket{}, err
	}
	res, err := db.exec(ctx, q, args...)
	if err != nil {
		return "", SupportTicket{}, fmt.Errorf("update ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", SupportTicket{}, fmt.Errorf("support ticket: %w", ErrNotFound)
	}
	t, err := db.TicketByID(ctx, id)
	return prev, t, err
}

// AddResponse appends a response to the ticket and bumps its updated_at.
// Both writes commit together.
func (db *DB) AddResponse(ctx context.Context, r SupportResponse) (SupportResponse, error) {
	if _, err := db.ticketStatus(ctx, r.TicketID); err != nil {
		return SupportResponse{}, err
	}
	now := db.now()
	r.ID = newID()
	r.CreatedAt = now
	err := db.withTx(ctx, func(exec execFunc) error {
		if _, err := exec(`INSERT INTO support_responses (`+responseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.TicketID, r.ResponseText, r.IsStaffResponse, r.ResponderName, r.ResponderEmail, r.CreatedAt); err != nil {
			return fmt.Errorf("add response: %w", err)
		}
		if _, err := exec(`UPDATE support_tickets SET updated_at = ? WHERE id = ?`, now, r.TicketID); err != nil {
			return fmt.Errorf("touch ticket: %w", err)
		}
		return nil
	})
	if err != nil {
		return SupportResponse{}, err
	}
	return r, nil
}

// ListTickets returns one filtered page of tickets.
func (db *DB) ListTickets(ctx context.Context, p query.Params) (Page[SupportTicket], error) {
	return list(ctx, db, TicketList, p, scanTicketRow)
}
