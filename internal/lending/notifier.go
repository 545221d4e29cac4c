package lending

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erazemk/posoja/internal/model"
)

// Notifier narrates loan changes into the loan's conversation as system messages.
type Notifier struct {
	Chat   ChatStore
	Books  BookCatalog
	Users  UserDirectory
	Logger *slog.Logger
}

// NewNotifier creates a Notifier that logs through the default logger.
func NewNotifier(chat ChatStore, books BookCatalog, users UserDirectory) *Notifier {
	return &Notifier{Chat: chat, Books: books, Users: users}
}

func (n *Notifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// LoanChanged writes one message describing ev. Failures are logged and dropped.
func (n *Notifier) LoanChanged(ctx context.Context, ev Event) {
	body, kind := n.describe(ctx, ev)
	if body == "" {
		return
	}
	if _, err := n.Chat.AppendMessage(ctx, ev.Loan.ID, nil, body, kind); err != nil {
		n.logger().Error("failed to post loan notification",
			"loan", ev.Loan.ID, "event", ev.Kind, "error", err)
	}
}

func (n *Notifier) describe(ctx context.Context, ev Event) (string, string) {
	if ev.Kind == EventDueDateSet {
		if ev.Loan.DueAt == nil {
			return "", ""
		}
		return "Due date set to " + ev.Loan.DueAt.Format("2006-01-02"), model.MessageSystem
	}

	title := n.title(ctx, ev.Loan)
	var body string
	switch ev.To {
	case model.LoanRequested:
		body = fmt.Sprintf("Loan of %q requested", title)
	case model.LoanApproved:
		body = fmt.Sprintf("Loan of %q approved", title)
	case model.LoanActive:
		body = fmt.Sprintf("%q handed over", title)
	case model.LoanReturned:
		body = fmt.Sprintf("%q returned", title)
	case model.LoanCanceled:
		body = fmt.Sprintf("Loan of %q canceled", title)
	default:
		return "", ""
	}
	if name := n.actor(ctx, ev.ActorID); name != "" {
		body += " by " + name
	}
	return body, model.MessageStatus
}

// actor returns the actor's username, or "" if it cannot be resolved.
func (n *Notifier) actor(ctx context.Context, userID int64) string {
	if n.Users == nil || userID == 0 {
		return ""
	}
	name, err := n.Users.UserName(ctx, userID)
	if err != nil {
		n.logger().Warn("failed to resolve loan actor", "user", userID, "error", err)
		return ""
	}
	return name
}

func (n *Notifier) title(ctx context.Context, l model.Loan) string {
	if l.BookTitle != "" {
		return l.BookTitle
	}
	if n.Books != nil {
		if t, err := n.Books.BookTitle(ctx, l.BookID); err == nil {
			return t
		}
	}
	return "book"
}
