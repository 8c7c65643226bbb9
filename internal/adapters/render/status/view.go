package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

type RenderOptions struct {
	Now time.Time
}

func renderView(state *domain.State, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Bluesky Accounts"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(state.Accounts))),
	}

	if len(state.Accounts) == 0 {
		lines = append(lines, s.empty.Render("No stored accounts. Run `bsky login` first."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, account := range state.Accounts {
		active := account.DID == state.Current.DID && state.Current.DID != ""
		lines = append(lines, s.section.Render(renderAccount(account, active, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(account domain.Account, active bool, opts RenderOptions, s styles) string {
	parts := []string{accountTitle(account, active, s)}
	parts = append(parts,
		fieldLine("service", serviceLabel(account), s),
		fieldLine("session", sessionLabel(account, opts.Now, s), s),
	)
	if account.Email != "" {
		parts = append(parts, fieldLine("email", emailLabel(account, s), s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func accountTitle(account domain.Account, active bool, s styles) string {
	handle := strings.TrimSpace(account.Handle)
	if handle == "" {
		handle = string(account.DID)
	}

	title := fmt.Sprintf("%s (%s)", handle, account.DID)
	if active {
		return lipgloss.JoinHorizontal(lipgloss.Top, s.current.Render("* "), s.account.Render(title), s.current.Render("  [current]"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, "  ", s.account.Render(title))
}

func fieldLine(key, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, "    ", s.fieldKey.Render(key+": "), value)
}

func serviceLabel(account domain.Account) string {
	label := strings.TrimRight(account.Service, "/")
	if account.PDSURL != "" {
		label += fmt.Sprintf(" (pds %s)", strings.TrimRight(account.PDSURL, "/"))
	}

	return label
}

func sessionLabel(account domain.Account, now time.Time, s styles) string {
	switch {
	case account.Deactivated:
		return s.deactivated.Render("deactivated")
	case !account.SignedIn():
		return s.fieldFaint.Render("signed out")
	case !now.IsZero() && domain.IsSessionExpired(account, now):
		return s.warning.Render("token expired (refresh on next use)")
	case !now.IsZero():
		return s.positive.Render("signed in") + " " + s.fieldFaint.Render(fmt.Sprintf("(%s)", expiryLabel(account, now)))
	default:
		return s.positive.Render("signed in")
	}
}

func emailLabel(account domain.Account, s styles) string {
	if account.EmailConfirmed {
		return account.Email
	}

	return account.Email + " " + s.warning.Render("[unconfirmed]")
}

func expiryLabel(account domain.Account, now time.Time) string {
	expiry, ok := domain.SessionExpiry(account)
	if !ok {
		return "token lifetime unknown"
	}

	remaining := expiry.Sub(now)
	if remaining < time.Minute {
		return "token expires within a minute"
	}
	if remaining < time.Hour {
		minutes := int(math.Ceil(remaining.Minutes()))
		return fmt.Sprintf("token expires in %d min", minutes)
	}

	hours := int(math.Ceil(remaining.Hours()))
	if hours == 1 {
		return "token expires in 1 hour"
	}
	return fmt.Sprintf("token expires in %d hours", hours)
}
