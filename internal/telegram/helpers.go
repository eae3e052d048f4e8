package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/rlagura/transferbot/internal/domain"
	"github.com/rlagura/transferbot/internal/service"
)

// parseCommand extracts a bot command and its first argument from message
// text. "/transfer@SomeBot @alice extra" yields ("transfer", "@alice", true).
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(text)
	cmd = strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", "", false
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg, true
}

// parseAction splits inline callback data of the form "approve:<id>" or
// "reject:<id>".
func parseAction(data string) (action, claimID string, ok bool) {
	action, claimID, found := strings.Cut(data, ":")
	if !found || claimID == "" {
		return "", "", false
	}
	if action != "approve" && action != "reject" {
		return "", "", false
	}
	return action, claimID, true
}

// displayHandle renders a user the way cards and ledger rows name people:
// @username when set, first name otherwise.
func displayHandle(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

func evidenceKind(msg *models.Message) domain.EvidenceKind {
	switch {
	case len(msg.Photo) > 0:
		return domain.EvidencePhoto
	case msg.Document != nil:
		return domain.EvidenceDocument
	default:
		return domain.EvidenceNone
	}
}

func inlineKeyboard(actions []service.Action) *models.InlineKeyboardMarkup {
	if len(actions) == 0 {
		return nil
	}
	row := make([]models.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		row = append(row, models.InlineKeyboardButton{Text: a.Label, CallbackData: a.Data})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}

func memberUser(m models.ChatMember) *models.User {
	switch {
	case m.Owner != nil:
		return m.Owner.User
	case m.Administrator != nil:
		return &m.Administrator.User
	default:
		return nil
	}
}
