package service

import (
	"fmt"
	"strings"

	"github.com/rlagura/transferbot/internal/domain"
)

// Action is an inline affordance offered on a claim card.
type Action struct {
	Label string
	Data  string
}

// Card is the rendered, gateway-agnostic content of a claim card. Text is
// Markdown; the gateway decides whether it becomes a caption or a message body.
type Card struct {
	Text    string
	Actions []Action
}

// RejectionPrompt instructs an approver to reply with a rejection reason,
// addressed at the claim card.
type RejectionPrompt struct {
	ClaimID string
	CardRef domain.MessageRef
	Text    string
}

func pendingCard(c domain.Claim) Card {
	text := fmt.Sprintf("🔄 *Transfer Claim*\n*ID:* `%s`\n*Claimant:* %s\n*Transferred from:* %s\n*Leaders:* review below",
		c.ID, escapeHandle(c.Claimant), escapeHandle(c.TransferredFrom))
	return Card{
		Text: text,
		Actions: []Action{
			{Label: "✅ Approve", Data: "approve:" + c.ID},
			{Label: "❌ Reject", Data: "reject:" + c.ID},
		},
	}
}

func approvedCard(c domain.Claim) Card {
	text := fmt.Sprintf("✅ *Transfer Claim — APPROVED*\n*ID:* `%s`\n*Claimant:* %s\n*Transferred from:* %s\n*By leader:* %s",
		c.ID, escapeHandle(c.Claimant), escapeHandle(c.TransferredFrom), escapeHandle(c.DecidedBy))
	return Card{Text: text}
}

func rejectedCard(c domain.Claim) Card {
	text := fmt.Sprintf("❌ *Transfer Claim — REJECTED*\n*ID:* `%s`\n*Claimant:* %s\n*Transferred from:* %s\n*Reason:* %s",
		c.ID, escapeHandle(c.Claimant), escapeHandle(c.TransferredFrom), c.RejectionReason)
	return Card{Text: text}
}

// escapeHandle keeps underscores in @handles from being read as Markdown
// italics.
func escapeHandle(s string) string {
	return strings.ReplaceAll(s, "_", `\_`)
}
