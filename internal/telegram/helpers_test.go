package telegram

import (
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/rlagura/transferbot/internal/domain"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text string
		cmd  string
		arg  string
		ok   bool
	}{
		{"/transfer @alice", "transfer", "@alice", true},
		{"/transfer@MyBot @alice", "transfer", "@alice", true},
		{"/transfer", "transfer", "", true},
		{"/transfer @alice extra words", "transfer", "@alice", true},
		{"/start", "start", "", true},
		{"plain text", "", "", false},
		{"", "", "", false},
		{"/", "", "", false},
	}

	for _, tc := range cases {
		cmd, arg, ok := parseCommand(tc.text)
		if cmd != tc.cmd || arg != tc.arg || ok != tc.ok {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.text, cmd, arg, ok, tc.cmd, tc.arg, tc.ok)
		}
	}
}

func TestParseAction(t *testing.T) {
	cases := []struct {
		data    string
		action  string
		claimID string
		ok      bool
	}{
		{"approve:TR-20250101-AAAAAA", "approve", "TR-20250101-AAAAAA", true},
		{"reject:TR-20250101-AAAAAA", "reject", "TR-20250101-AAAAAA", true},
		{"approve:", "", "", false},
		{"approve", "", "", false},
		{"delete:TR-20250101-AAAAAA", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range cases {
		action, claimID, ok := parseAction(tc.data)
		if action != tc.action || claimID != tc.claimID || ok != tc.ok {
			t.Errorf("parseAction(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.data, action, claimID, ok, tc.action, tc.claimID, tc.ok)
		}
	}
}

func TestDisplayHandle(t *testing.T) {
	if got := displayHandle(&models.User{Username: "alice", FirstName: "Alice"}); got != "@alice" {
		t.Errorf("expected @alice, got %q", got)
	}
	if got := displayHandle(&models.User{FirstName: "Alice"}); got != "Alice" {
		t.Errorf("expected first-name fallback, got %q", got)
	}
	if got := displayHandle(nil); got != "" {
		t.Errorf("expected empty handle for nil user, got %q", got)
	}
}

func TestEvidenceKind(t *testing.T) {
	photo := &models.Message{Photo: []models.PhotoSize{{FileID: "x"}}}
	if evidenceKind(photo) != domain.EvidencePhoto {
		t.Error("expected photo evidence")
	}

	doc := &models.Message{Document: &models.Document{FileID: "y"}}
	if evidenceKind(doc) != domain.EvidenceDocument {
		t.Error("expected document evidence")
	}

	if evidenceKind(&models.Message{Text: "hi"}) != domain.EvidenceNone {
		t.Error("expected no evidence for a text message")
	}
}

func TestMemberUser(t *testing.T) {
	owner := models.ChatMember{Owner: &models.ChatMemberOwner{User: &models.User{ID: 1}}}
	if u := memberUser(owner); u == nil || u.ID != 1 {
		t.Error("expected owner user")
	}

	admin := models.ChatMember{Administrator: &models.ChatMemberAdministrator{User: models.User{ID: 2}}}
	if u := memberUser(admin); u == nil || u.ID != 2 {
		t.Error("expected administrator user")
	}

	if memberUser(models.ChatMember{}) != nil {
		t.Error("expected nil for a plain member")
	}
}
