package enums

import "testing"

func TestDeriveDocumentStatus(t *testing.T) {
	cases := []struct {
		name   string
		total  int
		signed int
		want   DocumentStatus
	}{
		{name: "no signatures", total: 0, signed: 0, want: DocumentStatusDraft},
		{name: "none signed", total: 3, signed: 0, want: DocumentStatusSentForSigning},
		{name: "some signed", total: 3, signed: 1, want: DocumentStatusPartiallySigned},
		{name: "all but one", total: 3, signed: 2, want: DocumentStatusPartiallySigned},
		{name: "all signed", total: 3, signed: 3, want: DocumentStatusFullySigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveDocumentStatus(tc.total, tc.signed); got != tc.want {
				t.Fatalf("DeriveDocumentStatus(%d, %d) = %s, want %s", tc.total, tc.signed, got, tc.want)
			}
		})
	}
}

func TestGroupRoleIsAdmin(t *testing.T) {
	if !GroupRoleOwner.IsAdmin() || !GroupRoleAdmin.IsAdmin() {
		t.Fatalf("owner and admin should be admins")
	}
	if GroupRoleMember.IsAdmin() {
		t.Fatalf("member should not be admin")
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseSigningMode("round_robin"); err == nil {
		t.Fatalf("expected unknown signing mode to fail")
	}
	if _, err := ParseDocumentType("invoice"); err == nil {
		t.Fatalf("expected unknown document type to fail")
	}
	if mode, err := ParseSigningMode("sequential"); err != nil || mode != SigningModeSequential {
		t.Fatalf("expected sequential, got %v %v", mode, err)
	}
}

func TestParseNotificationType(t *testing.T) {
	got, err := ParseNotificationType("signature_requested")
	if err != nil || got != NotificationTypeSignatureRequested {
		t.Fatalf("expected signature_requested, got %v %v", got, err)
	}
	if NotificationType("order_alert").IsValid() {
		t.Fatalf("order_alert is not an inbox type")
	}
}
