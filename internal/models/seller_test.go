package models

import "testing"

func TestPublicBadgesMergesVerified(t *testing.T) {
	s := Seller{Badges: []string{BadgeTrusted, BadgeHighVolume}}

	badges := s.PublicBadges()
	if len(badges) != 2 {
		t.Fatalf("expected 2 badges, got %v", badges)
	}

	s.IsVerified = true
	badges = s.PublicBadges()
	if len(badges) != 3 || badges[2] != BadgeVerified {
		t.Fatalf("expected verified appended, got %v", badges)
	}

	// Derived badges stay untouched.
	if len(s.Badges) != 2 {
		t.Fatalf("PublicBadges mutated the stored badges: %v", s.Badges)
	}
}
