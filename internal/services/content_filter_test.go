package services

import (
	"errors"
	"testing"
)

func TestContentFilter(t *testing.T) {
	f := NewContentFilter()
	tests := []struct {
		name       string
		text       string
		wantReason string
	}{
		{"empty", "", ""},
		{"plain description", "Overflowing bin next to the tram stop at Korenmarkt", ""},
		{"word inside another word", "Lots of grass clippings and a broken glass bottle", ""},
		{"profanity", "This shit is everywhere", "inappropriate_language"},
		{"dutch profanity", "Wat een klootzak heeft dit gedumpt", "inappropriate_language"},
		{"url", "see https://example.com/pics", "url_not_allowed"},
		{"email", "mail me at jan@gent.be", "contact_info_not_allowed"},
		{"belgian mobile", "bel 0475 12 34 56", "contact_info_not_allowed"},
		{"repeated", "helppppp!!!!!!", "spam_detected"},
		{"caps", "HUGE GARBAGE PILE NEAR THE BRIDGE AGAIN", "excessive_caps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Check(tt.text)
			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("Check(%q) = %v, want nil", tt.text, err)
				}
				return
			}
			var rej *ContentRejection
			if !errors.As(err, &rej) {
				t.Fatalf("Check(%q) = %v, want ContentRejection", tt.text, err)
			}
			if rej.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", rej.Reason, tt.wantReason)
			}
			if !errors.Is(err, ErrContentRejected) {
				t.Error("rejection should wrap ErrContentRejected")
			}
			if rej.Message() == "" {
				t.Error("empty rejection message")
			}
		})
	}
}
