package services

import (
	"errors"
	"regexp"
)

// ErrContentRejected wraps a ContentRejection when free text fails the filter.
var ErrContentRejected = errors.New("content rejected")

var BannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot",
	"retard", "tranny",
	"porn", "porno", "nude", "nudes",
	"kut", "klootzak", "hoer", "kanker", "mongool",
	"scam", "phishing", "malware",
}

type ContentRejection struct {
	Reason string
}

func (r *ContentRejection) Error() string {
	return ErrContentRejected.Error() + ": " + r.Reason
}

func (r *ContentRejection) Unwrap() error {
	return ErrContentRejected
}

// Message is the user-facing explanation for the rejection.
func (r *ContentRejection) Message() string {
	switch r.Reason {
	case "inappropriate_language":
		return "Your text contains inappropriate language."
	case "url_not_allowed":
		return "URLs and web links are not allowed."
	case "contact_info_not_allowed":
		return "Contact information is not allowed."
	case "spam_detected":
		return "Your text appears to be spam."
	case "excessive_caps":
		return "Please avoid using excessive capital letters."
	}
	return "Your text does not meet our content guidelines."
}

// ContentFilter screens user-written text (report descriptions, event
// descriptions, display names) before it is stored.
type ContentFilter struct {
	bannedWordRegexps   []*regexp.Regexp
	urlPattern          *regexp.Regexp
	emailPattern        *regexp.Regexp
	phonePattern        *regexp.Regexp
	repeatedCharPattern *regexp.Regexp
	allCapsPattern      *regexp.Regexp
}

func NewContentFilter() *ContentFilter {
	f := &ContentFilter{
		bannedWordRegexps:   make([]*regexp.Regexp, 0, len(BannedWords)),
		urlPattern:          regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`),
		emailPattern:        regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		phonePattern:        regexp.MustCompile(`(\+32|0)\s?4\d{2}[\s./-]?\d{2}[\s./-]?\d{2}[\s./-]?\d{2}|\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`),
		repeatedCharPattern: regexp.MustCompile(`(?i)(a{5,}|e{5,}|i{5,}|o{5,}|u{5,}|!{5,}|\?{5,}|\.{6,})`),
		allCapsPattern:      regexp.MustCompile(`\b[A-Z]{5,}\b`),
	}
	for _, word := range BannedWords {
		f.bannedWordRegexps = append(f.bannedWordRegexps, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return f
}

// Check returns nil for acceptable text or a *ContentRejection.
func (f *ContentFilter) Check(text string) error {
	if reason := f.reason(text); reason != "" {
		return &ContentRejection{Reason: reason}
	}
	return nil
}

func (f *ContentFilter) reason(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range f.bannedWordRegexps {
		if re.MatchString(text) {
			return "inappropriate_language"
		}
	}
	if f.urlPattern.MatchString(text) {
		return "url_not_allowed"
	}
	if f.emailPattern.MatchString(text) || f.phonePattern.MatchString(text) {
		return "contact_info_not_allowed"
	}
	if f.repeatedCharPattern.MatchString(text) {
		return "spam_detected"
	}
	if len(f.allCapsPattern.FindAllString(text, -1)) > 2 {
		return "excessive_caps"
	}
	return ""
}
