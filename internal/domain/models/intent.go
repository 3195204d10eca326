package models

import (
	"fmt"
	"regexp"
	"strings"
)

// IntentType enumerates the auto-reply categories.
type IntentType string

const (
	IntentGreeting    IntentType = "greeting"
	IntentLocation    IntentType = "location"
	IntentBooking     IntentType = "booking"
	IntentOffers      IntentType = "offers"
	IntentSpecialists IntentType = "specialists"
	IntentUnknown     IntentType = "unknown"
)

// ReplyRule pairs a pattern with the reply it selects.
type ReplyRule struct {
	Intent  IntentType
	Pattern *regexp.Regexp
	Reply   string
}

// replyRules are evaluated top to bottom; the first match wins. Each pattern
// accepts English and Arabic keywords. Only the greeting is anchored.
var replyRules = []ReplyRule{
	{
		Intent:  IntentGreeting,
		Pattern: regexp.MustCompile(`^(hi|hello|hey|مرحبا|السلام عليكم)`),
		Reply:   "👋 Hello! Welcome to our service. How can I help you today?",
	},
	{
		Intent:  IntentLocation,
		Pattern: regexp.MustCompile(`location|address|موقع|عنوان`),
		Reply:   "📍 Our location: Amman, Jordan\n\nGoogle Maps: [Add your link here]",
	},
	{
		Intent:  IntentBooking,
		Pattern: regexp.MustCompile(`book|appointment|حجز|موعد`),
		Reply:   "📅 To book an appointment, please call: +962 X XXX XXXX\n\nOr visit our website: [Add your link]",
	},
	{
		Intent:  IntentOffers,
		Pattern: regexp.MustCompile(`offer|deal|عرض|خصم`),
		Reply:   "🎉 Current Offers:\n\n1. Special Discount - 20% OFF\n2. Buy 1 Get 1 Free\n\nValid until [date]",
	},
	{
		Intent:  IntentSpecialists,
		Pattern: regexp.MustCompile(`doctor|specialist|طبيب|دكتور`),
		Reply:   "👨‍⚕️ Our Specialists:\n\n1. Dr. Ahmad - Cardiology\n2. Dr. Sara - Pediatrics\n3. Dr. Omar - General Practice\n\nWould you like to book an appointment?",
	},
}

const fallbackReplyFormat = "✅ Message received: \"%s\"\n\nHow can I assist you?\n\n" +
	"• Say \"location\" for our address\n" +
	"• Say \"book\" to schedule an appointment\n" +
	"• Say \"offers\" to see current deals\n" +
	"• Say \"doctors\" to see our specialists"

// Intent is the outcome of classifying an inbound text.
type Intent struct {
	Type  IntentType
	Raw   string
	Reply string
}

// ClassifyIntent lower-cases text and returns the first matching rule. Text
// matching no rule gets the help message, which quotes the text back.
func ClassifyIntent(text string) Intent {
	normalized := strings.ToLower(text)

	for _, rule := range replyRules {
		if rule.Pattern.MatchString(normalized) {
			return Intent{Type: rule.Intent, Raw: text, Reply: rule.Reply}
		}
	}

	return Intent{
		Type:  IntentUnknown,
		Raw:   text,
		Reply: fmt.Sprintf(fallbackReplyFormat, text),
	}
}
