package conversation

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(\+?[\d\s\-\(\)]{10,15})`)

	// Explicit self-introductions are tried before looser patterns.
	priorityNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:my name is|i'm|i am|this is|call me)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
	}
	generalNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bname[:\s]+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
	}
)

// nameFalsePositives are words the name patterns commonly trap that are
// never actual names.
var nameFalsePositives = map[string]bool{
	"interested": true, "looking": true, "calling": true, "here": true,
	"available": true, "ready": true, "good": true, "fine": true,
	"okay": true, "sure": true, "yes": true, "no": true,
	"not": true, "very": true, "really": true, "just": true,
	"going": true, "trying": true, "wondering": true, "thinking": true,
}

// ClientInfo is what can be mined from a single user message.
type ClientInfo struct {
	Name    string
	Email   string
	Phone   string
	Summary string
}

// InfoExtractor pulls contact details and a one-line summary out of
// free text. The operator's own email is never reported as a client's.
type InfoExtractor struct {
	operatorEmail string
}

func NewInfoExtractor(operatorEmail string) *InfoExtractor {
	return &InfoExtractor{operatorEmail: strings.ToLower(operatorEmail)}
}

// Extract scans one user message. All fields are best-effort and may
// be empty.
func (e *InfoExtractor) Extract(text string) ClientInfo {
	return ClientInfo{
		Name:    e.extractName(text),
		Email:   e.extractEmail(text),
		Phone:   e.extractPhone(text),
		Summary: summarize(text),
	}
}

func (e *InfoExtractor) extractEmail(text string) string {
	for _, m := range emailPattern.FindAllString(text, -1) {
		addr := strings.ToLower(m)
		if addr != e.operatorEmail {
			return addr
		}
	}
	return ""
}

func (e *InfoExtractor) extractPhone(text string) string {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	candidate := strings.TrimSpace(m[1])
	digits := 0
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 10 {
		return ""
	}
	return candidate
}

func (e *InfoExtractor) extractName(text string) string {
	for _, group := range [][]*regexp.Regexp{priorityNamePatterns, generalNamePatterns} {
		for _, re := range group {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			name := strings.TrimSpace(m[1])
			first := strings.ToLower(strings.Fields(name)[0])
			if nameFalsePositives[first] {
				continue
			}
			return titleCase(name)
		}
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// summarize assigns a coarse topic label to the message.
func summarize(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "service") || strings.Contains(lower, "development"):
		return "Interested in services"
	case strings.Contains(lower, "price") || strings.Contains(lower, "cost") || strings.Contains(lower, "budget"):
		return "Asked about pricing"
	case containsMeetingKeyword(lower):
		return "Requested meeting"
	default:
		return "General inquiry"
	}
}
