package intent

import (
	"regexp"
	"strings"

	"github.com/soyeahso/meetbot/internal/domain"
)

// nameScanWindow is how many trailing history entries are searched.
const nameScanWindow = 8

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:\bmy name is)\s+(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)?)`),
	regexp.MustCompile(`(?i:\bi am|\bi'm)\s+(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)?)`),
	regexp.MustCompile(`(?:קוראים לי|שמי)\s+([A-Za-zא-ת]+)`),
}

// ExtractName looks for a self-introduction in recent user turns, most
// recent first.
func ExtractName(history []domain.Turn) (string, bool) {
	start := max(len(history)-nameScanWindow, 0)
	for i := len(history) - 1; i >= start; i-- {
		turn := history[i]
		if turn.Role != domain.RoleUser {
			continue
		}
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		for _, p := range namePatterns {
			if m := p.FindStringSubmatch(text); m != nil {
				return m[1], true
			}
		}
	}
	return "", false
}
