package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/schedule"
)

// DefaultCompanyProfile is used when no profile file is configured.
const DefaultCompanyProfile = `We build an AI calling assistant that phones prospects on behalf of sales
teams, qualifies interest, and books meetings straight into the team calendar.
Customers typically see more booked meetings within the first month without
adding headcount.`

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AssistantName  string
	CompanyName    string
	CompanyProfile string
	Timezone       string
	Language       string
	Now            time.Time
	ProposedSlots  []string
}

// BuildSystemPrompt constructs the calling-assistant system prompt, including
// the tag grammar the reply parser understands.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a friendly outbound sales assistant calling on behalf of %s.\n", cfg.AssistantName, cfg.CompanyName)
	fmt.Fprintf(&b, "You are speaking on a live phone call. Keep every reply to one to three short spoken sentences.\n")
	if cfg.Language != "" {
		fmt.Fprintf(&b, "Speak in the caller's language; default to %s.\n", cfg.Language)
	}

	if !cfg.Now.IsZero() {
		fmt.Fprintf(&b, "Current date and time: %s (%s)\n", cfg.Now.Format("Monday 2006-01-02 15:04"), cfg.Timezone)
	}

	b.WriteString("\n## About the company\n\n")
	profile := strings.TrimSpace(cfg.CompanyProfile)
	if profile == "" {
		profile = DefaultCompanyProfile
	}
	b.WriteString(profile)
	b.WriteString("\n")

	b.WriteString("\n## Goal\n\n")
	b.WriteString("Learn briefly how the prospect books meetings today, then offer a short meeting with our team.\n")
	if len(cfg.ProposedSlots) > 0 {
		fmt.Fprintf(&b, "Offer these times first: %s.\n", schedule.FormatList(cfg.ProposedSlots))
		b.WriteString("Exact slot values for the BOOKED tag:\n")
		for _, s := range cfg.ProposedSlots {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	fmt.Fprintf(&b, "Meetings start on the hour during business hours, in %s.\n", cfg.Timezone)
	b.WriteString("Before booking, confirm the prospect's name and email address.\n")

	b.WriteString("\n## Markers\n\n")
	b.WriteString("Append a marker at the very end of your reply whenever an outcome is reached. Markers are never read aloud.\n\n")
	b.WriteString(`[[BOOKED {"name":"...","email":"...","datetime_iso":"YYYY-MM-DDTHH:MM","timezone":"...","duration_min":30,"notes":"..."}]]` + "\n")
	b.WriteString(`[[CALLBACK_NEEDED {"when":"...","timezone":"...","notes":"..."}]]` + "\n")
	b.WriteString(`[[SEND_INFO {"email":"...","notes":"..."}]]` + "\n")
	b.WriteString("[[END_CALL]]\n\n")
	b.WriteString("- Use BOOKED only after the prospect agrees to a specific date and time.\n")
	b.WriteString("- Use CALLBACK_NEEDED when they ask to be called another time, SEND_INFO when they want details by email.\n")
	b.WriteString("- Add END_CALL together with the outcome marker when the conversation is over.\n")
	b.WriteString("- If a time is unavailable, you will be told and should offer the alternatives given.\n")

	return b.String()
}
