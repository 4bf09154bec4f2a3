/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"fmt"
	"strings"

	"github.com/Seednode/truthordare/domain"
)

const theme = "Game of Doom - dark party atmosphere with nightclub vibes, mysterious and exciting"

var modeGuidance = map[domain.Mode][]string{
	domain.ModeFriends: {
		"Focus on friendship dynamics, shared experiences and social bonds",
		"Truths about friend groups, loyalty and funny memories",
		"Dares built around group activities, social challenges and silly performances",
		"Keep it appropriate for close friends and avoid romantic or intimate content",
	},
	domain.ModeCrush: {
		"Focus on romantic interest, attraction and dating",
		"Truths about crushes, dating history and romantic preferences",
		"Dares built around flirting, romantic gestures and date scenarios",
		"Keep the romantic tension playful and exciting",
	},
	domain.ModeSpouse: {
		"Focus on committed relationships, marriage and deep intimacy",
		"Truths about relationship dynamics, future plans and secrets",
		"Dares built around couple activities and intimate gestures",
		"Content may be more personal than in the other modes",
	},
}

var tierGuidance = map[domain.Tier][]string{
	domain.TierEasy: {
		"MILD: safe for everyone, light-hearted and never embarrassing",
		"Truths about preferences, favourites and harmless personal details",
		"Dares involving simple actions and silly performances",
	},
	domain.TierMedium: {
		"MODERATE: a little risky, mildly embarrassing but party appropriate",
		"Truths about awkward moments, minor secrets and dating stories",
		"Dares involving social media posts, phone calls or public performances",
	},
	domain.TierExtreme: {
		"BOLD: adult oriented (18+), for players who have explicitly opted in",
		"Truths about past relationships, wild stories and controversial opinions",
		"Dares involving bold social actions and risky challenges",
	},
}

var styleGuidance = []string{
	"Use casual Gen Z slang (no cap, lowkey, highkey, sus, vibe)",
	"Keep it relatable and funny rather than formal",
	"Reference modern culture (TikTok, Instagram, dating apps) where it fits",
	"Spicy is fine, cringe is not",
}

// Guidance builds the free-text instruction sent to the provider for one
// challenge request.
func Guidance(kind domain.Kind, mode domain.Mode, tier domain.Tier) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are writing %s prompts for a party game called \"Game of Doom Truth or Dare\".\n\n", kind)

	b.WriteString("GAME CONTEXT:\n")
	fmt.Fprintf(&b, "- Theme: %s\n", theme)
	fmt.Fprintf(&b, "- Mode: %s\n", mode)
	fmt.Fprintf(&b, "- Intensity: %s\n", tier)
	fmt.Fprintf(&b, "- Type: %s\n\n", kind)

	writeSection(&b, "MODE GUIDELINES", modeGuidance[mode])
	writeSection(&b, "INTENSITY GUIDELINES", tierGuidance[tier])
	writeSection(&b, "STYLE", styleGuidance)

	fmt.Fprintf(&b, "Generate exactly ONE %s prompt. Reply with JSON containing a single \"prompt\" field.\n", kind)

	return b.String()
}

func writeSection(b *strings.Builder, title string, lines []string) {
	b.WriteString(title)
	b.WriteString(":\n")
	if len(lines) == 0 {
		b.WriteString("- Keep it party appropriate\n")
	}
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
