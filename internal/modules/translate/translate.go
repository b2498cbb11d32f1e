package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepscholar/core/internal/llm"
)

// UserTerm is a caller-supplied glossary entry that overrides the
// mined terminology.
type UserTerm struct {
	Source      string `json:"source"`
	Translation string `json:"translation"`
}

// Translate renders academic text into the target language ("zh" or
// "en"). Text already in the target language is returned unchanged.
func (s *Service) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return s.TranslateWithDict(ctx, text, targetLang, nil)
}

// TranslateWithDict is Translate with an extra caller dictionary
// prepended to the glossary.
func (s *Service) TranslateWithDict(ctx context.Context, text, targetLang string, userDict []UserTerm) (string, error) {
	if targetLang != "zh" && targetLang != "en" {
		return "", fmt.Errorf("target language must be \"zh\" or \"en\", got %q", targetLang)
	}

	sourceLang := detectLanguage(text, targetLang)
	if sourceLang == targetLang {
		return text, nil
	}
	if sourceLang == "mixed" {
		if targetLang == "zh" {
			sourceLang = "en"
		} else {
			sourceLang = "zh"
		}
	}

	glossary := s.buildGlossary(text, sourceLang, targetLang)
	prompt := translationPrompt(text, sourceLang, targetLang, userDict, glossary)

	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Task:     llm.TaskTranslate,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("translate text: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func translationPrompt(text, sourceLang, targetLang string, userDict []UserTerm, glossary []GlossaryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Please translate the following academic text from %s to %s.\n",
		languageName(sourceLang), languageName(targetLang))
	b.WriteString("This is an academic text, please maintain the accuracy and academic style of professional terminology.\n\n")
	b.WriteString("Output translation directly, do not include any other text or reasoning process.\n\n")
	b.WriteString("Here are some translation references for professional terms, please use these translations as a reference:")

	for _, term := range userDict {
		fmt.Fprintf(&b, "\n- %s: %s", term.Source, term.Translation)
	}
	if len(glossary) > 0 {
		for _, entry := range glossary {
			fmt.Fprintf(&b, "\n- %s: %s", entry.Source, entry.Target)
		}
	} else if len(userDict) == 0 {
		b.WriteString("\n(No translation references found for professional terms)")
	}

	fmt.Fprintf(&b, "\n\nOriginal text (%s):\n%s\n\nTranslation (%s):\n",
		languageName(sourceLang), text, languageName(targetLang))
	return b.String()
}

// detectLanguage classifies by character counts. Mixed text is treated
// as the language opposite the target so a translation still happens.
func detectLanguage(text, targetLang string) string {
	var chinese, english int
	for _, r := range text {
		switch {
		case r >= 0x4e00 && r <= 0x9fff:
			chinese++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			english++
		}
	}

	switch {
	case chinese > 0 && english == 0:
		return "zh"
	case english > 0 && chinese == 0:
		return "en"
	case chinese > 0 && english > 0:
		return "mixed"
	}
	return "unknown"
}

func languageName(code string) string {
	switch code {
	case "zh":
		return "Chinese"
	case "en":
		return "English"
	}
	return "Unknown language"
}
