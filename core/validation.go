// Copyright 2025 Somno Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
	"unicode"
)

// EstimateTokens approximates the token count of text using a fixed
// characters-per-token constant. The approximation rounds up so that a
// short trailing run still counts as a token.
func EstimateTokens(text string, charsPerToken int) int {
	if charsPerToken < 1 {
		charsPerToken = 1
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// ValidateDreamText validates transcript text for embedding.
//
// Validation rules:
//   - Text must not be empty or whitespace-only
//   - Estimated token count must be >= minTokens
//   - Text must pass the language heuristic (mostly Latin letters)
//
// Length and language failures wrap ErrDreamSkipped: they are terminal
// and must never trigger a job retry.
func ValidateDreamText(text string, minTokens, charsPerToken int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDream, ErrEmptyText)
	}

	if EstimateTokens(text, charsPerToken) < minTokens {
		return fmt.Errorf("%w: %w (estimated %d tokens, need %d)",
			ErrDreamSkipped, ErrTextTooShort,
			EstimateTokens(text, charsPerToken), minTokens)
	}

	if !IsSupportedLanguage(text) {
		return fmt.Errorf("%w: %w", ErrDreamSkipped, ErrUnsupportedLanguage)
	}

	return nil
}

// supportedLetterRatio is the minimum fraction of letters that must be
// Latin-script for text to pass the language check.
const supportedLetterRatio = 0.5

// IsSupportedLanguage applies a coarse pass/skip heuristic: at least half
// of the letter runes must be Latin script. This is intentionally not a
// language detector; it only filters transcripts the embedding model was
// not trained for.
func IsSupportedLanguage(text string) bool {
	var letters, latin int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Latin, r) {
			latin++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(latin)/float64(letters) >= supportedLetterRatio
}

// ValidateTheme validates a catalog theme.
func ValidateTheme(theme *Theme) error {
	if theme == nil {
		return fmt.Errorf("%w: theme is nil", ErrInvalidTheme)
	}
	if theme.Code == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTheme, ErrEmptyThemeCode)
	}
	return nil
}

// ValidateFragment validates a knowledge fragment.
func ValidateFragment(fragment *Fragment) error {
	if fragment == nil {
		return fmt.Errorf("%w: fragment is nil", ErrInvalidFragment)
	}
	if fragment.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptyText)
	}
	if fragment.Scope == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptyFragmentScope)
	}
	return nil
}
