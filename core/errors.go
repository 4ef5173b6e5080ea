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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDream indicates a Dream failed validation.
	ErrInvalidDream = errors.New("invalid dream")

	// ErrEmptyText indicates the Text field is empty or whitespace-only.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrDreamSkipped wraps the non-retryable validation failures.
	// A dream rejected with this error transitions directly to skipped.
	ErrDreamSkipped = errors.New("dream skipped")

	// ErrTextTooShort indicates the text is below the minimum token
	// estimate for embedding.
	ErrTextTooShort = errors.New("text below minimum length for embedding")

	// ErrUnsupportedLanguage indicates the text does not appear to be in
	// a supported language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrInvalidTheme indicates a Theme failed validation.
	ErrInvalidTheme = errors.New("invalid theme")

	// ErrEmptyThemeCode indicates the theme Code field is empty.
	ErrEmptyThemeCode = errors.New("theme code cannot be empty")

	// ErrInvalidFragment indicates a Fragment failed validation.
	ErrInvalidFragment = errors.New("invalid fragment")

	// ErrEmptyFragmentScope indicates the fragment Scope field is empty.
	ErrEmptyFragmentScope = errors.New("fragment scope cannot be empty")
)
