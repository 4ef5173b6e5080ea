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


package storage

import (
	"github.com/somnolabs/oneiro/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalDream serializes a Dream to bytes.
func MarshalDream(dream *core.Dream) []byte {
	buf := make([]byte, core.DreamMUS.Size(*dream))
	core.DreamMUS.Marshal(*dream, buf)
	return buf
}

// UnmarshalDream deserializes a Dream from bytes.
func UnmarshalDream(data []byte) (*core.Dream, error) {
	dream, _, err := core.DreamMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &dream, nil
}

// MarshalEmbedding serializes an Embedding to bytes.
func MarshalEmbedding(embedding *core.Embedding) []byte {
	buf := make([]byte, core.EmbeddingMUS.Size(*embedding))
	core.EmbeddingMUS.Marshal(*embedding, buf)
	return buf
}

// UnmarshalEmbedding deserializes an Embedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	embedding, _, err := core.EmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

// MarshalTheme serializes a Theme to bytes.
func MarshalTheme(theme *core.Theme) []byte {
	buf := make([]byte, core.ThemeMUS.Size(*theme))
	core.ThemeMUS.Marshal(*theme, buf)
	return buf
}

// UnmarshalTheme deserializes a Theme from bytes.
func UnmarshalTheme(data []byte) (*core.Theme, error) {
	theme, _, err := core.ThemeMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &theme, nil
}

// MarshalThemeMatch serializes a ThemeMatch to bytes.
func MarshalThemeMatch(match *core.ThemeMatch) []byte {
	buf := make([]byte, core.ThemeMatchMUS.Size(*match))
	core.ThemeMatchMUS.Marshal(*match, buf)
	return buf
}

// UnmarshalThemeMatch deserializes a ThemeMatch from bytes.
func UnmarshalThemeMatch(data []byte) (*core.ThemeMatch, error) {
	match, _, err := core.ThemeMatchMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// MarshalFragment serializes a Fragment to bytes.
func MarshalFragment(fragment *core.Fragment) []byte {
	buf := make([]byte, core.FragmentMUS.Size(*fragment))
	core.FragmentMUS.Marshal(*fragment, buf)
	return buf
}

// UnmarshalFragment deserializes a Fragment from bytes.
func UnmarshalFragment(data []byte) (*core.Fragment, error) {
	fragment, _, err := core.FragmentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &fragment, nil
}

// MarshalFragmentLink serializes a FragmentLink to bytes.
func MarshalFragmentLink(link *core.FragmentLink) []byte {
	buf := make([]byte, core.FragmentLinkMUS.Size(*link))
	core.FragmentLinkMUS.Marshal(*link, buf)
	return buf
}

// UnmarshalFragmentLink deserializes a FragmentLink from bytes.
func UnmarshalFragmentLink(data []byte) (*core.FragmentLink, error) {
	link, _, err := core.FragmentLinkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) []byte {
	buf := make([]byte, core.JobMUS.Size(*job))
	core.JobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	job, _, err := core.JobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
