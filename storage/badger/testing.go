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


package badger

// Stores bundles the repositories backed by one shared Backend.
type Stores struct {
	Dreams    *DreamStore
	Jobs      *JobStore
	Themes    *ThemeStore
	Fragments *FragmentStore
	Backend   *Backend
}

// Close closes the shared backend.
func (s *Stores) Close() error {
	return s.Backend.Close()
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must close the returned Stores when done.
func NewMemoryStores() (*Stores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	return &Stores{
		Dreams:    NewDreamStore(backend),
		Jobs:      NewJobStore(backend),
		Themes:    NewThemeStore(backend),
		Fragments: NewFragmentStore(backend),
		Backend:   backend,
	}, nil
}
