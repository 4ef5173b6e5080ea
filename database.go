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


package oneiro

import (
	"context"
	"log/slog"
	"time"

	"github.com/somnolabs/oneiro/ai"
	"github.com/somnolabs/oneiro/ai/openai"
	"github.com/somnolabs/oneiro/chunker"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/pipeline"
	"github.com/somnolabs/oneiro/retrieval"
	"github.com/somnolabs/oneiro/storage"
	"github.com/somnolabs/oneiro/storage/badger"
	"github.com/somnolabs/oneiro/themes"
	"github.com/somnolabs/oneiro/worker"
)

// Database bundles the stores and the embedder behind one handle. It is
// the entry point for embedding oneiro in another program: open it, submit
// transcripts, run a scheduler, retrieve fragments.
type Database struct {
	backend       *badger.Backend
	dreamStore    storage.DreamStore
	jobStore      storage.JobStore
	themeStore    storage.ThemeStore
	fragmentStore storage.FragmentStore
	embedder      ai.Embedder
	logger        *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	embedder ai.Embedder
	inMemory bool
}

// WithAIConfig overrides the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder supplies a pre-built embedder, bypassing the OpenAI client.
// Mainly for tests.
func WithEmbedder(embedder ai.Embedder) DatabaseOption {
	return func(o *databaseOptions) {
		o.embedder = embedder
	}
}

// WithInMemoryStorage keeps all data in memory, ignoring filePath.
func WithInMemoryStorage() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens the store at filePath and connects the embedder.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:       backend,
		dreamStore:    badger.NewDreamStore(backend),
		jobStore:      badger.NewJobStore(backend),
		themeStore:    badger.NewThemeStore(backend),
		fragmentStore: badger.NewFragmentStore(backend),
		embedder:      embedder,
		logger:        slog.Default(),
	}, nil
}

// Close releases the stores and the backend.
func (db *Database) Close() error {
	if err := db.fragmentStore.Close(); err != nil {
		db.logger.Error("error closing fragment store", "err", err)
		return err
	}
	if err := db.themeStore.Close(); err != nil {
		db.logger.Error("error closing theme store", "err", err)
		return err
	}
	if err := db.jobStore.Close(); err != nil {
		db.logger.Error("error closing job store", "err", err)
		return err
	}
	if err := db.dreamStore.Close(); err != nil {
		db.logger.Error("error closing dream store", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Submit stores a dream transcript and enqueues its processing job.
// Resubmitting identical text while its job is still active returns
// storage.ErrJobExists; a finished dream may be resubmitted.
func (db *Database) Submit(ctx context.Context, text string, priority int) (*core.Dream, error) {
	dream, err := db.dreamStore.AddDream(ctx, &core.Dream{
		Text:   text,
		Status: core.DreamStatusPending,
	})
	if err != nil {
		return nil, err
	}

	err = db.jobStore.EnqueueJob(ctx, &core.Job{
		DreamId:     dream.Id,
		Status:      core.JobStatusPending,
		Priority:    priority,
		ScheduledAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return dream, nil
}

func (db *Database) DreamStore() storage.DreamStore {
	return db.dreamStore
}

func (db *Database) JobStore() storage.JobStore {
	return db.jobStore
}

func (db *Database) ThemeStore() storage.ThemeStore {
	return db.themeStore
}

func (db *Database) FragmentStore() storage.FragmentStore {
	return db.fragmentStore
}

func (db *Database) Embedder() ai.Embedder {
	return db.embedder
}

// NewScheduler builds a worker scheduler wired to this database's stores
// and a default processing pipeline.
func (db *Database) NewScheduler(workerConfig *worker.Config, opts ...worker.Option) (*worker.Scheduler, error) {
	processor, err := db.NewProcessor(nil)
	if err != nil {
		return nil, err
	}
	return worker.NewScheduler(db.jobStore, db.dreamStore, processor, workerConfig, opts...)
}

// NewProcessor builds a processing pipeline over this database's stores.
// A nil config uses pipeline defaults.
func (db *Database) NewProcessor(config *pipeline.Config, opts ...pipeline.Option) (*pipeline.Processor, error) {
	chk, err := chunker.New(chunker.DefaultConfig())
	if err != nil {
		return nil, err
	}
	matcher, err := themes.NewMatcher(themes.DefaultThreshold, themes.DefaultTopK)
	if err != nil {
		return nil, err
	}
	return pipeline.NewProcessor(db.dreamStore, db.themeStore, db.embedder, chk, matcher, config, opts...)
}

// NewRetriever builds a fragment retriever over this database's stores.
func (db *Database) NewRetriever(config *retrieval.Config, opts ...retrieval.Option) (*retrieval.Retriever, error) {
	return retrieval.NewRetriever(db.fragmentStore, db.embedder, config, opts...)
}
