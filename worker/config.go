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


package worker

import (
	"errors"
	"runtime"
	"time"
)

// Config holds scheduler tuning parameters.
type Config struct {
	// MaxConcurrentJobs bounds how many jobs run at once.
	MaxConcurrentJobs int

	// MaxJobAttempts is the attempt budget per job. A job that fails on
	// its final attempt dead-letters as failed.
	MaxJobAttempts int

	// PollingInterval is how often the scheduler looks for due jobs.
	PollingInterval time.Duration

	// StaleJobTimeout is how long a job may sit in processing before the
	// sweep assumes its worker died and resets it to pending.
	StaleJobTimeout time.Duration

	// CleanupInterval is how often the stale-job sweep runs.
	CleanupInterval time.Duration

	// BackoffBase scales the retry delay: a job that has failed n
	// attempts reschedules BackoffBase * 2^n out.
	BackoffBase time.Duration

	// BackoffCap is the upper bound on the retry delay.
	BackoffCap time.Duration
}

// DefaultConfig returns the standard scheduler configuration.
func DefaultConfig() *Config {
	concurrency := runtime.NumCPU() / 2
	if concurrency < 1 {
		concurrency = 1
	}
	return &Config{
		MaxConcurrentJobs: concurrency,
		MaxJobAttempts:    3,
		PollingInterval:   2 * time.Second,
		StaleJobTimeout:   10 * time.Minute,
		CleanupInterval:   time.Minute,
		BackoffBase:       time.Minute,
		BackoffCap:        60 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxConcurrentJobs < 1 {
		return errors.New("worker config: MaxConcurrentJobs must be >= 1")
	}
	if c.MaxJobAttempts < 1 {
		return errors.New("worker config: MaxJobAttempts must be >= 1")
	}
	if c.PollingInterval <= 0 {
		return errors.New("worker config: PollingInterval must be > 0")
	}
	if c.StaleJobTimeout <= 0 {
		return errors.New("worker config: StaleJobTimeout must be > 0")
	}
	if c.CleanupInterval <= 0 {
		return errors.New("worker config: CleanupInterval must be > 0")
	}
	if c.BackoffBase <= 0 {
		return errors.New("worker config: BackoffBase must be > 0")
	}
	if c.BackoffCap < c.BackoffBase {
		return errors.New("worker config: BackoffCap must be >= BackoffBase")
	}
	return nil
}
