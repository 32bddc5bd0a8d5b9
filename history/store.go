// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history persists run results and derives statistics and diffs
// from them.
package history

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"

	"github.com/ttbt-io/uiverify/harness"
)

const runsDir = "runs"

// ErrAmbiguous is returned when a run ID prefix matches more than one run.
var ErrAmbiguous = errors.New("ambiguous run id")

// Store keeps one JSON record per run under <dir>/runs.
type Store struct {
	DataDir string
	storage *storage.Storage
}

// NewStore wraps an existing storage.
func NewStore(dataDir string, s *storage.Storage) *Store {
	return &Store{DataDir: dataDir, storage: s}
}

// Open opens the store at dir. A non-empty passphrase unlocks, or creates,
// dir/master.key and encrypts records with it. Without a passphrase, records
// are plain JSON, and an existing master.key is refused.
func Open(dir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, runsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	keyFile := filepath.Join(dir, "master.key")

	var masterKey crypto.MasterKey
	if passphrase != "" {
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read master key: %w", err)
			}
			log.Println("Initializing new history encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, fmt.Errorf("failed to create master key: %w", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, fmt.Errorf("failed to save master key: %w", err)
			}
		}
		return NewStore(dir, storage.New(dir, masterKey)), nil
	}
	if _, err := os.Stat(keyFile); err == nil {
		return nil, fmt.Errorf("%s exists but no master key passphrase is set; refusing to read encrypted history", keyFile)
	}
	return NewStore(dir, storage.New(dir, nil)), nil
}

func recordName(id string) string {
	return filepath.Join(runsDir, fmt.Sprintf("%s.json", url.PathEscape(id)))
}

// Save writes the record for res, replacing any previous one with the same
// run ID.
func (s *Store) Save(res harness.RunResult) error {
	if res.RunID == "" {
		return errors.New("run has no id")
	}
	if err := s.storage.SaveDataFile(recordName(res.RunID), &res); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Load reads one run by ID.
func (s *Store) Load(id string) (*harness.RunResult, error) {
	var res harness.RunResult
	if err := s.storage.ReadDataFile(recordName(id), &res); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &res, nil
}

// IDs returns the stored run IDs in lexical order.
func (s *Store) IDs() ([]string, error) {
	files, err := os.ReadDir(filepath.Join(s.DataDir, runsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read runs directory: %w", err)
	}
	var ids []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Resolve expands a unique run ID prefix.
func (s *Store) Resolve(prefix string) (string, error) {
	ids, err := s.IDs()
	if err != nil {
		return "", err
	}
	var match []string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			match = append(match, id)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("run %q: %w", prefix, os.ErrNotExist)
	case 1:
		return match[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %d runs", ErrAmbiguous, prefix, len(match))
	}
}

// List yields every stored run, oldest first. Unreadable records are
// yielded as errors and listing continues.
func (s *Store) List() iter.Seq2[harness.RunResult, error] {
	return func(yield func(harness.RunResult, error) bool) {
		ids, err := s.IDs()
		if err != nil {
			yield(harness.RunResult{}, err)
			return
		}
		var runs []harness.RunResult
		for _, id := range ids {
			res, err := s.Load(id)
			if err != nil {
				if !yield(harness.RunResult{}, fmt.Errorf("run %s: %w", id, err)) {
					return
				}
				continue
			}
			runs = append(runs, *res)
		}
		slices.SortStableFunc(runs, func(a, b harness.RunResult) int {
			return a.Started.Compare(b.Started)
		})
		for _, r := range runs {
			if !yield(r, nil) {
				return
			}
		}
	}
}
