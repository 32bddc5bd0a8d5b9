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

package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/harness"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func run(id, scenario string, outcome harness.Outcome, started time.Time, d time.Duration) harness.RunResult {
	return harness.RunResult{
		RunID:     id,
		Scenario:  scenario,
		TargetURL: "http://localhost:3000",
		Outcome:   outcome,
		Started:   started,
		Duration:  d,
		StepIndex: -1,
		Steps: []harness.StepRecord{
			{Index: 0, Kind: harness.StepSleep, Description: "sleep 3s", Duration: d / 2},
		},
	}
}

func collect(t *testing.T, s *Store) []harness.RunResult {
	t.Helper()
	var out []harness.RunResult
	for r, err := range s.List() {
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func TestSaveLoadList(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, storage.New(dir, nil))

	// Saved out of order; List sorts by start time.
	require.NoError(t, s.Save(run("bbb", "visuals", harness.Succeeded, epoch.Add(time.Minute), time.Second)))
	require.NoError(t, s.Save(run("aaa", "inspector", harness.Failed, epoch.Add(2*time.Minute), 2*time.Second)))
	require.NoError(t, s.Save(run("ccc", "visuals", harness.Succeeded, epoch, 3*time.Second)))

	got, err := s.Load("aaa")
	require.NoError(t, err)
	assert.Equal(t, "inspector", got.Scenario)
	assert.Equal(t, harness.Failed, got.Outcome)
	assert.True(t, got.Started.Equal(epoch.Add(2*time.Minute)))

	_, err = s.Load("zzz")
	assert.ErrorIs(t, err, os.ErrNotExist)

	var ids []string
	for _, r := range collect(t, s) {
		ids = append(ids, r.RunID)
	}
	assert.Equal(t, []string{"ccc", "bbb", "aaa"}, ids)

	assert.Error(t, s.Save(harness.RunResult{}))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, storage.New(dir, nil))
	require.NoError(t, s.Save(run("0a1b", "visuals", harness.Succeeded, epoch, time.Second)))
	require.NoError(t, s.Save(run("0a2c", "visuals", harness.Succeeded, epoch, time.Second)))

	id, err := s.Resolve("0a1")
	require.NoError(t, err)
	assert.Equal(t, "0a1b", id)

	_, err = s.Resolve("0a")
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = s.Resolve("ff")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncryptedStore(t *testing.T) {
	dir := t.TempDir()
	mk, err := crypto.CreateAESMasterKeyForTest()
	require.NoError(t, err)
	s := NewStore(dir, storage.New(dir, mk))

	r := run("enc", "inspector", harness.Succeeded, epoch, time.Second)
	r.Observations = []driver.Observation{{Origin: driver.OriginConsole, Text: "secret console line"}}
	require.NoError(t, s.Save(r))

	raw, err := os.ReadFile(filepath.Join(dir, "runs", "enc.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret console line")

	got, err := s.Load("enc")
	require.NoError(t, err)
	assert.Equal(t, r.Observations, got.Observations)
}

func TestOpen(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, "")
		require.NoError(t, err)
		require.NoError(t, s.Save(run("p1", "visuals", harness.Succeeded, epoch, time.Second)))
		assert.DirExists(t, filepath.Join(dir, "runs"))
	})

	t.Run("passphrase creates key then refuses plain access", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, "correct horse")
		require.NoError(t, err)
		require.NoError(t, s.Save(run("e1", "visuals", harness.Succeeded, epoch, time.Second)))
		assert.FileExists(t, filepath.Join(dir, "master.key"))

		again, err := Open(dir, "correct horse")
		require.NoError(t, err)
		got, err := again.Load("e1")
		require.NoError(t, err)
		assert.Equal(t, "visuals", got.Scenario)

		_, err = Open(dir, "")
		assert.ErrorContains(t, err, "refusing")
	})
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, storage.New(dir, nil))
	require.NoError(t, s.Save(run("1", "visuals", harness.Succeeded, epoch, time.Second)))
	require.NoError(t, s.Save(run("2", "visuals", harness.Failed, epoch.Add(time.Minute), 3*time.Second)))
	require.NoError(t, s.Save(run("3", "inspector", harness.EnvironmentError, epoch, 0)))

	stats, err := Compute(s.List())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "inspector", stats[0].Scenario)
	assert.Equal(t, 1, stats[0].EnvironmentError)
	assert.Equal(t, 0.0, stats[0].PassRate())

	v := stats[1]
	assert.Equal(t, "visuals", v.Scenario)
	assert.Equal(t, 2, v.Runs)
	assert.Equal(t, 1, v.Succeeded)
	assert.Equal(t, 1, v.Failed)
	assert.Equal(t, 0.5, v.PassRate())
	assert.Equal(t, harness.Failed, v.LastOutcome)
	assert.Equal(t, 2*time.Second, v.Duration.Mean())
	require.Len(t, v.Steps, 1)
	assert.Equal(t, uint64(2), v.Steps[0].Count)

	all := Total(stats)
	assert.Equal(t, "(all)", all.Scenario)
	assert.Equal(t, 3, all.Runs)
	assert.Equal(t, 1, all.Succeeded)
	assert.Equal(t, 1, all.Failed)
	assert.Equal(t, 1, all.EnvironmentError)
	assert.Equal(t, harness.Failed, all.LastOutcome)
	assert.Equal(t, uint64(3), all.Duration.Count)
	assert.Equal(t, 3*time.Second, all.Duration.Max)
	assert.Equal(t, 4*time.Second/3, all.Duration.Mean())
	require.Len(t, all.Steps, 1)
	assert.Equal(t, uint64(3), all.Steps[0].Count)

	// Merging leaves the per-scenario rows untouched.
	assert.Equal(t, uint64(2), v.Duration.Count)
}
