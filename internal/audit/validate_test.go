package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(n int) []Entry {
	entries := make([]Entry, 0, n)
	prev := GenesisHash
	for i := range n {
		e := newEntry(Fields{
			EventType:    EventGovernance,
			Action:       ActionModeChanged,
			UserID:       "admin",
			ResourceType: "mode",
			Details:      Details{"seq": fmt.Sprint(i)},
		}, fixedTime.Add(time.Duration(i)*time.Second), prev)
		entries = append(entries, e)
		prev = e.EntryHash
	}
	return entries
}

func TestValidate(t *testing.T) {
	t.Run("empty chain is valid", func(t *testing.T) {
		report := Validate(nil)
		assert.True(t, report.Valid)
		assert.Equal(t, 0, report.EntriesValidated)
		assert.Nil(t, report.BrokenAt)
	})

	t.Run("freshly built chain is valid", func(t *testing.T) {
		for _, n := range []int{1, 2, 10, 50} {
			report := Validate(buildChain(n))
			assert.True(t, report.Valid, "n=%d", n)
			assert.Equal(t, n, report.EntriesValidated)
		}
	})

	t.Run("content tamper detected at the tampered entry", func(t *testing.T) {
		for k := range 5 {
			entries := buildChain(5)
			entries[k].Details["seq"] = "tampered"
			report := Validate(entries)
			require.False(t, report.Valid)
			assert.Equal(t, entries[k].ID, *report.BrokenAt)
			assert.Equal(t, k, report.BrokenIndex)
			assert.Equal(t, k, report.EntriesValidated)
			assert.Equal(t, ReasonContentMismatch, report.Reason)
		}
	})

	t.Run("tamper with recomputed hash breaks the next link", func(t *testing.T) {
		entries := buildChain(4)
		entries[1].Action = "FORGED"
		entries[1].EntryHash = ComputeHash(entries[1])
		report := Validate(entries)
		require.False(t, report.Valid)
		assert.Equal(t, entries[2].ID, *report.BrokenAt)
		assert.Equal(t, ReasonLinkMismatch, report.Reason)
	})

	t.Run("deleted entry leaves a detectable gap", func(t *testing.T) {
		entries := buildChain(5)
		next := entries[3]
		entries = append(entries[:2], entries[3:]...)
		report := Validate(entries)
		require.False(t, report.Valid)
		assert.Equal(t, next.ID, *report.BrokenAt)
		assert.Equal(t, 2, report.BrokenIndex)
		assert.Equal(t, ReasonLinkMismatch, report.Reason)
	})

	t.Run("first entry must link to genesis", func(t *testing.T) {
		entries := buildChain(1)
		entries[0].PreviousHash = "not-genesis"
		entries[0].EntryHash = ComputeHash(entries[0])
		report := Validate(entries)
		require.False(t, report.Valid)
		assert.Equal(t, entries[0].ID, *report.BrokenAt)
		assert.Equal(t, 0, report.BrokenIndex)
	})

	t.Run("reordered entries are rejected", func(t *testing.T) {
		entries := buildChain(3)
		entries[1], entries[2] = entries[2], entries[1]
		report := Validate(entries)
		assert.False(t, report.Valid)
		assert.Equal(t, 1, report.BrokenIndex)
	})

	t.Run("timestamp regression is rejected", func(t *testing.T) {
		entries := buildChain(2)
		e := newEntry(Fields{
			EventType: EventGovernance,
			Action:    ActionModeChanged,
			UserID:    "admin",
		}, fixedTime.Add(-time.Hour), entries[1].EntryHash)
		entries = append(entries, e)
		report := Validate(entries)
		require.False(t, report.Valid)
		assert.Equal(t, ReasonTimestampRegressed, report.Reason)
		assert.Equal(t, 2, report.BrokenIndex)
	})
}
