package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

func sampleEntry() Entry {
	return Entry{
		ID:           uuid.New(),
		EventType:    EventPHIScan,
		Action:       ActionScanCompleted,
		UserID:       "user-1",
		ResourceType: "scan",
		ResourceID:   "scan-1",
		Details:      Details{"risk_level": "high", "context": "export", "detections": "2"},
		CreatedAt:    fixedTime,
		PreviousHash: GenesisHash,
	}
}

func TestComputeHash(t *testing.T) {
	t.Run("same content hashes identically", func(t *testing.T) {
		a := sampleEntry()
		b := sampleEntry()
		assert.Equal(t, ComputeHash(a), ComputeHash(b))
	})

	t.Run("details insertion order does not matter", func(t *testing.T) {
		a := sampleEntry()
		b := sampleEntry()
		b.Details = Details{}
		b.Details["detections"] = "2"
		b.Details["context"] = "export"
		b.Details["risk_level"] = "high"
		assert.Equal(t, ComputeHash(a), ComputeHash(b))
	})

	t.Run("id and entry hash are not committed", func(t *testing.T) {
		a := sampleEntry()
		b := sampleEntry()
		b.ID = uuid.New()
		b.EntryHash = "something else"
		assert.Equal(t, ComputeHash(a), ComputeHash(b))
	})

	t.Run("single field change changes hash", func(t *testing.T) {
		base := ComputeHash(sampleEntry())
		mutations := map[string]func(*Entry){
			"action":        func(e *Entry) { e.Action = ActionOverrideGranted },
			"event type":    func(e *Entry) { e.EventType = EventGovernance },
			"user":          func(e *Entry) { e.UserID = "user-2" },
			"resource type": func(e *Entry) { e.ResourceType = "export" },
			"resource id":   func(e *Entry) { e.ResourceID = "scan-2" },
			"detail value":  func(e *Entry) { e.Details["risk_level"] = "low" },
			"detail key":    func(e *Entry) { e.Details["extra"] = "1" },
			"timestamp":     func(e *Entry) { e.CreatedAt = e.CreatedAt.Add(time.Microsecond) },
			"previous hash": func(e *Entry) { e.PreviousHash = "abc" },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				e := sampleEntry()
				mutate(&e)
				assert.NotEqual(t, base, ComputeHash(e))
			})
		}
	})

	t.Run("hash is lowercase hex sha256", func(t *testing.T) {
		h := ComputeHash(sampleEntry())
		assert.Len(t, h, 64)
		assert.Regexp(t, `^[0-9a-f]{64}$`, h)
	})

	t.Run("nil and empty details are equivalent", func(t *testing.T) {
		a := sampleEntry()
		a.Details = nil
		b := sampleEntry()
		b.Details = Details{}
		assert.Equal(t, ComputeHash(a), ComputeHash(b))
	})
}

func TestCanonical(t *testing.T) {
	t.Run("keys sorted and empty references null", func(t *testing.T) {
		e := Entry{
			EventType:    EventAuth,
			Action:       "LOGIN",
			CreatedAt:    fixedTime,
			PreviousHash: GenesisHash,
		}
		got := string(Canonical(e))
		want := `{"action":"LOGIN","createdAt":"2026-03-14T09:26:53.589793Z","details":{},` +
			`"eventType":"AUTH","previousHash":"GENESIS","resourceId":null,"resourceType":null,"userId":null}`
		assert.Equal(t, want, got)
	})

	t.Run("timestamp rendered in UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		a := sampleEntry()
		b := sampleEntry()
		b.CreatedAt = a.CreatedAt.In(loc)
		require.Equal(t, string(Canonical(a)), string(Canonical(b)))
	})
}
