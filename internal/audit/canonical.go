package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Canonical returns the deterministic serialization an entry's hash commits
// to. It is JSON with keys sorted by name at every level (encoding/json sorts
// map keys), empty optional references encoded as null and the timestamp in
// RFC3339Nano UTC. EntryHash and ID are not part of the commitment.
//
// Append and Validate both go through this function; there is no second
// serializer.
func Canonical(e Entry) []byte {
	details := map[string]string{}
	for k, v := range e.Details {
		details[k] = v
	}
	doc := map[string]any{
		"action":       e.Action,
		"createdAt":    e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"details":      details,
		"eventType":    string(e.EventType),
		"previousHash": e.PreviousHash,
		"resourceId":   nullable(e.ResourceID),
		"resourceType": nullable(e.ResourceType),
		"userId":       nullable(e.UserID),
	}
	// Marshal cannot fail: every value is a string, nil or map of strings.
	b, _ := json.Marshal(doc)
	return b
}

// ComputeHash returns the lowercase hex SHA-256 of the entry's canonical form.
func ComputeHash(e Entry) string {
	sum := sha256.Sum256(Canonical(e))
	return hex.EncodeToString(sum[:])
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
