package entities

import (
	"fmt"
	"strings"
	"time"
)

// SourcePriority orders ingestible sources by importance.
type SourcePriority string

const (
	SourcePriorityLow    SourcePriority = "low"
	SourcePriorityMedium SourcePriority = "medium"
	SourcePriorityHigh   SourcePriority = "high"
)

// IngestionSource is a registered knowledge source. The registry owns it;
// the ingestion worker only reads it and asks the registry to refresh.
type IngestionSource struct {
	SourceID        string         `json:"sourceId" db:"source_id"`
	URL             string         `json:"url" db:"url"`
	Priority        SourcePriority `json:"priority" db:"priority"`
	FreshnessHours  int            `json:"freshnessHours" db:"freshness_hours"`
	Tags            []string       `json:"tags" db:"tags"`
	LastRefreshedAt time.Time      `json:"lastRefreshedAt,omitempty" db:"last_refreshed_at"`
}

// IsFresh reports whether the source was refreshed within its freshness
// window as of now.
func (s *IngestionSource) IsFresh(now time.Time) bool {
	if s.LastRefreshedAt.IsZero() || s.FreshnessHours <= 0 {
		return false
	}
	return now.Sub(s.LastRefreshedAt) < time.Duration(s.FreshnessHours)*time.Hour
}

// IngestionBatchMessageType is the only message type the worker accepts.
const IngestionBatchMessageType = "ingestion.batch.requested"

// IngestionBatchMessageVersion is the supported wire version.
const IngestionBatchMessageVersion = "1"

// IngestionBatchMessage is the wire format of one queued refresh request.
type IngestionBatchMessage struct {
	MessageType    string            `json:"messageType"`
	MessageVersion string            `json:"messageVersion"`
	RequestedAt    time.Time         `json:"requestedAt"`
	Sources        []IngestionSource `json:"sources"`
}

// Validate checks the message envelope and its sources.
func (m *IngestionBatchMessage) Validate() error {
	if m.MessageType != IngestionBatchMessageType {
		return fmt.Errorf("unexpected message type %q", m.MessageType)
	}
	if m.MessageVersion != IngestionBatchMessageVersion {
		return fmt.Errorf("unsupported message version %q", m.MessageVersion)
	}
	if len(m.Sources) == 0 {
		return fmt.Errorf("message contains no sources")
	}
	for i, src := range m.Sources {
		if strings.TrimSpace(src.SourceID) == "" {
			return fmt.Errorf("source %d is missing sourceId", i)
		}
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("source %q is missing url", src.SourceID)
		}
		switch src.Priority {
		case SourcePriorityLow, SourcePriorityMedium, SourcePriorityHigh:
		default:
			return fmt.Errorf("source %q has invalid priority %q", src.SourceID, src.Priority)
		}
	}
	return nil
}

// BatchItemOutcome records how one queue message fared.
type BatchItemOutcome struct {
	MessageID string `json:"message_id"`
	Failed    bool   `json:"failed"`
	Reason    string `json:"reason,omitempty"`
}

// BatchItemFailure identifies a failed message in the batch response, so
// the queue redelivers only the failed subset.
type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// BatchResult is the worker's response for one batch. Succeeded messages
// are absent from the failure list.
type BatchResult struct {
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}
