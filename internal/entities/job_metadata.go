package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobMetadata carries the per-kind bookkeeping of a SyncJob. Exactly one of the
// variant pointers is set and it must match Kind.
type JobMetadata struct {
	Kind         JobKind            `json:"kind"`
	Chunk        *ChunkState        `json:"chunk,omitempty"`
	Resync       *ResyncState       `json:"resync,omitempty"`
	Registration *RegistrationState `json:"registration,omitempty"`
}

// ChunkState is the checkpoint of a chunked mass resync.
type ChunkState struct {
	CurrentChunk      int         `json:"current_chunk"`
	TotalChunks       int         `json:"total_chunks"`
	ChunkSize         int         `json:"chunk_size"`
	TotalWebinars     int         `json:"total_webinars"`
	ProcessedWebinars int         `json:"processed_webinars"`
	Successful        int         `json:"successful"`
	Failed            int         `json:"failed"`
	WebinarIDs        []uint      `json:"webinar_ids"`
	ProcessedIDs      []uint      `json:"processed_ids"`
	CompletedChunks   []int       `json:"completed_chunks"`
	LastChunkAt       *time.Time  `json:"last_chunk_at,omitempty"`
	StageMessage      string      `json:"stage_message,omitempty"`
	Claim             *ChunkClaim `json:"claim,omitempty"`
}

// ChunkClaim marks a chunk as taken by one caller until it is checkpointed.
type ChunkClaim struct {
	Index int       `json:"index"`
	At    time.Time `json:"at"`
}

// ResyncState tracks a batch-driven attendee recovery run.
type ResyncState struct {
	CurrentBatch int    `json:"current_batch"`
	TotalBatches int    `json:"total_batches"`
	Found        int    `json:"found"`
	Stored       int    `json:"stored"`
	Successful   int    `json:"successful"`
	Failed       int    `json:"failed"`
	TargetIDs    []uint `json:"target_ids,omitempty"`
	StageMessage string `json:"stage_message,omitempty"`
}

// RegistrationState tracks a registration recovery run.
type RegistrationState struct {
	CurrentBatch int    `json:"current_batch"`
	TotalBatches int    `json:"total_batches"`
	Found        int    `json:"found"`
	Stored       int    `json:"stored"`
	Rejected     int    `json:"rejected"`
	Successful   int    `json:"successful"`
	Failed       int    `json:"failed"`
	TargetIDs    []uint `json:"target_ids,omitempty"`
	StageMessage string `json:"stage_message,omitempty"`
}

// NewChunkMetadata returns metadata for a chunked mass resync job.
func NewChunkMetadata(state ChunkState) JobMetadata {
	return JobMetadata{Kind: JobKindMassResync, Chunk: &state}
}

// NewResyncMetadata returns metadata for an attendee recovery job.
func NewResyncMetadata(state ResyncState) JobMetadata {
	return JobMetadata{Kind: JobKindAttendeeRecovery, Resync: &state}
}

// NewRegistrationMetadata returns metadata for a registration recovery job.
func NewRegistrationMetadata(state RegistrationState) JobMetadata {
	return JobMetadata{Kind: JobKindRegistrationRecovery, Registration: &state}
}

// Validate checks that the populated variant matches Kind.
func (m JobMetadata) Validate() error {
	set := 0
	if m.Chunk != nil {
		set++
	}
	if m.Resync != nil {
		set++
	}
	if m.Registration != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("job metadata has %d variants set", set)
	}

	switch m.Kind {
	case JobKindMassResync:
		if set == 1 && m.Chunk == nil {
			return fmt.Errorf("job metadata for %s must carry chunk state", m.Kind)
		}
	case JobKindAttendeeRecovery:
		if set == 1 && m.Resync == nil {
			return fmt.Errorf("job metadata for %s must carry resync state", m.Kind)
		}
	case JobKindRegistrationRecovery:
		if set == 1 && m.Registration == nil {
			return fmt.Errorf("job metadata for %s must carry registration state", m.Kind)
		}
	case "":
		if set != 0 {
			return fmt.Errorf("job metadata variant set without kind")
		}
	default:
		return fmt.Errorf("unknown job kind %q", m.Kind)
	}
	return nil
}

// StageMessage returns the human readable stage of whichever variant is set.
func (m JobMetadata) StageMessage() string {
	switch {
	case m.Chunk != nil:
		return m.Chunk.StageMessage
	case m.Resync != nil:
		return m.Resync.StageMessage
	case m.Registration != nil:
		return m.Registration.StageMessage
	}
	return ""
}

// TargetIDs returns the webinar filter recorded for a recovery run.
func (m JobMetadata) TargetIDs() []uint {
	switch {
	case m.Resync != nil:
		return m.Resync.TargetIDs
	case m.Registration != nil:
		return m.Registration.TargetIDs
	}
	return nil
}

// Value stores the metadata as a JSON text column.
func (m JobMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes the JSON text column.
func (m *JobMetadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JobMetadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported job metadata type %T", src)
	}
	if len(raw) == 0 {
		*m = JobMetadata{}
		return nil
	}
	return json.Unmarshal(raw, m)
}
