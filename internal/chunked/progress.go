package chunked

import (
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

// ChunkProgress is the client-facing view of a chunked job.
type ChunkProgress struct {
	CurrentChunk       int    `json:"current_chunk"`
	TotalChunks        int    `json:"total_chunks"`
	ProcessedWebinars  int    `json:"processed_webinars"`
	TotalWebinars      int    `json:"total_webinars"`
	Successful         int    `json:"successful"`
	Failed             int    `json:"failed"`
	ProgressPercentage int    `json:"progress_percentage"`
	StageMessage       string `json:"stage_message"`
}

// ProgressOf derives progress from a chunk checkpoint. The percentage only
// grows with processed webinars and is 100 once every chunk is done.
func ProgressOf(state *entities.ChunkState) ChunkProgress {
	if state == nil {
		return ChunkProgress{}
	}
	p := ChunkProgress{
		CurrentChunk:       state.CurrentChunk,
		TotalChunks:        state.TotalChunks,
		ProcessedWebinars:  state.ProcessedWebinars,
		TotalWebinars:      state.TotalWebinars,
		Successful:         state.Successful,
		Failed:             state.Failed,
		ProgressPercentage: recovery.Percentage(state.ProcessedWebinars, state.TotalWebinars),
		StageMessage:       state.StageMessage,
	}
	if done(state) {
		p.ProgressPercentage = 100
	}
	return p
}

func done(state *entities.ChunkState) bool {
	return state.CurrentChunk >= state.TotalChunks
}
