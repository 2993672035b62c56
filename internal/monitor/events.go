package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/feedwatch/internal/spike"
	"github.com/HerbHall/feedwatch/pkg/models"
)

// Event topics published by the cycle driver.
const (
	TopicSpikeConfirmed = "monitor.spike.confirmed"
	TopicCycleFailed    = "monitor.cycle.failed"
)

// SpikeEvent is the payload of TopicSpikeConfirmed. Rank is 1-based over the
// spikes confirmed in the same cycle, ordered by jump.
type SpikeEvent struct {
	ID         uuid.UUID           `json:"id"`
	Cycle      uint64              `json:"cycle"`
	Feed       models.FeedSnapshot `json:"feed"`
	Stats      spike.FeedStats     `json:"stats"` // stats before this cycle's observation
	Threshold  float32             `json:"threshold"`
	Jump       int64               `json:"jump"`
	Rank       int                 `json:"rank"`
	Total      int                 `json:"total"`
	DetectedAt time.Time           `json:"detected_at"`
}

// CycleFailedEvent is the payload of TopicCycleFailed.
type CycleFailedEvent struct {
	Err      error     `json:"-"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failed_at"`
}
