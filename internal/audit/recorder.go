package audit

import (
	"context"

	"github.com/nerrad567/osc-bridge/internal/entity"
)

// Recorder turns bridge events into audit rows.
type Recorder struct {
	repo     Repository
	bridgeID string
}

// NewRecorder creates a Recorder writing to repo. bridgeID is stored as the
// entity id of lifecycle rows.
func NewRecorder(repo Repository, bridgeID string) *Recorder {
	return &Recorder{repo: repo, bridgeID: bridgeID}
}

// EntityRegistered records the first registration of address as e.
func (r *Recorder) EntityRegistered(ctx context.Context, address string, e entity.Entity) error {
	return r.repo.Create(ctx, &AuditLog{
		Action:     ActionEntityRegistered,
		EntityType: string(e.Component),
		EntityID:   e.UniqueID,
		Source:     SourceOSC,
		Details: map[string]any{
			"address":      address,
			"name":         e.Name,
			"value_kind":   e.ValueKind.String(),
			"config_topic": e.ConfigTopic,
		},
	})
}

// BridgeStarted records process start. version is the build version.
func (r *Recorder) BridgeStarted(ctx context.Context, version string) error {
	return r.lifecycle(ctx, ActionBridgeStarted, map[string]any{"version": version})
}

// BridgeStopped records process shutdown with the number of entities known
// at that point.
func (r *Recorder) BridgeStopped(ctx context.Context, entities int) error {
	return r.lifecycle(ctx, ActionBridgeStopped, map[string]any{"entities": entities})
}

func (r *Recorder) lifecycle(ctx context.Context, action string, details map[string]any) error {
	return r.repo.Create(ctx, &AuditLog{
		Action:     action,
		EntityType: "bridge",
		EntityID:   r.bridgeID,
		Source:     "system",
		Details:    details,
	})
}

// List returns recorded rows; see SQLiteRepository.List.
func (r *Recorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return r.repo.List(ctx, filter)
}
