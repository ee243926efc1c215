package recorder

import "StockChart/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSession(_ *Session) error { return nil }
func (n *NoopRecorder) RecordPrices(_ string, _ []model.Record, _ model.FieldMap) error {
	return nil
}
func (n *NoopRecorder) RecentSessions(_ int) ([]Session, error) { return nil, nil }
func (n *NoopRecorder) Close() error                            { return nil }
