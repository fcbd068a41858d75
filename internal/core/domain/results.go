package domain

import "encoding/json"

// Molecule is one candidate produced by a pipeline run.
type Molecule struct {
	SMILES string             `json:"smiles"`
	Name   string             `json:"name,omitempty"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// PCAPoint is one trajectory frame projected into principal-component space.
// Frame indices are dense 0..N-1 and order-significant: they represent
// simulation time order and line up with the trajectory's frame count.
type PCAPoint struct {
	Frame     int       `json:"frame"`
	PC        []float64 `json:"pc"`
	ClusterID *int      `json:"cluster_id,omitempty"`
	TimePS    *float64  `json:"time_ps,omitempty"`
}

// MetricValue holds a numeric or textual metric. The backend mixes both in
// the same map, so we keep the raw form and expose typed accessors.
type MetricValue struct {
	raw json.RawMessage
}

func NewNumericMetric(v float64) MetricValue {
	b, _ := json.Marshal(v)
	return MetricValue{raw: b}
}

func NewTextMetric(v string) MetricValue {
	b, _ := json.Marshal(v)
	return MetricValue{raw: b}
}

func (m MetricValue) Float() (float64, bool) {
	var f float64
	if err := json.Unmarshal(m.raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func (m MetricValue) Text() (string, bool) {
	var s string
	if err := json.Unmarshal(m.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (m MetricValue) MarshalJSON() ([]byte, error) {
	if m.raw == nil {
		return []byte("null"), nil
	}
	return m.raw, nil
}

func (m *MetricValue) UnmarshalJSON(b []byte) error {
	m.raw = append(m.raw[:0], b...)
	return nil
}

// ResultSet holds everything a completed job produced. It belongs to the
// currently selected job only; selecting another job discards it.
type ResultSet struct {
	JobID         JobID                  `json:"job_id"`
	Molecules     []Molecule             `json:"molecules"`
	Projection    []PCAPoint             `json:"projection"`
	TopologyURL   string                 `json:"topology_url,omitempty"`
	TrajectoryURL string                 `json:"trajectory_url,omitempty"`
	Metrics       map[string]MetricValue `json:"metrics,omitempty"`
}

// FrameCount returns the number of frames the visualization can address.
// Zero means unknown: seeks are then accepted unclamped.
func (r *ResultSet) FrameCount() int {
	if r == nil {
		return 0
	}
	return len(r.Projection)
}
