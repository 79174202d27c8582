package domain

import "time"

// FeatureID identifies a derived feature. Scorers reference features by
// these typed constants, never by bare strings.
type FeatureID string

// Features derived by the extractor.
const (
	FeatureAmount       FeatureID = "amount"
	FeatureVelocity     FeatureID = "velocity"
	FeatureFrequency    FeatureID = "frequency"
	FeatureNewDevice    FeatureID = "new_device"
	FeatureNewLocation  FeatureID = "new_location"
	FeatureUnusualTime  FeatureID = "unusual_time"
	FeatureHighValue    FeatureID = "high_value"
	FeatureRoundAmount  FeatureID = "round_amount"
	FeatureHistoryDepth FeatureID = "history_depth"
)

// AllFeatureIDs lists every feature the extractor emits, in a stable order.
func AllFeatureIDs() []FeatureID {
	return []FeatureID{
		FeatureAmount,
		FeatureVelocity,
		FeatureFrequency,
		FeatureNewDevice,
		FeatureNewLocation,
		FeatureUnusualTime,
		FeatureHighValue,
		FeatureRoundAmount,
		FeatureHistoryDepth,
	}
}

// FeatureValue holds one derived feature: the raw measurement and its
// normalized form in [0,1].
type FeatureValue struct {
	Raw  float64 `json:"raw"`
	Norm float64 `json:"norm"`
}

// FeatureVector is the immutable output of feature extraction. Build it
// with NewFeatureVector; scorers only read it.
type FeatureVector struct {
	TenantID   string                     `json:"tenantId"`
	SubjectID  string                     `json:"subjectId"`
	ObservedAt time.Time                  `json:"observedAt"`
	values     map[FeatureID]FeatureValue `json:"-"`
}

// NewFeatureVector builds a vector from derived values. The map is copied
// so later mutation by the caller cannot leak in.
func NewFeatureVector(tenantID, subjectID string, observedAt time.Time, values map[FeatureID]FeatureValue) *FeatureVector {
	copied := make(map[FeatureID]FeatureValue, len(values))
	for id, v := range values {
		copied[id] = v
	}
	return &FeatureVector{
		TenantID:   tenantID,
		SubjectID:  subjectID,
		ObservedAt: observedAt,
		values:     copied,
	}
}

// Norm returns the normalized value for a feature, 0 when absent.
func (fv *FeatureVector) Norm(id FeatureID) float64 {
	return fv.values[id].Norm
}

// Raw returns the raw value for a feature, 0 when absent.
func (fv *FeatureVector) Raw(id FeatureID) float64 {
	return fv.values[id].Raw
}

// Has reports whether the feature was derived.
func (fv *FeatureVector) Has(id FeatureID) bool {
	_, ok := fv.values[id]
	return ok
}

// Values returns a copy of all derived features.
func (fv *FeatureVector) Values() map[FeatureID]FeatureValue {
	out := make(map[FeatureID]FeatureValue, len(fv.values))
	for id, v := range fv.values {
		out[id] = v
	}
	return out
}
