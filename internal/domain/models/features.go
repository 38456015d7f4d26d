package models

// FeatureVector is a fixed-size ordered mapping from feature names to values,
// derived deterministically from one Snapshot. Order is significant: it must
// match the model artifact's manifest exactly.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Map returns the vector as a name->value map. Order is lost; use Names for
// the canonical ordering.
func (fv FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(fv.Names))
	for i, n := range fv.Names {
		m[n] = fv.Values[i]
	}
	return m
}

// Get returns the value for a named feature.
func (fv FeatureVector) Get(name string) (float64, bool) {
	for i, n := range fv.Names {
		if n == name {
			return fv.Values[i], true
		}
	}
	return 0, false
}

// MatchesManifest reports whether the vector's names equal the manifest in
// both content and order.
func (fv FeatureVector) MatchesManifest(manifest []string) bool {
	if len(fv.Names) != len(manifest) {
		return false
	}
	for i, n := range fv.Names {
		if n != manifest[i] {
			return false
		}
	}
	return true
}

// FeatureRecord is a feature vector plus the metadata of the snapshot it was
// derived from; the unit of durable persistence.
type FeatureRecord struct {
	Meta     SnapshotMeta
	Features FeatureVector
}
