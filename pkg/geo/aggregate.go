package geo

// Aggregator folds a stream of envelopes into one overall extent.
// Invalid envelopes are skipped. The zero value is ready to use.
type Aggregator struct {
	extent Envelope
	hasAny bool
	count  int
}

// Add merges e into the extent and reports whether it was used
func (a *Aggregator) Add(e Envelope) bool {
	if !e.Valid() {
		return false
	}
	if !a.hasAny {
		a.extent = e
		a.hasAny = true
	} else {
		a.extent = a.extent.Union(e)
	}
	a.count++
	return true
}

// AddShapes merges the envelope of every shape
func (a *Aggregator) AddShapes(shapes []Shape) {
	for _, s := range shapes {
		a.Add(s.Envelope)
	}
}

// Extent returns the folded extent, or false when nothing valid was added
func (a *Aggregator) Extent() (Envelope, bool) {
	if !a.hasAny {
		return Envelope{}, false
	}
	return a.extent, true
}

// Count returns how many valid envelopes were merged
func (a *Aggregator) Count() int {
	return a.count
}

// Reset clears the aggregate
func (a *Aggregator) Reset() {
	*a = Aggregator{}
}
