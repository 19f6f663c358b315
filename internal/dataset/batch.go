package dataset

// Batch is one mini-batch of observations in training order.
type Batch struct {
	Features   [][]float64
	Density    [][]float64
	Outcomes   []int
	PitcherIDs []int
	BatterIDs  []int
}

// Len returns the number of observations in the batch.
func (b Batch) Len() int { return len(b.Outcomes) }

// NextBatch returns the next batchSize rows starting at the internal cursor.
// When the following batch would run past the end of the data the cursor
// wraps to zero, so training can iterate indefinitely. A batch size larger
// than the dataset returns every row once.
func (d *PitchData) NextBatch(batchSize int) Batch {
	if batchSize <= 0 || batchSize > d.Len() {
		batchSize = d.Len()
	}
	start := d.batchIndex
	end := start + batchSize
	if end > d.Len() {
		end = d.Len()
	}

	b := Batch{
		Features:   d.Features[start:end],
		Outcomes:   d.Outcomes[start:end],
		PitcherIDs: d.PitcherIDs[start:end],
		BatterIDs:  d.BatterIDs[start:end],
	}
	if d.Density != nil {
		b.Density = d.Density[start:end]
	}

	d.batchIndex += batchSize
	if d.batchIndex+batchSize > d.Len() {
		d.batchIndex = 0
	}
	return b
}

// HasReachedEnd reports whether the batch cursor sits at the first row,
// which is also true before any batch is taken. A loop that calls NextBatch
// and then checks HasReachedEnd makes exactly one pass over the data.
func (d *PitchData) HasReachedEnd() bool { return d.batchIndex == 0 }

// ResetBatchIndex rewinds the batch cursor to the first row.
func (d *PitchData) ResetBatchIndex() { d.batchIndex = 0 }
