package bulk

// MaxErrorSamples bounds the error messages kept per result
const MaxErrorSamples = 3

// Counters are the running tallies streamed to progress sinks
type Counters struct {
	TotalUsers      int `json:"total_users"`
	TotalOperations int `json:"total_operations"`
	TotalDeleted    int `json:"total_deleted"`
	Successful      int `json:"successful"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
}

func (c *Counters) addBatch(b BatchResult, deleting bool) {
	c.TotalOperations += b.Successful + b.Failed
	c.Successful += b.Successful
	c.Failed += b.Failed
	c.Skipped += b.Skipped
	if deleting {
		c.TotalDeleted += b.Successful
	}
}

// BatchResult is the outcome of one executor call
type BatchResult struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

func (b *BatchResult) addError(msg string) {
	b.Errors = appendSample(b.Errors, msg)
}

// AdminResult is the per-admin breakdown of a run
type AdminResult struct {
	Admin string `json:"admin"`
	Counters
	Errors []string `json:"errors,omitempty"`
	// Error is set when listing this admin's users failed
	Error string `json:"error,omitempty"`
}

// AggregateResult is the outcome of a bulk run
type AggregateResult struct {
	Counters
	Errors   []string       `json:"errors,omitempty"`
	Admins   []*AdminResult `json:"admins"`
	Examined int            `json:"examined"`
}

// Admin returns the breakdown for an admin, or nil
func (r *AggregateResult) Admin(name string) *AdminResult {
	for _, a := range r.Admins {
		if a.Admin == name {
			return a
		}
	}
	return nil
}

func (r *AggregateResult) addError(msg string) {
	r.Errors = appendSample(r.Errors, msg)
}

// consistent checks the counting invariants
func (r *AggregateResult) consistent() bool {
	return r.Successful+r.Failed == r.TotalOperations &&
		r.TotalOperations+r.Skipped == r.Examined
}

func appendSample(samples []string, msg string) []string {
	if len(samples) >= MaxErrorSamples {
		return samples
	}
	return append(samples, msg)
}
