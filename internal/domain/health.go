package domain

// Health is the error-rate classification of a node or edge
type Health string

const (
	Healthy   Health = "healthy"
	Unhealthy Health = "unhealthy"
)

// Default health thresholds. A ratio equal to the threshold is healthy.
const (
	DefaultExpectedErrorThreshold   = 0.98
	DefaultUnexpectedErrorThreshold = 0.9999
)

// Thresholds are the minimum success ratios a healthy edge must meet
type Thresholds struct {
	ExpectedError   float64 `toml:"expected_error" json:"expected_error"`
	UnexpectedError float64 `toml:"unexpected_error" json:"unexpected_error"`
}

// DefaultThresholds returns the default health thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExpectedError:   DefaultExpectedErrorThreshold,
		UnexpectedError: DefaultUnexpectedErrorThreshold,
	}
}

// ClassifyHealth classifies traffic counters against the thresholds.
// No traffic at all is healthy; errors without any successful call are not.
func (t Thresholds) ClassifyHealth(ok, expectedError, unexpectedError int) Health {
	if ok == 0 && expectedError == 0 && unexpectedError == 0 {
		return Healthy
	}
	if ok <= 0 {
		return Unhealthy
	}
	okf := float64(ok)
	if okf/(okf+float64(expectedError)) < t.ExpectedError {
		return Unhealthy
	}
	if okf/(okf+float64(unexpectedError)) < t.UnexpectedError {
		return Unhealthy
	}
	return Healthy
}

// Classify classifies a set of counters
func (t Thresholds) Classify(c Counters) Health {
	return t.ClassifyHealth(c.OK, c.ExpectedError, c.UnexpectedError)
}

// ClassifyEdgeHealth classifies counters using the default thresholds
func ClassifyEdgeHealth(ok, expectedError, unexpectedError int) Health {
	return DefaultThresholds().ClassifyHealth(ok, expectedError, unexpectedError)
}
