// Package categorize applies a trained model to transactions and decides,
// per transaction, whether the prediction is confident enough to keep.
package categorize

// DefaultThreshold is the minimum probability for a prediction to stand.
const DefaultThreshold = 0.7

// Decision is the outcome of the confidence gate for one transaction.
type Decision struct {
	Category   string
	Confidence float64
	Overridden bool // true when Category is the fallback, not the prediction
}

// Gate keeps predicted when its probability is at least threshold, and
// otherwise swaps in fallback. Confidence is always the probability the
// classifier assigned to predicted.
func Gate(predicted string, classes []string, probs []float64, threshold float64, fallback string) Decision {
	var confidence float64
	for i, c := range classes {
		if c == predicted && i < len(probs) {
			confidence = probs[i]
			break
		}
	}
	if confidence < threshold {
		return Decision{Category: fallback, Confidence: confidence, Overridden: true}
	}
	return Decision{Category: predicted, Confidence: confidence}
}
