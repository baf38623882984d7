package training

import "sort"

// Metrics holds precision, recall and F1 for one class or one average.
type Metrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassMetrics is the held-out score for one label.
type ClassMetrics struct {
	Label string
	Metrics
}

// Report is the held-out evaluation of a freshly trained model. It is
// informational; a poor report never blocks persisting the model.
type Report struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    Metrics
	WeightedAvg Metrics
}

// Evaluate scores predicted against actual. Labels are the sorted union of
// both slices; a ratio with a zero denominator scores 0.
func Evaluate(actual, predicted []string) Report {
	var r Report
	if len(actual) == 0 {
		return r
	}

	seen := make(map[string]bool)
	for _, l := range actual {
		seen[l] = true
	}
	for _, l := range predicted {
		seen[l] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	tp := make(map[string]int)
	predCount := make(map[string]int)
	support := make(map[string]int)
	correct := 0
	for i := range actual {
		support[actual[i]]++
		predCount[predicted[i]]++
		if actual[i] == predicted[i] {
			tp[actual[i]]++
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(len(actual))

	total := float64(len(actual))
	for _, l := range labels {
		m := Metrics{
			Precision: ratio(tp[l], predCount[l]),
			Recall:    ratio(tp[l], support[l]),
			Support:   support[l],
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, ClassMetrics{Label: l, Metrics: m})

		r.MacroAvg.Precision += m.Precision / float64(len(labels))
		r.MacroAvg.Recall += m.Recall / float64(len(labels))
		r.MacroAvg.F1 += m.F1 / float64(len(labels))

		w := float64(m.Support) / total
		r.WeightedAvg.Precision += m.Precision * w
		r.WeightedAvg.Recall += m.Recall * w
		r.WeightedAvg.F1 += m.F1 * w
	}
	r.MacroAvg.Support = len(actual)
	r.WeightedAvg.Support = len(actual)
	return r
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
