package report

import (
	"encoding/json"
	"math"

	"github.com/montanaflynn/stats"

	"gonzs/domain/association"
)

// MetricSummary describes the finite values of one metric at one sample size.
// Fields are NaN when too few finite values exist to compute them.
type MetricSummary struct {
	Count       int     `json:"count"`
	FiniteCount int     `json:"finite_count"`
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`
	// VarianceToMean is the sample variance divided by the mean.
	VarianceToMean float64 `json:"variance_to_mean"`
	Min            float64 `json:"min"`
	Q25            float64 `json:"q25"`
	Median         float64 `json:"median"`
	Q75            float64 `json:"q75"`
	Max            float64 `json:"max"`
}

// SizeSummary pairs the ZS and nZS summaries of one sample size
type SizeSummary struct {
	SampleSize int           `json:"sample_size"`
	ZScore     MetricSummary `json:"z_score"`
	Normalized MetricSummary `json:"normalized_z_score"`
}

// Summary covers every sample size of a replicate collection, ascending
type Summary struct {
	Replicates int           `json:"replicates"`
	Sizes      []SizeSummary `json:"sizes"`
}

// Size returns the summary for sampleSize
func (s Summary) Size(sampleSize int) (SizeSummary, bool) {
	for _, size := range s.Sizes {
		if size.SampleSize == sampleSize {
			return size, true
		}
	}
	return SizeSummary{}, false
}

// Summarize computes per-size statistics over the finite values only; the
// collection itself is not modified.
func Summarize(collection *association.ReplicateCollection) Summary {
	summary := Summary{Replicates: collection.Replicates()}
	for _, size := range collection.SampleSizes() {
		summary.Sizes = append(summary.Sizes, SizeSummary{
			SampleSize: size,
			ZScore:     summarizeMetric(collection.ZScores(size)),
			Normalized: summarizeMetric(collection.NormalizedZScores(size)),
		})
	}
	return summary
}

func summarizeMetric(values []association.TaggedValue) MetricSummary {
	finite := association.Finite(values)
	nan := math.NaN()
	m := MetricSummary{
		Count:          len(values),
		FiniteCount:    len(finite),
		Mean:           nan,
		Variance:       nan,
		VarianceToMean: nan,
		Min:            nan,
		Q25:            nan,
		Median:         nan,
		Q75:            nan,
		Max:            nan,
	}
	if len(finite) == 0 {
		return m
	}

	data := stats.Float64Data(finite)
	m.Mean, _ = stats.Mean(data)
	m.Min, _ = stats.Min(data)
	m.Max, _ = stats.Max(data)
	m.Median, _ = stats.Median(data)
	m.Q25, _ = stats.Percentile(data, 25)
	m.Q75, _ = stats.Percentile(data, 75)

	if len(finite) > 1 {
		m.Variance, _ = stats.SampleVariance(data)
		if m.Mean != 0 {
			m.VarianceToMean = m.Variance / m.Mean
		}
	}
	return m
}

// MarshalJSON writes undefined statistics as null
func (m MetricSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count          int      `json:"count"`
		FiniteCount    int      `json:"finite_count"`
		Mean           *float64 `json:"mean"`
		Variance       *float64 `json:"variance"`
		VarianceToMean *float64 `json:"variance_to_mean"`
		Min            *float64 `json:"min"`
		Q25            *float64 `json:"q25"`
		Median         *float64 `json:"median"`
		Q75            *float64 `json:"q75"`
		Max            *float64 `json:"max"`
	}{
		m.Count, m.FiniteCount,
		finiteOrNil(m.Mean), finiteOrNil(m.Variance), finiteOrNil(m.VarianceToMean),
		finiteOrNil(m.Min), finiteOrNil(m.Q25), finiteOrNil(m.Median), finiteOrNil(m.Q75), finiteOrNil(m.Max),
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
