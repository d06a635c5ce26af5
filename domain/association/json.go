package association

import (
	"encoding/json"
	"fmt"
	"math"
)

// score encodes non-finite floats as the strings "NaN", "+Inf" and "-Inf",
// which encoding/json would otherwise refuse.
type score float64

func (s score) MarshalJSON() ([]byte, error) {
	switch TagOf(float64(s)) {
	case TagNaN:
		return []byte(`"NaN"`), nil
	case TagPositiveInf:
		return []byte(`"+Inf"`), nil
	case TagNegativeInf:
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(float64(s))
}

func (s *score) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		switch text {
		case "NaN":
			*s = score(math.NaN())
		case "+Inf", "Inf":
			*s = score(math.Inf(1))
		case "-Inf":
			*s = score(math.Inf(-1))
		default:
			return fmt.Errorf("invalid score %q", text)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = score(f)
	return nil
}

type outcomeJSON struct {
	SampleSize       int   `json:"sample_size"`
	ZScore           score `json:"z_score"`
	NormalizedZScore score `json:"normalized_z_score"`
	Observed         score `json:"observed"`
	NullMean         score `json:"null_mean"`
	NullStdDev       score `json:"null_std_dev"`
	Iterations       int   `json:"iterations"`
	Degenerate       bool  `json:"degenerate"`
}

func toOutcomeJSON(o PermutationOutcome) outcomeJSON {
	return outcomeJSON{
		SampleSize:       o.SampleSize,
		ZScore:           score(o.ZScore),
		NormalizedZScore: score(o.NormalizedZScore),
		Observed:         score(o.Observed),
		NullMean:         score(o.NullMean),
		NullStdDev:       score(o.NullStdDev),
		Iterations:       o.Iterations,
		Degenerate:       o.Degenerate,
	}
}

func (j outcomeJSON) outcome() PermutationOutcome {
	return PermutationOutcome{
		SampleSize:       j.SampleSize,
		ZScore:           float64(j.ZScore),
		NormalizedZScore: float64(j.NormalizedZScore),
		Observed:         float64(j.Observed),
		NullMean:         float64(j.NullMean),
		NullStdDev:       float64(j.NullStdDev),
		Iterations:       j.Iterations,
		Degenerate:       j.Degenerate,
	}
}

func (o PermutationOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(toOutcomeJSON(o))
}

func (o *PermutationOutcome) UnmarshalJSON(data []byte) error {
	var j outcomeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*o = j.outcome()
	return nil
}

// SweepRow needs its own methods: the embedded outcome's would be promoted
// and drop Fraction.
type sweepRowJSON struct {
	Fraction float64 `json:"fraction"`
	outcomeJSON
}

func (r SweepRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(sweepRowJSON{Fraction: r.Fraction, outcomeJSON: toOutcomeJSON(r.PermutationOutcome)})
}

func (r *SweepRow) UnmarshalJSON(data []byte) error {
	var j sweepRowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	r.Fraction = j.Fraction
	r.PermutationOutcome = j.outcome()
	return nil
}

type taggedValueJSON struct {
	Value     score    `json:"value"`
	Tag       ValueTag `json:"tag"`
	Replicate int      `json:"replicate"`
}

func (v TaggedValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedValueJSON{Value: score(v.Value), Tag: v.Tag, Replicate: v.Replicate})
}

func (v *TaggedValue) UnmarshalJSON(data []byte) error {
	var j taggedValueJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*v = TaggedValue{Value: float64(j.Value), Tag: j.Tag, Replicate: j.Replicate}
	return nil
}

// collectionJSON carries the grouped view for consumers; decoding rebuilds
// the groups from Tables so the two can never disagree.
type collectionJSON struct {
	Finalized         bool                  `json:"finalized"`
	SampleSizes       []int                 `json:"sample_sizes"`
	ZScores           map[int][]TaggedValue `json:"z_scores"`
	NormalizedZScores map[int][]TaggedValue `json:"normalized_z_scores"`
	Tables            []SweepTable          `json:"tables"`
}

func (c *ReplicateCollection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{
		Finalized:         c.finalized,
		SampleSizes:       c.SampleSizes(),
		ZScores:           c.zScores,
		NormalizedZScores: c.normalizedZScores,
		Tables:            c.tables,
	})
}

func (c *ReplicateCollection) UnmarshalJSON(data []byte) error {
	var j collectionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	rebuilt := NewReplicateCollection()
	for _, table := range j.Tables {
		if err := rebuilt.Add(table); err != nil {
			return err
		}
	}
	if j.Finalized {
		rebuilt.Finalize()
	}
	*c = *rebuilt
	return nil
}
