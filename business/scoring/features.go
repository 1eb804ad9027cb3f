package scoring

import (
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"toolAdvisor/domain"
)

func timeBucketFromHour(hour int) float64 {
	switch {
	case hour < 6:
		return 0.0
	case hour < 12:
		return 0.33
	case hour < 18:
		return 0.66
	default:
		return 1.0
	}
}

// timeBucketFromLabel maps "night", "morning", "afternoon" and "evening" to
// the same buckets as timeBucketFromHour.
func timeBucketFromLabel(label string) (float64, bool) {
	switch strings.ToLower(label) {
	case "night":
		return 0.0, true
	case "morning":
		return 0.33, true
	case "afternoon":
		return 0.66, true
	case "evening":
		return 1.0, true
	default:
		return 0.5, false
	}
}

// hashToUnit deterministically hashes a string into [0, 1].
func hashToUnit(s string) float64 {
	if s == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32()) / float64(^uint32(0))
}

func labelBucket(kind, label string) float64 {
	if label == "" {
		// neutral default when the field is unknown
		return 0.5
	}
	return hashToUnit(kind + ":" + strings.ToLower(label))
}

func skillBucket(level domain.SkillLevel) float64 {
	rank := level.Rank()
	if rank == 0 {
		return 0.5
	}
	return float64(rank) / 4.0
}

func businessHash(bc map[string]string) float64 {
	if len(bc) == 0 {
		return 0
	}
	keys := make([]string, 0, len(bc))
	for k := range bc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(bc[k])
		b.WriteByte('|')
	}
	return hashToUnit("business:" + b.String())
}

// buildFeatureVector encodes a context snapshot for the contextual arms.
// Falls back to now for the time bucket when the snapshot carries none.
func buildFeatureVector(c domain.ContextSnapshot, now time.Time) vector {
	var x vector

	// index 0: bias
	x[0] = 1.0

	// index 1: time bucket
	if v, ok := timeBucketFromLabel(c.TimeOfDay); ok {
		x[1] = v
	} else {
		x[1] = timeBucketFromHour(now.Hour())
	}

	// index 2: skill level
	x[2] = skillBucket(c.SkillLevel)

	// index 3: workflow stage
	x[3] = labelBucket("stage", c.WorkflowStage)

	// index 4: intent
	x[4] = labelBucket("intent", c.Intent)

	// index 5: device
	x[5] = labelBucket("device", c.Device)

	// index 6: business context
	x[6] = businessHash(c.BusinessContext)

	return x
}
