package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/validation"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T, config *Config, opts ...Option) *Validator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	v, err := NewValidator(config, nil, opts...)
	require.NoError(t, err)
	return v
}

func call(entityType string) *validation.Context {
	return &validation.Context{
		Operation:  validation.OperationCreate,
		EntityType: entityType,
		UserID:     "u1",
	}
}

func daysAgo(d int) string {
	return testNow.Add(-time.Duration(d) * 24 * time.Hour).Format(time.RFC3339)
}

func goodContact() validation.Record {
	return validation.Record{
		"id":        "c-1",
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"phone":     "+442071234567",
		"website":   "https://example.com",
		"createdAt": daysAgo(10),
		"status":    "active",
	}
}

type oracleFunc func(ctx context.Context, entityType string, record validation.Record) (float64, error)

func (f oracleFunc) Uniqueness(ctx context.Context, entityType string, record validation.Record) (float64, error) {
	return f(ctx, entityType, record)
}

type schemaSource map[string]*schema.EntitySchema

func (s schemaSource) Get(entityType, _ string) (*schema.EntitySchema, bool) {
	es, ok := s[entityType]
	return es, ok
}

func TestValidateGoodRecord(t *testing.T) {
	v := newTestValidator(t, nil)

	result, err := v.Validate(context.Background(), goodContact(), call("Contact"))
	require.NoError(t, err)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)

	m, ok := result.Metadata.Extra["quality"].(Metrics)
	require.True(t, ok)
	assert.Equal(t, Metrics{
		Completeness: 100,
		Accuracy:     100,
		Consistency:  100,
		Validity:     100,
		Uniqueness:   100,
		Timeliness:   100,
		Overall:      100,
	}, m)
}

func TestCompleteness(t *testing.T) {
	tests := []struct {
		name     string
		record   validation.Record
		expected []string
		want     float64
	}{
		{"no fields", validation.Record{}, nil, 0},
		{"nothing populated", validation.Record{"name": "", "email": nil, "tags": []any{}, "notes": "   "}, nil, 0},
		{"fully populated", validation.Record{"name": "Ada", "age": 36, "active": false}, nil, 100},
		{"partially populated", validation.Record{"a": "x", "b": "y", "c": "", "d": nil, "e": ""}, nil, 40},
		{"missing expected field", validation.Record{"name": "Ada"}, []string{"name", "email"}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, completeness(tt.record, tt.expected))
		})
	}
}

func TestThresholds(t *testing.T) {
	v := newTestValidator(t, nil)

	t.Run("far below threshold is an error", func(t *testing.T) {
		result, err := v.Validate(context.Background(), validation.Record{"name": "", "email": nil}, call("Contact"))
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		e := result.Errors[0]
		assert.Equal(t, validation.CodeQualityBelowThreshold, e.Code)
		assert.Equal(t, string(Completeness), e.Field)
		assert.Equal(t, validation.CategoryData, e.Category)
		assert.Equal(t, 0.0, e.Value)
	})

	t.Run("below threshold is a warning", func(t *testing.T) {
		record := validation.Record{"a": "x", "b": "y", "c": "", "d": nil, "e": ""}
		result, err := v.Validate(context.Background(), record, call("Contact"))
		require.NoError(t, err)
		assert.True(t, result.Valid())
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, validation.CodeQualityWarning, result.Warnings[0].Code)
		assert.Equal(t, string(Completeness), result.Warnings[0].Field)
		assert.NotEmpty(t, result.Warnings[0].Recommendation)
	})
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name   string
		record validation.Record
		want   float64
	}{
		{"nothing to check", validation.Record{"name": "Ada"}, 100},
		{"valid formats", validation.Record{
			"email":       "ada@example.com",
			"phone":       "(555) 123-4567",
			"homepageUrl": "https://example.com/ada",
			"birthDate":   "1815-12-10",
			"revenue":     1.5e6,
		}, 100},
		{"invalid formats", validation.Record{
			"email":      "not-an-email",
			"phone":      "12",
			"websiteUrl": "ftp//example",
			"createdAt":  "yesterday",
		}, 0},
		{"half valid", validation.Record{"email": "ada@example.com", "phone": "call me"}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accuracy(tt.record))
		})
	}
}

func TestClassifyField(t *testing.T) {
	tests := []struct {
		name string
		want fieldKind
	}{
		{"email", kindEmail},
		{"workEmail", kindEmail},
		{"mobilePhone", kindPhone},
		{"websiteUrl", kindURL},
		{"callbackUri", kindURL},
		{"createdAt", kindDate},
		{"close_date", kindDate},
		{"updated_at", kindDate},
		{"security", kindOther},
		{"updatedBy", kindOther},
		{"name", kindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyField(tt.name))
		})
	}
}

func TestConsistency(t *testing.T) {
	consistent := validation.Record{
		"email":     "ada@example.com",
		"phone":     "555-123-4567",
		"createdAt": "2026-02-01T10:00:00Z",
		"firstName": "Ada",
	}
	assert.Equal(t, 100.0, consistency(consistent, 10))

	inconsistent := validation.Record{
		"email":     " Ada@Example.com",
		"phone":     "0044 20 7123",
		"createdAt": "03/01/2026",
		"firstName": "ada",
	}
	assert.Equal(t, 60.0, consistency(inconsistent, 10))
	assert.Equal(t, 0.0, consistency(inconsistent, 30))
}

func TestValidity(t *testing.T) {
	assert.Equal(t, 100.0, validity(validation.Record{"id": 7, "amount": 10.5, "status": "open"}))
	assert.Equal(t, 0.0, validity(validation.Record{
		"id":              "",
		"status":          "",
		"discountPercent": 150,
		"employeeCount":   -3,
		"email":           "a@@b",
	}))
	assert.Equal(t, 50.0, validity(validation.Record{"accountId": 0, "quantity": 2}))
}

func TestTimeliness(t *testing.T) {
	v := newTestValidator(t, nil)
	tests := []struct {
		name   string
		record validation.Record
		want   float64
	}{
		{"fresh", validation.Record{"createdAt": daysAgo(30), "updatedAt": daysAgo(5)}, 100},
		{"old", validation.Record{"createdAt": daysAgo(400)}, 80},
		{"old and stale", validation.Record{"created_at": daysAgo(400), "modifiedAt": daysAgo(100)}, 65},
		{"no timestamps", validation.Record{"name": "Ada"}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := v.Assess(context.Background(), "Contact", tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Timeliness)
		})
	}
}

func TestScoresUnescapedValues(t *testing.T) {
	v := newTestValidator(t, nil)
	m, err := v.Assess(context.Background(), "Contact", validation.Record{"email": "ada&#64;example.com"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.Accuracy)
}

func TestUniquenessOracle(t *testing.T) {
	t.Run("scores from oracle", func(t *testing.T) {
		v := newTestValidator(t, nil, WithUniquenessOracle(FixedUniqueness(20)))
		m, err := v.Assess(context.Background(), "Contact", goodContact())
		require.NoError(t, err)
		assert.Equal(t, 20.0, m.Uniqueness)
		assert.Equal(t, 92.0, m.Overall)
	})

	t.Run("oracle failure falls back with a warning", func(t *testing.T) {
		failing := oracleFunc(func(context.Context, string, validation.Record) (float64, error) {
			return 0, errors.New("store unavailable")
		})
		v := newTestValidator(t, nil, WithUniquenessOracle(failing))
		result, err := v.Validate(context.Background(), goodContact(), call("Contact"))
		require.NoError(t, err)
		assert.True(t, result.Valid())
		assert.True(t, result.HasWarningCode(validation.CodeQualityWarning))
		assert.Equal(t, 100.0, result.Metadata.Extra["quality"].(Metrics).Uniqueness)
	})

	t.Run("batch uniqueness ignores identifiers", func(t *testing.T) {
		a, b := goodContact(), goodContact()
		b["id"] = "c-2"
		c := goodContact()
		c["lastName"] = "Byron"
		oracle := NewBatchUniqueness([]validation.Record{a, b, c})

		u, err := oracle.Uniqueness(context.Background(), "Contact", a)
		require.NoError(t, err)
		assert.Equal(t, 50.0, u)
		u, err = oracle.Uniqueness(context.Background(), "Contact", c)
		require.NoError(t, err)
		assert.Equal(t, 100.0, u)
	})
}

func TestProfiles(t *testing.T) {
	v := newTestValidator(t, nil)

	lead := Profile{
		EntityType: "Lead",
		Weights:    map[Dimension]float64{Completeness: 1},
		Thresholds: map[Dimension]float64{Overall: 70},
	}
	require.NoError(t, v.AddProfile(lead))
	assert.ErrorIs(t, v.AddProfile(lead), ErrProfileExists)
	assert.ErrorIs(t, v.AddProfile(Profile{Weights: lead.Weights}), ErrInvalidProfile)
	assert.ErrorIs(t, v.AddProfile(Profile{EntityType: "X", Weights: map[Dimension]float64{"speed": 1}}), ErrInvalidProfile)
	assert.ErrorIs(t, v.AddProfile(Profile{EntityType: "X", Weights: map[Dimension]float64{Accuracy: 0}}), ErrInvalidProfile)

	lead.Weights[Accuracy] = 1
	assert.NotContains(t, v.Profile("Lead").Weights, Accuracy, "registered profile is a copy")

	def := v.Profile("Unknown")
	assert.Equal(t, "Unknown", def.EntityType)
	assert.Equal(t, DefaultProfile().Weights, def.Weights)

	result, err := v.Validate(context.Background(), validation.Record{"a": "x", "b": "y", "c": "", "d": nil, "e": ""}, call("Lead"))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, string(Overall), result.Errors[0].Field)
	assert.Equal(t, 40.0, result.Metadata.Extra["quality"].(Metrics).Overall)
}

func TestSchemaRequiredFieldsAreExpected(t *testing.T) {
	schemas := schemaSource{
		"Contact": &schema.EntitySchema{
			EntityType: "Contact",
			Metadata:   schema.Metadata{RequiredFields: []string{"email", "phone"}},
		},
	}
	v := newTestValidator(t, nil, WithSchemas(schemas))
	m, err := v.Assess(context.Background(), "Contact", validation.Record{"email": "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, m.Completeness)
}

func TestValidateFailures(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		v := newTestValidator(t, nil)
		_, err := v.Validate(context.Background(), goodContact(), nil)
		assert.ErrorIs(t, err, validation.ErrInvalidContext)
	})

	t.Run("canceled", func(t *testing.T) {
		v := newTestValidator(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := v.Validate(ctx, goodContact(), call("Contact"))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		panicking := oracleFunc(func(context.Context, string, validation.Record) (float64, error) {
			panic("index out of range")
		})
		v := newTestValidator(t, nil, WithUniquenessOracle(panicking))
		result, err := v.Validate(context.Background(), goodContact(), call("Contact"))
		assert.Nil(t, result)
		var pe *validation.PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "index out of range", pe.Value)
	})
}

func TestGenerateReport(t *testing.T) {
	v := newTestValidator(t, nil)

	empty, err := v.GenerateReport(context.Background(), nil, "Contact")
	require.NoError(t, err)
	assert.Zero(t, empty.Records)
	assert.Empty(t, empty.Issues)

	a, b := goodContact(), goodContact()
	b["id"] = "c-2"
	poor := validation.Record{"id": "c-3", "name": "", "email": nil}

	report, err := v.GenerateReport(context.Background(), []validation.Record{a, b, poor}, "Contact")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.InDelta(t, 66.67, report.Averages.Uniqueness, 0.01)
	assert.InDelta(t, 77.78, report.Averages.Completeness, 0.01)
	assert.Equal(t, map[string]int{GradeExcellent: 2, GradeGood: 1, GradeFair: 0, GradePoor: 0}, report.Distribution)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, Completeness, report.Issues[0].Dimension)
	assert.Equal(t, 1, report.Issues[0].Affected)
	assert.Equal(t, 50.0, report.Issues[0].Threshold)
	assert.Equal(t, []string{recommendation(Completeness)}, report.Recommendations)
}

func TestGrade(t *testing.T) {
	assert.Equal(t, GradeExcellent, Grade(90))
	assert.Equal(t, GradeGood, Grade(89.99))
	assert.Equal(t, GradeFair, Grade(60))
	assert.Equal(t, GradePoor, Grade(12))
}

func TestDetectDuplicates(t *testing.T) {
	people := []validation.Record{
		{"id": "1", "name": "Jon Smith", "city": "Boston"},
		{"id": "2", "name": "John Smith", "city": "Boston"},
		{"id": "3", "name": "Alice Jones", "city": "Denver"},
		{"id": "4", "name": "jon smith", "city": "boston"},
	}

	t.Run("default algorithms", func(t *testing.T) {
		pairs, err := DetectDuplicates(people, DefaultDuplicateConfig())
		require.NoError(t, err)
		assert.Equal(t, []DuplicatePair{
			{Left: 0, Right: 1, LeftID: "1", RightID: "2", Similarity: 0.95, Algorithm: AlgorithmLevenshtein},
			{Left: 0, Right: 3, LeftID: "1", RightID: "4", Similarity: 1, Algorithm: AlgorithmExact},
			{Left: 1, Right: 3, LeftID: "2", RightID: "4", Similarity: 0.95, Algorithm: AlgorithmLevenshtein},
		}, pairs)
	})

	t.Run("jaccard on one field", func(t *testing.T) {
		pairs, err := DetectDuplicates(people, DuplicateConfig{
			Fields:     []string{"name"},
			Algorithms: []Algorithm{AlgorithmJaccard},
			Threshold:  0.5,
		})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, 0, pairs[0].Left)
		assert.Equal(t, 3, pairs[0].Right)
		assert.Empty(t, pairs[0].LeftID)
	})

	t.Run("cosine ignores word order", func(t *testing.T) {
		records := []validation.Record{{"name": "Smith Jon"}, {"name": "Jon Smith"}}
		pairs, err := DetectDuplicates(records, DuplicateConfig{
			Algorithms: []Algorithm{AlgorithmExact, AlgorithmCosine},
			Threshold:  1,
		})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, AlgorithmCosine, pairs[0].Algorithm)
	})

	t.Run("nested paths", func(t *testing.T) {
		records := []validation.Record{
			{"id": 1, "address": map[string]any{"city": "Paris", "zip": "75001"}},
			{"id": 2, "address": map[string]any{"city": "paris", "zip": "75002"}},
		}
		pairs, err := DetectDuplicates(records, DuplicateConfig{
			Fields:     []string{"address.city"},
			Algorithms: []Algorithm{AlgorithmExact},
			Threshold:  1,
			IDField:    "id",
		})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "1", pairs[0].LeftID)
		assert.Equal(t, "2", pairs[0].RightID)
	})

	t.Run("records without compared values are not duplicates", func(t *testing.T) {
		pairs, err := DetectDuplicates([]validation.Record{{"id": "1"}, {"id": "2"}}, DefaultDuplicateConfig())
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := DetectDuplicates(people, DuplicateConfig{Algorithms: []Algorithm{AlgorithmExact}})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		_, err = DetectDuplicates(people, DuplicateConfig{Algorithms: []Algorithm{"soundex"}, Threshold: 0.5})
		assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	})
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 0.9, levenshteinSimilarity("jon smith", "john smith"), 1e-9)
	assert.InDelta(t, 1.0/3, jaccardSimilarity("jon smith", "john smith"), 1e-9)
	assert.InDelta(t, 0.5, cosineSimilarity("jon smith", "john smith"), 1e-9)
	assert.Equal(t, 1.0, levenshteinSimilarity("", ""))
}

func TestProfileData(t *testing.T) {
	config := DefaultConfig()
	config.TopValues = 1
	v := newTestValidator(t, config)
	require.NoError(t, v.AddProfile(Profile{
		EntityType:     "Lead",
		Weights:        map[Dimension]float64{Completeness: 1},
		ExpectedFields: []string{"email"},
	}))

	records := []validation.Record{
		{"id": 1, "status": "active", "score": 10},
		{"id": 2, "status": "active", "score": "n/a"},
		{"id": 3, "status": "", "score": 30},
		{"id": 4, "status": "closed"},
	}
	profiles := v.ProfileData(records, "Lead")
	require.Len(t, profiles, 4)

	byField := make(map[string]FieldProfile)
	var order []string
	for _, p := range profiles {
		byField[p.Field] = p
		order = append(order, p.Field)
	}
	assert.Equal(t, []string{"email", "id", "score", "status"}, order)

	email := byField["email"]
	assert.Equal(t, 4, email.Nulls)
	assert.Equal(t, 1.0, email.NullRatio)
	assert.Equal(t, TypeEmpty, email.Type)
	assert.Zero(t, email.Quality)

	id := byField["id"]
	assert.Equal(t, 4, id.Unique)
	assert.Equal(t, 1.0, id.UniqueRatio)
	assert.Equal(t, TypeNumber, id.Type)
	assert.Equal(t, 100.0, id.Quality)

	score := byField["score"]
	assert.Equal(t, 1, score.Nulls)
	assert.Equal(t, 0.25, score.NullRatio)
	assert.Equal(t, TypeMixed, score.Type)
	assert.Equal(t, 50.0, score.Quality)

	status := byField["status"]
	assert.Equal(t, 1, status.Nulls)
	assert.Equal(t, 2, status.Unique)
	assert.Equal(t, 0.67, status.UniqueRatio)
	assert.Equal(t, TypeString, status.Type)
	assert.Equal(t, []ValueCount{{Value: "active", Count: 2}}, status.TopValues)
	assert.Equal(t, 75.0, status.Quality)
}

func TestSampleSize(t *testing.T) {
	config := DefaultConfig()
	config.SampleSize = 2
	v := newTestValidator(t, config)
	profiles := v.ProfileData([]validation.Record{{"a": 1}, {"a": 2}, {"a": 3}}, "X")
	require.Len(t, profiles, 1)
	assert.Equal(t, 2, profiles[0].Total)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero error ratio", func(c *Config) { c.ErrorRatio = 0 }},
		{"error ratio above one", func(c *Config) { c.ErrorRatio = 1.5 }},
		{"zero stale days", func(c *Config) { c.StaleModifiedDays = 0 }},
		{"negative penalty", func(c *Config) { c.ConsistencyPenalty = -1 }},
		{"zero sample", func(c *Config) { c.SampleSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
			_, err := NewValidator(c, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
