package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced block stripped",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "bare fence stripped",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "trailing comma in object removed",
			in:   `{"a": 1,}`,
			want: `{"a": 1}`,
		},
		{
			name: "trailing comma in array removed",
			in:   `{"a": [1, 2,],}`,
			want: `{"a": [1, 2]}`,
		},
		{
			name: "clean input unchanged",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestDecodeWireRetriesWithRepair(t *testing.T) {
	var wire critiqueWire
	err := decodeWire("```json\n{\"overall_score\": 7.5, \"issues\": [\"ا\",],}\n```", &wire)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, wire.OverallScore, 1e-9)
	assert.Equal(t, []string{"ا"}, wire.Issues)
}

func TestDecodeWireRejectsNonJSON(t *testing.T) {
	var wire critiqueWire
	err := decodeWire("هذا ليس JSON على الإطلاق", &wire)
	assert.Error(t, err)
}

func TestParseCritiqueClampsScore(t *testing.T) {
	report, err := parseCritique(`{"overall_score": 14.2, "issues": ["طويل"], "strengths": ["اللغة"]}`)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, report.OverallScore, 1e-9)
	assert.Equal(t, []string{"طويل"}, report.Issues)
	assert.Equal(t, []string{"اللغة"}, report.Strengths)

	report, err = parseCritique(`{"overall_score": -3}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, report.OverallScore, 1e-9)
}

func TestParseBlueprintRequiresCoreFields(t *testing.T) {
	_, err := parseBlueprint(`{"title": "قصة", "premise": "", "outline": ""}`)
	assert.Error(t, err)

	bp, err := parseBlueprint(`{
		"title": "ليالي الواحة",
		"premise": "رحلة جد وحفيده عبر الصحراء",
		"themes": ["الصبر"],
		"characters": [{"name": "سالم", "role": "الجد", "arc": "من الصمت إلى البوح"}],
		"outline": "الانطلاق ثم العاصفة ثم الوصول"
	}`)
	require.NoError(t, err)
	assert.Equal(t, "ليالي الواحة", bp.Title)
	require.Len(t, bp.Characters, 1)
	assert.Equal(t, "سالم", bp.Characters[0].Name)
}

func TestParsePolishEnforcesUnitCount(t *testing.T) {
	units, err := parsePolish(`{"units": ["الوحدة الأولى", "الوحدة الثانية"]}`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"الوحدة الأولى", "الوحدة الثانية"}, units)

	_, err = parsePolish(`{"units": ["واحدة فقط"]}`, 2)
	assert.Error(t, err)

	_, err = parsePolish(`{"units": ["نص", ""]}`, 2)
	assert.Error(t, err)
}
