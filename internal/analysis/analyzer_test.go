package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// scriptedClient returns canned completions in order and records requests.
type scriptedClient struct {
	mu       sync.Mutex
	contents []string
	err      error
	requests []*transport.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}

	content := ""
	if len(c.contents) > 0 {
		content = c.contents[0]
		c.contents = c.contents[1:]
	}
	return &transport.Response{Content: content, FinishReason: "stop", Model: "test-model"}, nil
}

func testRequest() Request {
	return Request{
		TaskID:   "0b05e7a9-3f1c-4a2f-9b3e-8f1f0c9d7a61",
		TenantID: "tenant-1",
		Text:     "حكاية جدتي عن الصياد سالم وزوجته مريم في القرية الساحلية",
		Focus:    "تقاليد الصيد",
		Context:  map[string]string{"era_hint": "ما قبل النفط"},
	}
}

func TestNewLLMAnalyzer_Validation(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewLLMAnalyzer(domain.AnalyzerKind("forensic"), &scriptedClient{}, nil)
		assert.ErrorIs(t, err, errUnknownAnalyzerKind)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewLLMAnalyzer(domain.AnalyzerNarrative, nil, nil)
		assert.ErrorIs(t, err, errNilClient)
	})
}

func TestLLMAnalyzer_Narrative(t *testing.T) {
	client := &scriptedClient{contents: []string{
		`{"analysis": {"characters": ["سالم", "مريم"], "themes": ["الصبر", "البحر"], "tone": "حنين",
		"key_events": ["رحيل الصياد", "عودته"], "setting": "قرية ساحلية"},
		"confidence_score": 0.85, "recommendations": ["توسيع دور البحر"]}`,
	}}

	analyzer, err := NewLLMAnalyzer(domain.AnalyzerNarrative, client, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalyzerNarrative, analyzer.Kind())

	envelope, err := analyzer.Analyze(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.AnalyzerNarrative, envelope.Kind)
	assert.InDelta(t, 0.85, envelope.Confidence, 1e-9)
	assert.Equal(t, []string{"توسيع دور البحر"}, envelope.Recommendations)
	require.NotNil(t, envelope.Narrative)
	assert.Equal(t, []string{"سالم", "مريم"}, envelope.Narrative.Characters)
	assert.Equal(t, "قرية ساحلية", envelope.Narrative.Setting)
	assert.Nil(t, envelope.Cultural)
	assert.Nil(t, envelope.Historical)

	require.Len(t, client.requests, 1)
	sent := client.requests[0]
	assert.Equal(t, transport.OpAnalysis, sent.Operation)
	assert.True(t, sent.ResponseJSON)
	assert.Equal(t, "tenant-1", sent.TenantID)
	assert.Contains(t, sent.Prompt, "الصياد سالم")
	assert.Contains(t, sent.Prompt, "تقاليد الصيد")
	assert.Contains(t, sent.Prompt, "era_hint")
	assert.Contains(t, sent.System, "confidence_score")
	assert.Equal(t,
		domain.GenerateIdempotencyKey(testRequest().TaskID, "analysis:narrative"),
		sent.IdempotencyKey)
}

func TestLLMAnalyzer_CulturalAndHistorical(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.AnalyzerKind
		content string
		check   func(t *testing.T, envelope domain.AnalysisEnvelope)
	}{
		{
			name: "cultural payload",
			kind: domain.AnalyzerCultural,
			content: `{"analysis": {"traditions": ["مجالس السمر"], "dialect": "خليجية",
			"values": ["الكرم"], "symbols": ["المجداف"]}, "confidence_score": 0.7, "recommendations": []}`,
			check: func(t *testing.T, envelope domain.AnalysisEnvelope) {
				require.NotNil(t, envelope.Cultural)
				assert.Equal(t, []string{"مجالس السمر"}, envelope.Cultural.Traditions)
				assert.Equal(t, "خليجية", envelope.Cultural.Dialect)
				assert.Nil(t, envelope.Narrative)
			},
		},
		{
			name: "historical payload",
			kind: domain.AnalyzerHistorical,
			content: `{"analysis": {"era": "ما قبل النفط", "period": "أوائل القرن العشرين",
			"markers": ["الغوص على اللؤلؤ"]}, "confidence_score": 0.6, "recommendations": ["تدقيق التواريخ"]}`,
			check: func(t *testing.T, envelope domain.AnalysisEnvelope) {
				require.NotNil(t, envelope.Historical)
				assert.Equal(t, "ما قبل النفط", envelope.Historical.Era)
				assert.Equal(t, []string{"الغوص على اللؤلؤ"}, envelope.Historical.Markers)
				assert.Nil(t, envelope.Cultural)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{contents: []string{tt.content}}
			analyzer, err := NewLLMAnalyzer(tt.kind, client, nil)
			require.NoError(t, err)

			envelope, err := analyzer.Analyze(context.Background(), testRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.kind, envelope.Kind)
			tt.check(t, envelope)
		})
	}
}

func TestLLMAnalyzer_RepairsFencedJSON(t *testing.T) {
	client := &scriptedClient{contents: []string{
		"```json\n" + `{"analysis": {"characters": ["سالم"],}, "confidence_score": 0.5, "recommendations": [],}` + "\n```",
	}}

	analyzer, err := NewLLMAnalyzer(domain.AnalyzerNarrative, client, nil)
	require.NoError(t, err)

	envelope, err := analyzer.Analyze(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotNil(t, envelope.Narrative)
	assert.Equal(t, []string{"سالم"}, envelope.Narrative.Characters)
}

func TestLLMAnalyzer_ClampsConfidence(t *testing.T) {
	client := &scriptedClient{contents: []string{
		`{"analysis": {"tone": "هادئ"}, "confidence_score": 1.7, "recommendations": []}`,
	}}

	analyzer, err := NewLLMAnalyzer(domain.AnalyzerNarrative, client, nil)
	require.NoError(t, err)

	envelope, err := analyzer.Analyze(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 1.0, envelope.Confidence)
}

func TestLLMAnalyzer_CallFailureIsAnalysisError(t *testing.T) {
	cause := errors.New("backend down")
	client := &scriptedClient{err: cause}

	analyzer, err := NewLLMAnalyzer(domain.AnalyzerCultural, client, nil)
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), testRequest())
	require.Error(t, err)

	var analysisErr *domain.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Contains(t, analysisErr.Reason, "cultural")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.FailureAnalysis, domain.ClassifyFailure(err))
}

func TestLLMAnalyzer_UnparseableResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "عذراً، لا أستطيع تحليل هذا النص"},
		{name: "missing analysis payload", content: `{"confidence_score": 0.9, "recommendations": []}`},
		{name: "wrong payload shape", content: `{"analysis": {"characters": "سالم"}, "confidence_score": 0.9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{contents: []string{tt.content}}
			analyzer, err := NewLLMAnalyzer(domain.AnalyzerNarrative, client, nil)
			require.NoError(t, err)

			_, err = analyzer.Analyze(context.Background(), testRequest())
			require.Error(t, err)

			var analysisErr *domain.AnalysisError
			assert.ErrorAs(t, err, &analysisErr)
		})
	}
}

func TestLLMAnalyzer_InvalidRequest(t *testing.T) {
	client := &scriptedClient{}
	analyzer, err := NewLLMAnalyzer(domain.AnalyzerNarrative, client, nil)
	require.NoError(t, err)

	req := testRequest()
	req.Text = ""

	_, err = analyzer.Analyze(context.Background(), req)
	assert.ErrorIs(t, err, errMissingText)
	assert.Empty(t, client.requests, "invalid requests must not reach the backend")
}
