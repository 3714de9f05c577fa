package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-agent/internal/agent"
)

func TestObserveToolCall(t *testing.T) {
	m := New()

	m.ObserveToolCall(agent.KindReadMail, true, 10*time.Millisecond)
	m.ObserveToolCall(agent.KindReadMail, false, 5*time.Millisecond)
	m.ObserveToolCall(agent.KindReadMail, true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("ReadMail", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("ReadMail", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.toolTime))
}

func TestObserveRunOutcomes(t *testing.T) {
	m := New()

	m.ObserveRun(2, nil)
	m.ObserveRun(10, &agent.Failure{Iteration: 10, Err: fmt.Errorf("%w: 10 decisions", agent.ErrIterationLimitExceeded)})
	m.ObserveRun(1, fmt.Errorf("%w: timeout", agent.ErrDecisionUnavailable))
	m.ObserveRun(1, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("iteration_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("decision_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RegisterSessions(func() int { return 3 })
	m.ObserveDecision(300*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mailagent_sessions_active 3")
	assert.Contains(t, string(body), "mailagent_decision_duration_seconds_count{outcome=\"ok\"} 1")
}
