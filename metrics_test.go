package auth_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-providers"
)

func TestMetricsSinkCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := auth.NewMetricsSink(reg)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Provider:  "local",
	}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Provider:  "local",
	}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Provider:  "local",
		Metadata:  map[string]any{"code": auth.TextCodeInvalidCreds},
	}))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.Events.WithLabelValues("auth.login.success", "local", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.Events.WithLabelValues("auth.login.failure", "local", auth.TextCodeInvalidCreds)))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.Events))
}
