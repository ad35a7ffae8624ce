package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSink_WritesStructuredEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := LogSink{Logger: zap.New(core)}

	sink.Write(context.Background(), Event{
		Name:    EventChangeCommitted,
		Change:  "c-1",
		Summary: "set cluster-name=tc",
		User:    "ops",
		Host:    "laptop",
		Version: 3,
	})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, EventChangeCommitted, fields["event"])
	assert.Equal(t, "c-1", fields["change_id"])
	assert.Equal(t, "ops", fields["user"])
	assert.Equal(t, "set cluster-name=tc", fields["summary"])
	assert.EqualValues(t, 3, fields["config_version"])
}

func TestSinkFunc(t *testing.T) {
	var got []Event
	s := SinkFunc(func(_ context.Context, e Event) { got = append(got, e) })
	s.Write(context.Background(), Event{Name: EventChangeRolledBack, Change: "c-2"})
	require.Len(t, got, 1)
	assert.Equal(t, "c-2", got[0].Change)
}
