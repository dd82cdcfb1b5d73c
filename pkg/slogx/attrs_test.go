package slogx

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestAttrs(t *testing.T) {
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, KeyTopic, Topic("a").Key)
	assert.Equal(t, KeyLoggerName, LoggerName("bus").Key)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Component(base, "reassembly").Info("evicted", Topic("chat"), Fragment(1, 4))

	line := gjson.ParseBytes(bytes.TrimSpace(buf.Bytes()))
	require.True(t, line.Exists())
	assert.Equal(t, "reassembly", line.Get(KeyLoggerName).String())
	assert.Equal(t, "chat", line.Get(KeyTopic).String())
	assert.EqualValues(t, 1, line.Get("fragment.index").Int())
	assert.EqualValues(t, 4, line.Get("fragment.last").Int())
}
