package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/ids"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/store"
)

type fakeProvider struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

type memLogs struct {
	mu   sync.Mutex
	logs map[string][]store.AILog
	err  error
}

func (m *memLogs) WriteAILog(_ context.Context, owner string, l store.AILog) (store.AILog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.AILog{}, m.err
	}
	if m.logs == nil {
		m.logs = make(map[string][]store.AILog)
	}
	m.logs[owner] = append(m.logs[owner], l)
	return l, nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate_DrumPatternRepairsAndLogs(t *testing.T) {
	p := &fakeProvider{reply: "```json\n{\"pads\":[{\"pad\":\"INVALID\",\"hits\":[{\"step\":-5,\"vel\":999}]}]}\n```"}
	logs := &memLogs{}
	svc := New(p, WithLogStore(logs), WithIDs(ids.NewFixedGenerator("log-1")), WithLogger(quiet()))

	res, err := svc.Generate(context.Background(), "alice", Request{Type: KindDrumPattern, Prompt: "four on the floor"})
	require.NoError(t, err)

	assert.Equal(t, KindDrumPattern, res.Type)
	assert.Equal(t, "fake-1", res.Model)
	require.NotNil(t, res.Pattern)
	assert.Equal(t, 127, lane(t, *res.Pattern, music.PadKick)[0])
	assert.Len(t, res.Repairs, 3)

	require.Len(t, logs.logs["alice"], 1)
	entry := logs.logs["alice"][0]
	assert.Equal(t, "log-1", entry.ID)
	assert.Equal(t, "drum_pattern", entry.Kind)
	assert.Equal(t, "four on the floor", entry.Prompt)
	assert.Equal(t, p.reply, entry.Response)
	assert.Equal(t, res.Repairs, entry.Repairs)

	assert.Contains(t, p.system, "16-step")
	assert.Contains(t, p.user, "120 bpm, 1 bar(s)")
}

func TestGenerate_MelodyUsesBars(t *testing.T) {
	p := &fakeProvider{reply: `{"notes":[{"step":31,"pitch":64,"vel":90,"length":1}]}`}
	svc := New(p, WithLogger(quiet()))

	res, err := svc.Generate(context.Background(), "alice", Request{Type: KindMelody, Bars: 2, Tempo: 95})
	require.NoError(t, err)

	assert.Nil(t, res.Pattern)
	assert.Equal(t, []music.Note{{Step: 31, Pitch: 64, Velocity: 90, Length: 1}}, res.Notes)
	assert.Empty(t, res.Repairs)
	assert.NotNil(t, res.Repairs)
	assert.Contains(t, p.user, "95 bpm, 2 bar(s)")
}

func TestGenerate_UnparseableOutputIsRepaired(t *testing.T) {
	svc := New(&fakeProvider{reply: "sorry, I can't do that"}, WithLogger(quiet()))

	res, err := svc.Generate(context.Background(), "alice", Request{Type: KindDrumPattern})
	require.NoError(t, err)
	require.NotNil(t, res.Pattern)
	assert.Equal(t, []string{"unparseable output replaced with an empty pattern"}, res.Repairs)
}

func TestGenerate_UnknownType(t *testing.T) {
	svc := New(&fakeProvider{}, WithLogger(quiet()))
	_, err := svc.Generate(context.Background(), "alice", Request{Type: "symphony"})
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestGenerate_ProviderFailure(t *testing.T) {
	boom := errors.New("boom")
	logs := &memLogs{}
	svc := New(&fakeProvider{err: boom}, WithLogStore(logs), WithLogger(quiet()))

	_, err := svc.Generate(context.Background(), "alice", Request{Type: KindMelody})

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeUpstream, gerr.Code)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, logs.logs, "failed calls are not logged as generations")
}

func TestGenerate_LogFailureDoesNotFail(t *testing.T) {
	logs := &memLogs{err: errors.New("disk full")}
	svc := New(&fakeProvider{reply: `{"pads":[]}`}, WithLogStore(logs), WithIDs(ids.NewSequenceGenerator("log")), WithLogger(quiet()))

	_, err := svc.Generate(context.Background(), "alice", Request{Type: KindDrumPattern})
	assert.NoError(t, err)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("Here you go:\n```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSON(`{"a":{"b":2}}`))
	assert.Equal(t, "nothing", extractJSON("  nothing "))
}
