package recognizer

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
)

// callLog records the order in which mock recognizers run.
type callLog struct {
	mu    sync.Mutex
	calls []ScriptKind
}

func (l *callLog) add(s ScriptKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

type mockResult struct {
	text string
	err  error
}

func mockBackends(log *callLog, latin, han, hangul mockResult) Backends {
	mk := func(s ScriptKind, r mockResult) ScriptRecognizer {
		return Func(func(context.Context, *conditioner.Conditioned) (string, error) {
			log.add(s)
			return r.text, r.err
		})
	}
	return Backends{
		Latin:  mk(Latin, latin),
		Han:    mk(Han, han),
		Hangul: mk(Hangul, hangul),
	}
}

func testImage(t *testing.T) *conditioner.Conditioned {
	t.Helper()
	c, err := conditioner.Condition(image.NewGray(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	return c
}

func TestCascade_ReturnsLastRawWhenExhausted(t *testing.T) {
	log := &callLog{}
	b := mockBackends(log,
		mockResult{text: "hi"},
		mockResult{err: errors.New("model crashed")},
		mockResult{text: "짧음"},
	)

	out, err := NewCascade(b).Recognize(context.Background(), testImage(t))
	require.NoError(t, err)

	assert.Equal(t, []ScriptKind{Latin, Han, Hangul}, log.calls)
	assert.Equal(t, "짧음", out.Text)
	assert.Equal(t, Hangul, out.Script)
	assert.False(t, out.Accepted)
	assert.False(t, out.Failed())
	require.Len(t, out.Attempts, 3)
	assert.Equal(t, 2, out.Attempts[0].NormalizedLen)
	var be *BackendError
	require.ErrorAs(t, out.Attempts[1].Err, &be)
	assert.Equal(t, Han, be.Script)
}

func TestCascade_StopsAtFirstAcceptance(t *testing.T) {
	log := &callLog{}
	b := mockBackends(log,
		mockResult{text: "  INGREDIENTS:   water,\n sugar, salt  "},
		mockResult{text: "should not run"},
		mockResult{text: "should not run"},
	)

	out, err := NewCascade(b).Recognize(context.Background(), testImage(t))
	require.NoError(t, err)

	assert.Equal(t, []ScriptKind{Latin}, log.calls)
	assert.True(t, out.Accepted)
	assert.Equal(t, Latin, out.Script)
	assert.Equal(t, "INGREDIENTS: water, sugar, salt", out.Text)
	require.Len(t, out.Attempts, 1)
	assert.True(t, out.Attempts[0].Accepted)
}

func TestCascade_ThresholdIsExclusive(t *testing.T) {
	log := &callLog{}
	exactly15 := strings.Repeat("a", AcceptThreshold)
	sixteen := strings.Repeat("가", AcceptThreshold+1)
	b := mockBackends(log,
		mockResult{text: exactly15},
		mockResult{text: sixteen},
		mockResult{text: "unused"},
	)

	out, err := NewCascade(b).Recognize(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []ScriptKind{Latin, Han}, log.calls)
	assert.Equal(t, Han, out.Script)
	assert.Equal(t, sixteen, out.Text)
}

func TestCascade_LengthMeasuredAfterNormalization(t *testing.T) {
	log := &callLog{}
	padded := "a    b\n\n\n\nc-----d" // 7 runes once normalized
	b := mockBackends(log, mockResult{text: padded}, mockResult{}, mockResult{text: ""})

	out, err := NewCascade(b).Recognize(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.Equal(t, 7, out.Attempts[0].NormalizedLen)
	assert.False(t, out.Accepted)
	assert.Empty(t, out.Text)
	assert.Equal(t, []ScriptKind{Latin, Han, Hangul}, log.calls)
}

func TestCascade_LastBackendFailure(t *testing.T) {
	log := &callLog{}
	boom := errors.New("hangul model missing")
	b := mockBackends(log, mockResult{text: ""}, mockResult{text: "x"}, mockResult{err: boom})

	out, err := NewCascade(b).Recognize(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, boom)
	assert.Empty(t, out.Text)
	assert.Equal(t, Hangul, out.Script)
}

func TestCascade_NilBackend(t *testing.T) {
	log := &callLog{}
	b := mockBackends(log, mockResult{}, mockResult{}, mockResult{text: "ok"})
	b.Latin = nil

	out, err := NewCascade(b).Recognize(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.ErrorIs(t, out.Attempts[0].Err, ErrNoBackend)
	assert.Equal(t, []ScriptKind{Han, Hangul}, log.calls)
	assert.Equal(t, "ok", out.Text)
}

func TestCascade_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := &callLog{}
	b := Backends{
		Latin: Func(func(context.Context, *conditioner.Conditioned) (string, error) {
			log.add(Latin)
			cancel()
			return "short", nil
		}),
		Han: Func(func(context.Context, *conditioner.Conditioned) (string, error) {
			log.add(Han)
			return "", nil
		}),
	}

	_, err := NewCascade(b).Recognize(ctx, testImage(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []ScriptKind{Latin}, log.calls)
}

func TestCascade_Observer(t *testing.T) {
	log := &callLog{}
	b := mockBackends(log, mockResult{text: "a"}, mockResult{text: "long enough text for the cascade"}, mockResult{})
	var seen []Attempt
	c := NewCascade(b).WithObserver(func(a Attempt) { seen = append(seen, a) })

	_, err := c.Recognize(context.Background(), testImage(t))
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.False(t, seen[0].Accepted)
	assert.True(t, seen[1].Accepted)
}

func TestCascade_OrderProperty(t *testing.T) {
	img := testImage(t)
	properties := gopter.NewProperties(nil)

	// Each backend yields one of: failure, short text, long text.
	outcome := gen.IntRange(0, 2)
	results := map[int]mockResult{
		0: {err: errors.New("fail")},
		1: {text: "tiny"},
		2: {text: "a label line that is long enough"},
	}

	properties.Property("backends run in order and stop at the first acceptance", prop.ForAll(
		func(a, b, c int) bool {
			log := &callLog{}
			picks := []int{a, b, c}
			backends := mockBackends(log, results[a], results[b], results[c])
			out, err := NewCascade(backends).Recognize(context.Background(), img)
			if err != nil {
				return false
			}

			wantCalls := 3
			for i, p := range picks[:2] {
				if p == 2 {
					wantCalls = i + 1
					break
				}
			}
			if len(log.calls) != wantCalls {
				return false
			}
			for i, s := range log.calls {
				if s != Scripts()[i] {
					return false
				}
			}

			lastPick := picks[wantCalls-1]
			switch {
			case lastPick == 2:
				return out.Accepted && out.Text == results[2].text
			case lastPick == 1:
				return !out.Accepted && out.Text == "tiny"
			default:
				return !out.Accepted && out.Text == "" && out.Failed()
			}
		},
		outcome, outcome, outcome,
	))

	properties.TestingRun(t)
}

func TestScriptKind_Text(t *testing.T) {
	for _, s := range Scripts() {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back ScriptKind
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	_, err := ParseScriptKind("cyrillic")
	assert.Error(t, err)
	assert.Equal(t, "script(9)", ScriptKind(9).String())
}

type closingBackend struct {
	closed bool
	err    error
}

func (c *closingBackend) Recognize(context.Context, *conditioner.Conditioned) (string, error) {
	return "", nil
}

func (c *closingBackend) Close() error {
	c.closed = true
	return c.err
}

func TestBackends_Close(t *testing.T) {
	a := &closingBackend{}
	h := &closingBackend{err: errors.New("busy")}
	b := Backends{Latin: a, Han: h, Hangul: Func(func(context.Context, *conditioner.Conditioned) (string, error) {
		return "", nil
	})}
	err := b.Close()
	assert.True(t, a.closed)
	assert.True(t, h.closed)
	assert.ErrorContains(t, err, "close han backend: busy")
}
