package protocol

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewCopiesPayload(t *testing.T) {
	src := map[string]any{KeyNum: 4}
	m := New(KindTrainSetSample, src)
	src[KeyNum] = 9

	n, err := m.Int(KeyNum)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestKindNamesRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
	_, err := ParseKind("bogus")
	require.Error(t, err)
}

func TestDataRequestKinds(t *testing.T) {
	var requests []Kind
	for _, k := range Kinds() {
		if k.IsDataRequest() {
			requests = append(requests, k)
			require.Equal(t, k, k.ResponseKind())
		}
	}
	require.Len(t, requests, 6)
	require.True(t, KindWrongPredSampleTrain.UsesTrainSet())
	require.False(t, KindPredSample.UsesTrainSet())
	require.False(t, KindTrainSetSample.IsPrediction())
}

func TestMalformedMessageError(t *testing.T) {
	m := New(KindPredSample, map[string]any{KeyX: "nope"})

	_, err := m.Matrix(KeyY)
	var me *MalformedMessageError
	require.ErrorAs(t, err, &me)
	require.Equal(t, KindPredSample, me.Kind)
	require.Equal(t, KeyY, me.Key)
	require.Contains(t, err.Error(), "missing")

	_, err = m.Matrix(KeyX)
	require.ErrorAs(t, err, &me)
	require.Contains(t, err.Error(), "not a matrix")
}

func TestAccessorsAcceptJSONForms(t *testing.T) {
	m := New(KindPredSample, map[string]any{
		KeyX:    [][]float64{{0, 1}, {1, 0}},
		KeyY:    []int{1, 0},
		KeyPred: []int{1, 1},
	})
	b, err := json.Marshal(NewRecord(m, time.Unix(0, 0)))
	require.NoError(t, err)
	require.Contains(t, string(b), `"kind":"pred_sample"`)

	rec, err := DecodeRecord(b)
	require.NoError(t, err)
	back := rec.Message()
	require.Equal(t, KindPredSample, back.Kind)

	x, err := back.Matrix(KeyX)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0, 1}, {1, 0}}, x)
	y, err := back.Ints(KeyY)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, y)
}

func TestIntRejectsFractions(t *testing.T) {
	m := New(KindTrainSetSample, map[string]any{KeyNum: 2.5})
	_, err := m.Int(KeyNum)
	require.Error(t, err)
}

func TestEpochEndMetrics(t *testing.T) {
	m := EpochEnd(3, map[string]float64{"loss": 0.5, "accuracy": 0.9})
	epoch, err := m.Int(KeyEpoch)
	require.NoError(t, err)
	require.Equal(t, 3, epoch)
	require.Equal(t, map[string]float64{"loss": 0.5, "accuracy": 0.9}, m.Metrics())
}

func TestReadRecords(t *testing.T) {
	in := strings.Join([]string{
		`{"kind":"epoch_end","at":"2024-01-01T00:00:00Z","payload":{"epoch":0,"loss":1.5}}`,
		``,
		`{"kind":"end","at":"2024-01-01T00:00:01Z"}`,
	}, "\n")
	recs, err := ReadRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, KindEpochEnd, recs[0].Kind)
	require.Equal(t, KindEnd, recs[1].Kind)
	require.NotNil(t, recs[1].Payload)

	_, err = ReadRecords(strings.NewReader(`{"kind":"nope"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 1")
}

func TestRecordKeepsNonFiniteNumbers(t *testing.T) {
	m := EpochEnd(1, map[string]float64{"loss": math.NaN(), "val_loss": math.Inf(1), "grad": math.Inf(-1), "accuracy": 0.5})
	m.Payload[KeyX] = [][]float64{{0, math.NaN()}}
	b, err := json.Marshal(NewRecord(m, time.Unix(0, 0).UTC()))
	require.NoError(t, err)
	require.Contains(t, string(b), `"loss":"NaN"`)
	require.Contains(t, string(b), `"val_loss":"+Inf"`)

	rec, err := DecodeRecord(b)
	require.NoError(t, err)
	got := rec.Message()
	metrics := got.Metrics()
	require.True(t, math.IsNaN(metrics["loss"]))
	require.True(t, math.IsInf(metrics["val_loss"], 1))
	require.True(t, math.IsInf(metrics["grad"], -1))
	require.Equal(t, 0.5, metrics["accuracy"])

	epoch, err := got.Int(KeyEpoch)
	require.NoError(t, err)
	require.Equal(t, 1, epoch)
	images, err := got.Matrix(KeyX)
	require.NoError(t, err)
	require.True(t, math.IsNaN(images[0][1]))

	// the message itself is untouched
	loss, err := m.Float("loss")
	require.NoError(t, err)
	require.True(t, math.IsNaN(loss))
}
