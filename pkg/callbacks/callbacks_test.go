package callbacks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// parityModel predicts the first feature rounded, so labels decide which
// rows are "wrong".
type parityModel struct {
	stops    int
	saved    []string
	failSave bool
	calls    int
}

func (m *parityModel) Predict(x [][]float64) ([]int, error) {
	m.calls++
	out := make([]int, len(x))
	for i, row := range x {
		out[i] = int(row[0])
	}
	return out, nil
}

func (m *parityModel) StopTraining() { m.stops++ }

func (m *parityModel) Save(name string) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saved = append(m.saved, name)
	return nil
}

type fixedPrompter struct {
	answer string
	asked  int
}

func (p *fixedPrompter) Prompt(string) (string, error) {
	p.asked++
	return p.answer, nil
}

// dataset has labels i%3 and features {i%2}: rows with i%3 != i%2 are
// mispredicted.
func dataset(n int) Dataset {
	d := Dataset{}
	for i := 0; i < n; i++ {
		d.X = append(d.X, []float64{float64(i % 2), 0.5})
		d.Y = append(d.Y, i%3)
	}
	return d
}

func newCallbacks(t *testing.T, m Model, q queue.Pair) *Callbacks {
	t.Helper()
	c, err := New(Options{Model: m, Train: dataset(20), Test: dataset(10), Queues: q, Prompter: &fixedPrompter{answer: "prompted.json"}})
	require.NoError(t, err)
	return c
}

func TestSatisfyRequests_SampleRoundTrip(t *testing.T) {
	q := queue.NewPair()
	m := &parityModel{}
	c := newCallbacks(t, m, q)

	require.NoError(t, q.Returns.Push(
		protocol.SampleRequest(protocol.KindTrainSetSample, 4),
		protocol.CommandMessage(protocol.CommandStop, nil),
		protocol.SampleRequest(protocol.KindPredSample, 3),
		protocol.SampleRequest(protocol.KindTestSetSample, 50),
	))
	require.NoError(t, c.OnEpochBegin(0))

	// the command stays for HandleCommands
	rest := q.Returns.Snapshot()
	require.Len(t, rest, 1)
	require.Equal(t, protocol.KindCommand, rest[0].Kind)

	resp := q.Updates.Drain()
	require.Len(t, resp, 3)

	require.Equal(t, protocol.KindTrainSetSample, resp[0].Kind)
	x, err := resp[0].Matrix(protocol.KeyX)
	require.NoError(t, err)
	y, err := resp[0].Ints(protocol.KeyY)
	require.NoError(t, err)
	require.Len(t, x, 4)
	require.Len(t, y, 4)
	require.False(t, resp[0].Has(protocol.KeyPred))

	require.Equal(t, protocol.KindPredSample, resp[1].Kind)
	pred, err := resp[1].Ints(protocol.KeyPred)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 0}, pred)

	// larger than the test set: clamped
	x, err = resp[2].Matrix(protocol.KeyX)
	require.NoError(t, err)
	require.Len(t, x, 10)
}

func TestSatisfyRequests_InitialRequestsAnsweredAtConstruction(t *testing.T) {
	q := queue.NewPair()
	require.NoError(t, q.Returns.Push(protocol.SampleRequest(protocol.KindTestSetSample, 2)))
	newCallbacks(t, &parityModel{}, q)
	require.Equal(t, 0, q.Returns.Len())
	require.Equal(t, 1, q.Updates.Len())
}

func TestSatisfyRequests_WrongPredictionsCapped(t *testing.T) {
	q := queue.NewPair()
	c := newCallbacks(t, &parityModel{}, q)

	require.NoError(t, q.Returns.Push(
		protocol.WrongPredRequest(protocol.KindWrongPredSampleTrain, 3, 1000),
		protocol.WrongPredRequest(protocol.KindWrongPredSample, 100, 6),
	))
	require.NoError(t, c.SatisfyRequests())
	resp := q.Updates.Drain()
	require.Len(t, resp, 2)

	for _, r := range resp {
		x, err := r.Matrix(protocol.KeyX)
		require.NoError(t, err)
		y, err := r.Ints(protocol.KeyY)
		require.NoError(t, err)
		pred, err := r.Ints(protocol.KeyPred)
		require.NoError(t, err)
		require.Len(t, y, len(x))
		require.Len(t, pred, len(x))
		for i := range pred {
			require.NotEqual(t, y[i], pred[i])
		}
	}

	require.Equal(t, protocol.KindWrongPredSampleTrain, resp[0].Kind)
	y, _ := resp[0].Ints(protocol.KeyY)
	require.Len(t, y, 3)

	// rows 0..5: labels 0,1,2,0,1,2 vs preds 0,1,0,1,0,1 -> rows 2,3,4,5 wrong
	require.Equal(t, protocol.KindWrongPredSample, resp[1].Kind)
	y, _ = resp[1].Ints(protocol.KeyY)
	require.Equal(t, []int{2, 0, 1, 2}, y)
}

func TestSatisfyRequests_DropsMalformed(t *testing.T) {
	q := queue.NewPair()
	m := &parityModel{}
	c := newCallbacks(t, m, q)

	require.NoError(t, q.Returns.Push(
		protocol.New(protocol.KindPredSample, map[string]any{"count": 2}),
		protocol.New(protocol.KindWrongPredSample, map[string]any{protocol.KeyMaxNum: 2}),
	))
	require.NoError(t, c.SatisfyRequests())
	require.Equal(t, 0, q.Returns.Len())
	require.Equal(t, 0, q.Updates.Len())
	require.Equal(t, 0, m.calls)
}

func TestOnEpochEnd_PushesLogsThenForceUpdate(t *testing.T) {
	q := queue.NewPair()
	c := newCallbacks(t, &parityModel{}, q)

	require.NoError(t, c.OnEpochEnd(4, map[string]float64{"loss": 0.3, "accuracy": 0.9}))
	msgs := q.Updates.Drain()
	require.Len(t, msgs, 2)
	require.Equal(t, protocol.KindEpochEnd, msgs[0].Kind)
	epoch, err := msgs[0].Int(protocol.KeyEpoch)
	require.NoError(t, err)
	require.Equal(t, 4, epoch)
	require.Equal(t, map[string]float64{"loss": 0.3, "accuracy": 0.9}, msgs[0].Metrics())
	require.Equal(t, protocol.KindForceUpdate, msgs[1].Kind)

	require.NoError(t, c.OnBatchEnd(1, map[string]float64{"loss": 1}))
	require.Equal(t, 0, q.Updates.Len())
}

func TestHandleCommands_StopOnce(t *testing.T) {
	q := queue.NewPair()
	m := &parityModel{}
	c := newCallbacks(t, m, q)

	require.NoError(t, q.Returns.Push(
		protocol.CommandMessage(protocol.CommandStop, nil),
		protocol.SampleRequest(protocol.KindTestSetSample, 1),
		protocol.CommandMessage(protocol.CommandStop, nil),
	))
	c.HandleCommands(true)

	require.Equal(t, 1, m.stops)
	require.True(t, c.Stopped())
	rest := q.Returns.Snapshot()
	require.Len(t, rest, 1)
	require.Equal(t, protocol.KindTestSetSample, rest[0].Kind)
}

func TestHandleCommands_StopAfterEndOnlyWarns(t *testing.T) {
	q := queue.NewPair()
	m := &parityModel{}
	c := newCallbacks(t, m, q)
	c.OnTrainEnd()

	require.NoError(t, q.Returns.Push(protocol.CommandMessage(protocol.CommandStop, nil)))
	c.HandleCommands(true)
	require.Equal(t, 0, m.stops)
	require.False(t, c.Stopped())
	require.Equal(t, 0, q.Returns.Len())

	require.NoError(t, q.Returns.Push(protocol.CommandMessage(protocol.CommandStop, nil)))
	c2 := newCallbacks(t, m, q)
	c2.HandleCommands(false)
	require.Equal(t, 0, m.stops)
}

func TestHandleCommands_Save(t *testing.T) {
	q := queue.NewPair()
	m := &parityModel{}
	p := &fixedPrompter{answer: "prompted.json"}
	c, err := New(Options{Model: m, Queues: q, Prompter: p})
	require.NoError(t, err)

	require.NoError(t, q.Returns.Push(
		protocol.CommandMessage(protocol.CommandSave, map[string]any{protocol.KeyName: "named.json"}),
		protocol.CommandMessage(protocol.CommandSave, nil),
		protocol.CommandMessage("reboot", nil),
	))
	c.HandleCommands(true)
	require.Equal(t, []string{"named.json", "prompted.json"}, m.saved)
	require.Equal(t, 1, p.asked)
	require.Equal(t, 0, q.Returns.Len())

	m.failSave = true
	require.NoError(t, q.Returns.Push(protocol.CommandMessage(protocol.CommandSave, map[string]any{protocol.KeyName: "x"})))
	c.HandleCommands(true)
	require.Len(t, m.saved, 2)
}

func TestHandleRemaining_ReturnsLeftovers(t *testing.T) {
	q := queue.NewPair()
	m := &parityModel{}
	c := newCallbacks(t, m, q)

	require.NoError(t, q.Returns.Push(
		protocol.CommandMessage(protocol.CommandStop, nil),
		protocol.SampleRequest(protocol.KindPredSample, 2),
		protocol.CommandMessage(protocol.CommandSave, map[string]any{protocol.KeyName: "final.json"}),
	))
	rest := c.HandleRemaining()
	require.Len(t, rest, 1)
	require.Equal(t, protocol.KindPredSample, rest[0].Kind)
	require.Equal(t, 0, m.stops)
	require.Equal(t, []string{"final.json"}, m.saved)
	require.Equal(t, 0, q.Returns.Len())
}

func TestNew_RequiresModelAndQueues(t *testing.T) {
	_, err := New(Options{Queues: queue.NewPair()})
	require.Error(t, err)
	_, err = New(Options{Model: &parityModel{}})
	require.Error(t, err)
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := &LinePrompter{In: strings.NewReader("first.json\nsecond"), Out: &out}

	a, err := p.Prompt("File name: ")
	require.NoError(t, err)
	require.Equal(t, "first.json", a)
	a, err = p.Prompt("File name: ")
	require.NoError(t, err)
	require.Equal(t, "second", a)
	_, err = p.Prompt("File name: ")
	require.Error(t, err)
	require.Equal(t, "File name: File name: File name: ", out.String())
}
