package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/panels"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/stretchr/testify/require"
)

type recordingPanel struct {
	name    string
	seen    []protocol.Message
	reply   []protocol.Message
	initial []protocol.Message
	explode bool
}

func (p *recordingPanel) Title() string { return p.name }

func (p *recordingPanel) Init() []protocol.Message { return p.initial }

func (p *recordingPanel) Update(msg protocol.Message) ([]protocol.Message, error) {
	p.seen = append(p.seen, msg)
	if p.explode && msg.Kind == protocol.KindCustomData {
		panic("boom")
	}
	return p.reply, nil
}

func (p *recordingPanel) View(width, height int) string { return p.name + "-view" }

func (p *recordingPanel) kinds() []protocol.Kind {
	out := make([]protocol.Kind, 0, len(p.seen))
	for _, m := range p.seen {
		out = append(out, m.Kind)
	}
	return out
}

type fixture struct {
	mu     sync.Mutex
	panels []*recordingPanel
}

func (f *fixture) registry(t *testing.T, configure func(*recordingPanel)) *panels.Registry {
	t.Helper()
	newDesc := func(name string, caps ...panels.Capability) panels.Descriptor {
		return panels.Descriptor{
			Name:         name,
			Capabilities: caps,
			Schema:       config.Schema{{Key: "label", Type: config.TypeString}},
			New: func(s panels.Surface, opts config.Options) (panels.Panel, error) {
				p := &recordingPanel{name: name + ":" + opts.String("label")}
				if configure != nil {
					configure(p)
				}
				f.mu.Lock()
				f.panels = append(f.panels, p)
				f.mu.Unlock()
				return p, nil
			},
		}
	}
	reg, err := panels.NewRegistry(newDesc("Recorder"), newDesc("StatusRecorder", panels.CapStatus))
	require.NoError(t, err)
	return reg
}

func grid(rows ...[]any) *config.Document {
	all := make([]any, 0, len(rows))
	for _, r := range rows {
		all = append(all, r)
	}
	doc, err := config.FromMap(map[string]any{"modules": all, "maxLatency": 5})
	if err != nil {
		panic(err)
	}
	return doc
}

func cell(name, label string) any {
	return []any{name, map[string]any{"label": label}}
}

func TestNew_BuildsRowMajorAndPushesInitialRequests(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, func(p *recordingPanel) {
		p.initial = []protocol.Message{protocol.SampleRequest(protocol.KindTrainSetSample, 1)}
	})
	q := queue.NewPair()

	d, err := New(grid(
		[]any{cell("Recorder", "a"), cell("Recorder", "b")},
		[]any{cell("Recorder", "c"), cell("StatusRecorder", "d")},
	), q, Options{Registry: reg})
	require.NoError(t, err)

	require.Equal(t, []string{"Recorder", "Recorder", "Recorder", "StatusRecorder"}, d.PanelNames())
	require.Len(t, f.panels, 4)
	for i, label := range []string{"a", "b", "c", "d"} {
		require.True(t, strings.HasSuffix(f.panels[i].name, ":"+label))
	}
	require.Equal(t, 4, q.Returns.Len())
	require.Equal(t, 0, q.Updates.Len())
	require.Equal(t, protocol.ModeLive, d.Mode())
}

func TestNew_FailsFastOnBadConfig(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, func(p *recordingPanel) {
		p.initial = []protocol.Message{protocol.SampleRequest(protocol.KindTrainSetSample, 1)}
	})
	q := queue.NewPair()

	_, err := New(grid([]any{cell("Recorder", "a"), cell("Nope", "b")}), q, Options{Registry: reg})
	require.Error(t, err)
	require.Contains(t, err.Error(), `"Nope"`)
	require.Empty(t, f.panels)
	require.Equal(t, 0, q.Returns.Len())

	_, err = config.FromMap(map[string]any{"modules": []any{
		[]any{cell("Recorder", "a"), cell("Recorder", "b")},
		[]any{cell("Recorder", "c")},
	}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "do not form a grid")
}

func TestRun_VisitsEveryPanelAndEndsOnce(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, func(p *recordingPanel) {
		p.reply = []protocol.Message{protocol.SampleRequest(protocol.KindPredSample, 2)}
	})
	q := queue.NewPair()
	d, err := New(grid([]any{cell("Recorder", "a"), cell("StatusRecorder", "s"), cell("Recorder", "b")}), q, Options{Registry: reg})
	require.NoError(t, err)

	require.NoError(t, q.Updates.Push(
		protocol.New(protocol.KindCustomData, map[string]any{"foo": 1}),
		protocol.ForceUpdate(),
		protocol.EpochEnd(0, map[string]float64{"loss": 1}),
		protocol.ForceUpdate(),
		protocol.End(),
		protocol.EpochEnd(1, nil),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	a, s, b := f.panels[0], f.panels[1], f.panels[2]
	want := []protocol.Kind{protocol.KindCustomData, protocol.KindEpochEnd, protocol.KindEnd}
	require.Equal(t, want, a.kinds())
	require.Equal(t, want, b.kinds())

	// the status panel gets status snapshots instead, then the same single End
	require.Equal(t, []protocol.Kind{
		protocol.KindCustomData, protocol.KindCustomData, protocol.KindCustomData, protocol.KindEnd,
	}, s.kinds())
	mode, err := s.seen[0].Text(protocol.KeyCurrentMode)
	require.NoError(t, err)
	require.Equal(t, protocol.ModeLive, mode)
	mode, err = s.seen[2].Text(protocol.KeyCurrentMode)
	require.NoError(t, err)
	require.Equal(t, protocol.ModePostTraining, mode)
	timers, err := s.seen[1].Floats(protocol.KeyModulesTimer)
	require.NoError(t, err)
	require.Len(t, timers, 3)

	require.Equal(t, protocol.ModePostTraining, d.Mode())
	require.Equal(t, 2, d.Dispatched())
	// the message after End is never consumed
	require.Equal(t, 1, q.Updates.Len())

	returns := q.Returns.Drain()
	require.Equal(t, protocol.KindStart, returns[0].Kind)
	// 3 panels reply on 2 dispatches and on End, plus the status snapshot at the end
	require.Len(t, returns, 1+3*2+3+1)
	for _, m := range returns[1:] {
		require.Equal(t, protocol.KindPredSample, m.Kind)
	}
}

func TestRun_ForceUpdateNeverReachesPanels(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, nil)
	q := queue.NewPair()
	n := &countingNotifier{}
	d, err := New(grid([]any{cell("Recorder", "a")}), q, Options{Registry: reg, Notifier: n})
	require.NoError(t, err)

	require.NoError(t, q.Updates.Push(protocol.ForceUpdate(), protocol.ForceUpdate(), protocol.End()))
	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, []protocol.Kind{protocol.KindEnd}, f.panels[0].kinds())
	require.GreaterOrEqual(t, n.count("force"), 2)
	require.Equal(t, []string{protocol.ModePostTraining}, n.modes)
	require.Equal(t, 0, n.dispatched)
}

func TestRun_SurvivesPanickingPanel(t *testing.T) {
	f := &fixture{}
	explode := true
	reg := f.registry(t, func(p *recordingPanel) {
		p.explode = explode
		explode = false
	})
	q := queue.NewPair()
	d, err := New(grid([]any{cell("Recorder", "bad"), cell("Recorder", "good")}), q, Options{Registry: reg})
	require.NoError(t, err)

	require.NoError(t, q.Updates.Push(protocol.New(protocol.KindCustomData, nil), protocol.End()))
	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, []protocol.Kind{protocol.KindCustomData, protocol.KindEnd}, f.panels[0].kinds())
	require.Equal(t, []protocol.Kind{protocol.KindCustomData, protocol.KindEnd}, f.panels[1].kinds())
}

func TestRun_TicksAndCancels(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, nil)
	q := queue.NewPair()
	n := &countingNotifier{}
	d, err := New(grid([]any{cell("Recorder", "a")}), q, Options{Registry: reg, Notifier: n, MaxLatency: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return n.count("tick") >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard did not stop")
	}
	require.Empty(t, f.panels[0].seen)
	require.Equal(t, protocol.ModeLive, d.Mode())
}

func TestRun_ClosedUpdatesFinish(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, nil)
	q := queue.NewPair()
	d, err := New(grid([]any{cell("Recorder", "a")}), q, Options{Registry: reg})
	require.NoError(t, err)

	require.NoError(t, q.Updates.Push(protocol.New(protocol.KindEvaluation, nil)))
	q.Updates.Close()
	require.NoError(t, d.Run(context.Background()))
	require.Equal(t, []protocol.Kind{protocol.KindEvaluation, protocol.KindEnd}, f.panels[0].kinds())
}

func TestRender_DrawsEveryPanel(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t, nil)
	d, err := New(grid(
		[]any{cell("Recorder", "a"), cell("Recorder", "b")},
		[]any{cell("Recorder", "c"), cell("Recorder", "d")},
	), queue.NewPair(), Options{Registry: reg})
	require.NoError(t, err)

	out := d.Render(80, 24)
	for _, label := range []string{"a", "b", "c", "d"} {
		require.Contains(t, out, "Recorder:"+label+"-view")
	}
	require.Len(t, strings.Split(out, "\n"), 24)
	require.Empty(t, d.Render(0, 10))
}

func TestHandleKey_PushesCommands(t *testing.T) {
	q := queue.NewPair()
	d, err := New(grid([]any{"ControlButtons", "EmptyModule"}), q, Options{})
	require.NoError(t, err)

	require.NotEmpty(t, d.Keybinds())
	require.False(t, d.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}))
	require.True(t, d.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}))

	cmds := q.Returns.TakeMatching(queue.OfKind(protocol.KindCommand))
	require.Len(t, cmds, 1)
	require.Equal(t, protocol.CommandStop, cmds[0].StringOr(protocol.KeyCommand, ""))

	require.True(t, d.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")}))
	require.True(t, d.Capturing())
}

type countingNotifier struct {
	mu         sync.Mutex
	redraws    map[string]int
	modes      []string
	dispatched int
}

func (n *countingNotifier) Redraw(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.redraws == nil {
		n.redraws = map[string]int{}
	}
	n.redraws[reason]++
}

func (n *countingNotifier) ModeChanged(mode string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modes = append(n.modes, mode)
}

func (n *countingNotifier) Dispatched(protocol.Message, time.Duration, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched++
}

func (n *countingNotifier) count(reason string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.redraws[reason]
}
