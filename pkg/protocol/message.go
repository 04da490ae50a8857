package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// Payload keys shared between the producer and the panels.
const (
	KeyNum      = "num"
	KeyMaxNum   = "maxnum"
	KeyAttempts = "attempts"
	KeyX        = "x"
	KeyY        = "y"
	KeyPred     = "pred"
	KeyCommand  = "command"
	KeyName     = "name"
	KeyEpoch    = "epoch"
	KeyBatch    = "batch"

	KeyAutoRendering = "autorendering"
	KeyCurrentMode   = "currentmode"
	KeyTimer         = "timer"
	KeyModulesTimer  = "modulestimer"
	KeyModuleNames   = "modulenames"
	KeyWidth         = "width"
	KeyHeight        = "height"
)

const (
	CommandStop = "stop"
	CommandSave = "save"
)

// Render modes reported in status payloads.
const (
	ModeLive         = "Live Render"
	ModePostTraining = "Post Training View"
)

// Message is the envelope exchanged over both queues. Treat it as immutable:
// the constructors copy the payload map and nothing mutates it afterwards.
type Message struct {
	Kind    Kind
	Payload map[string]any
}

func New(kind Kind, payload map[string]any) Message {
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return Message{Kind: kind, Payload: cp}
}

func Start() Message       { return New(KindStart, nil) }
func End() Message         { return New(KindEnd, nil) }
func ForceUpdate() Message { return New(KindForceUpdate, nil) }

// SampleRequest asks the producer for the first num rows of a data set.
func SampleRequest(kind Kind, num int) Message {
	return New(kind, map[string]any{KeyNum: num})
}

// WrongPredRequest asks for up to maxNum mispredicted rows out of the first
// attempts rows.
func WrongPredRequest(kind Kind, maxNum, attempts int) Message {
	return New(kind, map[string]any{KeyMaxNum: maxNum, KeyAttempts: attempts})
}

func CommandMessage(command string, args map[string]any) Message {
	m := New(KindCommand, args)
	m.Payload[KeyCommand] = command
	return m
}

// EpochEnd builds the epoch-end update from the training logs.
func EpochEnd(epoch int, logs map[string]float64) Message {
	m := New(KindEpochEnd, nil)
	for k, v := range logs {
		m.Payload[k] = v
	}
	m.Payload[KeyEpoch] = epoch
	return m
}

func (m Message) Has(key string) bool {
	_, ok := m.Payload[key]
	return ok
}

func (m Message) String() string {
	keys := make([]string, 0, len(m.Payload))
	for k := range m.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("Message{kind=%s keys=[%s]}", m.Kind, strings.Join(keys, ","))
}
