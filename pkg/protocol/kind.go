package protocol

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Kind selects how a message payload is interpreted and routed.
type Kind int

const (
	// lifecycle control
	KindStart       Kind = 0
	KindEnd         Kind = 1
	KindForceUpdate Kind = 2

	// custom data push and command requests
	KindCustomData Kind = 3
	KindCommand    Kind = 4
	KindEvaluation Kind = 5

	// training callbacks
	KindTrainBatchEnd Kind = 10
	KindEpochEnd      Kind = 11

	// data-sample requests; responses reuse the request kind
	KindTrainSetSample       Kind = 20
	KindTestSetSample        Kind = 21
	KindPredSample           Kind = 22
	KindPredSampleTrain      Kind = 23
	KindWrongPredSample      Kind = 24
	KindWrongPredSampleTrain Kind = 25
)

var kindNames = map[Kind]string{
	KindStart:                "start",
	KindEnd:                  "end",
	KindForceUpdate:          "force_update",
	KindCustomData:           "custom_data",
	KindCommand:              "command",
	KindEvaluation:           "evaluation",
	KindTrainBatchEnd:        "train_batch_end",
	KindEpochEnd:             "epoch_end",
	KindTrainSetSample:       "train_set_sample",
	KindTestSetSample:        "test_set_sample",
	KindPredSample:           "pred_sample",
	KindPredSampleTrain:      "pred_sample_train",
	KindWrongPredSample:      "wrong_pred_sample",
	KindWrongPredSampleTrain: "wrong_pred_sample_train",
}

// Kinds returns the full vocabulary in numeric order.
func Kinds() []Kind {
	return []Kind{
		KindStart, KindEnd, KindForceUpdate,
		KindCustomData, KindCommand, KindEvaluation,
		KindTrainBatchEnd, KindEpochEnd,
		KindTrainSetSample, KindTestSetSample,
		KindPredSample, KindPredSampleTrain,
		KindWrongPredSample, KindWrongPredSampleTrain,
	}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts the string name of a kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown message kind %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Errorf("unknown message kind %d", int(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "parse message kind")
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsDataRequest reports whether k is one of the six sample kinds.
func (k Kind) IsDataRequest() bool {
	switch k {
	case KindTrainSetSample, KindTestSetSample,
		KindPredSample, KindPredSampleTrain,
		KindWrongPredSample, KindWrongPredSampleTrain:
		return true
	}
	return false
}

// IsPrediction reports whether responses of this kind carry a pred field.
func (k Kind) IsPrediction() bool {
	switch k {
	case KindPredSample, KindPredSampleTrain, KindWrongPredSample, KindWrongPredSampleTrain:
		return true
	}
	return false
}

func (k Kind) IsWrongPrediction() bool {
	return k == KindWrongPredSample || k == KindWrongPredSampleTrain
}

// UsesTrainSet reports whether a sample kind draws from the training set.
func (k Kind) UsesTrainSet() bool {
	switch k {
	case KindTrainSetSample, KindPredSampleTrain, KindWrongPredSampleTrain:
		return true
	}
	return false
}

// ResponseKind is the kind the producer answers a data request with.
func (k Kind) ResponseKind() Kind {
	return k
}
