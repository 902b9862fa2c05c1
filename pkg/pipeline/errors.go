package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one step of the pipeline
type Stage string

const (
	StageChain   Stage = "chain"
	StageHook    Stage = "hook"
	StageAppData Stage = "appdata"
	StageOrder   Stage = "order"
	StageSign    Stage = "sign"
	StageSubmit  Stage = "submit"
)

var (
	ErrNoHooks        = errors.New("no hooks to encode")
	ErrNothingToSweep = errors.New("holder has no balance")
	ErrWrongWallet    = errors.New("wallet address does not match expected owner")
)

// StageError records which step failed. Err is the typed error of that step
// (hook.EncodingError, appdata.CanonicalizationError, crypto.SigningError,
// orderbook.SubmissionError, ...).
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
