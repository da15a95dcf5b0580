// Package run owns the device environment and the per-device pipeline:
// render the device's template, open its session, send the commands, and
// record the outcome.
package run

import (
	"errors"
	"fmt"

	"github.com/dynconf/dynconf/pkg/device"
	"github.com/dynconf/dynconf/pkg/loader"
	"github.com/dynconf/dynconf/pkg/util"
)

// Environment is the full ordered set of devices for one run, built once
// from the data file and immutable afterwards.
type Environment struct {
	Source  string
	Devices []*device.Device

	// Skipped records invalid rows that were dropped under the
	// skip-invalid policy, for the final report.
	Skipped []SkippedRecord
}

// SkippedRecord is a data-file record rejected at validation time.
type SkippedRecord struct {
	Position int
	Err      error
}

// Options controls environment construction.
type Options struct {
	Defaults device.Defaults

	// SkipInvalid drops records that fail validation (with a warning)
	// instead of failing the whole run. Default is fail: a broken
	// inventory is usually a mistake worth stopping for.
	SkipInvalid bool
}

// NewEnvironment loads the data file and normalizes every record. Data
// file errors are always fatal; validation errors follow the policy in
// opts.
func NewEnvironment(path string, opts Options) (*Environment, error) {
	records, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	env := &Environment{Source: path}
	for i, raw := range records {
		dev, err := device.New(raw, i+1, opts.Defaults)
		if err != nil {
			if opts.SkipInvalid && errors.Is(err, util.ErrValidation) {
				util.Warnf("skipping %v", err)
				env.Skipped = append(env.Skipped, SkippedRecord{Position: i + 1, Err: err})
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		env.Devices = append(env.Devices, dev)
	}
	return env, nil
}
