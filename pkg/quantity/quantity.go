/*
Copyright 2025 The Shipmate Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package quantity parses Kubernetes-style resource quantity strings
// ("100m", "512Mi", "2Gi") into scaled numeric values. The set of
// recognized suffixes is a fixed table; anything outside it is an error
// rather than being passed through unparsed.
package quantity

import (
	"fmt"
	"strconv"
	"strings"
)

// Quantity is a parsed resource quantity. Value holds the numeric part
// as written; Scale is the multiplier implied by the suffix. Millis and
// Bytes give the common derived readings.
type Quantity struct {
	Raw    string
	Value  float64
	Suffix string
	Scale  float64
}

// suffixScales is the full table of recognized suffixes. The empty
// suffix means an unscaled value.
var suffixScales = map[string]float64{
	"":   1,
	"m":  0.001,
	"k":  1e3,
	"M":  1e6,
	"G":  1e9,
	"T":  1e12,
	"Ki": 1024,
	"Mi": 1024 * 1024,
	"Gi": 1024 * 1024 * 1024,
	"Ti": 1024 * 1024 * 1024 * 1024,
}

// Parse parses a quantity string against the suffix table. Unrecognized
// suffixes and malformed numeric parts are errors.
func Parse(s string) (Quantity, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Quantity{}, fmt.Errorf("empty quantity")
	}

	// Split the numeric prefix from the suffix.
	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			split = i
			break
		}
	}

	numPart := trimmed[:split]
	suffix := trimmed[split:]

	scale, ok := suffixScales[suffix]
	if !ok {
		return Quantity{}, fmt.Errorf("unrecognized quantity suffix %q in %q", suffix, s)
	}

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity value %q: %w", s, err)
	}
	if value < 0 {
		return Quantity{}, fmt.Errorf("negative quantity %q", s)
	}

	return Quantity{
		Raw:    trimmed,
		Value:  value,
		Suffix: suffix,
		Scale:  scale,
	}, nil
}

// Float returns the scaled value.
func (q Quantity) Float() float64 {
	return q.Value * q.Scale
}

// Millis returns the value in thousandths, the natural unit for CPU
// quantities ("100m" -> 100, "1" -> 1000).
func (q Quantity) Millis() int64 {
	return int64(q.Value * q.Scale * 1000)
}

// Bytes returns the value rounded to whole bytes, the natural unit for
// memory quantities ("512Mi" -> 536870912).
func (q Quantity) Bytes() int64 {
	return int64(q.Value * q.Scale)
}

// Validate reports whether every string in values parses. It is used to
// reject a deploy request before anything touches the cluster.
func Validate(values ...string) error {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := Parse(v); err != nil {
			return err
		}
	}
	return nil
}
