// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package data

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidQuarter = errors.New("invalid quarter")

// Quarter identifies one fiscal quarter, e.g. 2012Q1.
type Quarter struct {
	Year int
	Num  int
}

// ParseQuarter parses a period in YYYYQn form.
func ParseQuarter(s string) (Quarter, error) {
	parts := strings.SplitN(s, "Q", 2)
	if len(parts) != 2 {
		return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarter, s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarter, s)
	}

	num, err := strconv.Atoi(parts[1])
	if err != nil || num < 1 || num > 4 {
		return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarter, s)
	}

	return Quarter{Year: year, Num: num}, nil
}

func (q Quarter) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Num)
}

// Next returns the following quarter, wrapping Q4 into Q1 of the next year.
func (q Quarter) Next() Quarter {
	if q.Num > 3 {
		return Quarter{Year: q.Year + 1, Num: 1}
	}
	return Quarter{Year: q.Year, Num: q.Num + 1}
}

// Prev returns the preceding quarter, wrapping Q1 into Q4 of the prior year.
func (q Quarter) Prev() Quarter {
	if q.Num < 2 {
		return Quarter{Year: q.Year - 1, Num: 4}
	}
	return Quarter{Year: q.Year, Num: q.Num - 1}
}

// Before reports whether q is strictly earlier than other.
func (q Quarter) Before(other Quarter) bool {
	if q.Year != other.Year {
		return q.Year < other.Year
	}
	return q.Num < other.Num
}
