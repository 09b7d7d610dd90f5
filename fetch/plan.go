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
package fetch

import "github.com/penny-vault/pvfunds/data"

// Period is an inclusive quarter range fetched by a single API call.
type Period struct {
	From data.Quarter
	To   data.Quarter
}

// TickerChunks partitions tickers into fixed-size chunks of at most size
// elements, preserving input order. Every ticker appears in exactly one
// chunk.
func TickerChunks(tickers []int, size int) [][]int {
	chunks := make([][]int, 0, (len(tickers)+size-1)/size)
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		chunks = append(chunks, tickers[start:end])
	}
	return chunks
}

// PeriodChunks slices [start, end] into consecutive sub-ranges each
// spanning at most maxYears years. Every step ends on the quarter
// immediately preceding the start + maxYears boundary; the final step is
// clipped to end.
func PeriodChunks(start, end data.Quarter, maxYears int) []Period {
	var chunks []Period

	s := start
	for {
		dy := end.Year - s.Year
		dq := end.Num - s.Num
		if dy > maxYears || (dy == maxYears && dq >= 0) {
			stepEnd := data.Quarter{Year: s.Year + maxYears, Num: s.Num}.Prev()
			chunks = append(chunks, Period{From: s, To: stepEnd})
			s = stepEnd.Next()
			continue
		}

		chunks = append(chunks, Period{From: s, To: end})
		return chunks
	}
}
