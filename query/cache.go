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
package query

import (
	"math"
	"sort"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvfunds/store"
)

// Frame is the result of one query: a column of values per item, plus the
// sorted set of tickers that appear in any column.
type Frame struct {
	Items   []Item
	Columns []Column
	Tickers []int
}

// Engine evaluates named queries against a loaded store, memoizing
// computed columns by their expression string. Cached columns live as
// long as the engine; reloading the store requires a fresh engine.
type Engine struct {
	store *store.Store
	cache *haxmap.Map[string, Column]
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{
		store: st,
		cache: haxmap.New[string, Column](),
	}
}

// Values resolves a named query. Columns already computed for the same
// expression string are returned from the cache; the rest are evaluated
// against the indicator and quarterly categories and then cached.
//
// When both categories can answer an output, the indicator value wins
// whenever it is defined for at least one ticker; the quarterly value is
// used only when the indicator column is wholly undefined or the
// indicator category is absent. The decision is per output, not per
// ticker.
func (e *Engine) Values(items []Item, mode Mode, asof time.Time) (*Frame, error) {
	frame := &Frame{
		Items:   items,
		Columns: make([]Column, len(items)),
	}

	var missing []int
	var missExprs []string
	for i, item := range items {
		if col, ok := e.cache.Get(item.Expr); ok {
			frame.Columns[i] = col
			continue
		}
		missing = append(missing, i)
		missExprs = append(missExprs, item.Expr)
	}

	if len(missing) > 0 {
		indicator, err := IndicatorValues(e.store.Indicator, missExprs)
		if err != nil {
			return nil, err
		}
		quarter, err := QuarterValues(e.store.Quarter, missExprs, mode, asof)
		if err != nil {
			return nil, err
		}

		for j, idx := range missing {
			col := pickColumn(indicator, quarter, j)
			if col == nil {
				log.Warn().Str("Expression", missExprs[j]).Msg("no data source can answer expression")
				col = make(Column)
			}
			e.cache.Set(missExprs[j], col)
			frame.Columns[idx] = col
		}
	}

	frame.Tickers = tickerUnion(frame.Columns)
	return frame, nil
}

// pickColumn applies the indicator-over-quarterly precedence for one
// output column.
func pickColumn(indicator, quarter []Column, j int) Column {
	if indicator != nil {
		col := indicator[j]
		for _, v := range col {
			if !math.IsNaN(v) {
				return col
			}
		}
	}
	if quarter != nil {
		return quarter[j]
	}
	if indicator != nil {
		return indicator[j]
	}
	return nil
}

func tickerUnion(columns []Column) []int {
	seen := make(map[int]bool)
	for _, col := range columns {
		for ticker := range col {
			seen[ticker] = true
		}
	}
	tickers := make([]int, 0, len(seen))
	for ticker := range seen {
		tickers = append(tickers, ticker)
	}
	sort.Ints(tickers)
	return tickers
}
