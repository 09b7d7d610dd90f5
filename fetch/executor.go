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

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pvfunds/api"
	"github.com/penny-vault/pvfunds/data"
	"github.com/rs/zerolog/log"
)

const (
	// quotaBackoff is how long to wait after the API reports its quota
	// exceeded. The quota resets daily; the configured retry interval does
	// not apply here.
	quotaBackoff = 24 * time.Hour

	// pollInterval is the tick used while waiting out a backoff. Short
	// polls keep cancellation responsive during multi-hour waits.
	pollInterval = time.Second
)

var (
	ErrColumnMismatch = errors.New("column definitions differ between fetch calls")

	// errStopped signals cooperative cancellation inside the executor; it
	// never escapes to callers.
	errStopped = errors.New("fetch stopped")
)

// Source is the slice of the API client the executor drives.
type Source interface {
	Company(ctx context.Context) (*api.CategoryResult, error)
	Quarter(ctx context.Context, tickers []int, from, to data.Quarter) (*api.CategoryResult, error)
	Indicator(ctx context.Context, tickers []int) (*api.CategoryResult, error)
}

// Sink receives one accumulated per-ticker table after all period chunks
// for the ticker's chunk completed. table is nil when the API returned no
// rows for the ticker; the column dictionary is always supplied so sinks
// can persist it regardless.
type Sink func(ticker int, table *data.Table, columns data.ColumnDict) error

// Canceller is the cooperative stop token shared between the foreground
// and the single fetch worker. The foreground only sets it; the worker
// polls it at the top of each call attempt and on every backoff tick.
type Canceller struct {
	stopped atomic.Bool
}

// Cancel requests the in-flight plan to stop at its next poll point.
func (c *Canceller) Cancel() {
	c.stopped.Store(true)
}

// Cancelled reports whether a stop was requested.
func (c *Canceller) Cancelled() bool {
	return c.stopped.Load()
}

// Executor drives a fetch plan one API call at a time, applying the
// retry/backoff policy and streaming completed ticker tables to a sink.
type Executor struct {
	source Source
	cancel *Canceller

	// RetryMinutes is the wait before retrying a generic fetch error. A
	// negative value disables retries: the first generic error aborts the
	// plan. Quota-exceeded responses always wait quotaBackoff instead.
	RetryMinutes int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewExecutor creates an executor over the given source. cancel may be
// shared with a foreground goroutine requesting cancellation.
func NewExecutor(source Source, retryMinutes int, cancel *Canceller) *Executor {
	if cancel == nil {
		cancel = &Canceller{}
	}
	return &Executor{
		source:       source,
		cancel:       cancel,
		RetryMinutes: retryMinutes,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// fetchSafe runs one API call with the retry/backoff state machine. It
// returns errStopped when cancellation was observed, either before a call
// or while polling out a backoff.
func (exec *Executor) fetchSafe(call func() (*api.CategoryResult, error)) (*api.CategoryResult, error) {
	var retryAt time.Time

	for {
		if exec.cancel.Cancelled() {
			return nil, errStopped
		}

		if exec.now().Before(retryAt) {
			exec.sleep(pollInterval)
			continue
		}

		result, err := call()
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, api.ErrQuotaExceeded):
			retryAt = exec.now().Add(quotaBackoff)
			log.Warn().Err(err).Time("RetryAt", retryAt).Msg("quota exceeded, waiting 1 day")
		case exec.RetryMinutes < 0:
			return nil, err
		default:
			retryAt = exec.now().Add(time.Duration(exec.RetryMinutes) * time.Minute)
			log.Error().Err(err).Int("RetryMinutes", exec.RetryMinutes).Msg("fetch failed, will retry")
		}
	}
}

// RunCompany fetches the company category in a single call. A nil table is
// returned when the plan was cancelled before the call succeeded.
func (exec *Executor) RunCompany(ctx context.Context) (*data.Table, data.ColumnDict, error) {
	result, err := exec.fetchSafe(func() (*api.CategoryResult, error) {
		return exec.source.Company(ctx)
	})
	if err != nil {
		if errors.Is(err, errStopped) {
			log.Info().Msg("company fetch cancelled")
			return nil, nil, nil
		}
		return nil, nil, err
	}

	tickers := make([]int, 0, len(result.Rows))
	for ticker := range result.Rows {
		tickers = append(tickers, ticker)
	}
	sort.Ints(tickers)

	table := data.NewTable(header(result.Columns, nil))
	for _, ticker := range tickers {
		rows := result.Rows[ticker]
		if len(rows) == 0 {
			continue
		}
		row := rows[0]
		row[data.TickerColumn] = strconv.Itoa(ticker)
		table.Append(row)
	}

	return table, result.Columns, nil
}

// RunQuarter executes the full quarterly fetch plan for tickers over
// [start, end]: ticker chunks crossed with period chunks, entity-major.
// The sink is invoked once per ticker after its chunk's last period chunk
// completed, so partial progress is persisted in deterministic order.
func (exec *Executor) RunQuarter(ctx context.Context, tickers []int, start, end data.Quarter, sink Sink) error {
	runID := uuid.New().String()
	startTime := exec.now()
	numCalls := 0
	stopped := false

	chunks := TickerChunks(tickers, api.MaxTickersPerCall)
	periods := PeriodChunks(start, end, api.MaxYearsPerCall)

	log.Info().Str("RunID", runID).Int("NumTickers", len(tickers)).
		Int("NumTickerChunks", len(chunks)).Int("NumPeriodChunks", len(periods)).
		Msg("starting quarter fetch plan")

	defer func() {
		log.Info().Str("RunID", runID).Int("NumCalls", numCalls).Bool("Stopped", stopped).
			Dur("RunTime", exec.now().Sub(startTime)).Msg("quarter fetch plan finished")
	}()

	var authoritative data.ColumnDict

chunkLoop:
	for _, chunk := range chunks {
		accumulated := make(map[int]*data.Table, len(chunk))

		for _, period := range periods {
			result, err := exec.fetchSafe(func() (*api.CategoryResult, error) {
				return exec.source.Quarter(ctx, chunk, period.From, period.To)
			})
			if err != nil {
				if errors.Is(err, errStopped) {
					stopped = true
					break chunkLoop
				}
				return err
			}

			numCalls++

			if authoritative == nil {
				authoritative = result.Columns
			} else if !authoritative.Equal(result.Columns) {
				return ErrColumnMismatch
			}

			for _, ticker := range chunk {
				rows := result.Rows[ticker]
				if len(rows) == 0 {
					continue
				}

				sub := quarterTable(ticker, rows, result.Columns)
				if accumulated[ticker] == nil {
					accumulated[ticker] = sub
				} else {
					accumulated[ticker].Concat(sub)
				}
			}
		}

		for _, ticker := range chunk {
			table := accumulated[ticker]
			if table != nil {
				table.SortQuarters()
				table.DedupeQuarters()
			}
			if sink != nil {
				if err := sink(ticker, table, authoritative); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// RunIndicator executes the indicator fetch plan: ticker chunks only, one
// snapshot row per ticker.
func (exec *Executor) RunIndicator(ctx context.Context, tickers []int, sink Sink) error {
	runID := uuid.New().String()
	startTime := exec.now()
	numCalls := 0
	stopped := false

	chunks := TickerChunks(tickers, api.MaxTickersPerCall)

	log.Info().Str("RunID", runID).Int("NumTickers", len(tickers)).
		Int("NumTickerChunks", len(chunks)).Msg("starting indicator fetch plan")

	defer func() {
		log.Info().Str("RunID", runID).Int("NumCalls", numCalls).Bool("Stopped", stopped).
			Dur("RunTime", exec.now().Sub(startTime)).Msg("indicator fetch plan finished")
	}()

	var authoritative data.ColumnDict

	for _, chunk := range chunks {
		result, err := exec.fetchSafe(func() (*api.CategoryResult, error) {
			return exec.source.Indicator(ctx, chunk)
		})
		if err != nil {
			if errors.Is(err, errStopped) {
				stopped = true
				return nil
			}
			return err
		}

		numCalls++

		if authoritative == nil {
			authoritative = result.Columns
		} else if !authoritative.Equal(result.Columns) {
			return ErrColumnMismatch
		}

		for _, ticker := range chunk {
			rows := result.Rows[ticker]

			var table *data.Table
			if len(rows) > 0 {
				table = indicatorTable(ticker, rows[0], result.Columns)
			}

			if sink != nil {
				if err := sink(ticker, table, authoritative); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// quarterTable builds a per-ticker table from one sub-fetch's rows, sorted
// by period with duplicate periods removed (last arrival wins).
func quarterTable(ticker int, rows []data.Row, columns data.ColumnDict) *data.Table {
	table := data.NewTable(header(columns, []string{data.FiscalYearColumn, data.FiscalQuarterColumn}))
	for _, row := range rows {
		row[data.TickerColumn] = strconv.Itoa(ticker)
		table.Append(row)
	}

	table.SortQuarters()
	table.DedupeQuarters()
	return table
}

func indicatorTable(ticker int, row data.Row, columns data.ColumnDict) *data.Table {
	table := data.NewTable(header(columns, []string{data.DayColumn}))
	row[data.TickerColumn] = strconv.Itoa(ticker)
	table.Append(row)
	return table
}

// header builds a deterministic column header: the ticker column, the
// category's key columns, then the remaining dictionary columns sorted.
func header(columns data.ColumnDict, keyColumns []string) []string {
	cols := make([]string, 0, len(columns)+len(keyColumns)+1)
	cols = append(cols, data.TickerColumn)

	seen := map[string]bool{data.TickerColumn: true}
	for _, col := range keyColumns {
		if !seen[col] {
			cols = append(cols, col)
			seen[col] = true
		}
	}

	for _, col := range columns.Names() {
		if !seen[col] {
			cols = append(cols, col)
			seen[col] = true
		}
	}

	return cols
}
