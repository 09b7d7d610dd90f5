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
package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/penny-vault/pvfunds/data"
	"github.com/penny-vault/pvfunds/fetch"
	"github.com/rs/zerolog/log"
)

// FetchCompany retrieves the company category and persists it as one CSV
// plus the column definition file. An existing file is only replaced when
// overwrite is set.
func (store *Store) FetchCompany(ctx context.Context, exec *fetch.Executor, overwrite bool) error {
	dir := filepath.Join(store.root, CategoryCompany)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	csvPath := filepath.Join(dir, companyFileName)
	if _, err := os.Stat(csvPath); err == nil && !overwrite {
		log.Warn().Str("FileName", csvPath).Msg("company data already exists, skipped fetching")
		return nil
	}

	table, columns, err := exec.RunCompany(ctx)
	if err != nil {
		return err
	}
	if table == nil {
		// cancelled before the call succeeded
		return nil
	}

	log.Info().Str("FileName", csvPath).Msg("writing company data")
	if err := writeCSV(csvPath, table); err != nil {
		return err
	}
	if err := writeColumns(filepath.Join(dir, columnsFileName), columns); err != nil {
		return err
	}

	store.LoadCompany()
	return nil
}

// FetchQuarter retrieves quarterly financials for every company ticker not
// yet on disk (all of them when overwrite is set), persisting each ticker
// as it completes so an interrupted run resumes where it left off. only,
// when non-nil, restricts the universe to the given tickers.
func (store *Store) FetchQuarter(ctx context.Context, exec *fetch.Executor, start, end data.Quarter, overwrite bool, only []int) error {
	targets, dir, err := store.fetchTargets(CategoryQuarter, overwrite, only)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		log.Warn().Str("Category", CategoryQuarter).Msg("target tickers are empty")
		return nil
	}

	sink := store.fileSink(dir, overwrite)
	if err := exec.RunQuarter(ctx, targets, start, end, sink); err != nil {
		return err
	}

	if err := store.Consolidate(CategoryQuarter); err != nil {
		return err
	}
	return store.LoadQuarter()
}

// FetchIndicator retrieves the indicator snapshot for every company ticker
// not yet on disk (all when overwrite is set).
func (store *Store) FetchIndicator(ctx context.Context, exec *fetch.Executor, overwrite bool, only []int) error {
	targets, dir, err := store.fetchTargets(CategoryIndicator, overwrite, only)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		log.Warn().Str("Category", CategoryIndicator).Msg("target tickers are empty")
		return nil
	}

	sink := store.fileSink(dir, overwrite)
	if err := exec.RunIndicator(ctx, targets, sink); err != nil {
		return err
	}

	if err := store.Consolidate(CategoryIndicator); err != nil {
		return err
	}
	return store.LoadIndicator()
}

// fetchTargets computes the resume point for a category: company tickers
// minus tickers already on disk, unless overwrite is set. Tickers on disk
// that the company list does not know are flagged but never deleted here;
// cleanup is a deliberate operator action.
func (store *Store) fetchTargets(category string, overwrite bool, only []int) ([]int, string, error) {
	if store.Company == nil {
		return nil, "", ErrNoCompany
	}

	dir := filepath.Join(store.root, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", err
	}

	universe := store.Company.Tickers()
	if only != nil {
		keep := make(map[int]bool, len(only))
		for _, ticker := range only {
			keep[ticker] = true
		}
		restricted := universe[:0:0]
		for _, ticker := range universe {
			if keep[ticker] {
				restricted = append(restricted, ticker)
			}
		}
		universe = restricted
	}

	existing, err := tickerFiles(dir)
	if err != nil {
		return nil, "", err
	}

	known := make(map[int]bool, len(universe))
	for _, ticker := range universe {
		known[ticker] = true
	}

	var unknown []int
	existingSet := make(map[int]bool, len(existing))
	for _, ticker := range existing {
		existingSet[ticker] = true
		if !known[ticker] {
			unknown = append(unknown, ticker)
		}
	}
	if len(unknown) > 0 {
		log.Warn().Ints("Tickers", unknown).Str("Category", category).
			Msg("files exist for tickers not in the company list")
	}

	targets := make([]int, 0, len(universe))
	for _, ticker := range universe {
		if overwrite || !existingSet[ticker] {
			targets = append(targets, ticker)
		}
	}
	sort.Ints(targets)

	return targets, dir, nil
}

// fileSink returns a fetch sink writing one CSV per ticker plus the shared
// column definition file. The column file is written on the first sink
// call only, unless overwrite forces a refresh.
func (store *Store) fileSink(dir string, overwrite bool) fetch.Sink {
	columnsPath := filepath.Join(dir, columnsFileName)
	needColumns := overwrite
	if _, err := os.Stat(columnsPath); err != nil {
		needColumns = true
	}

	return func(ticker int, table *data.Table, columns data.ColumnDict) error {
		if table != nil {
			path := filepath.Join(dir, strconv.Itoa(ticker)+".csv")
			log.Info().Str("FileName", path).Msg("writing ticker data")
			if err := writeCSV(path, table); err != nil {
				return err
			}
		}

		if needColumns && columns != nil {
			if err := writeColumns(columnsPath, columns); err != nil {
				return err
			}
			needColumns = false
		}

		return nil
	}
}
