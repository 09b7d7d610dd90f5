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
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvfunds/data"
	"github.com/rs/zerolog/log"
)

// Consolidate rebuilds a category's consolidated cache from its per-ticker
// CSV files. Empty files are skipped without failing the rebuild.
func (store *Store) Consolidate(category string) error {
	dir := filepath.Join(store.root, category)
	cachePath := filepath.Join(dir, cacheFileName)

	log.Info().Str("Category", category).Str("CacheFile", cachePath).Msg("consolidating per-ticker files")

	tickers, err := tickerFiles(dir)
	if err != nil {
		return err
	}

	tables := make(map[int]*data.Table, len(tickers))
	for _, ticker := range tickers {
		table, err := readCSV(filepath.Join(dir, strconv.Itoa(ticker)+".csv"))
		if err != nil {
			return err
		}
		if table == nil {
			log.Info().Int("Ticker", ticker).Str("Category", category).Msg("skipping empty file")
			continue
		}
		tables[ticker] = table
	}

	return writeCache(cachePath, tables)
}

// tickerFiles lists the tickers that have a CSV file in dir, ascending.
// Files whose stem is not an integer are ignored.
func tickerFiles(dir string) ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}

	tickers := make([]int, 0, len(matches))
	for _, match := range matches {
		stem := strings.TrimSuffix(filepath.Base(match), ".csv")
		ticker, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		tickers = append(tickers, ticker)
	}

	sort.Ints(tickers)
	return tickers, nil
}

func writeCache(path string, tables map[int]*data.Table) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	zw := gzip.NewWriter(fh)
	if err := json.NewEncoder(zw).Encode(tables); err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

func readCache(path string) (map[int]*data.Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	zr, err := gzip.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	tables := make(map[int]*data.Table)
	if err := json.NewDecoder(zr).Decode(&tables); err != nil {
		return nil, err
	}
	return tables, nil
}
