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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/penny-vault/pvfunds/data"
)

var ErrNoData = errors.New("category has no data to export")

// ExportParquet writes a category's consolidated table to a parquet file
// in outDir and returns the file name. Category schemas are only known at
// runtime, so every column is written as a UTF8 byte array.
func (store *Store) ExportParquet(category string, outDir string) (string, error) {
	table := store.categoryTable(category)
	if table.Len() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoData, category)
	}

	dateStr := time.Now().Format("20060102")
	parquetFn := fmt.Sprintf("%s/%s-%s.parquet", outDir, category, dateStr)

	fh, err := local.NewLocalFileWriter(parquetFn)
	if err != nil {
		log.Error().Err(err).Str("FileName", parquetFn).Msg("cannot create local file")
		return "", err
	}
	defer fh.Close()

	md := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		md = append(md, fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY", col))
	}

	pw, err := writer.NewCSVWriter(md, fh, 4)
	if err != nil {
		log.Error().
			Str("OriginalError", err.Error()).
			Msg("Parquet write failed")
		return "", err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, row := range table.Rows {
		rec := make([]*string, len(table.Columns))
		for i, col := range table.Columns {
			val := row[col]
			rec[i] = &val
		}
		if err = pw.WriteString(rec); err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("Ticker", row[data.TickerColumn]).
				Msg("Parquet write failed for record")
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Err(err).Msg("Parquet write failed")
		return "", err
	}

	log.Info().Str("FileName", parquetFn).Int("NumRecords", table.Len()).Msg("exported category to parquet")
	return parquetFn, nil
}

func (store *Store) categoryTable(category string) *data.Table {
	switch category {
	case CategoryCompany:
		if store.Company != nil {
			return store.Company.Table
		}
	case CategoryQuarter:
		if store.Quarter != nil {
			return store.Quarter.All()
		}
	case CategoryIndicator:
		if store.Indicator != nil {
			return store.Indicator.All()
		}
	}
	return data.NewTable(nil)
}
