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
package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategoryQuotaExceeded(t *testing.T) {
	body := []byte(`{"message": "Limit Exceeded"}`)

	result, err := parseCategory(body)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestParseCategoryErrorMessage(t *testing.T) {
	body := []byte(`{"message": "Forbidden"}`)

	result, err := parseCategory(body)
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "Forbidden")
}

func TestParseCategoryRows(t *testing.T) {
	body := []byte(`{
		"column_description": {
			"net_sales": {"name": "Net sales", "unit": "million JPY"},
			"fiscal_year": {"name": "Fiscal year", "unit": ""}
		},
		"1301": [
			{"fiscal_year": "2018", "fiscal_quarter": "4", "net_sales": "297190"},
			{"fiscal_year": "2019", "fiscal_quarter": "4", "net_sales": "309254"}
		],
		"1332": [
			{"fiscal_year": "2018", "fiscal_quarter": "4", "net_sales": "711286"}
		]
	}`)

	result, err := parseCategory(body)
	require.NoError(t, err)

	require.Len(t, result.Columns, 2)
	assert.Equal(t, "Net sales", result.Columns["net_sales"].Name)
	assert.Equal(t, "million JPY", result.Columns["net_sales"].Unit)

	require.Len(t, result.Rows, 2)
	require.Len(t, result.Rows[1301], 2)
	assert.Equal(t, "297190", result.Rows[1301][0]["net_sales"])
	assert.Equal(t, "2019", result.Rows[1301][1]["fiscal_year"])
	require.Len(t, result.Rows[1332], 1)
}

func TestParseCategoryNumericCells(t *testing.T) {
	// the API is inconsistent about quoting numbers; both forms must land
	// as the same string cell
	body := []byte(`{"1301": [{"net_sales": 297190, "per": 12.5}]}`)

	result, err := parseCategory(body)
	require.NoError(t, err)

	row := result.Rows[1301][0]
	assert.Equal(t, "297190", row["net_sales"])
	assert.Equal(t, "12.5", row["per"])
}

func TestParseCategoryNoDataTicker(t *testing.T) {
	body := []byte(`{"1301": null, "1332": [{"net_sales": "1"}]}`)

	result, err := parseCategory(body)
	require.NoError(t, err)

	rows, ok := result.Rows[1301]
	assert.True(t, ok, "requested ticker must be present even without data")
	assert.Nil(t, rows)
	assert.Len(t, result.Rows[1332], 1)
}

func TestParseCategoryIgnoresUnexpectedKeys(t *testing.T) {
	body := []byte(`{"notice": "scheduled maintenance", "1301": [{"net_sales": "1"}]}`)

	result, err := parseCategory(body)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
}

func TestJoinTickers(t *testing.T) {
	assert.Equal(t, "1301,1332,1333", joinTickers([]int{1301, 1332, 1333}))
	assert.Equal(t, "1301", joinTickers([]int{1301}))
	assert.Equal(t, "", joinTickers(nil))
}
