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
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/pvfunds/data"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Per-call limits imposed by the upstream API.
const (
	MaxTickersPerCall = 3
	MaxYearsPerCall   = 3
)

// quotaExceededMessage is the sentinel the API places in the message field
// of an error response when the daily quota is used up.
const quotaExceededMessage = "Limit Exceeded"

var (
	ErrQuotaExceeded = errors.New("api quota exceeded")
	ErrFetch         = errors.New("fetch failed")
)

// CategoryResult holds one API response: the category's column definitions
// plus the returned rows keyed by ticker. A ticker that was requested but
// has no data maps to a nil slice.
type CategoryResult struct {
	Columns data.ColumnDict
	Rows    map[int][]data.Row
}

// Client talks to the upstream financial data API. Calls are paced to one
// request per second so bulk fetches do not trip the vendor's burst limit.
type Client struct {
	baseURL string
	apiKey  string
	http    *resty.Client
	limiter *rate.Limiter
}

// New creates a client for the given API endpoint and key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    resty.New(),
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// Company retrieves the company profile category: one row per listed
// company. Stray double quotes around english company names are removed.
func (client *Client) Company(ctx context.Context) (*CategoryResult, error) {
	log.Info().Msg("getting company data")

	body, err := client.get(ctx, "company", nil)
	if err != nil {
		return nil, err
	}

	result, err := parseCategory(body)
	if err != nil {
		return nil, err
	}

	for _, rows := range result.Rows {
		for _, row := range rows {
			if name, ok := row["company_name_en"]; ok {
				row["company_name_en"] = strings.ReplaceAll(name, `"`, "")
			}
		}
	}

	return result, nil
}

// Quarter retrieves quarterly financial statements for the given tickers
// over [from, to]. Both the ticker count and the period span must respect
// the per-call caps; callers use the fetch planner to slice larger
// requests.
func (client *Client) Quarter(ctx context.Context, tickers []int, from, to data.Quarter) (*CategoryResult, error) {
	log.Info().Ints("Tickers", tickers).Str("From", from.String()).Str("To", to.String()).Msg("getting quarter data")

	body, err := client.get(ctx, "quarter", map[string]string{
		"tickers": joinTickers(tickers),
		"from":    from.String(),
		"to":      to.String(),
	})
	if err != nil {
		return nil, err
	}

	return parseCategory(body)
}

// Indicator retrieves the current price / valuation indicator snapshot for
// the given tickers.
func (client *Client) Indicator(ctx context.Context, tickers []int) (*CategoryResult, error) {
	log.Info().Ints("Tickers", tickers).Msg("getting indicator data")

	body, err := client.get(ctx, "indicator", map[string]string{
		"tickers": joinTickers(tickers),
	})
	if err != nil {
		return nil, err
	}

	return parseCategory(body)
}

func (client *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	if err := client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := client.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", client.apiKey)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(fmt.Sprintf("%s/%s", client.baseURL, path))
	if err != nil {
		return nil, err
	}

	return resp.Body(), nil
}

// parseCategory decodes a category response. Error responses carry a
// message field; the quota sentinel maps to ErrQuotaExceeded, anything
// else to ErrFetch.
func parseCategory(body []byte) (*CategoryResult, error) {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		if msg.String() == quotaExceededMessage {
			return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, msg.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrFetch, msg.String())
	}

	result := &CategoryResult{
		Columns: make(data.ColumnDict),
		Rows:    make(map[int][]data.Row),
	}

	gjson.GetBytes(body, "column_description").ForEach(func(key, value gjson.Result) bool {
		result.Columns[key.String()] = data.ColumnDef{
			Name: value.Get("name").String(),
			Unit: value.Get("unit").String(),
		}
		return true
	})

	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		if key.String() == "column_description" {
			return true
		}

		ticker, err := strconv.Atoi(key.String())
		if err != nil {
			log.Warn().Str("Key", key.String()).Msg("unexpected non-ticker key in API response")
			return true
		}

		if !value.IsArray() {
			result.Rows[ticker] = nil
			return true
		}

		var rows []data.Row
		value.ForEach(func(_, item gjson.Result) bool {
			row := make(data.Row)
			item.ForEach(func(col, cell gjson.Result) bool {
				row[col.String()] = cell.String()
				return true
			})
			rows = append(rows, row)
			return true
		})
		result.Rows[ticker] = rows

		return true
	})

	return result, nil
}

func joinTickers(tickers []int) string {
	parts := make([]string, len(tickers))
	for i, ticker := range tickers {
		parts[i] = strconv.Itoa(ticker)
	}
	return strings.Join(parts, ",")
}
