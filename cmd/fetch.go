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
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/hako/durafmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvfunds/api"
	"github.com/penny-vault/pvfunds/data"
	"github.com/penny-vault/pvfunds/fetch"
	"github.com/penny-vault/pvfunds/healthcheck"
	"github.com/penny-vault/pvfunds/store"
)

var (
	fetchCompany   bool
	fetchQuarter   bool
	fetchIndicator bool
	fetchStart     string
	fetchEnd       string
	fetchOverwrite bool
	fetchRetry     int
	fetchTickersFN string
)

// tickerRecord is one row of a ticker restriction file.
type tickerRecord struct {
	Ticker int `csv:"ticker"`
}

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch company, quarterly, and indicator data from the fundamentals API",
	Long: `The fetch sub-command retrieves the selected data categories and saves them
under the data library root. Each ticker's data is written as soon as its
chunk completes, so an interrupted fetch can be resumed: tickers already on
disk are skipped unless --overwrite is given.

The API allows a limited number of requests per day. When the quota is
exhausted fetch waits 24 hours and then continues automatically. Press
Ctrl-C to stop early; everything fetched so far is kept.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if !fetchCompany && !fetchQuarter && !fetchIndicator {
			log.Fatal().Msg("nothing to do, specify at least one of --company, --quarter, --indicator")
		}

		myStore, err := store.Open(viper.GetString("data.dir"), false, false)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open data library")
		}

		var start, end data.Quarter
		if fetchQuarter {
			if start, err = data.ParseQuarter(fetchStart); err != nil {
				log.Fatal().Err(err).Str("Start", fetchStart).Msg("invalid start quarter")
			}
			if end, err = data.ParseQuarter(fetchEnd); err != nil {
				log.Fatal().Err(err).Str("End", fetchEnd).Msg("invalid end quarter")
			}
			if end.Before(start) {
				log.Fatal().Str("Start", fetchStart).Str("End", fetchEnd).Msg("end quarter precedes start quarter")
			}
		}

		only, err := restrictTickers(fetchTickersFN)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", fetchTickersFN).Msg("could not read ticker restriction file")
		}

		client := api.New(viper.GetString("api.url"), viper.GetString("api.key"))
		cancel := &fetch.Canceller{}
		exec := fetch.NewExecutor(client, fetchRetry, cancel)

		// one background worker does all the fetching; the foreground
		// waits and translates Ctrl-C into a cancellation request
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		doneChan := make(chan error, 1)
		startTime := time.Now()

		go func() {
			doneChan <- runFetch(ctx, myStore, exec, start, end, only)
		}()

		var runErr error
	waitLoop:
		for {
			select {
			case <-sigChan:
				log.Warn().Msg("stop requested, finishing current chunk")
				cancel.Cancel()
			case runErr = <-doneChan:
				break waitLoop
			}
		}
		signal.Stop(sigChan)

		if runErr != nil {
			log.Fatal().Err(runErr).Msg("fetch failed")
		}

		runTime := time.Since(startTime)
		log.Info().Str("RunTime", durafmt.Parse(runTime).String()).Msg("fetch complete")

		if pingID := viper.GetString("healthchecks.pingid"); pingID != "" && !cancel.Cancelled() {
			if err := healthcheck.Ping(pingID); err != nil {
				log.Error().Err(err).Msg("could not ping healthcheck")
			}
		}
	},
}

func runFetch(ctx context.Context, myStore *store.Store, exec *fetch.Executor, start, end data.Quarter, only []int) error {
	if fetchCompany {
		if err := myStore.FetchCompany(ctx, exec, fetchOverwrite); err != nil {
			return err
		}
	}

	if fetchQuarter {
		if err := myStore.FetchQuarter(ctx, exec, start, end, fetchOverwrite, only); err != nil {
			return err
		}
	}

	if fetchIndicator {
		if err := myStore.FetchIndicator(ctx, exec, fetchOverwrite, only); err != nil {
			return err
		}
	}

	return nil
}

// restrictTickers reads a CSV with a ticker column and returns the tickers
// a fetch should be restricted to; an empty filename means no restriction.
func restrictTickers(fn string) ([]int, error) {
	if fn == "" {
		return nil, nil
	}

	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var records []*tickerRecord
	if err := gocsv.UnmarshalFile(fh, &records); err != nil {
		return nil, err
	}

	tickers := make([]int, 0, len(records))
	for _, record := range records {
		tickers = append(tickers, record.Ticker)
	}

	log.Info().Int("NumTickers", len(tickers)).Str("FileName", fn).Msg("restricting fetch to tickers from file")
	return tickers, nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchCompany, "company", false, "fetch the company list")
	fetchCmd.Flags().BoolVar(&fetchQuarter, "quarter", false, "fetch quarterly financial statements")
	fetchCmd.Flags().BoolVar(&fetchIndicator, "indicator", false, "fetch stock indicators")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "first fiscal quarter to fetch, e.g. 2012Q1")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "last fiscal quarter to fetch, e.g. 2019Q4")
	fetchCmd.Flags().BoolVar(&fetchOverwrite, "overwrite", false, "refetch tickers that already exist on disk")
	fetchCmd.Flags().IntVar(&fetchRetry, "retry", -1, "minutes to wait before retrying a failed call (negative disables retries)")
	fetchCmd.Flags().StringVar(&fetchTickersFN, "tickers", "", "CSV file with a ticker column restricting which tickers to fetch")
}
