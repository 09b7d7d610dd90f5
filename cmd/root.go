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
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pvfunds",
	Short: "pvfunds fetches and analyzes quarterly fundamentals and stock indicators",
	Long: `pvfunds is a command line utility for building and maintaining a local
library of company profiles, quarterly financial statements, and stock
indicators retrieved from a rate-limited fundamentals API.

The API enforces strict quotas: a fixed number of tickers per call, a fixed
number of fiscal years per quarterly call, and a daily request budget.
pvfunds slices large requests into compliant chunks, paces calls, backs off
when the daily quota is exhausted, and persists each ticker's data as soon
as it arrives so an interrupted fetch resumes where it left off.

On top of the stored data, pvfunds evaluates metric expressions such as
growth rates and valuation ratios across the whole universe of tickers.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pvfunds.toml)")
	rootCmd.PersistentFlags().String("data-dir", "", "root directory of the data library")
	if err := viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for data-dir failed")
	}
	rootCmd.PersistentFlags().String("api-key", "", "fundamentals API key")
	if err := viper.BindPFlag("api.key", rootCmd.PersistentFlags().Lookup("api-key")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for api-key failed")
	}

	viper.SetDefault("api.url", "https://api.buffett-code.com/api/v2")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pvfunds" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".pvfunds")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}
