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
	"errors"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvfunds/healthcheck"
)

type apiConfig struct {
	URL string `toml:"url"`
	Key string `toml:"key"`
}

type dataConfig struct {
	Dir string `toml:"dir"`
}

type healthchecksConfig struct {
	APIKey string `toml:"apikey,omitempty"`
	PingID string `toml:"pingid,omitempty"`
}

type config struct {
	API          apiConfig          `toml:"api"`
	Data         dataConfig         `toml:"data"`
	Healthchecks healthchecksConfig `toml:"healthchecks"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather API credentials and data library settings",
	Run: func(cmd *cobra.Command, args []string) {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		cfg := config{
			API:  apiConfig{URL: viper.GetString("api.url")},
			Data: dataConfig{Dir: filepath.Join(home, "pvfunds-data")},
		}

		var wantHealthcheck bool

		form := huh.NewForm(
			// Gather API credentials
			huh.NewGroup(
				huh.NewInput().
					Title("Enter your fundamentals API key:").
					Value(&cfg.API.Key).
					Validate(func(key string) error {
						if key == "" {
							return errors.New("an API key is required")
						}
						return nil
					}),
			),

			// Where should fetched data live?
			huh.NewGroup(
				huh.NewInput().
					Title("Directory to store fetched data in:").
					Value(&cfg.Data.Dir),
			),

			// Optional run monitoring
			huh.NewGroup(
				huh.NewConfirm().
					Title("Monitor fetch runs with healthchecks.io?").
					Value(&wantHealthcheck),
			),
		)

		if err := form.Run(); err != nil {
			log.Fatal().Err(err).Msg("error gathering settings")
		}

		if wantHealthcheck {
			keyForm := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Enter your healthchecks.io API key:").
					Value(&cfg.Healthchecks.APIKey),
			))
			if err := keyForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("error gathering healthchecks settings")
			}

			viper.Set("healthchecks.apikey", cfg.Healthchecks.APIKey)
			pingID, err := healthcheck.Create("pvfunds fetch", "pvfunds-fetch", []string{"pvfunds"}, "0 0 * * *")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create healthchecks.io check")
			}
			cfg.Healthchecks.PingID = pingID
		}

		if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
			log.Fatal().Err(err).Str("DataDir", cfg.Data.Dir).Msg("could not create data directory")
		}

		configFN := filepath.Join(home, ".pvfunds.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving settings to config file")
		configData, err := toml.Marshal(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		if err := os.WriteFile(configFN, configData, 0600); err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("Your data library has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
