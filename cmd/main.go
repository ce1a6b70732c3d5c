/*
Copyright 2025 Centra Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/centraledger/centra"
	"github.com/centraledger/centra/config"
	"github.com/centraledger/centra/database"
	"github.com/centraledger/centra/internal/notification"
)

// CLI encapsulates the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// centraInstance holds the service instance and its configuration, shared
// between subcommands.
type centraInstance struct {
	centra *centra.Centra
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before any
// subcommand executes.
func preRun(app *centraInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("centra.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newCentra, err := setupCentra(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.centra = newCentra
		app.cnf = cnf

		return nil
	}
}

// setupCentra wires the datasource into a new service instance.
func setupCentra(cfg *config.Configuration) (*centra.Centra, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newCentra, err := centra.NewCentra(db)
	if err != nil {
		return nil, fmt.Errorf("error creating centra: %v", err)
	}
	return newCentra, nil
}

// NewCLI assembles the command tree.
func NewCLI() *CLI {
	var configFile string
	b := &centraInstance{}

	var rootCmd = &cobra.Command{
		Use:   "centra",
		Short: "Balance ledger and reconciliation engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./centra.json", "Configuration file for centra")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &CLI{cmd: rootCmd}
}

func (w CLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
