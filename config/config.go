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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// Matcher defaults. Tunable per deployment without a code change.
	DEFAULT_TIME_WINDOW_MS    = 600000
	DEFAULT_AMOUNT_TOLERANCE  = 0.01
	DEFAULT_WEBHOOK_QUEUE     = "new:webhook"
	DEFAULT_EXPIRY_QUEUE      = "new:allocation-expiry"
	DEFAULT_EXPIRY_SWEEP_MINS = 30
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"CENTRA_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"CENTRA_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"CENTRA_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"CENTRA_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"CENTRA_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"CENTRA_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"CENTRA_REDIS_SKIP_TLS_VERIFY"`
}

// GatewayConfig holds credentials for the upstream payment gateway. The
// secret key signs inbound webhooks and authorizes charge verification.
type GatewayConfig struct {
	BaseUrl     string `json:"base_url" envconfig:"CENTRA_GATEWAY_BASE_URL"`
	SecretKey   string `json:"secret_key" envconfig:"CENTRA_GATEWAY_SECRET_KEY"`
	CallbackUrl string `json:"callback_url" envconfig:"CENTRA_GATEWAY_CALLBACK_URL"`
}

type QueueConfig struct {
	WebhookQueue          string `json:"webhook_queue" envconfig:"CENTRA_WEBHOOK_QUEUE"`
	AllocationExpiryQueue string `json:"allocation_expiry_queue" envconfig:"CENTRA_ALLOCATION_EXPIRY_QUEUE"`
	MonitoringPort        string `json:"monitoring_port" envconfig:"CENTRA_QUEUE_MONITORING_PORT"`
}

// ReconciliationConfig tunes the matcher. Zero values fall back to the
// documented defaults during validation.
type ReconciliationConfig struct {
	TimeWindowMs    int64   `json:"time_window_ms" envconfig:"CENTRA_RECONCILIATION_TIME_WINDOW_MS"`
	AmountTolerance float64 `json:"amount_tolerance" envconfig:"CENTRA_RECONCILIATION_AMOUNT_TOLERANCE"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"CENTRA_PROJECT_NAME"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Redis          RedisConfig          `json:"redis"`
	Gateway        GatewayConfig        `json:"gateway"`
	Queue          QueueConfig          `json:"queue"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Notification   Notification         `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("centra", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called centra.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Centra Ledger"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Gateway.BaseUrl = strings.TrimSpace(cnf.Gateway.BaseUrl)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.AllocationExpiryQueue == "" {
		cnf.Queue.AllocationExpiryQueue = DEFAULT_EXPIRY_QUEUE
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	if cnf.Reconciliation.TimeWindowMs <= 0 {
		cnf.Reconciliation.TimeWindowMs = DEFAULT_TIME_WINDOW_MS
	}
	if cnf.Reconciliation.AmountTolerance <= 0 {
		cnf.Reconciliation.AmountTolerance = DEFAULT_AMOUNT_TOLERANCE
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
