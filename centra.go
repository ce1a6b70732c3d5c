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

package centra

import (
	"embed"

	"github.com/redis/go-redis/v9"

	"github.com/centraledger/centra/config"
	"github.com/centraledger/centra/database"
	redis_db "github.com/centraledger/centra/internal/redis-db"
)

// SQLFiles holds the embedded migration files applied by the migrate
// command.
//
//go:embed sql/*.sql
var SQLFiles embed.FS

// Centra is the service layer. It owns the ledger, budget allocations,
// reconciliation and the payment gateway integration, delegating persistence
// to the datasource.
type Centra struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	gateway    *GatewayClient
}

// NewCentra initializes the service from the loaded configuration.
func NewCentra(db database.IDataSource) (*Centra, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	gateway := NewGatewayClient(&configuration.Gateway)
	return &Centra{
		queue:      newQueue,
		redis:      redisClient.Client(),
		datasource: db,
		gateway:    gateway,
	}, nil
}
