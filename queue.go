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
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centraledger/centra/config"
	redis_db "github.com/centraledger/centra/internal/redis-db"
)

// Queue wraps the asynq client used for delayed work, currently allocation
// expiry tasks. The inspector exists for operational tooling.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}
	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueAllocationExpiry schedules a task that voids a pending allocation at
// its expiry time. The task id is the allocation reference, so rescheduling
// the same allocation is a no-op rather than a double fire.
func (q *Queue) queueAllocationExpiry(reference string, expiresAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(reference)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(reference),
		asynq.Queue(cfg.Queue.AllocationExpiryQueue),
		asynq.ProcessIn(time.Until(expiresAt)),
	}
	task := asynq.NewTask(cfg.Queue.AllocationExpiryQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println("Error enqueuing allocation expiry", err, info)
		return err
	}
	return nil
}
