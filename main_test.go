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
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centraledger/centra/config"
	"github.com/centraledger/centra/database/mocks"
)

func TestMain(m *testing.M) {
	config.MockConfig(&config.Configuration{
		ProjectName: "Centra",
		Reconciliation: config.ReconciliationConfig{
			TimeWindowMs:    config.DEFAULT_TIME_WINDOW_MS,
			AmountTolerance: config.DEFAULT_AMOUNT_TOLERANCE,
		},
	})
	os.Exit(m.Run())
}

// newTestService builds a service backed by a mock datasource and an in
// process redis for the balance lock.
func newTestService(t *testing.T) (*Centra, *mocks.MockDataSource) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mockDS := new(mocks.MockDataSource)
	return &Centra{datasource: mockDS, redis: client}, mockDS
}
