package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertRetention is how long an alert record lives in the shared store.
const AlertRetention = 7 * 24 * time.Hour

// Alert is a persisted security escalation.
type Alert struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Identity  string    `json:"identity"`
	IP        string    `json:"ip"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertStore keeps security alerts in Redis for AlertRetention.
type AlertStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewAlertStore returns an AlertStore under prefix.
func NewAlertStore(client redis.UniversalClient, prefix string) *AlertStore {
	if prefix == "" {
		prefix = "asa"
	}
	return &AlertStore{redis: client, prefix: prefix, retention: AlertRetention}
}

func (s *AlertStore) key(id string) string {
	return s.prefix + ":" + id
}

// Record writes alert with the retention TTL.
func (s *AlertStore) Record(ctx context.Context, alert Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(alert.ID), data, s.retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns all.
func (s *AlertStore) Recent(ctx context.Context, limit int) ([]Alert, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	alerts := make([]Alert, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a Alert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}
