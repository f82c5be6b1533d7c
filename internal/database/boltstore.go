// internal/database/boltstore.go - BoltDB implementation of the policy and history store
package database

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    "go.etcd.io/bbolt"
)

var (
    PoliciesBucket   = []byte("policies")
    ExecutionsBucket = []byte("executions")
    MetaBucket       = []byte("meta")
)

type BoltStore struct {
    db   *bbolt.DB
    path string
}

func NewBoltStore(path string) (Store, error) {
    // Create directory if it doesn't exist
    if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
        return nil, fmt.Errorf("failed to create data directory: %w", err)
    }

    db, err := bbolt.Open(path, 0600, &bbolt.Options{
        Timeout: 1 * time.Second,
    })
    if err != nil {
        return nil, fmt.Errorf("failed to open BoltDB: %w", err)
    }

    store := &BoltStore{db: db, path: path}

    if err := store.initBuckets(); err != nil {
        db.Close()
        return nil, fmt.Errorf("failed to initialize buckets: %w", err)
    }

    return store, nil
}

func (s *BoltStore) initBuckets() error {
    return s.db.Update(func(tx *bbolt.Tx) error {
        buckets := [][]byte{PoliciesBucket, ExecutionsBucket, MetaBucket}
        for _, bucket := range buckets {
            if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
                return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
            }
        }
        return nil
    })
}

func (s *BoltStore) GetPolicies(ctx context.Context, filters PolicyFilters) ([]RetentionPolicy, error) {
    var policies []RetentionPolicy

    err := s.db.View(func(tx *bbolt.Tx) error {
        b := tx.Bucket(PoliciesBucket)
        return b.ForEach(func(k, v []byte) error {
            var policy RetentionPolicy
            if err := json.Unmarshal(v, &policy); err != nil {
                return fmt.Errorf("failed to unmarshal policy %s: %w", k, err)
            }

            // Apply filters
            if filters.Enabled != nil && policy.Enabled != *filters.Enabled {
                return nil
            }

            policies = append(policies, policy)
            return nil
        })
    })
    if err != nil {
        return nil, err
    }

    // Newest first, matching the history listing
    sort.Slice(policies, func(i, j int) bool {
        return policies[i].CreatedAt.After(policies[j].CreatedAt)
    })

    return policies, nil
}

func (s *BoltStore) GetPolicy(ctx context.Context, id string) (*RetentionPolicy, error) {
    var policy RetentionPolicy

    err := s.db.View(func(tx *bbolt.Tx) error {
        b := tx.Bucket(PoliciesBucket)
        v := b.Get([]byte(id))
        if v == nil {
            return ErrNotFound
        }
        return json.Unmarshal(v, &policy)
    })

    if err != nil {
        return nil, err
    }
    return &policy, nil
}

func (s *BoltStore) CreatePolicy(ctx context.Context, policy *RetentionPolicy) error {
    if policy.ID == "" {
        policy.ID = uuid.New().String()
    }
    policy.CreatedAt = time.Now()
    policy.UpdatedAt = time.Now()

    return s.db.Update(func(tx *bbolt.Tx) error {
        b := tx.Bucket(PoliciesBucket)

        if err := checkDuplicatePattern(b, policy.MetricNamePattern, policy.ID); err != nil {
            return err
        }

        data, err := json.Marshal(policy)
        if err != nil {
            return fmt.Errorf("failed to marshal policy: %w", err)
        }

        return b.Put([]byte(policy.ID), data)
    })
}

func (s *BoltStore) UpdatePolicy(ctx context.Context, policy *RetentionPolicy) error {
    policy.UpdatedAt = time.Now()

    return s.db.Update(func(tx *bbolt.Tx) error {
        b := tx.Bucket(PoliciesBucket)

        if b.Get([]byte(policy.ID)) == nil {
            return ErrNotFound
        }

        if err := checkDuplicatePattern(b, policy.MetricNamePattern, policy.ID); err != nil {
            return err
        }

        data, err := json.Marshal(policy)
        if err != nil {
            return fmt.Errorf("failed to marshal policy: %w", err)
        }

        return b.Put([]byte(policy.ID), data)
    })
}

// checkDuplicatePattern enforces at most one policy per pattern, excluding selfID.
func checkDuplicatePattern(b *bbolt.Bucket, pattern, selfID string) error {
    return b.ForEach(func(k, v []byte) error {
        if string(k) == selfID {
            return nil
        }
        var existing RetentionPolicy
        if err := json.Unmarshal(v, &existing); err != nil {
            return nil // Skip malformed entries
        }
        if existing.MetricNamePattern == pattern {
            return ErrDuplicatePattern
        }
        return nil
    })
}

func (s *BoltStore) DeletePolicy(ctx context.Context, id string) error {
    return s.db.Update(func(tx *bbolt.Tx) error {
        b := tx.Bucket(PoliciesBucket)
        if b.Get([]byte(id)) == nil {
            return ErrNotFound
        }
        return b.Delete([]byte(id))
    })
}

func (s *BoltStore) SetLastExecuted(ctx context.Context, id string, t time.Time) error {
    return s.db.Update(func(tx *bbolt.Tx) error {
        b := tx.Bucket(PoliciesBucket)
        v := b.Get([]byte(id))
        if v == nil {
            // Policy was deleted while its execution was in flight
            return nil
        }

        var policy RetentionPolicy
        if err := json.Unmarshal(v, &policy); err != nil {
            return fmt.Errorf("failed to unmarshal policy %s: %w", id, err)
        }

        policy.LastExecuted = &t

        data, err := json.Marshal(&policy)
        if err != nil {
            return fmt.Errorf("failed to marshal policy: %w", err)
        }

        return b.Put([]byte(id), data)
    })
}

func (s *BoltStore) AppendExecution(ctx context.Context, record *ExecutionRecord) error {
    if record.ID == "" {
        record.ID = uuid.New().String()
    }

    return s.db.Update(func(tx *bbolt.Tx) error {
        b := tx.Bucket(ExecutionsBucket)

        data, err := json.Marshal(record)
        if err != nil {
            return fmt.Errorf("failed to marshal execution record: %w", err)
        }

        // Zero-padded nanos keep the bucket in completion order per policy
        key := fmt.Sprintf("%s:%020d", record.PolicyID, record.ExecutionTime.UnixNano())
        return b.Put([]byte(key), data)
    })
}

func (s *BoltStore) GetExecutions(ctx context.Context, filters ExecutionFilters) ([]ExecutionRecord, error) {
    var records []ExecutionRecord

    err := s.db.View(func(tx *bbolt.Tx) error {
        b := tx.Bucket(ExecutionsBucket)

        if filters.PolicyID != "" {
            c := b.Cursor()
            prefix := filters.PolicyID + ":"
            for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
                var record ExecutionRecord
                if err := json.Unmarshal(v, &record); err != nil {
                    continue
                }
                records = append(records, record)
            }
            return nil
        }

        return b.ForEach(func(k, v []byte) error {
            var record ExecutionRecord
            if err := json.Unmarshal(v, &record); err != nil {
                return nil // Skip malformed entries
            }
            records = append(records, record)
            return nil
        })
    })
    if err != nil {
        return nil, err
    }

    // Newest first for audit display
    sort.Slice(records, func(i, j int) bool {
        return records[i].ExecutionTime.After(records[j].ExecutionTime)
    })

    if filters.Limit > 0 && len(records) > filters.Limit {
        records = records[:filters.Limit]
    }

    return records, nil
}

func (s *BoltStore) Close() error {
    return s.db.Close()
}
