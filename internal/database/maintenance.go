// internal/database/maintenance.go - Execution history pruning and store statistics
package database

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "time"

    "github.com/sirupsen/logrus"
    "go.etcd.io/bbolt"
)

// PruneExecutions removes execution records older than cutoffTime and returns
// the number of entries deleted.
func (s *BoltStore) PruneExecutions(ctx context.Context, cutoffTime time.Time) (int, error) {
    deleted := 0

    err := s.db.Update(func(tx *bbolt.Tx) error {
        b := tx.Bucket(ExecutionsBucket)

        // Collect keys to delete
        var keysToDelete [][]byte
        cursor := b.Cursor()
        for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
            var record ExecutionRecord
            if err := json.Unmarshal(v, &record); err != nil {
                // Malformed entries are pruned as well
                keysToDelete = append(keysToDelete, copyBytes(k))
                continue
            }
            if record.ExecutionTime.Before(cutoffTime) {
                keysToDelete = append(keysToDelete, copyBytes(k))
            }
        }

        for _, key := range keysToDelete {
            if err := b.Delete(key); err != nil {
                return fmt.Errorf("failed to delete execution record: %w", err)
            }
            deleted++
        }

        return nil
    })

    if err != nil {
        return deleted, err
    }

    if deleted > 0 {
        logrus.WithFields(logrus.Fields{
            "deleted": deleted,
            "cutoff":  cutoffTime,
        }).Info("Pruned execution history")
    }

    return deleted, nil
}

func (s *BoltStore) GetStats(ctx context.Context) (*StoreStats, error) {
    stats := &StoreStats{}

    err := s.db.View(func(tx *bbolt.Tx) error {
        pb := tx.Bucket(PoliciesBucket)
        if err := pb.ForEach(func(k, v []byte) error {
            stats.TotalPolicies++
            var policy RetentionPolicy
            if err := json.Unmarshal(v, &policy); err == nil && policy.Enabled {
                stats.EnabledPolicies++
            }
            return nil
        }); err != nil {
            return err
        }

        eb := tx.Bucket(ExecutionsBucket)
        return eb.ForEach(func(k, v []byte) error {
            stats.TotalExecutions++
            return nil
        })
    })
    if err != nil {
        return nil, err
    }

    if info, err := os.Stat(s.path); err == nil {
        stats.DatabaseSize = info.Size()
    }

    return stats, nil
}

func copyBytes(b []byte) []byte {
    c := make([]byte, len(b))
    copy(c, b)
    return c
}
