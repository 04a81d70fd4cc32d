package worker

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Worker registry rows let operators see which drip workers are alive
// and what they have processed. Registration is optional: without a
// registry DB (tests, memory-backed runs) these are all no-ops.

func (w *DripWorker) registerWorker() {
	if w.registryDB == nil {
		return
	}
	hostname, _ := os.Hostname()
	_, err := w.registryDB.Exec(`
		INSERT INTO drip_workers (id, hostname, status, started_at, last_heartbeat_at)
		VALUES ($1, $2, 'running', NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = 'running',
			started_at = NOW(),
			last_heartbeat_at = NOW()
	`, w.workerID, hostname)
	if err != nil {
		log.Printf("[DripWorker] Warning: failed to register worker: %v", err)
	}
}

func (w *DripWorker) deregisterWorker() {
	if w.registryDB == nil {
		return
	}
	_, err := w.registryDB.Exec(`UPDATE drip_workers SET status = 'stopped' WHERE id = $1`, w.workerID)
	if err != nil {
		log.Printf("[DripWorker] Warning: failed to deregister worker: %v", err)
	}
}

// heartbeatLoop refreshes this worker's registry row every 10 seconds.
func (w *DripWorker) heartbeatLoop() {
	defer w.wg.Done()

	if w.registryDB == nil {
		return
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			stats := w.Stats()
			statsJSON, _ := json.Marshal(stats)
			w.registryDB.Exec(`
				UPDATE drip_workers
				SET last_heartbeat_at = NOW(),
					total_processed = $2,
					total_errors = $3,
					metadata = $4
				WHERE id = $1
			`, w.workerID, stats["processed"], stats["errors"], string(statsJSON))
		}
	}
}
