// Storage engine demo
// Exercises the page/file/buffer/index/WAL stack end to end against a scratch database file
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nainya/relstore/internal/logger"
	"github.com/nainya/relstore/internal/metrics"
	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/maintenance"
	"github.com/nainya/relstore/pkg/query"
	"github.com/nainya/relstore/pkg/record"
	"github.com/nainya/relstore/pkg/wal"
)

var (
	dbPath    = flag.String("db", "relstore.db", "Database file path")
	walPath   = flag.String("wal", "relstore.wal", "Write-ahead log file path")
	cacheSize = flag.Int("cache", 256, "Buffer pool capacity, in pages")
	fresh     = flag.Bool("fresh", false, "Delete any existing db/wal files before starting")
)

func main() {
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: "info", Pretty: true})
	lg := logger.GetGlobalLogger()
	m := metrics.NewMetrics()

	if *fresh {
		os.Remove(*dbPath)
		os.Remove(*walPath)
	}

	fm, err := openOrCreate(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer fm.Close()

	pool := buffer.New(fm, *cacheSize)
	pool.SetMetrics(m)
	pool.SetLogger(lg)
	proc, err := query.New(pool, fm)
	if err != nil {
		log.Fatalf("build query processor: %v", err)
	}
	proc.SetMetrics(m)
	proc.SetLogger(lg)

	w, err := wal.Open(*walPath)
	if err != nil {
		log.Fatalf("open write-ahead log: %v", err)
	}
	w.SetMetrics(m)
	defer w.Close()
	mgr := wal.NewManager(w)

	stats, err := wal.Recover(*walPath, proc.ReplayApplier())
	if err != nil {
		log.Fatalf("recover: %v", err)
	}
	lg.LogRecovery(stats.TotalRecords, stats.CommittedTxns, stats.LoserTxns)
	m.RecordRecovery(stats.RedoOperations, stats.UndoOperations)

	coord := maintenance.New()
	coord.SetMetrics(m)
	coord.Register("primary", proc.Rebuild)

	fmt.Println("relstore engine demo")
	fmt.Printf("database: %s   wal: %s   cache: %d pages\n", *dbPath, *walPath, *cacheSize)
	if stats.TotalRecords > 0 {
		fmt.Printf("recovered %d committed txn(s), rolled back %d loser txn(s)\n", stats.CommittedTxns, stats.LoserTxns)
	}

	txn, err := mgr.Begin()
	if err != nil {
		log.Fatalf("begin transaction: %v", err)
	}
	seed := []record.Record{
		record.New(1, "alice", "engineering"),
		record.New(2, "bob", "sales"),
		record.New(3, "carol", "engineering"),
	}
	for _, rec := range seed {
		ptr, lsn, err := proc.InsertWithLogging(mgr, txn, rec.ID, rec)
		if err != nil {
			log.Fatalf("insert %d: %v", rec.ID, err)
		}
		lg.LogWALAppend(lsn, txn, string(wal.OpInsert))
		fmt.Printf("inserted key=%d at %s\n", rec.ID, ptr)
	}
	if err := mgr.Commit(txn); err != nil {
		log.Fatalf("commit: %v", err)
	}

	recs, err := proc.Select("key = 2")
	if err != nil {
		log.Fatalf("select: %v", err)
	}
	fmt.Printf("select key = 2 -> %v\n", recs)

	rangeRecs, err := proc.RangeSelect(1, 3)
	if err != nil {
		log.Fatalf("range_select: %v", err)
	}
	fmt.Printf("range_select [1,3] -> %d record(s)\n", len(rangeRecs))

	health, err := proc.Health()
	if err != nil {
		log.Fatalf("health: %v", err)
	}
	m.RecordIndexFragmentation("primary", health.FragmentationRatio)
	coord.Schedule("primary", health.FragmentationRatio, health.DeleteOperations, health.AvgAccessTime)
	if coord.Pending() > 0 {
		done, err := coord.PerformScheduled()
		if err != nil {
			log.Fatalf("maintenance: %v", err)
		}
		for _, name := range done {
			lg.LogMaintenanceRun(name, health.FragmentationRatio, 0)
		}
	}

	fmt.Printf("buffer pool hit ratio: %.2f\n", pool.HitRatio())
	fmt.Println("done")
}

func openOrCreate(path string) (*file.Manager, error) {
	if _, err := os.Stat(path); err == nil {
		return file.Open(path)
	}
	return file.Create(path)
}
