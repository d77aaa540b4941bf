// ABOUTME: Bridges the query processor to the write-ahead log: logs insert/delete/update payloads, replays them on recovery
// ABOUTME: Payload encoding joins an integer key and a serialized record body with a reserved group-separator byte

package query

import (
	"strconv"
	"strings"

	"github.com/nainya/relstore/pkg/record"
	"github.com/nainya/relstore/pkg/wal"
)

// payloadJoiner joins a key and a serialized record body inside a WAL
// entry's old/new field. record.Serialize already reserves 0x1F and
// the wal package's own field format reserves 0x1E, so the payload
// uses the next unused ASCII separator.
const payloadJoiner = '\x1d'

func encodePayload(key int, rec record.Record) string {
	return strconv.Itoa(key) + string(payloadJoiner) + string(rec.Serialize())
}

func decodePayload(payload string) (int, record.Record, error) {
	idx := strings.IndexByte(payload, payloadJoiner)
	if idx < 0 {
		return 0, record.Record{}, ErrBadCondition
	}
	key, err := strconv.Atoi(payload[:idx])
	if err != nil {
		return 0, record.Record{}, err
	}
	return key, record.Deserialize(key, []byte(payload[idx+1:])), nil
}

// InsertWithLogging inserts rec under key and logs it as an INSERT
// record whose new field carries the encoded (key, record) payload,
// so recovery can reconstruct both from the log alone. It returns the
// pointer the record was stored at and the LSN the log assigned the
// operation.
func (p *Processor) InsertWithLogging(mgr *wal.Manager, txnID string, key int, rec record.Record) (record.Pointer, uint64, error) {
	ptr, err := p.Insert(key, rec)
	if err != nil {
		return record.Invalid, 0, err
	}
	lsn, err := mgr.LogOperation(txnID, ptr.PageID, wal.OpInsert, "", encodePayload(key, rec))
	if err != nil {
		return ptr, 0, err
	}
	return ptr, lsn, nil
}

// DeleteWithLogging deletes key, logging the pre-image so an undo or
// crash-recovery pass can recreate it. It returns the LSN the log
// assigned the operation.
func (p *Processor) DeleteWithLogging(mgr *wal.Manager, txnID string, key int) (bool, uint64, error) {
	ptr, err := p.primary.Find(key)
	if err != nil {
		return false, 0, err
	}
	if !ptr.IsValid() {
		return false, 0, nil
	}
	oldRec, err := p.store.get(ptr)
	if err != nil {
		return false, 0, err
	}
	ok, err := p.Delete(key)
	if err != nil || !ok {
		return ok, 0, err
	}
	lsn, err := mgr.LogOperation(txnID, ptr.PageID, wal.OpDelete, encodePayload(key, oldRec), "")
	if err != nil {
		return ok, 0, err
	}
	return ok, lsn, nil
}

// UpdateWithLogging updates key's record, logging both the pre- and
// post-image. It returns the LSN the log assigned the operation.
func (p *Processor) UpdateWithLogging(mgr *wal.Manager, txnID string, key int, newRec record.Record) (uint64, error) {
	oldPtr, err := p.primary.Find(key)
	if err != nil {
		return 0, err
	}
	if !oldPtr.IsValid() {
		return 0, ErrKeyNotFound
	}
	oldRec, err := p.store.get(oldPtr)
	if err != nil {
		return 0, err
	}
	if err := p.Update(key, newRec); err != nil {
		return 0, err
	}
	lsn, err := mgr.LogOperation(txnID, oldPtr.PageID, wal.OpUpdate, encodePayload(key, oldRec), encodePayload(key, newRec))
	if err != nil {
		return 0, err
	}
	return lsn, nil
}

// ReplayApplier returns a wal.Applier that replays redo/undo records
// against this processor's live indexes, used both by crash recovery
// and by explicit transaction abort. Replay is idempotent: an insert
// whose key is already present is treated as already applied and
// skipped, and an update rewrites a present key to the logged record,
// which is what makes redoing a committed transaction twice safe.
func (p *Processor) ReplayApplier() wal.Applier {
	return func(e wal.Entry) error {
		switch e.Op {
		case wal.OpInsert:
			return p.replayUpsert(e.New, false)
		case wal.OpUpdate:
			return p.replayUpsert(e.New, true)
		case wal.OpDelete:
			return p.replayDelete(e.Old)
		default:
			return nil
		}
	}
}

func (p *Processor) replayUpsert(payload string, overwrite bool) error {
	if payload == "" {
		return nil
	}
	key, rec, err := decodePayload(payload)
	if err != nil {
		return err
	}
	ptr, err := p.primary.Find(key)
	if err != nil {
		return err
	}
	if ptr.IsValid() {
		if overwrite {
			return p.Update(key, rec)
		}
		return nil
	}
	_, err = p.insertAt(key, rec)
	return err
}

func (p *Processor) replayDelete(payload string) error {
	if payload == "" {
		return nil
	}
	key, _, err := decodePayload(payload)
	if err != nil {
		return err
	}
	ptr, err := p.primary.Find(key)
	if err != nil {
		return err
	}
	if !ptr.IsValid() {
		return nil
	}
	_, err = p.Delete(key)
	return err
}
