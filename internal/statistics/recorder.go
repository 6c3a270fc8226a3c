// Package statistics keeps in-memory counters of helper decisions.
package statistics

import (
	"context"
	"time"
)

const dumpInterval = 5 * time.Second

type Recorder struct {
	RedirectRecordList *RedirectRecordList
	ClientRecordList   *ClientRecordList
}

func NewRecorder(dumpFile string) *Recorder {
	return &Recorder{
		RedirectRecordList: NewRedirectRecordList(dumpFile),
		ClientRecordList:   NewClientRecordList(),
	}
}

// Run applies queued records and dumps the redirect list periodically
// until ctx is done. The list is dumped once more on exit.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(dumpInterval)
	defer ticker.Stop()

	for {
		select {
		case record := <-r.RedirectRecordList.recordAddChan:
			r.RedirectRecordList.Add(record)
		case record := <-r.ClientRecordList.recordAddChan:
			r.ClientRecordList.Add(record)
		case <-ticker.C:
			r.RedirectRecordList.Dump()
		case <-ctx.Done():
			r.drain()
			r.RedirectRecordList.Dump()
			return
		}
	}
}

// AddRedirect queues a record without blocking; it is dropped when the
// queue is full.
func (r *Recorder) AddRedirect(record *RedirectRecord) {
	if r == nil {
		return
	}
	select {
	case r.RedirectRecordList.recordAddChan <- record:
	default:
	}
}

func (r *Recorder) AddClient(record *ClientRecord) {
	if r == nil {
		return
	}
	select {
	case r.ClientRecordList.recordAddChan <- record:
	default:
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case record := <-r.RedirectRecordList.recordAddChan:
			r.RedirectRecordList.Add(record)
		case record := <-r.ClientRecordList.recordAddChan:
			r.ClientRecordList.Add(record)
		default:
			return
		}
	}
}
