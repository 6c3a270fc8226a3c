package statistics

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// RedirectRecordList counts redirected lookups per store key.
type RedirectRecordList struct {
	recordAddChan chan *RedirectRecord
	records       map[string]*RedirectRecord
	mu            sync.RWMutex

	dumpRecords []*RedirectRecord
	dumpFile    string
	dumpWriter  *bufio.Writer
}

type RedirectRecord struct {
	Key      string    `json:"key"`
	Count    int       `json:"count"`
	LastURL  string    `json:"last_url"`
	LastUser string    `json:"last_user"`
	LastSeen time.Time `json:"last_seen"`
}

func NewRedirectRecordList(dumpFile string) *RedirectRecordList {
	return &RedirectRecordList{
		recordAddChan: make(chan *RedirectRecord, 100),
		records:       make(map[string]*RedirectRecord, 300),
		dumpRecords:   make([]*RedirectRecord, 0, 300),
		dumpFile:      dumpFile,
		dumpWriter:    bufio.NewWriter(nil),
	}
}

func (l *RedirectRecordList) Add(record *RedirectRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := record.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	if r, exists := l.records[record.Key]; exists {
		r.Count++
		r.LastURL = record.LastURL
		r.LastUser = record.LastUser
		r.LastSeen = seen
		return
	}
	l.records[record.Key] = &RedirectRecord{
		Key:      record.Key,
		Count:    1,
		LastURL:  record.LastURL,
		LastUser: record.LastUser,
		LastSeen: seen,
	}
}

// Records returns copies sorted by count, highest first.
func (l *RedirectRecordList) Records() []RedirectRecord {
	l.mu.RLock()
	out := make([]RedirectRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (l *RedirectRecordList) Dump() {
	if l.dumpFile == "" {
		return
	}
	f, err := os.Create(l.dumpFile)
	if err != nil {
		slog.Error("os.Create", slog.Any("error", err))
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("os.File.Close", slog.Any("error", err))
		}
	}()

	l.dumpRecords = l.dumpRecords[:0]
	for _, r := range l.Records() {
		l.dumpRecords = append(l.dumpRecords, &r)
	}

	l.dumpWriter.Reset(f)
	defer func() {
		if err := l.dumpWriter.Flush(); err != nil {
			slog.Error("bufio.Writer.Flush", slog.Any("error", err))
		}
	}()

	for _, record := range l.dumpRecords {
		_, err := fmt.Fprintf(l.dumpWriter, "%s %d %s %s\n",
			record.Key, record.Count, record.LastSeen.Format(time.RFC3339), record.LastURL)
		if err != nil {
			slog.Error("Dump fmt.Fprintf", slog.Any("error", err))
		}
	}
}
