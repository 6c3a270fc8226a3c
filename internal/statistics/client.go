package statistics

import (
	"sort"
	"sync"
)

// ClientRecordList counts answered lines per client address.
type ClientRecordList struct {
	recordAddChan chan *ClientRecord
	records       map[string]*ClientRecord
	mu            sync.RWMutex
}

type ClientRecord struct {
	ClientIP  string `json:"client_ip"`
	FQDN      string `json:"fqdn"`
	Lines     int    `json:"lines"`
	Redirects int    `json:"redirects"`
}

func NewClientRecordList() *ClientRecordList {
	return &ClientRecordList{
		recordAddChan: make(chan *ClientRecord, 100),
		records:       make(map[string]*ClientRecord, 100),
	}
}

func (l *ClientRecordList) Add(record *ClientRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, exists := l.records[record.ClientIP]; exists {
		r.Lines += record.Lines
		r.Redirects += record.Redirects
		if record.FQDN != "" {
			r.FQDN = record.FQDN
		}
		return
	}
	rec := *record
	l.records[record.ClientIP] = &rec
}

func (l *ClientRecordList) Records() []ClientRecord {
	l.mu.RLock()
	out := make([]ClientRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Lines != out[j].Lines {
			return out[i].Lines > out[j].Lines
		}
		return out[i].ClientIP < out[j].ClientIP
	})
	return out
}
