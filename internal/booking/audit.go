package booking

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/imjd-ai/saba-backend/pkg/logging"
)

// Record is one line of the booking audit trail.
type Record struct {
	LeadID    int       `json:"lead_id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees"`
	MeetLink  string    `json:"meet_link,omitempty"`
	Outcome   string    `json:"outcome"`
	BookedAt  time.Time `json:"booked_at"`
}

// AuditLog appends booking records to a JSON-lines file. Failures are
// logged and swallowed; auditing never blocks a booking.
type AuditLog struct {
	mu     sync.Mutex
	path   string
	logger *logging.Logger
	now    func() time.Time
}

func NewAuditLog(path string, logger *logging.Logger) *AuditLog {
	return &AuditLog{path: path, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (a *AuditLog) Append(rec Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec.BookedAt = a.now()
	line, err := json.Marshal(rec)
	if err != nil {
		a.logger.Error("failed to encode audit record", "error", err)
		return
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		a.logger.Error("failed to open audit log", "path", a.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		a.logger.Error("failed to append audit record", "error", err)
	}
}

// All reads every record in the audit file, oldest first.
func (a *AuditLog) All() ([]Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			break
		}
		records = append(records, rec)
	}
	return records, nil
}
