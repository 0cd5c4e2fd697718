package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PrintJobStatus represents where a print job is in its lifecycle
type PrintJobStatus int

const (
	PrintJobStatusPending   PrintJobStatus = 0
	PrintJobStatusPrinting  PrintJobStatus = 1
	PrintJobStatusCompleted PrintJobStatus = 2
	PrintJobStatusFailed    PrintJobStatus = 3
)

var printJobStatusNames = [...]string{"pending", "printing", "completed", "failed"}

func (s PrintJobStatus) String() string {
	if s < 0 || int(s) >= len(printJobStatusNames) {
		return fmt.Sprintf("PrintJobStatus(%d)", int(s))
	}
	return printJobStatusNames[s]
}

// IsValid reports whether s is one of the declared statuses.
func (s PrintJobStatus) IsValid() bool {
	return s >= PrintJobStatusPending && s <= PrintJobStatusFailed
}

// ParsePrintJobStatus converts a status name into a PrintJobStatus.
func ParsePrintJobStatus(str string) (PrintJobStatus, error) {
	for i, name := range printJobStatusNames {
		if name == str {
			return PrintJobStatus(i), nil
		}
	}
	return PrintJobStatusPending, fmt.Errorf("unknown print job status %q", str)
}

func (s PrintJobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PrintJobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		// Try unmarshaling as int
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = PrintJobStatus(i)
		return nil
	}
	parsed, err := ParsePrintJobStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s PrintJobStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *PrintJobStatus) Scan(value interface{}) error {
	if value == nil {
		*s = PrintJobStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = PrintJobStatus(v)
	case int32:
		*s = PrintJobStatus(v)
	case int:
		*s = PrintJobStatus(v)
	case []byte:
		var i int
		if _, err := fmt.Sscan(string(v), &i); err != nil {
			return err
		}
		*s = PrintJobStatus(i)
	}
	return nil
}
