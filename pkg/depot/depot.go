package depot

import (
	"time"
)

// IndexEntry is one row of the certificate index kept by the CA.
type IndexEntry struct {
	Serial         string
	Subject        string
	Status         byte
	IssueTime      time.Time
	ExpiryTime     time.Time
	RevocationTime time.Time
}

// Expired status only shows up in listings, the CA derives it from the
// validity window at read time.
const (
	StatusValid   = 'V'
	StatusRevoked = 'R'
	StatusExpired = 'E'
)

type Depot interface {
	Insert(ie *IndexEntry) error
	Get(serial string) (*IndexEntry, error)
	Revoke(serial string, at time.Time) error
	List() ([]IndexEntry, error)
}
