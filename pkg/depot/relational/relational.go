package relational

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dualsign/SET-simulator/pkg/depot"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	_ "github.com/lib/pq"
)

const timeLayout = "060102150405Z"

type relationalDB struct {
	db     *sql.DB
	logger log.Logger
}

func NewDB(driverName string, dataSourceName string, logger log.Logger) (depot.Depot, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	err = checkDBAlive(db)
	for err != nil {
		level.Warn(logger).Log("msg", "Trying to connect to certificate index database")
		err = checkDBAlive(db)
	}

	return &relationalDB{db: db, logger: logger}, nil
}

func checkDBAlive(db *sql.DB) error {
	sqlStatement := `
	SELECT WHERE 1=0`
	_, err := db.Query(sqlStatement)
	return err
}

func (r *relationalDB) Insert(ie *depot.IndexEntry) error {
	sqlStatement := `
	INSERT INTO set_cert_store(serial, subject, status, issueDate, expiryDate, revocationDate)
	VALUES($1, $2, $3, $4, $5, $6)
	RETURNING serial;
	`

	var serial string
	err := r.db.QueryRow(sqlStatement, ie.Serial, ie.Subject, string(ie.Status), ie.IssueTime.Format(timeLayout), ie.ExpiryTime.Format(timeLayout), ie.RevocationTime.Format(timeLayout)).Scan(&serial)
	if err != nil {
		level.Error(r.logger).Log("err", err, "msg", "Could not insert index entry with serial "+ie.Serial+" in certificate index database")
		return err
	}
	level.Info(r.logger).Log("msg", "Index entry with serial "+ie.Serial+" inserted in certificate index database")
	return nil
}

func (r *relationalDB) Get(serial string) (*depot.IndexEntry, error) {
	sqlStatement := `
	SELECT serial, subject, status, issueDate, expiryDate, revocationDate
	FROM set_cert_store
	WHERE serial = $1;
	`
	row := r.db.QueryRow(sqlStatement, serial)

	var unparsed struct {
		Serial         string
		Subject        string
		Status         string
		IssueTime      string
		ExpiryTime     string
		RevocationTime string
	}

	err := row.Scan(&unparsed.Serial, &unparsed.Subject, &unparsed.Status, &unparsed.IssueTime, &unparsed.ExpiryTime, &unparsed.RevocationTime)
	if err != nil {
		err = fmt.Errorf("serial %s not found", serial)
		level.Error(r.logger).Log("err", err, "msg", "Could not find serial "+serial+" in certificate index database")
		return nil, err
	}

	ie, err := parseEntry(unparsed.Serial, unparsed.Subject, unparsed.Status, unparsed.IssueTime, unparsed.ExpiryTime, unparsed.RevocationTime)
	if err != nil {
		level.Error(r.logger).Log("err", err, "msg", "Could not parse index entry with serial "+serial)
		return nil, err
	}
	return ie, nil
}

func (r *relationalDB) Revoke(serial string, at time.Time) error {
	sqlStatement := `
	UPDATE set_cert_store
	SET status = 'R', revocationDate = $1
	WHERE serial = $2;
	`

	res, err := r.db.Exec(sqlStatement, at.Format(timeLayout), serial)
	if err != nil {
		level.Error(r.logger).Log("err", err, "msg", "Could not revoke certificate with serial "+serial+" in certificate index database")
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		level.Error(r.logger).Log("err", err, "msg", "Could not revoke certificate with serial "+serial+" in certificate index database")
		return err
	}

	if count <= 0 {
		err = fmt.Errorf("serial %s not found", serial)
		level.Error(r.logger).Log("err", err)
		return err
	}
	level.Info(r.logger).Log("msg", "Certificate with serial "+serial+" revoked in certificate index database")
	return nil
}

func (r *relationalDB) List() ([]depot.IndexEntry, error) {
	sqlStatement := `
	SELECT serial, subject, status, issueDate, expiryDate, revocationDate
	FROM set_cert_store
	ORDER BY issueDate;
	`
	rows, err := r.db.Query(sqlStatement)
	if err != nil {
		level.Error(r.logger).Log("err", err, "msg", "Could not list certificate index database")
		return nil, err
	}
	defer rows.Close()

	var entries []depot.IndexEntry
	for rows.Next() {
		var serial, subject, status, issueTime, expiryTime, revocationTime string
		if err := rows.Scan(&serial, &subject, &status, &issueTime, &expiryTime, &revocationTime); err != nil {
			return nil, err
		}
		ie, err := parseEntry(serial, subject, status, issueTime, expiryTime, revocationTime)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *ie)
	}
	return entries, rows.Err()
}

func parseEntry(serial, subject, status, issueTime, expiryTime, revocationTime string) (*depot.IndexEntry, error) {
	var ie depot.IndexEntry
	ie.Serial = serial
	ie.Subject = subject
	if status == "" {
		return nil, fmt.Errorf("empty status for serial %s", serial)
	}
	ie.Status = status[0]

	var err error
	ie.IssueTime, err = time.Parse(timeLayout, issueTime)
	if err != nil {
		return nil, err
	}
	ie.ExpiryTime, err = time.Parse(timeLayout, expiryTime)
	if err != nil {
		return nil, err
	}
	if ie.Status == depot.StatusRevoked {
		ie.RevocationTime, _ = time.Parse(timeLayout, revocationTime)
	}
	return &ie, nil
}
