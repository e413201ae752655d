package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/mattn/go-sqlite3"
)

type Writer interface {
	Write(p Position) error
	Rotate(timestamp time.Time) error
	Close() error
}

func newWriter(logger log.Logger, kind, dir string) Writer {
	if kind == "csv" {
		return &FileWriter{dir: dir, logger: logger}
	}
	return &DbWriter{dir: dir, logger: logger}
}

type DbWriter struct {
	dir    string
	logger log.Logger
	db     *sql.DB
	stmt   *sql.Stmt
}

func (db *DbWriter) Write(p Position) error {
	var gnssTime interface{}
	if p.TimeValid {
		gnssTime = p.Time.UTC()
	}
	_, err := db.stmt.Exec(p.Received.UTC(), p.Plate, int(p.Color), gnssTime, p.Latitude, p.Longitude,
		int(p.Speed), int(p.Direction), int(p.Altitude), int64(p.Mileage), int64(p.State), int64(p.Alarm))
	return err
}

func (db *DbWriter) Rotate(timestamp time.Time) error {
	_ = db.Close()

	fileName := filepath.Join(db.dir, "jt809-"+timestamp.Format("2006-01-02")+".db")
	level.Info(db.logger).Log("rotating", fileName)

	var err error
	db.db, err = sql.Open("sqlite3", fileName)
	if err != nil {
		return err
	}

	_, err = db.db.Exec(`
			create table if not exists positions(received text, plate text, color integer, gnss_time text,
				lat float64, lon float64, speed integer, direction integer, altitude integer,
				mileage integer, state integer, alarm integer)
		`)
	if err != nil {
		return err
	}

	db.stmt, err = db.db.Prepare(`
			insert into positions(received, plate, color, gnss_time, lat, lon, speed, direction, altitude, mileage, state, alarm)
			values(strftime('%Y-%m-%d %H:%M:%f', ?), ?, ?, strftime('%Y-%m-%d %H:%M:%S', ?), ?, ?, ?, ?, ?, ?, ?, ?)`)

	return err
}

func (db *DbWriter) Close() error {
	if db.stmt != nil {
		db.stmt.Close()
	}
	db.stmt = nil

	if db.db != nil {
		err := db.db.Close()
		db.db = nil
		return err
	}

	return nil
}

type FileWriter struct {
	dir    string
	logger log.Logger
	file   *os.File
	c      *csv.Writer
}

func (db *FileWriter) Write(p Position) error {
	gnssTime := ""
	if p.TimeValid {
		gnssTime = p.Time.Format(time.RFC3339)
	}
	err := db.c.Write([]string{
		p.Received.Format(time.RFC3339Nano),
		p.Plate,
		fmt.Sprint(p.Color),
		gnssTime,
		fmt.Sprint(p.Latitude),
		fmt.Sprint(p.Longitude),
		fmt.Sprint(p.Speed),
		fmt.Sprint(p.Direction),
		fmt.Sprint(p.Altitude),
		fmt.Sprint(p.Mileage),
		fmt.Sprint(p.State),
		fmt.Sprint(p.Alarm),
	})
	return err
}

func (db *FileWriter) Rotate(timestamp time.Time) error {
	_ = db.Close()

	fileName := filepath.Join(db.dir, "jt809-"+timestamp.Format("2006-01-02")+".csv")
	level.Info(db.logger).Log("rotating", fileName)

	var err error
	db.file, err = os.OpenFile(fileName, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}

	db.c = csv.NewWriter(db.file)

	return nil
}

func (db *FileWriter) Close() error {
	if db.c != nil {
		db.c.Flush()
	}
	db.c = nil

	if db.file != nil {
		err := db.file.Close()
		db.file = nil
		return err
	}

	return nil
}

// rotating starts a new output file the first time it sees a position
// received on a new day.
type rotating struct {
	w          Writer
	nextRotate time.Time
}

func (r *rotating) Write(p Position) error {
	if r.nextRotate.IsZero() || !p.Received.Before(r.nextRotate) {
		day := time.Date(p.Received.Year(), p.Received.Month(), p.Received.Day(), 0, 0, 0, 0, p.Received.Location())
		if err := r.w.Rotate(day); err != nil {
			return err
		}
		r.nextRotate = day.AddDate(0, 0, 1)
	}
	return r.w.Write(p)
}

func (r *rotating) Close() error {
	return r.w.Close()
}

var (
	_ Writer = &DbWriter{}
	_ Writer = &FileWriter{}
)
