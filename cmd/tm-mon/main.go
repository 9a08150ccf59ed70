// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tm-mon watches a telemetry run directory and raises an
// alert when the downlink stalls: no in-progress file grew and no new
// archive appeared between two probes.
package main // import "github.com/moses-daq/tmrx/cmd/tm-mon"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"
)

func main() {
	var (
		dir  = flag.String("dir", ".", "run directory to monitor")
		freq = flag.Duration("freq", 30*time.Second, "probing interval")
	)

	flag.Parse()

	log.SetPrefix("tm-mon: ")
	log.SetFlags(0)

	run(*dir, *freq)
}

func run(dir string, freq time.Duration) {
	log.Printf("monitoring %q every %v", dir, freq)

	mon := &monitor{dir: dir, freq: freq}
	tick := time.NewTicker(freq)
	defer tick.Stop()

	table, err := mon.list()
	if err != nil {
		log.Fatalf("could not list run directory: %+v", err)
	}

	for range tick.C {
		cur, err := mon.list()
		if err != nil {
			log.Printf("could not list run directory: %+v", err)
			continue
		}
		if !grew(table, cur) {
			mon.alert(len(cur))
		} else {
			mon.alerts = 0
		}
		table = cur
	}
}

type monitor struct {
	dir    string
	freq   time.Duration
	alerts int
}

func (mon *monitor) list() (map[string]int64, error) {
	table := make(map[string]int64)
	for _, glob := range []string{
		"currentImage",
		"currentTM.xml",
		filepath.Join("images", "*"),
		filepath.Join("xml", "*.xml"),
	} {
		files, err := filepath.Glob(filepath.Join(mon.dir, glob))
		if err != nil {
			return nil, fmt.Errorf("could not glob %q: %w", glob, err)
		}
		for _, fname := range files {
			fi, err := os.Stat(fname)
			if err != nil {
				return nil, fmt.Errorf("could not stat %q: %w", fname, err)
			}
			table[fname] = fi.Size()
		}
	}
	return table, nil
}

// grew reports whether anything changed between two probes: a file
// appeared, disappeared (archived) or changed size.
func grew(ref, chk map[string]int64) bool {
	if len(ref) != len(chk) {
		return true
	}
	for fname, sz := range chk {
		refsz, ok := ref[fname]
		if !ok || refsz != sz {
			return true
		}
	}
	return false
}

func (mon *monitor) alert(nfiles int) {
	log.Printf("telemetry stalled: nothing changed in %q over the last %v (%d files)",
		mon.dir, mon.freq, nfiles,
	)
	mon.alerts++

	const maxAlerts = 5
	if mon.alerts < maxAlerts {
		mon.alertMail(nfiles)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (mon *monitor) alertMail(nfiles int) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[tm-mon] telemetry stalled: %q", mon.dir))
	msg.SetBody("text/plain", fmt.Sprintf("dir:   %q\nfiles: %d\nfreq:  %v",
		mon.dir, nfiles, mon.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
