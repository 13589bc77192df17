// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package reloadcause

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/jsonstore"
)

// decodeCauses reads a flat cause list, renaming the v1 reloadReason key
// and filling fields absent before v3.
func decodeCauses(b []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return []Entry{}, nil
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	causes := make([]Entry, 0, len(raw))
	for _, item := range raw {
		e := Entry{Time: "unknown", Score: Event}
		if s, ok := item["reloadReason"].(string); ok {
			e.Cause = s
		}
		if s, ok := item["cause"].(string); ok {
			e.Cause = s
		}
		if s, ok := item["time"].(string); ok {
			e.Time = s
		}
		if s, ok := item["description"].(string); ok {
			e.Description = s
		}
		if f, ok := item["score"].(float64); ok {
			e.Score = Score(f)
		}
		causes = append(causes, e)
	}
	return causes, nil
}

// Store is the flat cause list kept for the operating system, either the
// last boot in tmpfs or the bounded history on flash.
type Store struct {
	*jsonstore.Store
}

func TemporaryStore() Store {
	return Store{jsonstore.Temporary(config.Get().RebootCauseFile)}
}

func PersistentStore() Store {
	return Store{jsonstore.Persistent(config.Get().RebootCauseFile)}
}

func (s Store) ReadCauses() ([]Entry, error) {
	b, err := ioutil.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return decodeCauses(b)
}

func (s Store) WriteCauses(causes []Entry) error {
	if causes == nil {
		causes = []Entry{}
	}
	return s.Write(causes)
}

// UpdateHistory appends the causes not yet recorded, matched by cause and
// time, and keeps the newest HistorySize.
func (s Store) UpdateHistory(newCauses []Entry) error {
	causes, err := s.ReadCauses()
	if os.IsNotExist(err) {
		causes, err = nil, nil
	}
	if err != nil {
		return err
	}
	for _, n := range newCauses {
		dup := false
		for _, c := range causes {
			if c.Time == n.Time && c.Cause == n.Cause {
				dup = true
				break
			}
		}
		if !dup {
			causes = append(causes, n)
		}
	}
	if len(causes) > HistorySize {
		causes = causes[len(causes)-HistorySize:]
	}
	return s.WriteCauses(causes)
}
