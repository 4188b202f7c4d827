package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tuannm99/novagrid/gridstore"
)

// seedFile is the --seed document: container descriptors in the
// ParseContainerInfo shape, each with optional rows.
//
//	{"containers": [{"name": "people", "rowKey": true,
//	  "columnInfoList": [["name", "STRING"], ["age", "INTEGER"]],
//	  "rows": [["ann", 31], ["bob", 40]]}]}
type seedFile struct {
	Containers []map[string]any `json:"containers"`
}

func loadSeed(st *gridstore.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var doc seedFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}

	batch := make(map[string][][]any)
	for i, desc := range doc.Containers {
		rows, err := seedRows(desc["rows"])
		if err != nil {
			return fmt.Errorf("seed container %d: %w", i, err)
		}
		delete(desc, "rows")

		info, err := gridstore.ParseContainerInfo(desc)
		if err != nil {
			return fmt.Errorf("seed container %d: %w", i, err)
		}
		c, err := st.PutContainer(info, true)
		if err != nil {
			return err
		}
		if err := c.Close(); err != nil {
			return err
		}
		batch[info.Name()] = rows
	}
	return st.MultiPut(batch)
}

func seedRows(raw any) ([][]any, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("rows must be a list, got %T", raw)
	}
	rows := make([][]any, len(list))
	for i, r := range list {
		row, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("row %d must be a list, got %T", i, r)
		}
		rows[i] = row
	}
	return rows, nil
}
