package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/saleswire/agentsync/internal/types"
)

// ParseError marks a snapshot as structurally invalid. The pipeline treats
// it as fatal for the run: no records are applied and pruning is skipped.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("snapshot %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("snapshot %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func errUnknownKind(kind types.SyncKind) error {
	return fmt.Errorf("no parser for sync kind %q", kind)
}

// forEachLine streams the file line by line, skipping blank lines. fn
// receives the trimmed line bytes and its 1-based line number.
func forEachLine(path string, fn func(line []byte, lineNum int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024) // large JSON lines
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line, lineNum); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &ParseError{Path: path, Line: lineNum, Err: err}
	}
	return nil
}

func ParseCustomers(path string) ([]*CustomerRecord, error) {
	var records []*CustomerRecord
	err := forEachLine(path, func(line []byte, lineNum int) error {
		var rec CustomerRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return &ParseError{Path: path, Line: lineNum, Err: err}
		}
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func ParseOrders(path string) ([]*OrderRecord, error) {
	var records []*OrderRecord
	err := forEachLine(path, func(line []byte, lineNum int) error {
		var rec OrderRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return &ParseError{Path: path, Line: lineNum, Err: err}
		}
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ParseProducts parses a product export. Each record's hash is the digest
// of its raw line bytes: the export is content-addressed, so any change to
// a line changes the hash.
func ParseProducts(path string) ([]*ProductRecord, error) {
	var records []*ProductRecord
	err := forEachLine(path, func(line []byte, lineNum int) error {
		var rec ProductRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return &ParseError{Path: path, Line: lineNum, Err: err}
		}
		rec.Hash = types.ContentDigest(line)
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func ParsePrices(path string) ([]*PriceRecord, error) {
	var records []*PriceRecord
	err := forEachLine(path, func(line []byte, lineNum int) error {
		var rec PriceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return &ParseError{Path: path, Line: lineNum, Err: err}
		}
		rec.normalize()
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func ParseDocuments(path string) ([]*DocumentRecord, error) {
	var records []*DocumentRecord
	err := forEachLine(path, func(line []byte, lineNum int) error {
		var rec DocumentRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return &ParseError{Path: path, Line: lineNum, Err: err}
		}
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
