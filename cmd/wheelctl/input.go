package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// parseNumbers reads a number list such as "1-10,15,20-22".
func parseNumbers(raw string) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad number %q", part)
		}
		if !isRange {
			out = append(out, a)
			continue
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || b < a {
			return nil, fmt.Errorf("bad range %q", part)
		}
		for v := a; v <= b; v++ {
			out = append(out, v)
		}
	}
	return out, nil
}

// parseGroup reads "id=numbers:min:max", e.g. "low=1-10:1:2".
func parseGroup(raw string) (model.GroupConstraint, error) {
	var g model.GroupConstraint
	id, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return g, fmt.Errorf("group %q: want id=numbers:min:max", raw)
	}
	fields := strings.Split(rest, ":")
	if len(fields) != 3 {
		return g, fmt.Errorf("group %q: want id=numbers:min:max", raw)
	}
	nums, err := parseNumbers(fields[0])
	if err != nil {
		return g, fmt.Errorf("group %q: %w", raw, err)
	}
	lo, err1 := strconv.Atoi(fields[1])
	hi, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return g, fmt.Errorf("group %q: min and max must be integers", raw)
	}
	return model.GroupConstraint{ID: strings.TrimSpace(id), Numbers: nums, Min: lo, Max: hi}, nil
}

// readTickets reads one ticket per line, numbers separated by spaces or
// commas. Blank lines and lines starting with # are skipped. Input that
// starts with '[' is decoded as a JSON array of arrays.
func readTickets(r io.Reader) ([][]int, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(1); err == nil && b[0] == '[' {
		var out [][]int
		if err := json.NewDecoder(br).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode tickets: %w", err)
		}
		return out, nil
	}
	var out [][]int
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		t := make([]int, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad number %q", line, f)
			}
			t = append(t, v)
		}
		out = append(out, t)
	}
	return out, sc.Err()
}

func readTicketsFile(path string) ([][]int, error) {
	if path == "-" {
		return readTickets(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTickets(f)
}

// readJSONFile decodes the JSON document at path into v.
func readJSONFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
