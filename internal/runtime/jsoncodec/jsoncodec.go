// Package jsoncodec is the JSON codec shared by the egress tap and the demo
// fixtures. It uses sonic in encoding/json compatible mode.
package jsoncodec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

// maxLine bounds one JSON-lines record.
const maxLine = 16 << 20

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// WriteLine writes v as a single JSON line.
func WriteLine(w io.Writer, v any) error {
	b, err := defaultConfig.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// ReadLines decodes one T per non-blank line of r. On a malformed line it
// returns the records read so far and an error naming the 1-based line.
func ReadLines[T any](r io.Reader) ([]T, error) {
	var out []T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var v T
		if err := defaultConfig.Unmarshal(raw, &v); err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}
