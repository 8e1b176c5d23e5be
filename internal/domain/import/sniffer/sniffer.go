// Package sniffer detects the layout of delimited text files: encoding,
// delimiter and header fingerprint.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Candidate delimiters, in tie-break order.
var delimiters = []rune{';', '\t', ',', '|'}

// maxSampleLines bounds how many lines are inspected for the delimiter.
const maxSampleLines = 20

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// NormalizeBytes strips a UTF-8 BOM and re-decodes Windows-1252 input, the
// Latin-1 superset most Brazilian bank exports still produce.
func NormalizeBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

// DetectDelimiter picks the delimiter that splits the most sampled lines
// into the most columns. Single-column files default to ','.
func DetectDelimiter(data []byte) (rune, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return 0, ErrEmptyFile
	}

	scores := make(map[rune]int, len(delimiters))
	sampled := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = cleanLine(line)
		if line == "" {
			continue
		}
		if d, count := detectDelimiter(line); count > 0 {
			scores[d] += count
		}
		sampled++
		if sampled >= maxSampleLines {
			break
		}
	}

	best, bestScore := rune(0), 0
	for _, d := range delimiters {
		if scores[d] > bestScore {
			best, bestScore = d, scores[d]
		}
	}
	if best == 0 {
		return ',', nil
	}
	return best, nil
}

// ReadRecords normalizes data and reads every record with the detected
// delimiter. Rows may have different widths and quotes are read leniently,
// so a stray quote stays in its field instead of dropping the line.
func ReadRecords(data []byte) ([][]string, rune, error) {
	data = NormalizeBytes(data)
	delimiter, err := DetectDelimiter(data)
	if err != nil {
		return nil, 0, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, delimiter, fmt.Errorf("failed to read csv record: %w", err)
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, delimiter, ErrEmptyFile
	}
	return records, delimiter, nil
}

// Fingerprint creates a stable hash from header names so files exported by
// the same source can be recognized.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	line = strings.TrimPrefix(line, "\uFEFF")
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}
