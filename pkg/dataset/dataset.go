// Package dataset reads data-driven login cases from CSV or JSON files.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// Expected results understood by the shop login check.
const (
	ExpectSuccess = "success"
	ExpectFailure = "failure"
)

// LoginCase is one row of login test data.
type LoginCase struct {
	Email          string `mapstructure:"email" json:"email"`
	Password       string `mapstructure:"password" json:"password"`
	ExpectedResult string `mapstructure:"expectedResult" json:"expectedResult"`
	Description    string `mapstructure:"description" json:"description"`
}

// String identifies a case in logs.
func (c LoginCase) String() string {
	if c.Description != "" {
		return c.Description
	}
	return c.Email
}

// Read loads cases from path, choosing the format by extension.
func Read(path string) ([]LoginCase, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".json":
		return ReadJSON(path)
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported data file %q: want .csv or .json", path))
	}
}

// ReadCSV reads email,password,expectedResult,description rows. The first
// row is a header. Rows with fewer than four fields are ignored.
func ReadCSV(path string) ([]LoginCase, error) {
	f, err := os.Open(path) //#nosec G304 -- user-provided data file
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	defer f.Close()
	return parseCSV(f, path)
}

func parseCSV(r io.Reader, path string) ([]LoginCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var cases []LoginCase
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV file %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < 4 {
			continue
		}
		cases = append(cases, LoginCase{
			Email:          strings.TrimSpace(record[0]),
			Password:       strings.TrimSpace(record[1]),
			ExpectedResult: strings.TrimSpace(record[2]),
			Description:    strings.TrimSpace(record[3]),
		})
	}
	return cases, nil
}

// ReadJSON reads {"loginTestData": [...]} files. Missing fields decode to
// empty strings.
func ReadJSON(path string) ([]LoginCase, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided data file
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file %s: %w", path, err)
	}
	return parseJSON(data, path)
}

func parseJSON(data []byte, path string) ([]LoginCase, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON file %s: %w", path, err)
	}
	raw, ok := doc["loginTestData"]
	if !ok {
		return nil, core.ErrMissingRequired.WithMessage(path + ": loginTestData not found")
	}

	var cases []LoginCase
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cases,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage(path + ": invalid loginTestData")
	}
	return cases, nil
}
