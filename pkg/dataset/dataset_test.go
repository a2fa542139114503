package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/appscript/pkg/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, "login_data.csv", `email,password,expectedResult,description
user@example.com , secret123 ,success, Valid credentials
bad@example.com,wrong,failure,Wrong password
incomplete,row
,,failure,Empty fields
"a,b@example.com",pw,failure,"Comma, in email"
`)

	cases, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, cases, 4)

	assert.Equal(t, LoginCase{
		Email:          "user@example.com",
		Password:       "secret123",
		ExpectedResult: ExpectSuccess,
		Description:    "Valid credentials",
	}, cases[0])
	assert.Equal(t, "Wrong password", cases[1].Description)
	assert.Equal(t, LoginCase{ExpectedResult: ExpectFailure, Description: "Empty fields"}, cases[2])
	assert.Equal(t, "a,b@example.com", cases[3].Email)
}

func TestReadCSVHeaderOnly(t *testing.T) {
	cases, err := ReadCSV(writeFile(t, "empty.csv", "email,password,expectedResult,description\n"))
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read CSV file")
}

func TestReadJSON(t *testing.T) {
	path := writeFile(t, "login_data.json", `{
  "loginTestData": [
    {"email": "user@example.com", "password": "secret123", "expectedResult": "success", "description": "Valid credentials"},
    {"email": "", "password": "x", "expectedResult": "failure"}
  ]
}`)

	cases, err := ReadJSON(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "user@example.com", cases[0].Email)
	assert.Equal(t, ExpectSuccess, cases[0].ExpectedResult)
	assert.Equal(t, "", cases[1].Description)
	assert.Equal(t, "x", cases[1].Password)
	assert.Equal(t, "", cases[1].String())
}

func TestLoginCaseString(t *testing.T) {
	assert.Equal(t, "Valid credentials", LoginCase{Email: "u@example.com", Description: "Valid credentials"}.String())
	assert.Equal(t, "u@example.com", LoginCase{Email: "u@example.com", Password: "pw"}.String())
}

func TestReadCSVBareQuote(t *testing.T) {
	path := writeFile(t, "quotes.csv", `email,password,expectedResult,description
user@example.com,secret123,success,Valid credentials
bad@example.com,pa"ss,failure,quote in password
`)

	cases, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, `pa"ss`, cases[1].Password)
	assert.Equal(t, ExpectFailure, cases[1].ExpectedResult)
	assert.Equal(t, "quote in password", cases[1].Description)
}

func TestReadJSONErrors(t *testing.T) {
	_, err := ReadJSON(writeFile(t, "a.json", `{"users": []}`))
	assert.ErrorIs(t, err, core.ErrMissingRequired)
	assert.Contains(t, err.Error(), "loginTestData not found")

	_, err = ReadJSON(writeFile(t, "b.json", `{"loginTestData": "nope"}`))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = ReadJSON(writeFile(t, "c.json", `{`))
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	csvPath := writeFile(t, "d.CSV", "h\na,b,success,c\n")
	cases, err := Read(csvPath)
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	jsonPath := writeFile(t, "d.json", `{"loginTestData": []}`)
	cases, err = Read(jsonPath)
	require.NoError(t, err)
	assert.Empty(t, cases)

	_, err = Read("cases.xml")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
