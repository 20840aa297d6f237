package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/identity"
	"github.com/jhchabran/ideabox/sqlstore"
	"github.com/rs/zerolog"
)

const (
	dbString       = "file::memory:?_time_format=sqlite"
	testServerHost = "localhost:8081"
)

// testingLogWriter is an output target for zerolog which will print on the testing logger.
type testingLogWriter struct {
	c *qt.C
}

// Write outputs on the passed bytes on the test logger
func (l *testingLogWriter) Write(p []byte) (n int, err error) {
	str := string(p[0 : len(p)-1]) // drop the final \n
	l.c.Log(str)
	return len(p), nil
}

// A struct to hold the server and its components.
// Provides a few helpers for convenience.
type testContext struct {
	c          *qt.C
	server     *ideabox.Server
	testServer *httptest.Server
	store      *sqlstore.SQLStore
}

// newTestContext creates a server instance backed by an in-memory SQLite database.
func newTestContext(c *qt.C) *testContext {
	tc := testContext{c: c}

	w := testingLogWriter{c}
	output := zerolog.ConsoleWriter{Out: &w, NoColor: true}
	logger := zerolog.New(output)

	tc.store = sqlstore.New(sqlstore.DriverSQLite, dbString)
	c.Assert(tc.store.Connect(), qt.IsNil)
	c.Assert(tc.store.CreateSchema(context.Background()), qt.IsNil)

	tc.server = ideabox.NewServer(
		&ideabox.ServerConfig{Addr: testServerHost, ProposalsPerPage: 3},
		logger,
		tc.store,
		tc.store,
		identity.NewCookieProvider([]byte("test"), false, logger),
	)
	tc.testServer = httptest.NewServer(tc.server)

	return &tc
}

// url returns an url to the test server based on the given path
func (tc *testContext) url(path string) string {
	return tc.testServer.URL + path
}

// prepareServer boots up the server and sets up its teardown for the current test
func (tc *testContext) prepareServer() {
	tc.c.Assert(tc.server.Prepare(), qt.IsNil, qt.Commentf("couldn't prepare the server"))
	tc.c.Cleanup(func() {
		// kill the server
		tc.testServer.Close()

		// the database lives in memory, closing it is enough to start afresh
		tc.store.Close()
	})
}

func (tc *testContext) newHTTPClient() *http.Client {
	jar, err := cookiejar.New(nil)
	tc.c.Assert(err, qt.IsNil)

	return &http.Client{
		Jar: jar,
	}
}

// getJSON performs a GET request and decodes the JSON response in v, returning the status code.
func (tc *testContext) getJSON(client *http.Client, path string, v interface{}) int {
	resp, err := client.Get(tc.url(path))
	tc.c.Assert(err, qt.IsNil)
	defer resp.Body.Close()

	tc.c.Assert(json.NewDecoder(resp.Body).Decode(v), qt.IsNil)
	return resp.StatusCode
}

// postJSON performs a POST request with body encoded as JSON and decodes the JSON response in v,
// returning the status code.
func (tc *testContext) postJSON(client *http.Client, path string, body interface{}, v interface{}) int {
	b, err := json.Marshal(body)
	tc.c.Assert(err, qt.IsNil)

	resp, err := client.Post(tc.url(path), "application/json", bytes.NewReader(b))
	tc.c.Assert(err, qt.IsNil)
	defer resp.Body.Close()

	tc.c.Assert(json.NewDecoder(resp.Body).Decode(v), qt.IsNil)
	return resp.StatusCode
}
