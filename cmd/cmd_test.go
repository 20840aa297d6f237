package cmd

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/ideabox/sqlstore"
)

var configVars = []string{
	"LOG_LEVEL", "LOG_FORMAT", "DATABASE_DRIVER", "DATABASE_URL", "DATABASE_NAME", "DATABASE_USER",
	"DATABASE_HOST", "DATABASE_PASSWORD", "REDIS_ADDR", "SERVER_SECRET", "SLACK_WEBHOOK_URL", "ADDR",
	"PROPOSALS_PER_PAGE", "CREATE_SCHEMA", "SECURE_COOKIES",
}

// isolateEnv unsets the configuration variables for the duration of the test,
// including the ones a .env file would set.
func isolateEnv(c *qt.C) {
	for _, name := range configVars {
		name := name
		old, ok := os.LookupEnv(name)
		os.Unsetenv(name)
		c.Cleanup(func() {
			if ok {
				os.Setenv(name, old)
			} else {
				os.Unsetenv(name)
			}
		})
	}
}

func writeFile(c *qt.C, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	c.Assert(os.WriteFile(path, []byte(content), 0o600), qt.IsNil)
	return path
}

func TestConfigLoad(t *testing.T) {
	c := qt.New(t)

	c.Run("defaults", func(c *qt.C) {
		isolateEnv(c)
		dir := c.TempDir()

		cfg := DefaultConfig()
		err := cfg.load(filepath.Join(dir, "config.json"), filepath.Join(dir, ".env"))
		c.Assert(err, qt.IsNil)
		c.Assert(cfg, qt.DeepEquals, DefaultConfig())
	})

	c.Run("precedence", func(c *qt.C) {
		isolateEnv(c)
		dir := c.TempDir()

		jsonPath := writeFile(c, dir, "config.json", `{
			"log_level": "warn",
			"addr": "0.0.0.0:3000",
			"database_host": "db.internal",
			"proposals_per_page": 20
		}`)
		envPath := writeFile(c, dir, ".env", "ADDR=0.0.0.0:4000\nLOG_LEVEL=error\nCREATE_SCHEMA=true\n")
		os.Setenv("LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		err := cfg.load(jsonPath, envPath)
		c.Assert(err, qt.IsNil)

		c.Assert(cfg.LogLevel, qt.Equals, "debug")
		c.Assert(cfg.Addr, qt.Equals, "0.0.0.0:4000")
		c.Assert(cfg.DatabaseHost, qt.Equals, "db.internal")
		c.Assert(cfg.ProposalsPerPage, qt.Equals, 20)
		c.Assert(cfg.CreateSchema, qt.IsTrue)
		c.Assert(cfg.LogFormat, qt.Equals, "json")
	})

	c.Run("invalid values", func(c *qt.C) {
		isolateEnv(c)
		dir := c.TempDir()
		noFile := filepath.Join(dir, "missing")

		os.Setenv("PROPOSALS_PER_PAGE", "ten")
		c.Assert(DefaultConfig().load(noFile, noFile), qt.ErrorMatches, "PROPOSALS_PER_PAGE: .*")
		os.Unsetenv("PROPOSALS_PER_PAGE")

		os.Setenv("DATABASE_DRIVER", "oracle")
		c.Assert(DefaultConfig().load(noFile, noFile), qt.ErrorMatches, `unsupported database driver "oracle"`)
		os.Unsetenv("DATABASE_DRIVER")

		jsonPath := writeFile(c, dir, "config.json", `{"addr": `)
		c.Assert(DefaultConfig().load(jsonPath, noFile), qt.Not(qt.IsNil))
	})
}

func TestDatabaseDSN(t *testing.T) {
	c := qt.New(t)

	cfg := DefaultConfig()
	_, ok := cfg.DatabaseDSN()
	c.Assert(ok, qt.IsFalse)

	cfg.DatabaseHost = "127.0.0.1"
	cfg.DatabasePassword = "it's secret"
	dsn, ok := cfg.DatabaseDSN()
	c.Assert(ok, qt.IsTrue)
	c.Assert(dsn, qt.Equals, `user='postgres' dbname='ideabox' sslmode=disable password='it\'s secret' host='127.0.0.1'`)

	cfg.DatabaseURL = "postgres://u:p@db/ideabox"
	dsn, ok = cfg.DatabaseDSN()
	c.Assert(ok, qt.IsTrue)
	c.Assert(dsn, qt.Equals, "postgres://u:p@db/ideabox")

	sqlite := DefaultConfig()
	sqlite.DatabaseDriver = sqlstore.DriverSQLite
	sqlite.DatabaseHost = "127.0.0.1"
	_, ok = sqlite.DatabaseDSN()
	c.Assert(ok, qt.IsFalse)
}
