package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOptionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "my.cnf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMyCnf(t *testing.T) {
	path := writeOptionFile(t, `
[mysqld]
port = 3307

[client]
host = db1.example.com
user = monitor
password = "s3cr3t"
port = 3310
default-character-set = utf8mb4
skip-ssl

[clientreplica]
host = db2.example.com
`)

	cfg, err := LoadMyCnf([]string{path}, "")
	require.NoError(t, err)
	assert.Equal(t, "db1.example.com", cfg.Host)
	assert.Equal(t, "monitor", cfg.User)
	assert.Equal(t, "s3cr3t", cfg.Password)
	assert.Equal(t, 3310, cfg.Port)
	assert.Equal(t, "utf8mb4", cfg.Charset)

	cfg, err = LoadMyCnf([]string{path}, "replica")
	require.NoError(t, err)
	assert.Equal(t, "db2.example.com", cfg.Host)
	assert.Equal(t, "monitor", cfg.User)
}

func TestLoadMyCnfLaterFileWins(t *testing.T) {
	base := writeOptionFile(t, "[client]\nhost = base\nuser = base_user\n")
	extra := writeOptionFile(t, "[client]\nhost = extra\ndefault_character_set = latin1\n")

	cfg, err := LoadMyCnf([]string{base, extra}, "")
	require.NoError(t, err)
	assert.Equal(t, "extra", cfg.Host)
	assert.Equal(t, "base_user", cfg.User)
	assert.Equal(t, "latin1", cfg.Charset)
}

func TestLoadMyCnfMissingFiles(t *testing.T) {
	cfg, err := LoadMyCnf([]string{filepath.Join(t.TempDir(), "nope.cnf")}, "x")
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, defaultCharset, cfg.Charset)
	assert.Equal(t, 0, cfg.Port)
}

func TestLoadMyCnfInvalidPort(t *testing.T) {
	path := writeOptionFile(t, "[client]\nport = abc\n")

	_, err := LoadMyCnf([]string{path}, "")
	assert.ErrorContains(t, err, "invalid port")
}

func TestConnConfigOverride(t *testing.T) {
	cfg := &ConnConfig{Host: "a", User: "u", Password: "p", Port: 1}
	cfg.Override("", "", "b", 0, "")
	assert.Equal(t, &ConnConfig{Host: "b", User: "u", Password: "p", Port: 1}, cfg)

	cfg.Override("root", "pw", "", 3307, "/tmp/mysql.sock")
	assert.Equal(t, &ConnConfig{Host: "b", User: "root", Password: "pw", Port: 3307, Socket: "/tmp/mysql.sock"}, cfg)
}

func TestConnConfigDSN(t *testing.T) {
	cfg := &ConnConfig{Host: "db1", User: "monitor", Password: "pw", Charset: "utf8mb4"}
	parsed, err := mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db1:3306", parsed.Addr)
	assert.Equal(t, "monitor", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
	assert.Equal(t, "monitor@db1:3306", cfg.String())

	cfg = &ConnConfig{Host: "/var/run/mysqld/mysqld.sock", User: "root"}
	parsed, err = mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "unix", parsed.Net)
	assert.Equal(t, "/var/run/mysqld/mysqld.sock", parsed.Addr)

	cfg = &ConnConfig{Host: "db1", Socket: "/tmp/mysql.sock", User: "root"}
	parsed, err = mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "unix", parsed.Net)
	assert.Equal(t, "/tmp/mysql.sock", parsed.Addr)
	assert.Equal(t, "root@unix(/tmp/mysql.sock)", cfg.String())
}

func TestDefaultOptionFiles(t *testing.T) {
	files := DefaultOptionFiles("/etc/extra.cnf")
	require.NotEmpty(t, files)
	assert.Equal(t, "/etc/extra.cnf", files[len(files)-1])
}
