package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/ini.v1"
)

const (
	defaultPort    = 3306
	defaultCharset = "utf8"
)

// ConnConfig holds the connection parameters read from MySQL option files
type ConnConfig struct {
	Host     string
	User     string
	Password string
	Port     int
	Socket   string
	Charset  string
}

// String returns the connection target without the password
func (c *ConnConfig) String() string {
	if c.Socket != "" {
		return fmt.Sprintf("%s@unix(%s)", c.User, c.Socket)
	}
	return fmt.Sprintf("%s@%s:%d", c.User, c.Host, c.port())
}

// DefaultOptionFiles lists ~/.my.cnf, when it exists, followed by the extra file
func DefaultOptionFiles(extraFile string) []string {
	var files []string
	if home, err := os.UserHomeDir(); err == nil {
		myCnf := filepath.Join(home, ".my.cnf")
		if _, err := os.Stat(myCnf); err == nil {
			files = append(files, myCnf)
		}
	}
	if extraFile != "" {
		files = append(files, extraFile)
	}
	return files
}

// LoadMyCnf reads the [client] section, then the [client<groupSuffix>]
// section, of the given option files. Later files and sections override
// earlier ones. Files that do not exist are skipped with a warning.
func LoadMyCnf(files []string, groupSuffix string) (*ConnConfig, error) {
	cfg := &ConnConfig{
		Host:    "localhost",
		User:    currentUserName(),
		Charset: defaultCharset,
	}

	var sources []interface{}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			log.Printf("Warning: option file %s is not readable: %v\n", f, err)
			continue
		}
		sources = append(sources, f)
	}
	if len(sources) == 0 {
		return cfg, nil
	}

	opts, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:        true, // e.g. `skip-ssl`
		SkipUnrecognizableLines: true, // e.g. `!includedir`
	}, sources[0], sources[1:]...)
	if err != nil {
		return nil, fmt.Errorf("read option files %v: %w", files, err)
	}

	sections := []string{"client"}
	if groupSuffix != "" {
		sections = append(sections, "client"+groupSuffix)
	}
	for _, name := range sections {
		section, err := opts.GetSection(name)
		if err != nil {
			continue
		}
		if err := cfg.apply(section); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", name, err)
		}
	}
	return cfg, nil
}

func (c *ConnConfig) apply(section *ini.Section) error {
	if v := optionValue(section, "host"); v != "" {
		c.Host = v
	}
	if v := optionValue(section, "user"); v != "" {
		c.User = v
	}
	if section.HasKey("password") {
		c.Password = section.Key("password").String()
	}
	if v := optionValue(section, "socket"); v != "" {
		c.Socket = v
	}
	if v := optionValue(section, "default-character-set"); v != "" {
		c.Charset = v
	}
	if v := optionValue(section, "port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", v, err)
		}
		c.Port = port
	}
	return nil
}

// optionValue looks a key up in both spellings, `a-b` and `a_b`
func optionValue(section *ini.Section, key string) string {
	for _, k := range []string{key, strings.ReplaceAll(key, "-", "_")} {
		if section.HasKey(k) {
			return strings.TrimSpace(section.Key(k).String())
		}
	}
	return ""
}

// Override replaces the file settings with the non-empty command line values
func (c *ConnConfig) Override(user, password, host string, port int, socket string) {
	if user != "" {
		c.User = user
	}
	if password != "" {
		c.Password = password
	}
	if host != "" {
		c.Host = host
	}
	if port > 0 {
		c.Port = port
	}
	if socket != "" {
		c.Socket = socket
	}
}

// DSN builds the go-sql-driver/mysql data source name.
// A host starting with "/" is taken as a unix socket path.
func (c *ConnConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Timeout = 10 * time.Second
	switch {
	case c.Socket != "":
		mc.Net = "unix"
		mc.Addr = c.Socket
	case strings.HasPrefix(c.Host, "/"):
		mc.Net = "unix"
		mc.Addr = c.Host
	default:
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.port()))
	}
	if c.Charset != "" {
		mc.Params = map[string]string{"charset": c.Charset}
	}
	return mc.FormatDSN()
}

func (c *ConnConfig) port() int {
	if c.Port > 0 {
		return c.Port
	}
	return defaultPort
}

func currentUserName() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
