package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/magiconair/properties"
)

type Config struct {
	Env                  string        `properties:"env,default=dev"`
	PprofPort            string        `properties:"pprof_port,default=:7424"`
	ApiPort              string        `properties:"api_port,default=:5000"`
	DbDriver             string        `properties:"db_driver,default=sqlite"`
	Dsn                  string        `properties:"dsn,default=jobs.sqlite"`
	MasterHostname       string        `properties:"master_hostname,default="`
	MasterRsyncdPassword string        `properties:"master_rsyncd_password,default="`
	RsyncBinary          string        `properties:"rsync_binary,default=rsync"`
	RsyncDefaultOptions  []string      `properties:"rsync_default_options,default=-avz;--timeout=600"`
	RsyncDeleteOption    bool          `properties:"rsync_delete_option,default=false"`
	Workers              int           `properties:"workers,default=20"`
	QueueSize            int           `properties:"queue_size,default=100"`
	MaxInstances         int           `properties:"max_instances,default=3"`
	TickInterval         time.Duration `properties:"tick_interval,default=1m"`
	RunMaxDuration       time.Duration `properties:"run_max_duration,default=6h"`
	SlaveTimeout         time.Duration `properties:"slave_timeout,default=10s"`
	SlaveApiPath         string        `properties:"slave_api_path,default=/sync_from_master/"`
	Timezone             string        `properties:"timezone,default=UTC"`
	NsqdAddr             string        `properties:"nsqd_addr,default="`
	AmqpUrl              string        `properties:"amqp_url,default="`
	RunEventTopic        string        `properties:"run_event_topic,default=mirror_run_event"`
	SlaveEventTopic      string        `properties:"slave_event_topic,default=mirror_slave_event"`
	JobsFile             string        `properties:"jobs_file,default="`
	RootUser             string        `properties:"root_user,default=root"`
	RootPass             string        `properties:"root_pass,default="`
	Log                  Log           `properties:"log"`
}

type Log struct {
	File      string `properties:"file,default="`
	Level     string `properties:"level,default=info"`
	MaxSizeMB int    `properties:"max_size_mb,default=100"`
}

var (
	cfg *Config
)

func GetCfg() *Config {
	return cfg
}

// Init parses command line flags and loads the configure file.
func Init() error {
	var configure string
	flag.StringVar(&configure, "configure", "etc/master.properties", "configure file for mirror-master")
	flag.Parse()
	c, err := Load(configure)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads the properties file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	p, err := properties.LoadFiles([]string{path}, properties.UTF8, true)
	if err != nil {
		return nil, fmt.Errorf("config.Load file=%s failed cause=%s", path, err.Error())
	}
	return Decode(p)
}

// Decode maps properties onto a Config and validates it.
func Decode(p *properties.Properties) (*Config, error) {
	c := &Config{}
	if err := p.Decode(c); err != nil {
		return nil, fmt.Errorf("config.Decode failed cause=%s", err.Error())
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a Config holding only default values.
func Default() *Config {
	c, err := Decode(properties.NewProperties())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Config) validate() error {
	switch {
	case c.DbDriver != "mysql" && c.DbDriver != "sqlite":
		return fmt.Errorf("db_driver=%s unsupported, use mysql or sqlite", c.DbDriver)
	case c.Workers <= 0:
		return fmt.Errorf("workers=%d must be positive", c.Workers)
	case c.MaxInstances <= 0:
		return fmt.Errorf("max_instances=%d must be positive", c.MaxInstances)
	case c.QueueSize < 0:
		return fmt.Errorf("queue_size=%d must not be negative", c.QueueSize)
	case c.TickInterval < time.Second:
		return fmt.Errorf("tick_interval=%s below one second", c.TickInterval)
	case c.NsqdAddr != "" && c.AmqpUrl != "":
		return fmt.Errorf("set only one of nsqd_addr and amqp_url")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone=%s invalid cause=%s", c.Timezone, err.Error())
	}
	return nil
}

// Location returns the timezone schedules are evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
