package utils

import (
	"net"
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/google/uuid"
)

func UUID() string {
	return uuid.New().String()
}

func Time(t time.Time) string {
	return t.UTC().Format("2006/01/02 15:04:05")
}

func UnmarshalYaml(b []byte, v interface{}) error {
	return yaml.Unmarshal(b, v)
}

// Retry calls f once plus at most retry more times until it succeeds.
func Retry(retry int, f func() error) error {
	var err error
	err = f()
	if err == nil {
		return nil
	}
	for re := 0; re < retry; re++ {
		err = f()
		if err == nil {
			break
		}
	}
	return err
}

// Hostname address slaves pull from when master_hostname is not configured.
func Hostname() string {
	if ip, err := OutboundIP(); err == nil {
		return ip
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "127.0.0.1"
}

// OutboundIP local address of the default route.
func OutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1", err
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	if localAddr.IP.To4() != nil && !localAddr.IP.IsLoopback() {
		return localAddr.IP.String(), nil
	}
	return "127.0.0.1", nil
}
