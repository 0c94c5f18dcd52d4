package config

import "time"

// MountOptions holds high-level settings for mounting the filesystem
// through FUSE. No go-fuse types are exposed here.
type MountOptions struct {
	Debug  bool   // fuse debug logs
	FsName string // mount's FsName, shown as the source in mount tables
	Name   string // mount's Name, shown as the filesystem type
}

// AttrTimeoutDuration returns AttrTimeout as a time.Duration
func (c *Config) AttrTimeoutDuration() time.Duration {
	return seconds(c.AttrTimeout)
}

// EntryTimeoutDuration returns EntryTimeout as a time.Duration
func (c *Config) EntryTimeoutDuration() time.Duration {
	return seconds(c.EntryTimeout)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
