package config

import "path/filepath"

// Directories are the well-known locations under the home directory.
type Directories struct {
	home string
}

func (d Directories) Home() string {
	return d.home
}

// Store holds the leveldb database of build records.
func (d Directories) Store() string {
	return filepath.Join(d.home, "store")
}

func (d Directories) Reports() string {
	return filepath.Join(d.home, "reports")
}

func (d Directories) Checkouts() string {
	return filepath.Join(d.home, "checkouts")
}
