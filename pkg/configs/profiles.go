// Package configs reads and writes connection profiles of gdsremote.
//
// Profiles are stored in a yaml file as a map from profile name to Profile.
// Environment variables (and .env files) can override fields of the profile in use.
package configs

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	acl "github.com/hectane/go-acl"
	yaml "gopkg.in/yaml.v3"
)

var ErrProfileStoreNotFound = errors.New("profile store is not found")
var ErrCannotCreateConfig = errors.New("cannot create profile store")
var ErrCannotUpdateConfig = errors.New("cannot update profile store")
var ErrProfileInvalid = errors.New("profile is invalid")
var ErrProfileNotFound = errors.New("profile is not found")

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

// Profile describes how to reach a session and its compute cluster.
type Profile struct {
	// ComputeCluster is the host (or IP) of the compute cluster.
	ComputeCluster string `yaml:"computeCluster"`

	Bolt  BoltProfile  `yaml:"bolt"`
	Arrow ArrowProfile `yaml:"arrow"`

	// EncryptedDBPassword is passed to jobs as is.
	EncryptedDBPassword string `yaml:"encryptedDbPassword,omitempty"`

	// ChunkSize of uploads. 0 means the default.
	ChunkSize int `yaml:"chunkSize,omitempty"`

	// PollInterval of job status. 0 means the default.
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
}

type BoltProfile struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

type ArrowProfile struct {
	// Address like "session.example.com:8491"
	Address string `yaml:"address"`

	TLS                       bool `yaml:"tls,omitempty"`
	DisableServerVerification bool `yaml:"disableServerVerification,omitempty"`

	// base64 encoded PEM of CA certificates
	RootCerts string `yaml:"rootCerts,omitempty"`
}

var boltSchemes = map[string]struct{}{
	"bolt": {}, "bolt+s": {}, "bolt+ssc": {},
	"neo4j": {}, "neo4j+s": {}, "neo4j+ssc": {},
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// Verify Profile
//
// # Return
//
// nil if it is valid. Otherwise, ErrProfileInvalid error.
func (p *Profile) Verify() error {
	if p.ComputeCluster == "" {
		return fmt.Errorf("%w: computeCluster is empty", ErrProfileInvalid)
	}
	if u, err := url.Parse("http://" + p.ComputeCluster); err != nil || u.Host != p.ComputeCluster || u.Port() != "" {
		return fmt.Errorf("%w: computeCluster should be a host without port: %s", ErrProfileInvalid, p.ComputeCluster)
	}

	u, err := url.Parse(p.Bolt.URI)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: bolt.uri is not URL: %s", ErrProfileInvalid, p.Bolt.URI)
	}
	if _, ok := boltSchemes[u.Scheme]; !ok {
		return fmt.Errorf("%w: bolt.uri has unknown scheme: %s", ErrProfileInvalid, u.Scheme)
	}

	if _, _, err := net.SplitHostPort(p.Arrow.Address); err != nil {
		return fmt.Errorf("%w: arrow.address should be host:port: %s", ErrProfileInvalid, p.Arrow.Address)
	}
	if p.Arrow.RootCerts != "" && !verifyPEM(p.Arrow.RootCerts) {
		return fmt.Errorf("%w: arrow.rootCerts is not PEM", ErrProfileInvalid)
	}

	if p.ChunkSize < 0 {
		return fmt.Errorf("%w: chunkSize should not be negative: %d", ErrProfileInvalid, p.ChunkSize)
	}
	if p.PollInterval < 0 {
		return fmt.Errorf("%w: pollInterval should not be negative: %s", ErrProfileInvalid, p.PollInterval)
	}
	return nil
}

// Get returns the profile named name.
func (ps ProfileStore) Get(name string) (*Profile, error) {
	p, ok := ps[name]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return p, nil
}

// DefaultProfileStorePath is where the profile store is placed by default.
//
// GDS_PROFILE_STORE overrides it.
func DefaultProfileStorePath() (string, error) {
	if p := os.Getenv("GDS_PROFILE_STORE"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gdsremote", "profiles.yaml"), nil
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(filepath string) (ProfileStore, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, filepath)
		}
		return nil, err
	}
	return Unmarshall(buf)
}

// Unmarshall profile store from yaml in byte array.
func Unmarshall(buf []byte) (ProfileStore, error) {
	ret := map[string]*Profile{}
	if err := yaml.Unmarshal(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Save profile store to file.
//
// The previous content is kept at "<path>.backup" while writing,
// and the file is made accessible only by the current user.
func (ps ProfileStore) Save(path string) error {
	saving := false

	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	bkpath := path + ".backup"
	bk, err := newSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer func() {
		if !saving {
			os.Remove(bkpath)
		}
	}()
	defer bk.Close()

	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	if err == nil {
		if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
			return err
		}
	} else if os.IsPermission(err) {
		return fmt.Errorf("%w, because no permission to write file at %s", ErrCannotUpdateConfig, path)
	} else if os.IsNotExist(err) {
		f, err = newSafeFile(path)
		if err != nil {
			return fmt.Errorf("%w: cannot create a file at %s", ErrCannotCreateConfig, path)
		}
	} else {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	saving = true
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	saving = false
	return nil
}

// newSafeFile creates a new empty file which is accessible only by the current user.
//
// If the file already exists, it will be truncated.
func newSafeFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_RDWR, os.FileMode(0600))
	if err != nil {
		return nil, err
	}
	// some platforms (windows) ignore the mode on creation.
	if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
