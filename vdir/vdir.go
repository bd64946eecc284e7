// Package vdir provides flows managing addressbooks stored in the vdir
// layout: one directory per addressbook holding one .vcf file per card, plus
// optional displayname, description and color metadata files.
//
// Flows implement fsio.Flow and never touch the filesystem themselves.
//
// See https://vdirsyncer.pimutils.org/en/stable/vdir.html
package vdir

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/emersion/go-addressbook/fsio"
	"github.com/emersion/go-addressbook/internal"
)

const (
	displayNameFile = "displayname"
	descriptionFile = "description"
	colorFile       = "color"

	cardExt = ".vcf"
)

// ErrNotDone is returned when reading the result of an unfinished flow.
var ErrNotDone = errors.New("vdir: flow has not completed")

// ErrCardNotFound is returned when reading a card file which doesn't exist.
var ErrCardNotFound = errors.New("vdir: card not found")

// Config describes a vdir home directory.
type Config struct {
	// HomeDir is the absolute path of the directory holding addressbooks.
	HomeDir string
	Logger  *slog.Logger
}

func (c *Config) logger() *slog.Logger {
	return internal.Logger(c.Logger)
}

func (c *Config) addressbookPath(id string) string {
	return filepath.Join(c.HomeDir, id)
}

func (c *Config) cardPath(addressbookID, id string) string {
	return filepath.Join(c.HomeDir, addressbookID, id+cardExt)
}

// checkID ensures an identifier maps to a single path element.
func checkID(kind, id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`+"\x00") {
		return fmt.Errorf("vdir: invalid %v identifier %q", kind, id)
	}
	return nil
}

// tempPath returns a hidden path next to target, on the same filesystem so
// that renaming it over target is atomic.
func tempPath(target string) string {
	dir, name := filepath.Split(target)
	return filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")
}

// flow holds the state shared by all vdir flows.
type flow struct {
	state fsio.State
	step  int
	done  bool
	err   error
}

// State implements fsio.Flow.
func (f *flow) State() *fsio.State {
	return &f.state
}

func (f *flow) finish() (fsio.Intent, bool) {
	f.done = true
	return 0, false
}

func (f *flow) fail(err error) (fsio.Intent, bool) {
	f.err = err
	return f.finish()
}

// Err returns the error which ended the flow, if any.
func (f *flow) Err() error {
	if !f.done {
		return ErrNotDone
	}
	return f.err
}

// Done reports whether the flow has completed.
func (f *flow) Done() bool {
	return f.done
}
