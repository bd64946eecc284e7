package vdir

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/fsio"
)

// ListAddressbooks lists the addressbooks of the home directory.
type ListAddressbooks struct {
	flow
	homeDir string
	logger  *slog.Logger
	ids     []string
	dirs    map[string]string
	output  []addressbook.Addressbook
}

// NewListAddressbooks creates a flow listing the subdirectories of the home
// directory as addressbooks.
func NewListAddressbooks(c *Config) *ListAddressbooks {
	return &ListAddressbooks{homeDir: c.HomeDir, logger: c.logger()}
}

// Next implements fsio.Flow.
func (f *ListAddressbooks) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.ReadDir.Start(f.homeDir)
		return fsio.ReadDir, true
	case 2:
		entries, ok := f.state.ReadDir.Done()
		if !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		var paths []string
		f.dirs = make(map[string]string)
		for _, entry := range entries {
			id := filepath.Base(entry.Path)
			if !entry.IsDir || strings.HasPrefix(id, ".") {
				continue
			}
			f.ids = append(f.ids, id)
			f.dirs[id] = entry.Path
			paths = append(paths,
				filepath.Join(entry.Path, displayNameFile),
				filepath.Join(entry.Path, descriptionFile),
				filepath.Join(entry.Path, colorFile),
			)
		}
		if len(f.ids) == 0 {
			return f.finish()
		}
		sort.Strings(f.ids)
		f.state.ReadFiles.Start(paths)
		return fsio.ReadFiles, true
	case 3:
		contents, ok := f.state.ReadFiles.Done()
		if !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		read := func(id, name string) string {
			return strings.TrimSpace(string(contents[filepath.Join(f.dirs[id], name)]))
		}
		for _, id := range f.ids {
			ab := addressbook.Addressbook{
				ID:          id,
				Name:        read(id, displayNameFile),
				Description: read(id, descriptionFile),
				Color:       read(id, colorFile),
			}
			if ab.Name == "" {
				ab.Name = id
			}
			f.output = append(f.output, ab)
		}
		f.logger.Debug("listed addressbooks", "dir", f.homeDir, "count", len(f.output))
		return f.finish()
	}
	return 0, false
}

// Addressbooks returns the addressbooks sorted by identifier.
func (f *ListAddressbooks) Addressbooks() ([]addressbook.Addressbook, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f.output, nil
}

// metadataFiles returns the metadata files of the non-empty fields of ab.
func metadataFiles(dir string, ab *addressbook.Addressbook) map[string][]byte {
	files := make(map[string][]byte)
	for name, value := range map[string]string{
		displayNameFile: ab.Name,
		descriptionFile: ab.Description,
		colorFile:       ab.Color,
	} {
		if value != "" {
			files[filepath.Join(dir, name)] = []byte(value)
		}
	}
	return files
}

// CreateAddressbook creates an addressbook directory and its metadata files.
type CreateAddressbook struct {
	flow
	path        string
	addressbook addressbook.Addressbook
}

// NewCreateAddressbook creates a flow creating ab.
func NewCreateAddressbook(c *Config, ab *addressbook.Addressbook) *CreateAddressbook {
	f := &CreateAddressbook{path: c.addressbookPath(ab.ID), addressbook: *ab}
	if err := checkID("addressbook", ab.ID); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *CreateAddressbook) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.CreateDir.Start(f.path)
		return fsio.CreateDir, true
	case 2:
		if _, ok := f.state.CreateDir.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		files := metadataFiles(f.path, &f.addressbook)
		if len(files) == 0 {
			return f.finish()
		}
		f.state.CreateFiles.Start(files)
		return fsio.CreateFiles, true
	case 3:
		if _, ok := f.state.CreateFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		return f.finish()
	}
	return 0, false
}

// Addressbook returns the created addressbook.
func (f *CreateAddressbook) Addressbook() (*addressbook.Addressbook, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	ab := f.addressbook
	return &ab, nil
}

// UpdateAddressbook replaces the metadata files of the non-empty fields of
// an addressbook. New contents are written to temporary files first, then
// renamed over the existing files.
type UpdateAddressbook struct {
	flow
	path        string
	addressbook addressbook.Addressbook
	moves       map[string]string
}

// NewUpdateAddressbook creates a flow updating ab.
func NewUpdateAddressbook(c *Config, ab *addressbook.Addressbook) *UpdateAddressbook {
	f := &UpdateAddressbook{path: c.addressbookPath(ab.ID), addressbook: *ab}
	if err := checkID("addressbook", ab.ID); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *UpdateAddressbook) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		files := metadataFiles(f.path, &f.addressbook)
		if len(files) == 0 {
			return f.finish()
		}
		tmpFiles := make(map[string][]byte, len(files))
		f.moves = make(map[string]string, len(files))
		for target, content := range files {
			tmp := tempPath(target)
			tmpFiles[tmp] = content
			f.moves[tmp] = target
		}
		f.state.CreateFiles.Start(tmpFiles)
		return fsio.CreateFiles, true
	case 2:
		if _, ok := f.state.CreateFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		f.state.MoveFiles.Start(f.moves)
		return fsio.MoveFiles, true
	case 3:
		if _, ok := f.state.MoveFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		return f.finish()
	}
	return 0, false
}

// Addressbook returns the updated addressbook.
func (f *UpdateAddressbook) Addressbook() (*addressbook.Addressbook, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	ab := f.addressbook
	return &ab, nil
}

// DeleteAddressbook removes an addressbook directory and all of its cards.
type DeleteAddressbook struct {
	flow
	path string
}

// NewDeleteAddressbook creates a flow deleting the addressbook id.
func NewDeleteAddressbook(c *Config, id string) *DeleteAddressbook {
	f := &DeleteAddressbook{path: c.addressbookPath(id)}
	if err := checkID("addressbook", id); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *DeleteAddressbook) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.RemoveDir.Start(f.path)
		return fsio.RemoveDir, true
	case 2:
		if _, ok := f.state.RemoveDir.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		return f.finish()
	}
	return 0, false
}
