package vdir

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emersion/go-addressbook"
	"github.com/emersion/go-addressbook/fsio"
)

// ListCards reads the cards of an addressbook.
type ListCards struct {
	flow
	addressbookID string
	path          string
	logger        *slog.Logger
	output        []addressbook.Card
}

// NewListCards creates a flow reading the .vcf files of an addressbook.
func NewListCards(c *Config, addressbookID string) *ListCards {
	f := &ListCards{
		addressbookID: addressbookID,
		path:          c.addressbookPath(addressbookID),
		logger:        c.logger(),
	}
	if err := checkID("addressbook", addressbookID); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *ListCards) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.ReadDir.Start(f.path)
		return fsio.ReadDir, true
	case 2:
		entries, ok := f.state.ReadDir.Done()
		if !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		var paths []string
		for _, entry := range entries {
			if entry.IsDir || filepath.Ext(entry.Path) != cardExt {
				continue
			}
			paths = append(paths, entry.Path)
		}
		if len(paths) == 0 {
			return f.finish()
		}
		f.state.ReadFiles.Start(paths)
		return fsio.ReadFiles, true
	case 3:
		contents, ok := f.state.ReadFiles.Done()
		if !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		for path, content := range contents {
			id := strings.TrimSuffix(filepath.Base(path), cardExt)
			card, err := addressbook.ParseCard(f.addressbookID, id, content)
			if err != nil {
				f.logger.Debug("skipping invalid card", "path", path, "err", err)
				continue
			}
			f.output = append(f.output, *card)
		}
		sort.Slice(f.output, func(i, j int) bool {
			return f.output[i].ID < f.output[j].ID
		})
		return f.finish()
	}
	return 0, false
}

// Cards returns the valid cards sorted by identifier.
func (f *ListCards) Cards() ([]addressbook.Card, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f.output, nil
}

// CreateCard writes a new card file.
type CreateCard struct {
	flow
	path string
	card addressbook.Card
}

// NewCreateCard creates a flow writing card into its addressbook.
func NewCreateCard(c *Config, card *addressbook.Card) *CreateCard {
	f := &CreateCard{path: c.cardPath(card.AddressbookID, card.ID), card: *card}
	if err := checkCardKey(card.AddressbookID, card.ID); err != nil {
		f.fail(err)
	}
	return f
}

func checkCardKey(addressbookID, id string) error {
	if err := checkID("addressbook", addressbookID); err != nil {
		return err
	}
	return checkID("card", id)
}

// Next implements fsio.Flow.
func (f *CreateCard) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.CreateFiles.Start(map[string][]byte{f.path: f.card.Content})
		return fsio.CreateFiles, true
	case 2:
		if _, ok := f.state.CreateFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		return f.finish()
	}
	return 0, false
}

// Card returns the created card.
func (f *CreateCard) Card() (*addressbook.Card, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	card := f.card
	return &card, nil
}

// ReadCard reads a card file.
type ReadCard struct {
	flow
	addressbookID, id string
	path              string
	output            *addressbook.Card
}

// NewReadCard creates a flow reading the card id of an addressbook.
func NewReadCard(c *Config, addressbookID, id string) *ReadCard {
	f := &ReadCard{
		addressbookID: addressbookID,
		id:            id,
		path:          c.cardPath(addressbookID, id),
	}
	if err := checkCardKey(addressbookID, id); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *ReadCard) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.ReadFiles.Start([]string{f.path})
		return fsio.ReadFiles, true
	case 2:
		contents, ok := f.state.ReadFiles.Done()
		if !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		content, ok := contents[f.path]
		if !ok {
			return f.fail(ErrCardNotFound)
		}
		card, err := addressbook.ParseCard(f.addressbookID, f.id, content)
		if err != nil {
			return f.fail(err)
		}
		f.output = card
		return f.finish()
	}
	return 0, false
}

// Card returns the parsed card.
func (f *ReadCard) Card() (*addressbook.Card, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f.output, nil
}

// UpdateCard replaces the content of a card file. The new content is
// written to a temporary file first, then renamed over the card file.
type UpdateCard struct {
	flow
	path, tmp string
	card      addressbook.Card
}

// NewUpdateCard creates a flow replacing card.
func NewUpdateCard(c *Config, card *addressbook.Card) *UpdateCard {
	path := c.cardPath(card.AddressbookID, card.ID)
	f := &UpdateCard{path: path, tmp: tempPath(path), card: *card}
	if err := checkCardKey(card.AddressbookID, card.ID); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *UpdateCard) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.CreateFiles.Start(map[string][]byte{f.tmp: f.card.Content})
		return fsio.CreateFiles, true
	case 2:
		if _, ok := f.state.CreateFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		f.state.MoveFiles.Start(map[string]string{f.tmp: f.path})
		return fsio.MoveFiles, true
	case 3:
		if _, ok := f.state.MoveFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		return f.finish()
	}
	return 0, false
}

// Card returns the updated card.
func (f *UpdateCard) Card() (*addressbook.Card, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	card := f.card
	return &card, nil
}

// DeleteCard removes a card file.
type DeleteCard struct {
	flow
	path string
}

// NewDeleteCard creates a flow deleting the card id of an addressbook.
func NewDeleteCard(c *Config, addressbookID, id string) *DeleteCard {
	f := &DeleteCard{path: c.cardPath(addressbookID, id)}
	if err := checkCardKey(addressbookID, id); err != nil {
		f.fail(err)
	}
	return f
}

// Next implements fsio.Flow.
func (f *DeleteCard) Next() (fsio.Intent, bool) {
	if f.done {
		return 0, false
	}

	f.step++
	switch f.step {
	case 1:
		f.state.RemoveFiles.Start([]string{f.path})
		return fsio.RemoveFiles, true
	case 2:
		if _, ok := f.state.RemoveFiles.Done(); !ok {
			return f.fail(fsio.ErrIntentNotHonored)
		}
		return f.finish()
	}
	return 0, false
}
