package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/emersion/go-vcard"

	"github.com/emersion/go-addressbook"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAddressbooks(w io.Writer, asJSON bool, l []addressbook.Addressbook) error {
	if asJSON {
		if l == nil {
			l = []addressbook.Addressbook{}
		}
		return printJSON(w, l)
	}

	rows := make([][]string, 0, len(l))
	for _, ab := range l {
		rows = append(rows, []string{ab.ID, ab.DisplayName(), ab.Description, ab.Color})
	}
	return printTable(w, []string{"ID", "NAME", "DESCRIPTION", "COLOR"}, rows)
}

type cardJSON struct {
	ID            string `json:"id"`
	AddressbookID string `json:"addressbook_id"`
	Content       string `json:"content"`
}

func printCards(w io.Writer, asJSON bool, l []addressbook.Card) error {
	if asJSON {
		out := make([]cardJSON, 0, len(l))
		for _, card := range l {
			out = append(out, cardJSON{card.ID, card.AddressbookID, string(card.Content)})
		}
		return printJSON(w, out)
	}

	rows := make([][]string, 0, len(l))
	for _, card := range l {
		var name, email, tel string
		if vc, err := card.VCard(); err == nil {
			name = vc.PreferredValue(vcard.FieldFormattedName)
			email = vc.PreferredValue(vcard.FieldEmail)
			tel = vc.PreferredValue(vcard.FieldTelephone)
		}
		rows = append(rows, []string{card.ID, name, email, tel})
	}
	return printTable(w, []string{"ID", "NAME", "EMAIL", "PHONE"}, rows)
}

func printCard(w io.Writer, asJSON bool, card *addressbook.Card) error {
	if asJSON {
		return printJSON(w, cardJSON{card.ID, card.AddressbookID, string(card.Content)})
	}
	_, err := w.Write(card.Content)
	return err
}
