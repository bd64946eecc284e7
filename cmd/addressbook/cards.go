package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-vcard"
	"github.com/spf13/cobra"

	"github.com/emersion/go-addressbook"
)

func newCardsCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cards",
		Short:   "manage cards",
		Aliases: []string{"card"},
	}
	cmd.AddCommand(
		newCardsListCmd(d),
		newCardsReadCmd(d),
		newCardsCreateCmd(d),
		newCardsUpdateCmd(d),
		newCardsDeleteCmd(d),
	)
	return cmd
}

func newCardsListCmd(d *deps) *cobra.Command {
	var (
		matches []string
		anyOf   bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:     "list ADDRESSBOOK_ID",
		Short:   "list the cards of an addressbook",
		Aliases: []string{"ls"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := addressbook.Query{FilterTest: addressbook.FilterAllOf, Limit: limit}
			if anyOf && len(matches) > 0 {
				query.FilterTest = addressbook.FilterAnyOf
			}
			for _, s := range matches {
				pf, err := addressbook.ParseTextMatch(s)
				if err != nil {
					return err
				}
				query.PropFilters = append(query.PropFilters, pf)
			}

			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			cards, err := backend.ListCards(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cards, err = addressbook.Filter(&query, cards)
			if err != nil {
				return err
			}
			return printCards(cmd.OutOrStdout(), d.flags.JSON, cards)
		},
	}

	cmd.Flags().StringArrayVarP(&matches, "match", "m", nil, "only list cards with a FIELD containing TEXT (FIELD=TEXT)")
	cmd.Flags().BoolVar(&anyOf, "any", false, "list cards matching any --match instead of all")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of cards")
	return cmd
}

func newCardsReadCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "read ADDRESSBOOK_ID CARD_ID",
		Short:   "print a card",
		Aliases: []string{"get"},
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			card, err := backend.ReadCard(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printCard(cmd.OutOrStdout(), d.flags.JSON, card)
		},
	}
}

// readVCard reads a vCard from the file name, or from in if name is empty
// or "-".
func readVCard(in io.Reader, name string) ([]byte, error) {
	if name != "" && name != "-" {
		return os.ReadFile(name)
	}
	return io.ReadAll(in)
}

func newCardsCreateCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "create ADDRESSBOOK_ID [FILE]",
		Short: "create a card from a vCard file or standard input",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 1 {
				name = args[1]
			}
			b, err := readVCard(cmd.InOrStdin(), name)
			if err != nil {
				return err
			}
			vc, err := vcard.NewDecoder(bytes.NewReader(b)).Decode()
			if err != nil {
				return fmt.Errorf("invalid vCard: %w", err)
			}
			card, err := addressbook.NewCard(args[0], vc)
			if err != nil {
				return err
			}

			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			created, err := backend.CreateCard(cmd.Context(), card)
			if err != nil {
				return err
			}
			if d.flags.JSON {
				return printCard(cmd.OutOrStdout(), true, created)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return err
		},
	}
}

func newCardsUpdateCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "update ADDRESSBOOK_ID CARD_ID [FILE]",
		Short: "replace a card with a vCard file or standard input",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 2 {
				name = args[2]
			}
			b, err := readVCard(cmd.InOrStdin(), name)
			if err != nil {
				return err
			}
			card, err := addressbook.ParseCard(args[0], args[1], b)
			if err != nil {
				return err
			}

			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			_, err = backend.UpdateCard(cmd.Context(), card)
			return err
		},
	}
}

func newCardsDeleteCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ADDRESSBOOK_ID CARD_ID...",
		Short:   "delete cards",
		Aliases: []string{"rm"},
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			for _, id := range args[1:] {
				if err := backend.DeleteCard(cmd.Context(), args[0], id); err != nil {
					return err
				}
				d.Logger.Info("card deleted", "addressbook", args[0], "id", id)
			}
			return nil
		},
	}
}
