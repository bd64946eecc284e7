package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emersion/go-addressbook"
)

func newAddressbooksCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "addressbooks",
		Short:   "manage addressbooks",
		Aliases: []string{"addressbook", "ab"},
	}
	cmd.AddCommand(
		newAddressbooksListCmd(d),
		newAddressbooksCreateCmd(d),
		newAddressbooksUpdateCmd(d),
		newAddressbooksDeleteCmd(d),
	)
	return cmd
}

func newAddressbooksListCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "list addressbooks",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			l, err := backend.ListAddressbooks(cmd.Context())
			if err != nil {
				return err
			}
			return printAddressbooks(cmd.OutOrStdout(), d.flags.JSON, l)
		},
	}
}

// bindAddressbookFlags binds the flags of the addressbook properties.
func bindAddressbookFlags(cmd *cobra.Command, ab *addressbook.Addressbook) {
	cmd.Flags().StringVarP(&ab.Name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&ab.Description, "description", "d", "", "description")
	cmd.Flags().StringVar(&ab.Color, "color", "", "color, such as #ff0000")
}

func newAddressbooksCreateCmd(d *deps) *cobra.Command {
	var ab addressbook.Addressbook

	cmd := &cobra.Command{
		Use:   "create",
		Short: "create an addressbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ab.ID == "" {
				ab.ID = addressbook.NewAddressbook().ID
			}
			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			created, err := backend.CreateAddressbook(cmd.Context(), &ab)
			if err != nil {
				return err
			}
			return printAddressbooks(cmd.OutOrStdout(), d.flags.JSON, []addressbook.Addressbook{*created})
		},
	}

	cmd.Flags().StringVar(&ab.ID, "id", "", "identifier (default: a random UUID)")
	bindAddressbookFlags(cmd, &ab)
	return cmd
}

func newAddressbooksUpdateCmd(d *deps) *cobra.Command {
	var ab addressbook.Addressbook

	cmd := &cobra.Command{
		Use:   "update ADDRESSBOOK_ID",
		Short: "update the properties of an addressbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ab.ID = args[0]
			if ab.Name == "" && ab.Description == "" && ab.Color == "" {
				return fmt.Errorf("nothing to update, set at least one of --name, --description or --color")
			}
			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			updated, err := backend.UpdateAddressbook(cmd.Context(), &ab)
			if err != nil {
				return err
			}
			return printAddressbooks(cmd.OutOrStdout(), d.flags.JSON, []addressbook.Addressbook{*updated})
		},
	}

	bindAddressbookFlags(cmd, &ab)
	return cmd
}

func newAddressbooksDeleteCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ADDRESSBOOK_ID...",
		Short:   "delete addressbooks and their cards",
		Aliases: []string{"rm"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := d.backend(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := backend.DeleteAddressbook(cmd.Context(), id); err != nil {
					return err
				}
				d.Logger.Info("addressbook deleted", "id", id)
			}
			return nil
		},
	}
}
