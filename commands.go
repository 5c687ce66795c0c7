package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"proximity-radar.klederson.com/internal/bluetooth"
	"proximity-radar.klederson.com/internal/config"
	"proximity-radar.klederson.com/internal/friends"
	"proximity-radar.klederson.com/internal/heading"
	"proximity-radar.klederson.com/internal/identity"
	"proximity-radar.klederson.com/internal/proximity"
	"proximity-radar.klederson.com/internal/store"
)

func identityCmd() *cobra.Command {
	var nickname string
	var deg int
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show the stored identity and the frame it is broadcast as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			ids, err := identity.Open(identityPath(), "")
			if err != nil {
				return err
			}
			if nickname != "" {
				if err := ids.SetNickname(nickname); err != nil {
					return err
				}
			}
			id, err := ids.Identity()
			if err != nil {
				return err
			}

			var h proximity.Heading
			if deg >= 0 {
				h = heading.Reading(heading.NewStatic(deg))
			}
			frame, err := proximity.NewCodec(frameConfig(settings)).Encode(id, h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nickname:  %s\n", id.Nickname)
			fmt.Fprintf(out, "id:        %s\n", id.ID)
			fmt.Fprintf(out, "frame:     %s (%d bytes)\n", frame, len(frame))
			fmt.Fprintf(out, "company:   %s\n", bluetooth.DescribeCompany(settings.Frame.CompanyID))
			fmt.Fprintf(out, "file:      %s\n", ids.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "Store a new nickname first")
	cmd.Flags().IntVar(&deg, "heading", -1, "Include this heading in the frame preview")
	return cmd
}

func friendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "Manage the friend list",
	}

	open := func() (*store.DB, *friends.Set, error) {
		db, err := store.Open(config.Home())
		if err != nil {
			return nil, nil, err
		}
		fs, err := friends.Load(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, fs, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List friends and when they were last seen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(config.Home())
			if err != nil {
				return err
			}
			defer db.Close()
			list, err := db.ListFriends()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no friends yet, press f on a peer in the radar")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNICKNAME\tADDED\tLAST SEEN")
			for _, f := range list {
				seen := "never"
				if f.LastSeen != nil {
					seen = f.LastSeen.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.Nickname, f.AddedAt.Local().Format(time.DateOnly), seen)
			}
			return w.Flush()
		},
	}

	var nickname string
	add := &cobra.Command{
		Use:   "add ID",
		Short: "Mark a peer id as a friend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, fs, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			nick := nickname
			if nick == "" {
				if s, ok, err := db.GetSighting(args[0]); err == nil && ok {
					nick = s.Nickname
				}
			}
			if err := fs.Add(args[0], nick); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
			return nil
		},
	}
	add.Flags().StringVar(&nickname, "nickname", "", "Nickname to remember (defaults to the last one seen)")

	remove := &cobra.Command{
		Use:   "remove ID",
		Short: "Forget a friend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, fs, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			ok, err := fs.Remove(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(os.Stderr, "%s is not a friend\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
