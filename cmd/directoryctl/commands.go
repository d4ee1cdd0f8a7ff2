package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load users, businesses and reviews from a YAML fixture",
	Long: `Load a YAML fixture into the store.

Users whose email already exists are reused. Reviews go through the same
aggregate update as the API, and featured flags respect the cap.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	fh, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer fh.Close()

	f, err := seed.Parse(fh)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	res, err := seed.Apply(ctx, seed.Repos{Businesses: repo, Reviews: repo, Users: repo, Cache: cache}, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d businesses, %d reviews (%d featured)\n",
		res.Users, res.Businesses, res.Reviews, res.Featured)
	return nil
}

var featureCmd = &cobra.Command{
	Use:   "feature <business-id>",
	Short: "Mark a business as featured",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFeatured(cmd, args[0], true) },
}

var unfeatureCmd = &cobra.Command{
	Use:   "unfeature <business-id>",
	Short: "Remove a business from the featured set",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFeatured(cmd, args[0], false) },
}

func setFeatured(cmd *cobra.Command, id string, on bool) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	if err := admin.SetFeatured(ctx, id, on); err != nil {
		if errors.Is(err, domain.ErrFeaturedCapReached) {
			return fmt.Errorf("already %d featured businesses; unfeature one first", domain.MaxFeatured)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "business %s featured=%t\n", id, on)
	return nil
}

var promoteCmd = &cobra.Command{
	Use:   "promote <user-id|email>",
	Short: "Give a user the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		u, err := findUser(cmd, args[0])
		if err != nil {
			return err
		}
		if err := admin.SetUserRole(ctx, u.ID, domain.RoleAdmin); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now admin\n", u.Email)
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <user-id|email>",
	Short: "Block a user from signing in",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setDisabled(cmd, args[0], true) },
}

var enableCmd = &cobra.Command{
	Use:   "enable <user-id|email>",
	Short: "Allow a disabled user to sign in again",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setDisabled(cmd, args[0], false) },
}

func setDisabled(cmd *cobra.Command, ref string, disabled bool) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	u, err := findUser(cmd, ref)
	if err != nil {
		return err
	}
	if err := admin.SetUserDisabled(ctx, operator, u.ID, disabled); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s disabled=%t\n", u.Email, disabled)
	return nil
}

// findUser accepts either an ID or an email address.
func findUser(cmd *cobra.Command, ref string) (domain.User, error) {
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	var (
		u   domain.User
		err error
	)
	if strings.Contains(ref, "@") {
		u, err = repo.GetUserByEmail(ctx, domain.NormalizeEmail(ref))
	} else {
		u, err = repo.GetUser(ctx, ref)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("no user %q", ref)
	}
	return u, err
}
