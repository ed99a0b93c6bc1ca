package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
	registerName  string
)

// loginCmd exchanges credentials for a session token
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the backend",
	Long: `Sign in with email and password. Without --password the password is
read from the first line of stdin.`,
	RunE: runLogin,
}

// registerCmd creates an account and signs in
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.api.Me(cmd.Context())
		if err != nil {
			return describe(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", u.Name, u.Email)
		return nil
	},
}

// clonesCmd lists the clones of the signed-in account
var clonesCmd = &cobra.Command{
	Use:   "clones",
	Short: "List your clones",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		clones, err := a.api.ListClones(cmd.Context())
		if err != nil {
			return describe(err)
		}
		if len(clones) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No clones yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
		for _, c := range clones {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Description)
		}
		return tw.Flush()
	},
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginEmail == "" {
		return fmt.Errorf("--email is required")
	}
	password, err := passwordFrom(cmd.InOrStdin(), loginPassword)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.store.Login(cmd.Context(), a.api, loginEmail, password)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", displayName(u))
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	if registerName == "" || loginEmail == "" {
		return fmt.Errorf("--name and --email are required")
	}
	password, err := passwordFrom(cmd.InOrStdin(), loginPassword)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.store.Register(cmd.Context(), a.api, models.RegisterRequest{
		Name:     registerName,
		Email:    loginEmail,
		Password: password,
	})
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s.\n", displayName(u))
	return nil
}

func passwordFrom(in io.Reader, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("a password is required")
	}
	return line, nil
}

func displayName(u *models.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// describe turns backend failures into one line for the terminal
func describe(err error) error {
	switch errors.KindOf(err) {
	case errors.KindUnauthorized:
		return fmt.Errorf("not signed in or session expired: run 'clonechat login'")
	case errors.KindNotFound:
		return fmt.Errorf("not found: %s", errors.GetErrorMessage(err))
	case errors.KindNetwork:
		return fmt.Errorf("backend unavailable: %s", errors.GetErrorMessage(err))
	}
	return err
}
