package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecgard/ekklesia/internal/config"
	"github.com/alecgard/ekklesia/internal/role"
	"github.com/alecgard/ekklesia/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	clientName  string
	clientEmail string
	clientRole  string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the configured server",
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token locally",
	RunE:  runLogin,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account behind the stored session",
	RunE:  runWhoami,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE:  runLogout,
}

func init() {
	registerCmd.Flags().StringVar(&clientName, "name", "", "display name")
	registerCmd.Flags().StringVar(&clientEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&clientRole, "role", "", "membro, lider, pastor or admin (default membro)")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("email")

	loginCmd.Flags().StringVar(&clientEmail, "email", "", "account email")
	_ = loginCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(registerCmd, loginCmd, whoamiCmd, logoutCmd)
}

// clientSetup loads configuration and builds the API client and session
// manager used by the client commands. Logs go to stderr at warn level so
// they do not mix with command output.
func clientSetup(cmd *cobra.Command) (*session.Client, *session.Manager, error) {
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	c := session.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout)
	return c, session.NewManager(c, session.NewFileStore(cfg.Client.TokenFile)), nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	c, _, err := clientSetup(cmd)
	if err != nil {
		return err
	}

	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	u, err := c.Register(cmd.Context(), session.RegisterRequest{
		Name:     clientName,
		Email:    clientEmail,
		Role:     clientRole,
		Password: password,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s (id %s)\n", u.Email, u.Role, u.ID)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	_, mgr, err := clientSetup(cmd)
	if err != nil {
		return err
	}

	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	mgr.Bootstrap(cmd.Context())
	u, err := mgr.Login(cmd.Context(), clientEmail, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	_, mgr, err := clientSetup(cmd)
	if err != nil {
		return err
	}

	s := mgr.Bootstrap(cmd.Context())
	if !s.IsAuthenticated() {
		return errors.New("not logged in")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s <%s>\n", s.User.Name, s.User.Email)
	fmt.Fprintf(out, "id:   %s\n", s.User.ID)
	fmt.Fprintf(out, "role: %s\n", s.User.Role)

	var granted []string
	for _, r := range role.All() {
		if mgr.HasPermission(r) {
			granted = append(granted, r.String())
		}
	}
	fmt.Fprintf(out, "acts as: %s\n", strings.Join(granted, ", "))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	_, mgr, err := clientSetup(cmd)
	if err != nil {
		return err
	}

	mgr.Bootstrap(cmd.Context())
	if err := mgr.Logout(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

// readPassword prompts without echo on a terminal. Otherwise it reads one
// line from the command's input, which lets scripts pipe the password in.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
